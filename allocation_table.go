package deniable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Root Block plaintext layout (big-endian):
//
//	┌─────────────────────────────────────┐
//	│ Entry count (uint32)                │
//	│ Total data size (uint32)            │
//	├─────────────────────────────────────┤
//	│ Entry 0                             │
//	│ - Offset in data blob (uint64)      │
//	│ - Plaintext length (uint32)         │
//	│ - Logical address (uint32)          │
//	│ - Serialized block size (uint32)    │
//	│ - Block ID (32 bytes)               │
//	├─────────────────────────────────────┤
//	│ Entry 1 ...                         │
//	└─────────────────────────────────────┘

const (
	rootHeaderSize = 8
	entrySize      = 8 + 4 + 4 + 4 + BlockIDSize
)

// AllocationEntry maps a run of logical session bytes to one data block
type AllocationEntry struct {
	Offset         uint64  // Start of the serialized block in the data blob
	Length         uint32  // Plaintext bytes carried by the block
	LogicalAddress uint32  // Position of those bytes in the session payload
	BlockSize      uint32  // Serialized block size
	BlockID        BlockID // Salt of the block key
}

// RootBlock is the allocation table of one session
type RootBlock struct {
	Entries       []AllocationEntry
	EntryCount    uint32
	TotalDataSize uint32
}

// NewRootBlock creates an empty root block
func NewRootBlock() *RootBlock {
	return &RootBlock{
		Entries: make([]AllocationEntry, 0),
	}
}

// AddEntry appends an entry and grows the logical size
func (r *RootBlock) AddEntry(entry AllocationEntry) {
	r.Entries = append(r.Entries, entry)
	r.EntryCount++
	r.TotalDataSize += entry.Length
}

// WriteTo writes the serialized root block to w
func (r *RootBlock) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)
	buf.Grow(rootHeaderSize + len(r.Entries)*entrySize)

	if err := binary.Write(buf, binary.BigEndian, r.EntryCount); err != nil {
		return 0, fmt.Errorf("failed to write entry count: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, r.TotalDataSize); err != nil {
		return 0, fmt.Errorf("failed to write total data size: %w", err)
	}

	for _, e := range r.Entries {
		fields := []any{e.Offset, e.Length, e.LogicalAddress, e.BlockSize, e.BlockID}
		for _, f := range fields {
			if err := binary.Write(buf, binary.BigEndian, f); err != nil {
				return 0, fmt.Errorf("failed to write allocation entry: %w", err)
			}
		}
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads a serialized root block from r
func (r *RootBlock) ReadFrom(rd io.Reader) (int64, error) {
	var totalRead int64

	if err := binary.Read(rd, binary.BigEndian, &r.EntryCount); err != nil {
		return totalRead, fmt.Errorf("failed to read entry count: %w", err)
	}
	totalRead += 4

	if err := binary.Read(rd, binary.BigEndian, &r.TotalDataSize); err != nil {
		return totalRead, fmt.Errorf("failed to read total data size: %w", err)
	}
	totalRead += 4

	// Entries are read one by one so a forged count cannot force a huge allocation
	r.Entries = make([]AllocationEntry, 0)
	for i := uint32(0); i < r.EntryCount; i++ {
		var e AllocationEntry
		fields := []any{&e.Offset, &e.Length, &e.LogicalAddress, &e.BlockSize, &e.BlockID}
		for _, f := range fields {
			if err := binary.Read(rd, binary.BigEndian, f); err != nil {
				return totalRead, fmt.Errorf("failed to read allocation entry %d: %w", i, err)
			}
		}
		totalRead += entrySize
		r.Entries = append(r.Entries, e)
	}

	return totalRead, nil
}

// validate checks the table against itself and the data blob length
func (r *RootBlock) validate(blobLen uint64) error {
	if uint32(len(r.Entries)) != r.EntryCount {
		return fmt.Errorf("entry count %d does not match %d entries", r.EntryCount, len(r.Entries))
	}
	for i, e := range r.Entries {
		if e.BlockSize < BlockHeaderSize {
			return fmt.Errorf("entry %d: block size %d too small", i, e.BlockSize)
		}
		if e.Offset > blobLen || uint64(e.BlockSize) > blobLen-e.Offset {
			return fmt.Errorf("entry %d: block outside data blob", i)
		}
		if uint64(e.LogicalAddress)+uint64(e.Length) > uint64(r.TotalDataSize) {
			return fmt.Errorf("entry %d: logical range outside session", i)
		}
	}
	return nil
}

// EncryptRootBlock serializes root and encrypts it under the session key
func EncryptRootBlock(p Primitives, root *RootBlock, sessionKey []byte) (*Block, error) {
	buf := new(bytes.Buffer)
	if _, err := root.WriteTo(buf); err != nil {
		return nil, err
	}
	defer Wipe(buf.Bytes())
	return createBlock(p, buf.Bytes(), sessionKey, rootBlockAD)
}

// DecryptRootBlock decrypts the root block at offset. It returns nil when
// the block does not authenticate, does not parse, or references bytes
// outside the data blob.
func DecryptRootBlock(p Primitives, dataBlob []byte, offset uint64, sessionKey []byte) *RootBlock {
	plaintext, ok := parseAt(p, dataBlob, offset, sessionKey, rootBlockAD)
	if !ok {
		return nil
	}
	defer Wipe(plaintext)

	rd := bytes.NewReader(plaintext)
	root := &RootBlock{}
	if _, err := root.ReadFrom(rd); err != nil || rd.Len() != 0 {
		return nil
	}
	if err := root.validate(uint64(len(dataBlob))); err != nil {
		return nil
	}
	return root
}

// ReconstructSession decrypts every entry of root and places its bytes at
// the entry's logical address. Any entry that fails to decrypt yields nil.
func ReconstructSession(p Primitives, dataBlob []byte, root *RootBlock, sessionKey []byte) []byte {
	return reconstructSession(p, dataBlob, root, sessionKey, ParallelConfig{})
}

func reconstructSession(p Primitives, dataBlob []byte, root *RootBlock, sessionKey []byte, parallel ParallelConfig) []byte {
	out := make([]byte, root.TotalDataSize)

	jobs := make([]entryJob, len(root.Entries))
	for i := range root.Entries {
		jobs[i].entry = &root.Entries[i]
	}

	err := decryptEntries(parallel, jobs, func(job *entryJob) error {
		return job.decrypt(p, dataBlob, sessionKey)
	})
	if err != nil {
		for i := range jobs {
			Wipe(jobs[i].plaintext)
		}
		Wipe(out)
		return nil
	}

	for i := range jobs {
		e := jobs[i].entry
		copy(out[e.LogicalAddress:], jobs[i].plaintext[:e.Length])
		Wipe(jobs[i].plaintext)
	}
	return out
}
