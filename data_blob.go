package deniable

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

// Data blob layout:
//
//	┌──────────────┬────────────────────────────────┬──────────────┬─────
//	│ padding      │ block                          │ padding      │ ...
//	│ (random)     │ size:4 BE │ nonce:16 │ ct     │ (random)     │
//	└──────────────┴────────────────────────────────┴──────────────┴─────
//
// The blob only grows. Superseded blocks are left in place and are
// indistinguishable from padding without the key that wrote them.

const (
	// BlockHeaderSize is the size prefix plus the nonce
	BlockHeaderSize = 4 + NonceSize

	// BlockIDSize is the size of a random block identifier
	BlockIDSize = 32

	// MaxBlockPayload is the largest plaintext a single block can carry
	MaxBlockPayload = int64(math.MaxUint32) - BlockHeaderSize - TagSize
)

// Associated data labels, one per kind of ciphertext
var (
	blockAD      = []byte("deniable/v1/block")
	rootBlockAD  = []byte("deniable/v1/root")
	blockKeyInfo = []byte("deniable/v1/block-key/")
)

// BlockID identifies a data block and salts its key
type BlockID [BlockIDSize]byte

// NewBlockID returns a random block identifier
func NewBlockID() (BlockID, error) {
	var id BlockID
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("failed to generate block id: %w", err)
	}
	return id, nil
}

// Block is one AEAD-encrypted unit of the data blob
type Block struct {
	Size       uint32 // BlockHeaderSize + len(Ciphertext)
	Nonce      []byte // NonceSize bytes
	Ciphertext []byte // Ciphertext including the authentication tag
}

// Len returns the serialized length of the block
func (b *Block) Len() int {
	return int(b.Size)
}

// Bytes returns the serialized block
func (b *Block) Bytes() []byte {
	out := make([]byte, b.Len())
	b.putInto(out)
	return out
}

func (b *Block) putInto(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], b.Size)
	copy(dst[4:BlockHeaderSize], b.Nonce)
	copy(dst[BlockHeaderSize:], b.Ciphertext)
}

// CreateBlock encrypts plaintext under key with a fresh random nonce
func CreateBlock(p Primitives, plaintext, key []byte) (*Block, error) {
	return createBlock(p, plaintext, key, blockAD)
}

func createBlock(p Primitives, plaintext, key, ad []byte) (*Block, error) {
	if int64(len(plaintext)) > MaxBlockPayload {
		return nil, NewValidationError("plaintext", len(plaintext), "too large for a single block")
	}

	nonce, err := p.GenerateNonce()
	if err != nil {
		return nil, NewEncryptionError("encrypt", err)
	}
	if len(nonce) != NonceSize {
		return nil, NewEncryptionError("encrypt", fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}

	ciphertext, err := p.Encrypt(key, nonce, plaintext, ad)
	if err != nil {
		return nil, NewEncryptionError("encrypt", err)
	}

	return &Block{
		Size:       uint32(BlockHeaderSize + len(ciphertext)),
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// DeriveBlockKey derives the key of one block from the session key so that
// every block is encrypted independently
func DeriveBlockKey(p Primitives, sessionKey []byte, id BlockID) ([]byte, error) {
	context := make([]byte, 0, len(blockKeyInfo)+BlockIDSize)
	context = append(context, blockKeyInfo...)
	context = append(context, id[:]...)

	key, err := p.DeriveKeyFromKey(sessionKey, context)
	if err != nil {
		return nil, NewEncryptionError("derive-key", err)
	}
	return key, nil
}

// Assemble builds a fresh data blob: each block is preceded by random
// padding. With no blocks the blob is a single padding region.
func Assemble(blocks []*Block, padding Distribution) ([]byte, error) {
	if len(blocks) == 0 {
		size, err := padding.Sample(rand.Reader)
		if err != nil {
			return nil, err
		}
		return randomBytes(int(size))
	}

	var blob []byte
	for _, block := range blocks {
		next, _, err := AppendBlock(blob, block, padding)
		if err != nil {
			return nil, err
		}
		blob = next
	}
	return blob, nil
}

// AppendBlock returns a new blob holding blob, random padding and block, and
// the offset at which block starts. blob itself is not modified.
func AppendBlock(blob []byte, block *Block, padding Distribution) ([]byte, uint64, error) {
	padSize, err := padding.Sample(rand.Reader)
	if err != nil {
		return nil, 0, err
	}

	total := len(blob) + int(padSize) + block.Len()
	out := make([]byte, total)
	copy(out, blob)

	pad := out[len(blob) : len(blob)+int(padSize)]
	if _, err := rand.Read(pad); err != nil {
		return nil, 0, fmt.Errorf("failed to generate padding: %w", err)
	}

	offset := len(blob) + int(padSize)
	block.putInto(out[offset:])
	return out, uint64(offset), nil
}

// ParseAt decrypts the block starting at offset. Any structural problem or
// authentication failure reports ok == false; ParseAt never panics.
func ParseAt(p Primitives, blob []byte, offset uint64, key []byte) (plaintext []byte, ok bool) {
	return parseAt(p, blob, offset, key, blockAD)
}

func parseAt(p Primitives, blob []byte, offset uint64, key, ad []byte) (plaintext []byte, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			plaintext, ok = nil, false
		}
	}()

	size, ok := blockSizeAt(blob, offset)
	if !ok {
		return nil, false
	}

	start := offset + BlockHeaderSize
	end := offset + uint64(size)
	nonce := blob[offset+4 : start]
	ciphertext := blob[start:end]

	plaintext, err := p.Decrypt(key, nonce, ciphertext, ad)
	if err != nil {
		return nil, false
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, true
}

// blockSizeAt reads and bounds-checks the size prefix at offset
func blockSizeAt(blob []byte, offset uint64) (uint32, bool) {
	length := uint64(len(blob))
	if offset > length || length-offset < 4 {
		return 0, false
	}
	size := binary.BigEndian.Uint32(blob[offset : offset+4])
	if size < BlockHeaderSize || uint64(size) > length-offset {
		return 0, false
	}
	return size, true
}

// OverwriteRange replaces blob[offset:offset+n] with fresh random bytes in place
func OverwriteRange(blob []byte, offset uint64, n uint64) error {
	length := uint64(len(blob))
	if offset > length || n > length-offset {
		return fmt.Errorf("range [%d, %d) outside blob of %d bytes: %w", offset, offset+n, length, ErrInvalidSize)
	}
	if _, err := rand.Read(blob[offset : offset+n]); err != nil {
		return fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return nil
}
