package deniable

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// SaltSize is the size of the per-session key derivation salt
	SaltSize = 16

	// sessionAddressVersion tags the serialized record
	sessionAddressVersion = 1

	// sessionAddressSize is rootBlockOffset:8 rootBlockSize:4 salt:16 createdAt:8 updatedAt:8
	sessionAddressSize = 8 + 4 + SaltSize + 8 + 8

	// slotPlaintextSize is the fixed plaintext carried by one slot:
	// payloadLen:2 version:1 address:44, zero filled
	slotPlaintextSize = 96
)

// SessionAddress locates the live Root Block of one session. It only ever
// exists encrypted inside addressing slots.
type SessionAddress struct {
	RootBlockOffset uint64
	RootBlockSize   uint32
	Salt            [SaltSize]byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MarshalBinary encodes the address into the fixed slot plaintext
func (a *SessionAddress) MarshalBinary() ([]byte, error) {
	buf := make([]byte, slotPlaintextSize)
	binary.BigEndian.PutUint16(buf[0:2], 1+sessionAddressSize)
	buf[2] = sessionAddressVersion

	rec := buf[3 : 3+sessionAddressSize]
	binary.BigEndian.PutUint64(rec[0:8], a.RootBlockOffset)
	binary.BigEndian.PutUint32(rec[8:12], a.RootBlockSize)
	copy(rec[12:28], a.Salt[:])
	binary.BigEndian.PutUint64(rec[28:36], uint64(a.CreatedAt.UnixMilli()))
	binary.BigEndian.PutUint64(rec[36:44], uint64(a.UpdatedAt.UnixMilli()))
	return buf, nil
}

// UnmarshalBinary decodes a slot plaintext, rejecting anything that is not a
// structurally valid address
func (a *SessionAddress) UnmarshalBinary(data []byte) error {
	if len(data) != slotPlaintextSize {
		return fmt.Errorf("slot plaintext must be %d bytes, got %d", slotPlaintextSize, len(data))
	}
	if n := binary.BigEndian.Uint16(data[0:2]); n != 1+sessionAddressSize {
		return fmt.Errorf("unexpected payload length %d", n)
	}
	if data[2] != sessionAddressVersion {
		return fmt.Errorf("unsupported session address version %d", data[2])
	}
	for _, b := range data[3+sessionAddressSize:] {
		if b != 0 {
			return fmt.Errorf("non-zero slot fill")
		}
	}

	rec := data[3 : 3+sessionAddressSize]
	a.RootBlockOffset = binary.BigEndian.Uint64(rec[0:8])
	a.RootBlockSize = binary.BigEndian.Uint32(rec[8:12])
	copy(a.Salt[:], rec[12:28])
	a.CreatedAt = time.UnixMilli(int64(binary.BigEndian.Uint64(rec[28:36])))
	a.UpdatedAt = time.UnixMilli(int64(binary.BigEndian.Uint64(rec[36:44])))

	if a.RootBlockSize < BlockHeaderSize {
		return fmt.Errorf("root block size %d too small", a.RootBlockSize)
	}
	if a.UpdatedAt.Before(a.CreatedAt) {
		return fmt.Errorf("updatedAt precedes createdAt")
	}
	return nil
}
