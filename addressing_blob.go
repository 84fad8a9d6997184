package deniable

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Addressing blob layout: a fixed 2 MiB array of 128-byte slots.
//
//	slot = nonce:16 | ciphertext:112   (96-byte plaintext + 16-byte tag)
//
// A password selects 46 slots. Each holds its own encryption of the same
// SessionAddress; every other slot is random noise or belongs to another
// password. Nothing in a slot is stored in the clear apart from the nonce,
// which is itself random.
const (
	// AddressingBlobSize is the fixed size of the addressing blob
	AddressingBlobSize = 2 * MiB

	// SlotSize is the size of one addressing slot
	SlotSize = NonceSize + slotPlaintextSize + TagSize

	// TotalSlots is the number of slots in the addressing blob
	TotalSlots = AddressingBlobSize / SlotSize

	// SlotRedundancy is the number of slots each password writes
	SlotRedundancy = 46
)

var (
	addressingSalt  = []byte("deniable/v1/addressing")
	slotIndicesInfo = []byte("deniable/v1/slot-indices")
	slotADPrefix    = []byte("deniable/v1/slot/")
)

// slotSet is the per-password addressing material: the key that encrypts
// the session address and the slots it is written to
type slotSet struct {
	key     []byte
	indices []int
}

// wipe clears the slot key
func (s *slotSet) wipe() {
	if s != nil {
		Wipe(s.key)
	}
}

// NewAddressingBlob returns a fresh addressing blob of random bytes
func NewAddressingBlob() ([]byte, error) {
	blob, err := randomBytes(AddressingBlobSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate addressing blob: %w", err)
	}
	return blob, nil
}

// resolveSlots derives the addressing key and slot indices for password
func resolveSlots(p Primitives, password []byte) (*slotSet, error) {
	key, err := p.DeriveKeyFromPassword(password, addressingSalt)
	if err != nil {
		return nil, NewEncryptionError("derive-key", err)
	}

	indices, err := slotIndicesFromKey(p, key)
	if err != nil {
		Wipe(key)
		return nil, err
	}
	return &slotSet{key: key, indices: indices}, nil
}

// DeriveSlotIndices returns the SlotRedundancy distinct slots owned by password
func DeriveSlotIndices(p Primitives, password []byte) ([]int, error) {
	set, err := resolveSlots(p, password)
	if err != nil {
		return nil, err
	}
	defer set.wipe()
	return set.indices, nil
}

// slotIndicesFromKey expands the addressing key with a BLAKE2b XOF and maps
// 32-bit words onto [0, TotalSlots) by rejection sampling, skipping repeats
func slotIndicesFromKey(p Primitives, key []byte) ([]int, error) {
	seed, err := p.DeriveKeyFromKey(key, slotIndicesInfo)
	if err != nil {
		return nil, NewEncryptionError("derive-key", err)
	}
	defer Wipe(seed)

	xof, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create XOF: %w", err)
	}

	const n = uint64(TotalSlots)
	limit := (uint64(1) << 32) / n * n

	indices := make([]int, 0, SlotRedundancy)
	seen := make(map[int]struct{}, SlotRedundancy)
	var word [4]byte
	for len(indices) < SlotRedundancy {
		if _, err := io.ReadFull(xof, word[:]); err != nil {
			return nil, fmt.Errorf("failed to read XOF: %w", err)
		}
		v := uint64(binary.BigEndian.Uint32(word[:]))
		if v >= limit {
			continue
		}
		idx := int(v % n)
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}
	return indices, nil
}

func slotAD(index int) []byte {
	ad := make([]byte, len(slotADPrefix)+4)
	copy(ad, slotADPrefix)
	binary.BigEndian.PutUint32(ad[len(slotADPrefix):], uint32(index))
	return ad
}

func slotAt(blob []byte, index int) []byte {
	return blob[index*SlotSize : (index+1)*SlotSize]
}

func checkAddressingBlob(blob []byte) error {
	if len(blob) != AddressingBlobSize {
		return NewCorruptionError("addressing blob", fmt.Sprintf("unexpected size %d", len(blob)))
	}
	return nil
}

// WriteSessionAddress encrypts addr into every slot owned by password, each
// under a fresh nonce. Other slots are left untouched.
func WriteSessionAddress(p Primitives, blob, password []byte, addr *SessionAddress) error {
	set, err := resolveSlots(p, password)
	if err != nil {
		return err
	}
	defer set.wipe()
	return writeSlots(p, blob, set, addr)
}

func writeSlots(p Primitives, blob []byte, set *slotSet, addr *SessionAddress) error {
	if err := checkAddressingBlob(blob); err != nil {
		return err
	}

	plaintext, err := addr.MarshalBinary()
	if err != nil {
		return err
	}
	defer Wipe(plaintext)

	for _, idx := range set.indices {
		nonce, err := p.GenerateNonce()
		if err != nil {
			return NewEncryptionError("encrypt", err)
		}
		ciphertext, err := p.Encrypt(set.key, nonce, plaintext, slotAD(idx))
		if err != nil {
			return NewEncryptionError("encrypt", err)
		}
		if len(nonce)+len(ciphertext) != SlotSize {
			return NewEncryptionError("encrypt", fmt.Errorf("slot ciphertext is %d bytes, want %d", len(nonce)+len(ciphertext), SlotSize))
		}

		slot := slotAt(blob, idx)
		copy(slot, nonce)
		copy(slot[NonceSize:], ciphertext)
	}
	return nil
}

// ReadSlots returns the session address stored for password, or nil when no
// slot holds one. Every slot is tried regardless of earlier results.
func ReadSlots(p Primitives, blob, password []byte) (*SessionAddress, error) {
	set, err := resolveSlots(p, password)
	if err != nil {
		return nil, err
	}
	defer set.wipe()
	return readSlots(p, blob, set)
}

func readSlots(p Primitives, blob []byte, set *slotSet) (*SessionAddress, error) {
	if err := checkAddressingBlob(blob); err != nil {
		return nil, err
	}

	var found *SessionAddress
	for _, idx := range set.indices {
		addr := openSlot(p, blob, set.key, idx)
		if addr != nil && found == nil {
			found = addr
		}
	}
	return found, nil
}

// openSlot decrypts one slot; nil for anything but a valid address
func openSlot(p Primitives, blob, key []byte, idx int) (addr *SessionAddress) {
	defer func() {
		if r := recover(); r != nil {
			addr = nil
		}
	}()

	slot := slotAt(blob, idx)
	plaintext, err := p.Decrypt(key, slot[:NonceSize], slot[NonceSize:], slotAD(idx))
	if err != nil {
		return nil
	}
	defer Wipe(plaintext)

	var a SessionAddress
	if err := a.UnmarshalBinary(plaintext); err != nil {
		return nil
	}
	return &a
}

// ShredSlots overwrites every slot owned by password with random bytes
func ShredSlots(p Primitives, blob, password []byte) error {
	set, err := resolveSlots(p, password)
	if err != nil {
		return err
	}
	defer set.wipe()
	return shredSlots(blob, set)
}

func shredSlots(blob []byte, set *slotSet) error {
	if err := checkAddressingBlob(blob); err != nil {
		return err
	}
	for _, idx := range set.indices {
		if _, err := rand.Read(slotAt(blob, idx)); err != nil {
			return fmt.Errorf("failed to generate random bytes: %w", err)
		}
	}
	return nil
}
