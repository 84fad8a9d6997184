package deniable

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddressingBlob(t *testing.T) {
	a, err := NewAddressingBlob()
	require.NoError(t, err)
	b, err := NewAddressingBlob()
	require.NoError(t, err)

	assert.Len(t, a, AddressingBlobSize)
	assert.Equal(t, 16384, TotalSlots)
	assert.Equal(t, 128, SlotSize)
	assert.False(t, bytes.Equal(a, b))
	assert.False(t, bytes.Equal(a[:SlotSize], make([]byte, SlotSize)))
}

func TestDeriveSlotIndices(t *testing.T) {
	p := testPrimitives(t)

	indices, err := DeriveSlotIndices(p, []byte("slots"))
	require.NoError(t, err)
	assert.Len(t, indices, SlotRedundancy)

	seen := map[int]bool{}
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, TotalSlots)
		assert.False(t, seen[idx], "duplicate slot %d", idx)
		seen[idx] = true
	}

	again, err := DeriveSlotIndices(p, []byte("slots"))
	require.NoError(t, err)
	assert.Equal(t, indices, again)

	other, err := DeriveSlotIndices(p, []byte("slots "))
	require.NoError(t, err)
	assert.NotEqual(t, indices, other)
}

func TestSlotIndicesSpread(t *testing.T) {
	p := testPrimitives(t)

	// Across many keys every quarter of the blob receives slots
	var quarters [4]int
	for i := 0; i < 50; i++ {
		key := testKey(t)
		indices, err := slotIndicesFromKey(p, key)
		require.NoError(t, err)
		for _, idx := range indices {
			quarters[idx*4/TotalSlots]++
		}
	}
	total := 50 * SlotRedundancy
	for q, n := range quarters {
		assert.InDelta(t, total/4, n, float64(total)/10, "quarter %d", q)
	}
}

func TestWriteReadSessionAddress(t *testing.T) {
	p := testPrimitives(t)
	blob, err := NewAddressingBlob()
	require.NoError(t, err)

	addr := testAddress()
	pw := []byte("addressing")

	require.NoError(t, WriteSessionAddress(p, blob, pw, addr))

	got, err := ReadSlots(p, blob, pw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, addr.RootBlockOffset, got.RootBlockOffset)
	assert.Equal(t, addr.Salt, got.Salt)
	assert.True(t, addr.UpdatedAt.Equal(got.UpdatedAt))

	missing, err := ReadSlots(p, blob, []byte("addressing2"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWriteTouchesOnlyOwnSlots(t *testing.T) {
	p := testPrimitives(t)
	blob, err := NewAddressingBlob()
	require.NoError(t, err)
	before := append([]byte(nil), blob...)

	pw := []byte("owner")
	indices, err := DeriveSlotIndices(p, pw)
	require.NoError(t, err)
	require.NoError(t, WriteSessionAddress(p, blob, pw, testAddress()))

	owned := map[int]bool{}
	for _, idx := range indices {
		owned[idx] = true
	}
	for i := 0; i < TotalSlots; i++ {
		changed := !bytes.Equal(slotAt(blob, i), slotAt(before, i))
		assert.Equal(t, owned[i], changed, "slot %d", i)
	}
}

func TestRewriteUsesFreshNonces(t *testing.T) {
	p := testPrimitives(t)
	blob, err := NewAddressingBlob()
	require.NoError(t, err)

	pw := []byte("nonces")
	addr := testAddress()
	require.NoError(t, WriteSessionAddress(p, blob, pw, addr))
	first := append([]byte(nil), blob...)
	require.NoError(t, WriteSessionAddress(p, blob, pw, addr))

	indices, err := DeriveSlotIndices(p, pw)
	require.NoError(t, err)
	for _, idx := range indices {
		assert.NotEqual(t, slotAt(first, idx), slotAt(blob, idx), "slot %d unchanged", idx)
	}
}

func TestSlotBoundToIndex(t *testing.T) {
	p := testPrimitives(t)
	blob, err := NewAddressingBlob()
	require.NoError(t, err)

	pw := []byte("bound")
	require.NoError(t, WriteSessionAddress(p, blob, pw, testAddress()))

	set, err := resolveSlots(p, pw)
	require.NoError(t, err)
	defer set.wipe()

	// Move one valid slot onto another owned slot and destroy the rest
	src, dst := set.indices[0], set.indices[1]
	copy(slotAt(blob, dst), slotAt(blob, src))
	for _, idx := range set.indices {
		if idx != dst {
			_, err := rand.Read(slotAt(blob, idx))
			require.NoError(t, err)
		}
	}

	got, err := readSlots(p, blob, set)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadSlotsSurvivesDamage(t *testing.T) {
	p := testPrimitives(t)
	blob, err := NewAddressingBlob()
	require.NoError(t, err)

	pw := []byte("damaged")
	require.NoError(t, WriteSessionAddress(p, blob, pw, testAddress()))

	set, err := resolveSlots(p, pw)
	require.NoError(t, err)
	defer set.wipe()

	for _, idx := range set.indices[:SlotRedundancy-1] {
		slotAt(blob, idx)[NonceSize] ^= 0xFF
	}

	got, err := readSlots(p, blob, set)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testAddress().RootBlockOffset, got.RootBlockOffset)
}

func TestShredSlots(t *testing.T) {
	p := testPrimitives(t)
	blob, err := NewAddressingBlob()
	require.NoError(t, err)

	keep := []byte("keep")
	shred := []byte("shred")
	require.NoError(t, WriteSessionAddress(p, blob, keep, testAddress()))
	require.NoError(t, WriteSessionAddress(p, blob, shred, testAddress()))

	require.NoError(t, ShredSlots(p, blob, shred))

	got, err := ReadSlots(p, blob, shred)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ReadSlots(p, blob, keep)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestAddressingBlobSizeChecked(t *testing.T) {
	p := testPrimitives(t)
	short := make([]byte, AddressingBlobSize-1)

	err := WriteSessionAddress(p, short, []byte("pw"), testAddress())
	assert.True(t, IsCorruptionError(err))

	_, err = ReadSlots(p, short, []byte("pw"))
	assert.True(t, IsCorruptionError(err))

	assert.True(t, IsCorruptionError(ShredSlots(p, short, []byte("pw"))))
}

// The scan cost must not depend on where, or whether, a valid slot exists
func TestReadSlotsScansEverySlot(t *testing.T) {
	blob, err := NewAddressingBlob()
	require.NoError(t, err)

	counting := &countingPrimitives{Primitives: testPrimitives(t)}
	pw := []byte("timing")

	_, err = ReadSlots(counting, blob, pw)
	require.NoError(t, err)
	assert.Equal(t, SlotRedundancy, counting.decrypts)

	require.NoError(t, WriteSessionAddress(counting, blob, pw, testAddress()))
	counting.decrypts = 0
	got, err := ReadSlots(counting, blob, pw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, SlotRedundancy, counting.decrypts)
}

type countingPrimitives struct {
	Primitives
	decrypts int
}

func (c *countingPrimitives) Decrypt(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	c.decrypts++
	return c.Primitives.Decrypt(key, nonce, ciphertext, ad)
}
