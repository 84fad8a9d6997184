package deniable

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// ChangePassword moves the session stored under oldPassword to newPassword.
// The payload is re-encrypted under a fresh salt, the old blocks, root block
// and slots are overwritten with random bytes, and the creation time is kept.
//
// A session already stored under newPassword is superseded.
func (s *DeniableStorage) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateInput("change-password", oldPassword, nil); err != nil {
		return err
	}
	if err := ValidatePassword(newPassword, s.config.MaxPasswordLength); err != nil {
		return err
	}
	if ConstantTimeEqual(oldPassword, newPassword) {
		return ErrSamePassword
	}

	addressing, blob, err := s.loadBlobs(ctx)
	if err != nil {
		return err
	}

	oldSlots, err := resolveSlots(s.primitives, oldPassword)
	if err != nil {
		return err
	}
	defer oldSlots.wipe()

	addr, oldKey, root, err := s.openSession(addressing, blob, oldSlots, oldPassword)
	if err != nil {
		return err
	}
	data := reconstructSession(s.primitives, blob, root, oldKey, s.config.Parallel)
	Wipe(oldKey)
	if data == nil {
		return ErrSessionNotFound
	}
	defer Wipe(data)

	newSlots, err := resolveSlots(s.primitives, newPassword)
	if err != nil {
		return err
	}
	defer newSlots.wipe()

	var salt [SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	newKey, err := s.sessionKey(newPassword, salt)
	if err != nil {
		return err
	}
	defer Wipe(newKey)

	// Old ranges are shredded before the new blocks are appended, so the
	// offsets recorded in addr and root still hold.
	if err := shredSession(blob, addr, root); err != nil {
		return err
	}

	blob, newRoot, err := s.appendPayload(blob, data, newKey)
	if err != nil {
		return err
	}
	blob, rootBlock, rootOffset, err := s.appendRoot(blob, newRoot, newKey)
	if err != nil {
		return err
	}

	updated := now()
	if !updated.After(addr.UpdatedAt) {
		updated = addr.UpdatedAt.Add(time.Millisecond)
	}
	next := &SessionAddress{
		RootBlockOffset: rootOffset,
		RootBlockSize:   rootBlock.Size,
		Salt:            salt,
		CreatedAt:       addr.CreatedAt,
		UpdatedAt:       updated,
	}

	// The two passwords may share slots: shred the old ones first so the
	// new address survives in every slot it owns.
	if err := shredSlots(addressing, oldSlots); err != nil {
		return err
	}
	if err := writeSlots(s.primitives, addressing, newSlots, next); err != nil {
		return err
	}

	if err := s.persist(ctx, addressing, blob); err != nil {
		return err
	}
	s.log.WithField("op", "change-password").Debug("operation complete")
	return nil
}
