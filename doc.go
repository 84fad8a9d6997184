// Package deniable provides plausibly deniable encrypted storage: any number
// of independent sessions, each opened by its own password, kept in two
// blobs that look like random bytes to anyone without a password.
//
// # Overview
//
// A DeniableStorage persists exactly two blobs through a StorageAdapter:
//
//   - the addressing blob, a fixed 2 MiB array of 16384 slots of 128 bytes
//   - the data blob, an append-only sequence of [padding][block] records
//
// Neither blob carries a header, a magic number or a session count. Holding
// one password reveals nothing about whether other sessions exist.
//
// # Cipher Suites
//
//   - AES-256-GCM with 16-byte nonces (default)
//   - XChaCha20-Poly1305
//
// Every ciphertext is bound to its role with associated data, so a slot
// cannot be moved to another index and a payload block cannot be replayed
// as a root block.
//
// # Basic Usage
//
//	adapter, err := deniable.OpenBadgerAdapter("/var/lib/vault", nil)
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
//
//	store, err := deniable.New(adapter, deniable.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	if err := store.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	err = store.CreateSession(ctx, []byte("decoy password"), []byte("grocery list"))
//	err = store.CreateSession(ctx, []byte("real password"), secret)
//
//	session, err := store.UnlockSession(ctx, []byte("real password"))
//	if session == nil {
//	    // wrong password, or nothing stored under it
//	}
//
// A wrong password is not an error: UnlockSession returns nil, nil. Every
// unlock is padded to Config.MinUnlockDuration plus the time to decrypt the
// largest payload the data blob could hold, whether or not a session was
// found.
//
// # Storage Backends
//
//   - MemoryAdapter keeps both blobs in memory
//   - FSAdapter stores them as two files on any absfs.FileSystem
//   - BadgerAdapter stores them as chunked values in a Badger database
//
// # Key Derivation
//
// Argon2id (default) or PBKDF2 turns a password into keys. One derivation
// with a fixed salt selects and decrypts the password's slots; a second,
// salted per session, protects the root block. Block keys are expanded from
// the session key with HKDF-SHA256.
//
// # Security Considerations
//
// Protected against:
//   - Disclosure of sessions whose passwords are not given up
//   - Counting sessions from the blobs alone
//   - Tampering (authenticated encryption everywhere)
//
// Not protected against:
//   - An observer comparing snapshots of the blobs over time
//   - Memory inspection while a session is unlocked
//   - Concurrent writers on the same blobs without external locking
package deniable
