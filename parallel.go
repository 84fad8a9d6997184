package deniable

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil // Nothing to validate if disabled
	}

	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinEntriesForParallel < 1 {
		return errors.New("parallel min entries threshold must be at least 1")
	}
	if p.MinEntriesForParallel > 1000 {
		return errors.New("parallel min entries threshold must not exceed 1000")
	}

	return nil
}

// DefaultParallelConfig returns the default parallel processing configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:               true,
		MaxWorkers:            runtime.NumCPU(),
		MinEntriesForParallel: 4,
	}
}

// errEntryUnreadable is reported by a job whose block did not decrypt
var errEntryUnreadable = errors.New("allocation entry unreadable")

// entryJob decrypts the block behind one allocation entry
type entryJob struct {
	entry     *AllocationEntry
	plaintext []byte
}

func (j *entryJob) decrypt(p Primitives, dataBlob, sessionKey []byte) error {
	size, ok := blockSizeAt(dataBlob, j.entry.Offset)
	if !ok || size != j.entry.BlockSize {
		return errEntryUnreadable
	}

	key, err := DeriveBlockKey(p, sessionKey, j.entry.BlockID)
	if err != nil {
		return err
	}
	defer Wipe(key)

	plaintext, ok := ParseAt(p, dataBlob, j.entry.Offset, key)
	if !ok {
		return errEntryUnreadable
	}
	if len(plaintext) < int(j.entry.Length) {
		Wipe(plaintext)
		return errEntryUnreadable
	}
	j.plaintext = plaintext
	return nil
}

// decryptEntries runs fn over jobs, on a worker pool when there are enough
// of them. The first error is returned.
func decryptEntries(cfg ParallelConfig, jobs []entryJob, fn func(*entryJob) error) error {
	if len(jobs) == 0 {
		return nil
	}

	// Determine number of workers
	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	// Limit workers to number of jobs
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	// Sequential processing below the threshold
	if !cfg.Enabled || len(jobs) < cfg.MinEntriesForParallel || numWorkers == 1 {
		for i := range jobs {
			if err := fn(&jobs[i]); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	jobChan := make(chan int, len(jobs))
	errChan := make(chan error, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic in decryption worker: %v", r)
					select {
					case errChan <- err:
					default:
					}
				}
			}()
			for idx := range jobChan {
				if err := fn(&jobs[idx]); err != nil {
					select {
					case errChan <- err:
					default:
					}
					return
				}
			}
		}()
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
