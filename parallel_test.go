package deniable

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ParallelConfig
		wantErr bool
	}{
		{"disabled", ParallelConfig{Enabled: false, MaxWorkers: -5}, false},
		{"default", DefaultParallelConfig(), false},
		{"negative workers", ParallelConfig{Enabled: true, MaxWorkers: -1, MinEntriesForParallel: 4}, true},
		{"too many workers", ParallelConfig{Enabled: true, MaxWorkers: 2048, MinEntriesForParallel: 4}, true},
		{"zero threshold", ParallelConfig{Enabled: true, MaxWorkers: 4, MinEntriesForParallel: 0}, true},
		{"huge threshold", ParallelConfig{Enabled: true, MaxWorkers: 4, MinEntriesForParallel: 5000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecryptEntriesVisitsAll(t *testing.T) {
	configs := map[string]ParallelConfig{
		"sequential":      {Enabled: false},
		"below threshold": {Enabled: true, MaxWorkers: 4, MinEntriesForParallel: 100},
		"parallel":        {Enabled: true, MaxWorkers: 4, MinEntriesForParallel: 1},
		"all cpus":        {Enabled: true, MaxWorkers: 0, MinEntriesForParallel: 1},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			jobs := make([]entryJob, 50)
			for i := range jobs {
				jobs[i].entry = &AllocationEntry{LogicalAddress: uint32(i)}
			}

			var calls int32
			err := decryptEntries(cfg, jobs, func(j *entryJob) error {
				atomic.AddInt32(&calls, 1)
				j.plaintext = []byte{byte(j.entry.LogicalAddress)}
				return nil
			})
			if err != nil {
				t.Fatalf("decryptEntries failed: %v", err)
			}
			if calls != 50 {
				t.Errorf("expected 50 calls, got %d", calls)
			}
			for i := range jobs {
				if len(jobs[i].plaintext) != 1 || jobs[i].plaintext[0] != byte(i) {
					t.Errorf("job %d not processed", i)
				}
			}
		})
	}
}

func TestDecryptEntriesError(t *testing.T) {
	failure := errors.New("entry failed")

	for _, cfg := range []ParallelConfig{
		{Enabled: false},
		{Enabled: true, MaxWorkers: 4, MinEntriesForParallel: 1},
	} {
		jobs := make([]entryJob, 20)
		for i := range jobs {
			jobs[i].entry = &AllocationEntry{LogicalAddress: uint32(i)}
		}

		err := decryptEntries(cfg, jobs, func(j *entryJob) error {
			if j.entry.LogicalAddress == 13 {
				return failure
			}
			return nil
		})
		if !errors.Is(err, failure) {
			t.Errorf("enabled=%v: expected entry error, got %v", cfg.Enabled, err)
		}
	}
}

func TestDecryptEntriesRecoversPanic(t *testing.T) {
	jobs := make([]entryJob, 8)
	for i := range jobs {
		jobs[i].entry = &AllocationEntry{LogicalAddress: uint32(i)}
	}

	cfg := ParallelConfig{Enabled: true, MaxWorkers: 2, MinEntriesForParallel: 1}
	err := decryptEntries(cfg, jobs, func(j *entryJob) error {
		if j.entry.LogicalAddress == 5 {
			panic("boom")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error from panicking worker")
	}
}

func TestDecryptEntriesEmpty(t *testing.T) {
	called := false
	err := decryptEntries(DefaultParallelConfig(), nil, func(*entryJob) error {
		called = true
		return nil
	})
	if err != nil || called {
		t.Errorf("empty job list: err=%v called=%v", err, called)
	}
}
