package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/absfs/deniable"
	"github.com/sirupsen/logrus"
)

// loadFileConfig reads --config and applies the flag overrides
func loadFileConfig() (*deniable.FileConfig, error) {
	fc := deniable.DefaultFileConfig()
	if configPath != "" {
		var err error
		if fc, err = deniable.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}

	if backend != "" {
		fc.Storage.Backend = backend
	}
	if dataDir != "" {
		fc.Storage.Dir = dataDir
	}
	if logLevel != "" {
		fc.LogLevel = logLevel
	}
	if sizeScale != 0 {
		fc.SizeScale = sizeScale
	}
	return fc, nil
}

// openAdapter opens the configured backend. The returned function releases it.
func openAdapter(fc *deniable.FileConfig, log logrus.FieldLogger) (deniable.StorageAdapter, func() error, error) {
	switch fc.Storage.Backend {
	case "", "badger":
		a, err := deniable.OpenBadgerAdapter(fc.Storage.Dir, log)
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	case "fs":
		fs, err := deniable.NewDirFS(fc.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		a, err := deniable.NewFSAdapter(fs, "/")
		if err != nil {
			return nil, nil, err
		}
		return a, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", fc.Storage.Backend)
	}
}

// withStorage opens and initializes the storage, runs fn and closes the
// backend. Interrupts cancel the context passed to fn.
func withStorage(fn func(ctx context.Context, s *deniable.DeniableStorage, log logrus.FieldLogger) error) (err error) {
	fc, err := loadFileConfig()
	if err != nil {
		return err
	}

	logger, err := deniable.NewLogger(fc.LogLevel)
	if err != nil {
		return err
	}

	cfg, err := fc.Config()
	if err != nil {
		return err
	}
	cfg.Logger = logger

	adapter, closeAdapter, err := openAdapter(fc, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeAdapter(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	s, err := deniable.New(adapter, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := s.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, s, logger.WithField("backend", fc.Storage.Backend))
}
