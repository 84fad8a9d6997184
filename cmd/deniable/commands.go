package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/absfs/deniable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	inputPath     string
	outputPath    string
	listenAddr    string
	passwordStdin bool
	wipeConfirmed bool
)

// stdin is shared between the password line and the payload
var stdin = bufio.NewReader(os.Stdin)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "create the addressing and data blobs if they do not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, log logrus.FieldLogger) error {
			log.Info("storage ready")
			return nil
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "store a new session under a password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readNewPassword("Password")
		if err != nil {
			return err
		}
		data, err := readPayload()
		if err != nil {
			return err
		}
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, _ logrus.FieldLogger) error {
			return s.CreateSession(ctx, password, data)
		})
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "print the session stored under a password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, _ logrus.FieldLogger) error {
			session, err := s.UnlockSession(ctx, password)
			if err != nil {
				return err
			}
			if session == nil {
				return errors.New("nothing stored under this password")
			}
			defer deniable.Wipe(session.Data)

			fmt.Fprintf(os.Stderr, "created %s, updated %s, %d bytes\n",
				session.CreatedAt.Format(time.RFC3339), session.UpdatedAt.Format(time.RFC3339), len(session.Data))
			return writePayload(session.Data)
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "replace the session stored under a password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		data, err := readPayload()
		if err != nil {
			return err
		}
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, _ logrus.FieldLogger) error {
			return s.UpdateSession(ctx, password, data)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "destroy the session stored under a password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, _ logrus.FieldLogger) error {
			return s.DeleteSession(ctx, password)
		})
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "move a session to a new password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassword, err := readPassword("Current password: ")
		if err != nil {
			return err
		}
		newPassword, err := readNewPassword("New password")
		if err != nil {
			return err
		}
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, _ logrus.FieldLogger) error {
			return s.ChangePassword(ctx, oldPassword, newPassword)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print blob sizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, _ logrus.FieldLogger) error {
			stats, err := s.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("addressing blob: %d bytes (%d slots of %d bytes)\n",
				stats.AddressingBlobSize, stats.TotalSlots, stats.SlotSize)
			fmt.Printf("data blob:       %d bytes\n", stats.DataBlobSize)
			return nil
		})
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "serve blob size gauges for Prometheus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, log logrus.FieldLogger) error {
			registry := prometheus.NewRegistry()
			if err := registry.Register(deniable.NewStatsCollector(s)); err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			log.WithField("addr", listenAddr).Info("serving metrics")
			return http.ListenAndServe(listenAddr, mux)
		})
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "overwrite and remove both blobs, destroying every session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeConfirmed {
			ok, err := confirm("Destroy all stored data?")
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("aborted")
			}
		}
		return withStorage(func(ctx context.Context, s *deniable.DeniableStorage, log logrus.FieldLogger) error {
			if err := s.SecureWipeAll(ctx); err != nil {
				return err
			}
			log.Info("storage wiped")
			return nil
		})
	},
}

func readPayload() ([]byte, error) {
	if inputPath != "" {
		return os.ReadFile(inputPath)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}

func writePayload(data []byte) error {
	if outputPath != "" {
		return os.WriteFile(outputPath, data, 0600)
	}
	_, err := os.Stdout.Write(data)
	return err
}
