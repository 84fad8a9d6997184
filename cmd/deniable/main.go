// Command deniable manages a plausibly deniable encrypted store from the
// command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	backend    string
	dataDir    string
	logLevel   string
	sizeScale  int64
)

var rootCmd = &cobra.Command{
	Use:   "deniable [command] (flags)",
	Short: "plausibly deniable multi-session encrypted storage",
	Long: `deniable keeps any number of password-protected sessions in one
addressing blob and one data blob. Without a password nothing reveals how many
sessions exist.`,
	SilenceUsage: true,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		initCmd,
		createCmd,
		unlockCmd,
		updateCmd,
		deleteCmd,
		passwdCmd,
		statsCmd,
		metricsCmd,
		wipeCmd,
	)

	rootCmd.PersistentFlags().StringVarP(
		&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(
		&backend, "backend", "", "storage backend: badger or fs (overrides config)")
	rootCmd.PersistentFlags().StringVarP(
		&dataDir, "dir", "d", "", "storage directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().Int64Var(
		&sizeScale, "size-scale", 0, "divide block and padding sizes by this factor (overrides config)")

	for _, cmd := range []*cobra.Command{createCmd, updateCmd} {
		cmd.Flags().StringVarP(
			&inputPath, "in", "i", "", "read the payload from this file instead of stdin")
	}
	unlockCmd.Flags().StringVarP(
		&outputPath, "out", "o", "", "write the payload to this file instead of stdout")
	metricsCmd.Flags().StringVar(
		&listenAddr, "listen", "127.0.0.1:9464", "address to serve /metrics on")
	wipeCmd.Flags().BoolVar(
		&wipeConfirmed, "yes", false, "do not ask for confirmation")

	for _, cmd := range rootCmd.Commands() {
		cmd.Flags().BoolVar(
			&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	}

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
