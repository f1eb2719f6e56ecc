// Package cli implements the command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "satexplorer",
	Short: "Satellite Explorer - browse and shortlist tracked space objects",
	Long: `Satellite Explorer fetches the tracked-object catalog, lets you search and
filter it by object type and orbit, and keeps a shortlist of up to 10 objects.

Configuration is read from $HOME/.config/satexplorer/config.yaml (or --config),
then SATEXPLORER_* environment variables, then flags.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (overrides SATEXPLORER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// newLogger builds the JSON logger all commands share.
func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", logLevel)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func stderrLogger() (*slog.Logger, error) {
	return newLogger(os.Stderr)
}
