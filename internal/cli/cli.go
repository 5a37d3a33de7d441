// Package cli holds the start-up sequence shared by the command-line
// binaries.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/logging"
	"github.com/joho/godotenv"
)

// Bootstrap loads .env (without overriding variables already set), reads the
// configuration and points the default logger at logOut. Binaries that
// print results on stdout pass stderr here.
func Bootstrap(logOut io.Writer) (*config.Config, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.SetupWriter(logOut, "info", "text")
		return nil, err
	}
	logging.SetupWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)

	if envErr == nil {
		slog.Debug("loaded .env file")
	}
	return cfg, nil
}

// Parse parses args with fs, allowing flags after positional arguments
// ("validate data.csv --no-save"). It returns the positional arguments.
func Parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if rest[0] == "--" {
			return append(positional, rest[1:]...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// ExactArgs returns an error unless exactly n positional arguments were given.
func ExactArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d\nusage: %s", n, len(args), usage)
	}
	return nil
}
