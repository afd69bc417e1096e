// Package main is the command-line front end for sending one file to a
// group of colleagues picked from a roster.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/mailsender/internal/config"
	"github.com/shineum/mailsender/internal/credential"
)

const usageText = `usage: mailsender [-config file] [-roster file] <command> [flags]

commands:
  send          send a file to roster members and ad-hoc addresses
  feedback      mail feedback text to the configured feedback recipient
  roster        list or edit the roster
  config        edit one setting: config set <key> <value>
  set-password  store (or -clear) the sender password in the system keyring
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("mailsender failed", "error", err)
		os.Exit(1)
	}
}

// app carries the global flags shared by every command.
type app struct {
	configPath string
	rosterPath string
	in         io.Reader
	out        io.Writer
	stdin      *bufio.Reader
}

// openKeyring opens the keyring holding the sender password.
var openKeyring = credential.Open

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("mailsender", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usageText) }

	a := &app{in: in, out: out}
	fs.StringVar(&a.configPath, "config", "", "path to YAML configuration file (optional)")
	fs.StringVar(&a.rosterPath, "roster", "people.yaml", "path to the roster file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Logging.Level)

	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "send":
		return a.send(ctx, rest)
	case "feedback":
		return a.feedback(ctx, rest)
	case "roster":
		return a.roster(rest)
	case "config":
		return a.configSet(rest)
	case "set-password":
		return a.setPassword(rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// senderConfig loads and validates configuration for one send attempt,
// resolving the sender password from the keyring when configured.
func (a *app) senderConfig() (*config.Config, error) {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return nil, err
	}

	if cfg.Credentials.Keyring && cfg.SenderPassword == "" {
		store, err := openKeyring()
		if err != nil {
			return nil, err
		}
		if cfg.SenderPassword, err = store.Get(cfg.SenderMail); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
