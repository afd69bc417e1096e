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
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/shineum/mailsender/internal/config"
	"github.com/shineum/mailsender/internal/dispatch"
	"github.com/shineum/mailsender/internal/roster"
)

var errSettingsLocked = errors.New("wrong settings password")

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	selected := fs.String("select", "", "comma-separated roster indexes")
	group := fs.String("group", "", "add a whole roster group: mechanics or technicians")
	file := fs.String("file", "", "file to attach")
	var to stringList
	fs.Var(&to, "to", "ad-hoc recipient address (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := roster.Load(a.rosterPath)
	if err != nil {
		return err
	}

	d := dispatch.New(a.senderConfig, nil)

	if *group != "" {
		g, err := parseGroup(*group)
		if err != nil {
			return err
		}
		for _, e := range r.Entries(g) {
			if err := d.Add(e.Name, e.Mail); err != nil {
				return fmt.Errorf("roster entry %d: %w", e.Index, err)
			}
		}
	}

	indexes, err := parseIndexes(*selected)
	if err != nil {
		return err
	}
	for _, i := range indexes {
		p, ok := r.Person(i)
		if !ok {
			return fmt.Errorf("roster slot %d is empty", i)
		}
		if err := d.Add(p.Name, p.Mail); err != nil {
			return fmt.Errorf("roster entry %d: %w", i, err)
		}
	}

	var adhoc roster.AdHocList
	for _, mail := range to {
		if err := adhoc.Edit(adhoc.Add(), strings.TrimSpace(mail)); err != nil {
			return err
		}
	}
	adhoc.PruneEmpty()

	if *file != "" {
		if err := d.SetAttachment(*file); err != nil {
			return err
		}
	}

	if err := d.Send(ctx, adhoc.Export()); err != nil {
		return err
	}

	slog.Info("message sent",
		"recipients", len(d.Recipients()),
		"file", filepath.Base(*file),
	)
	return nil
}

func (a *app) feedback(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	d := dispatch.New(a.senderConfig, nil)
	if err := d.SendFeedback(ctx, text); err != nil {
		return err
	}
	slog.Info("feedback sent")
	return nil
}

func (a *app) roster(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mailsender roster list | set <index> <name> <mail>")
	}

	r, err := roster.Load(a.rosterPath)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		return printRoster(a.out, r)

	case "set":
		if len(args) != 4 {
			return errors.New("usage: mailsender roster set <index> <name> <mail>")
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		if err := a.unlockSettings(); err != nil {
			return err
		}
		if err := r.SetName(i, args[2]); err != nil {
			return err
		}
		if err := r.SetMail(i, args[3]); err != nil {
			return err
		}
		if err := r.Save(a.rosterPath); err != nil {
			return err
		}
		slog.Info("roster updated", "index", i)
		return nil

	default:
		return fmt.Errorf("unknown roster command %q", args[0])
	}
}

func (a *app) setPassword(args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	clearStored := fs.Bool("clear", false, "remove the stored sender password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := a.unlockSettings(); err != nil {
		return err
	}

	store, err := openKeyring()
	if err != nil {
		return err
	}

	if *clearStored {
		if err := store.Delete(cfg.SenderMail); err != nil {
			return err
		}
		slog.Info("sender password removed", "sender", cfg.SenderMail)
		return nil
	}

	password, err := a.readSecret("Sender password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}
	if err := store.Set(cfg.SenderMail, password); err != nil {
		return err
	}
	slog.Info("sender password stored", "sender", cfg.SenderMail)
	return nil
}

// configSet edits one setting in the config file, like the settings
// screen of the desktop app.
func (a *app) configSet(args []string) error {
	usage := "usage: mailsender -config file config set <key> <value>\nkeys: " +
		strings.Join(config.Keys(), ", ")
	if len(args) != 3 || args[0] != "set" {
		return errors.New(usage)
	}
	if a.configPath == "" {
		return errors.New("config set needs -config")
	}
	if err := a.unlockSettings(); err != nil {
		return err
	}

	cfg, err := config.ReadFile(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Set(args[1], args[2]); err != nil {
		return err
	}
	if err := cfg.Save(a.configPath); err != nil {
		return err
	}
	slog.Info("configuration updated", "key", args[1])
	return nil
}

// unlockSettings asks for the settings password when one is configured.
func (a *app) unlockSettings() error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cfg.SettingsPassword == "" {
		return nil
	}
	password, err := a.readSecret("Settings password: ")
	if err != nil {
		return err
	}
	if !cfg.CheckSettingsPassword(password) {
		return errSettingsLocked
	}
	return nil
}

// readSecret reads a line without echo when input is a terminal.
func (a *app) readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	if a.stdin == nil {
		a.stdin = bufio.NewReader(a.in)
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printRoster(w io.Writer, r *roster.Roster) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range []roster.Group{roster.Mechanics, roster.Technicians} {
		fmt.Fprintf(tw, "# %s\n", g.Name)
		for _, e := range r.Entries(g) {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Index, e.Name, e.Mail)
		}
	}
	return tw.Flush()
}

// parseIndexes parses a comma-separated list such as "0,3, 7".
func parseIndexes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid roster index %q", part)
		}
		out = append(out, i)
	}
	return out, nil
}

func parseGroup(name string) (roster.Group, error) {
	for _, g := range []roster.Group{roster.Mechanics, roster.Technicians} {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return roster.Group{}, fmt.Errorf("unknown roster group %q", name)
}
