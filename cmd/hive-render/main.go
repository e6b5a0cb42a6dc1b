// ABOUTME: Entry point for the hive-render command line tool
// ABOUTME: Renders untrusted markdown to safe HTML and manages the local account mirror

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/hive-render/internal/config"
	"github.com/2389/hive-render/internal/mention"
	"github.com/2389/hive-render/internal/pipeline"
	"github.com/2389/hive-render/internal/registry"
	"github.com/2389/hive-render/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _     _                                   _
| |__ (_)_   _____       _ __ ___ _ __   __| | ___ _ __
| '_ \| \ \ / / _ \_____| '__/ _ \ '_ \ / _' |/ _ \ '__|
| | | | |\ V /  __/_____| | |  __/ | | | (_| |  __/ |
|_| |_|_| \_/ \___|     |_|  \___|_| |_|\__,_|\___|_|
`

// getConfigPath returns the path to the config file.
// Priority: HIVE_RENDER_CONFIG env var > XDG_CONFIG_HOME/hive-render/config.yaml > ~/.config/hive-render/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HIVE_RENDER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hive-render", "config.yaml")
}

// getDataPath returns the path to the hive-render data directory.
// Priority: XDG_DATA_HOME/hive-render > ~/.local/share/hive-render
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "hive-render")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: hive-render <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render [--stats] [FILE]        Render markdown from FILE or stdin to HTML")
	fmt.Fprintln(w, "  accounts add NAME...           Add accounts to the local mirror")
	fmt.Fprintln(w, "  accounts remove NAME...        Remove accounts from the local mirror")
	fmt.Fprintln(w, "  accounts list                  List mirrored accounts")
	fmt.Fprintln(w, "  init                           Create a new config file interactively")
	fmt.Fprintln(w, "  version                        Print version information")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "render":
		err = runRender(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "accounts":
		err = runAccounts(ctx, os.Args[2:], os.Stdout)
	case "init":
		err = runInit()
	case "version", "--version", "-v":
		fmt.Printf("hive-render %s\n", version)
	case "help", "--help", "-h":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// renderArgs holds the parsed arguments of the render command.
type renderArgs struct {
	stats bool
	file  string
}

func parseRenderArgs(args []string) (renderArgs, error) {
	var ra renderArgs
	for _, arg := range args {
		switch {
		case arg == "--stats":
			ra.stats = true
		case arg == "-":
			ra.file = ""
		case strings.HasPrefix(arg, "-"):
			return ra, fmt.Errorf("unknown flag: %s", arg)
		default:
			if ra.file != "" {
				return ra, fmt.Errorf("unexpected argument: %s", arg)
			}
			ra.file = arg
		}
	}
	return ra, nil
}

func runRender(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	ra, err := parseRenderArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadOrDefault(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	reg, closeReg, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer closeReg()

	p, err := pipeline.New(cfg.Pipeline(), reg, pipeline.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	var input io.Reader = stdin
	if ra.file != "" {
		f, err := os.Open(ra.file)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		input = f
	}

	raw, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	html, err := p.Render(ctx, string(raw))
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	if _, err := io.WriteString(stdout, html); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if !strings.HasSuffix(html, "\n") {
		fmt.Fprintln(stdout)
	}

	if ra.stats {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p.Stats()); err != nil {
			return fmt.Errorf("encoding stats: %w", err)
		}
	}
	return nil
}

// accountsDatabase returns the mirror database path, defaulting to the data directory.
func accountsDatabase(cfg *config.Config) string {
	if cfg.Registry.Database != "" {
		return cfg.Registry.Database
	}
	return filepath.Join(getDataPath(), "accounts.db")
}

// buildRegistry constructs the identity registry selected by the config.
// The returned function releases any resources the registry holds.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (mention.Registry, func(), error) {
	noop := func() {}

	newHive := func() (*registry.Hive, error) {
		h, err := registry.NewHive(cfg.Registry.URL, cfg.Registry.Timeout,
			registry.WithLogger(logger.With("component", "registry")))
		if err != nil {
			return nil, fmt.Errorf("creating hive registry: %w", err)
		}
		return h, nil
	}

	openStore := func() (*store.SQLiteStore, error) {
		s, err := store.NewSQLiteStore(accountsDatabase(cfg))
		if err != nil {
			return nil, fmt.Errorf("opening account mirror: %w", err)
		}
		return s, nil
	}

	closer := func(s *store.SQLiteStore) func() {
		return func() {
			if err := s.Close(); err != nil {
				logger.Error("closing account mirror", "error", err)
			}
		}
	}

	switch cfg.Registry.Kind {
	case config.RegistryHive:
		h, err := newHive()
		if err != nil {
			return nil, noop, err
		}
		return h, noop, nil

	case config.RegistrySQLite:
		s, err := openStore()
		if err != nil {
			return nil, noop, err
		}
		return s, closer(s), nil

	case config.RegistryMirror:
		h, err := newHive()
		if err != nil {
			return nil, noop, err
		}
		s, err := openStore()
		if err != nil {
			return nil, noop, err
		}
		return registry.Chain{s, h}, closer(s), nil

	case config.RegistryStatic:
		return registry.NewStatic(cfg.Registry.Accounts...), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown registry kind: %s", cfg.Registry.Kind)
	}
}

func runAccounts(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("accounts requires a subcommand: add, remove, list")
	}

	cfg, err := config.LoadOrDefault(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(setupLogger(cfg.Logging, os.Stderr))

	s, err := store.NewSQLiteStore(accountsDatabase(cfg))
	if err != nil {
		return fmt.Errorf("opening account mirror: %w", err)
	}
	defer s.Close()

	return manageAccounts(ctx, s, args[0], args[1:], stdout)
}

// manageAccounts runs one accounts subcommand against s.
func manageAccounts(ctx context.Context, s store.AccountStore, sub string, names []string, stdout io.Writer) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	switch sub {
	case "add":
		if len(names) == 0 {
			return fmt.Errorf("accounts add requires at least one name")
		}
		for _, name := range names {
			err := s.AddAccount(ctx, &store.Account{Name: name, Source: "manual"})
			switch {
			case errors.Is(err, store.ErrDuplicateAccount):
				yellow.Fprintf(stdout, "exists  %s\n", name)
			case err != nil:
				return fmt.Errorf("adding %s: %w", name, err)
			default:
				green.Fprintf(stdout, "added   %s\n", name)
			}
		}

	case "remove", "rm":
		if len(names) == 0 {
			return fmt.Errorf("accounts remove requires at least one name")
		}
		for _, name := range names {
			err := s.RemoveAccount(ctx, name)
			switch {
			case errors.Is(err, store.ErrNotFound):
				yellow.Fprintf(stdout, "missing %s\n", name)
			case err != nil:
				return fmt.Errorf("removing %s: %w", name, err)
			default:
				green.Fprintf(stdout, "removed %s\n", name)
			}
		}

	case "list", "ls":
		accounts, err := s.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("listing accounts: %w", err)
		}
		for _, a := range accounts {
			fmt.Fprintf(stdout, "%-16s %-8s %s\n", a.Name, a.Source, a.AddedAt.Format("2006-01-02"))
		}

	default:
		return fmt.Errorf("unknown accounts subcommand: %s", sub)
	}
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	color.New(color.FgCyan).Print(banner)
	fmt.Println("hive-render configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.Default()

	fmt.Println("\n--- Renderer ---")
	cfg.Renderer.BaseURL = prompt(reader, "Base URL", cfg.Renderer.BaseURL)
	cfg.Renderer.IPFSGateway = prompt(reader, "IPFS gateway", cfg.Renderer.IPFSGateway)

	fmt.Println("\n--- Registry ---")
	cfg.Registry.Kind = prompt(reader, "Registry kind (hive/sqlite/mirror/static)", cfg.Registry.Kind)
	if cfg.Registry.Kind == config.RegistryHive || cfg.Registry.Kind == config.RegistryMirror {
		cfg.Registry.URL = prompt(reader, "Hive API node", cfg.Registry.URL)
	}
	if cfg.Registry.Kind == config.RegistrySQLite || cfg.Registry.Kind == config.RegistryMirror {
		cfg.Registry.Database = prompt(reader, "Account mirror database", filepath.Join(getDataPath(), "accounts.db"))
	}

	fmt.Println("\n--- Logging ---")
	cfg.Logging.Level = prompt(reader, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := "# hive-render configuration\n# Generated by hive-render init\n\n"
	if err := os.WriteFile(outputFile, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo render a file:")
	fmt.Printf("  hive-render render post.md\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

// setupLogger builds the process logger. Logs go to w so rendered HTML on
// stdout stays clean.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = &colorHandler{
			mu:    &sync.Mutex{},
			out:   w,
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
