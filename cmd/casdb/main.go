// casdb is a small CLI and interactive REPL for caslog stores.
//
// Usage:
//
//	casdb create [opts] <path>   Create a new store
//	casdb <path>                 Open an existing store, start a REPL
//	casdb put <path> <key> <value>
//	casdb get <path> <key>
//	casdb stat <path>
//	casdb export <path> <dir>    Dump every key/value pair to files
//
// REPL commands (in `casdb <path>` or after `casdb create`):
//
//	put <key> <value>   Write a key/value pair
//	get <key>           Read a value by key
//	stat                Show watermark, capacity, key size, entry count
//	scan-log [limit]    List the keys in the index, in no particular order
//	help                Show this help
//	exit / quit / q     Exit
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	natomic "github.com/natefinch/atomic"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/marc-casperlabs/stuffer-shack/internal/config"
	"github.com/marc-casperlabs/stuffer-shack/pkg/caslog"
	"github.com/marc-casperlabs/stuffer-shack/pkg/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "casdb: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("missing command or store path")
	}

	switch args[0] {
	case "create":
		return runCreate(args[1:])
	case "put":
		return runPut(args[1:])
	case "get":
		return runGet(args[1:])
	case "stat":
		return runStat(args[1:])
	case "export":
		return runExport(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		return runOpen(args)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  casdb create [opts] <path>          Create a new store")
	fmt.Fprintln(os.Stderr, "  casdb <path>                        Open a store, start a REPL")
	fmt.Fprintln(os.Stderr, "  casdb put <path> <key> <value>      Write one key/value pair")
	fmt.Fprintln(os.Stderr, "  casdb get <path> <key>               Read one value")
	fmt.Fprintln(os.Stderr, "  casdb stat <path>                    Print store diagnostics")
	fmt.Fprintln(os.Stderr, "  casdb export <path> <dir>            Dump every pair as <dir>/<hexkey>")
}

func loadConfig() config.Config {
	cfg, err := config.Load(config.LoadInput{Env: map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"HOME":            os.Getenv("HOME"),
	}})
	if err != nil {
		return config.Default()
	}
	return cfg
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	cfg := loadConfig()

	keySize := fs.Uint32P("key-size", "k", cfg.DefaultKeySize, "key size in bytes")
	capacity := fs.Uint64P("capacity", "c", cfg.DefaultCapacity, "capacity in bytes")
	debug := fs.Bool("debug", false, "verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: casdb create [options] <path>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing store path")
	}
	path := fs.Arg(0)

	logger, err := logging.NewCLI(*debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := caslog.Create(path, caslog.Options{
		KeySize:  *keySize,
		Capacity: *capacity,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer db.Close()

	fmt.Printf("created %s (key_size=%d, capacity=%d)\n", path, *keySize, *capacity)
	return (&repl{db: db, keySize: *keySize, path: path}).run()
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	cfg := loadConfig()

	keySize := fs.Uint32P("key-size", "k", cfg.DefaultKeySize, "key size in bytes, must match the store")
	capacity := fs.Uint64P("capacity", "c", cfg.DefaultCapacity, "capacity in bytes, must be >= the store's")
	debug := fs.Bool("debug", false, "verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: casdb [options] <path>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing store path")
	}
	path := fs.Arg(0)

	db, err := openStore(path, *keySize, *capacity, *debug)
	if err != nil {
		return err
	}
	defer db.Close()

	return (&repl{db: db, keySize: *keySize, path: path}).run()
}

func openStore(path string, keySize uint32, capacity uint64, debug bool) (*caslog.DB, error) {
	logger, err := logging.NewCLI(debug)
	if err != nil {
		return nil, err
	}
	db, err := caslog.Open(path, caslog.Options{KeySize: keySize, Capacity: capacity, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return db, nil
}

func runPut(args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	cfg := loadConfig()
	keySize := fs.Uint32P("key-size", "k", cfg.DefaultKeySize, "key size in bytes")
	capacity := fs.Uint64P("capacity", "c", cfg.DefaultCapacity, "capacity in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return errors.New("usage: casdb put [options] <path> <key> <value>")
	}

	db, err := openStore(fs.Arg(0), *keySize, *capacity, false)
	if err != nil {
		return err
	}
	defer db.Close()

	key, err := parseKey(fs.Arg(1), *keySize)
	if err != nil {
		return err
	}
	if err := db.Write(key, []byte(fs.Arg(2))); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	fmt.Println("ok")
	return nil
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	cfg := loadConfig()
	keySize := fs.Uint32P("key-size", "k", cfg.DefaultKeySize, "key size in bytes")
	capacity := fs.Uint64P("capacity", "c", cfg.DefaultCapacity, "capacity in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: casdb get [options] <path> <key>")
	}

	db, err := openStore(fs.Arg(0), *keySize, *capacity, false)
	if err != nil {
		return err
	}
	defer db.Close()

	key, err := parseKey(fs.Arg(1), *keySize)
	if err != nil {
		return err
	}
	v, ok := db.Read(key)
	if !ok {
		return errors.New("not found")
	}
	os.Stdout.Write(v)
	fmt.Println()
	return nil
}

func runStat(args []string) error {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	cfg := loadConfig()
	keySize := fs.Uint32P("key-size", "k", cfg.DefaultKeySize, "key size in bytes")
	capacity := fs.Uint64P("capacity", "c", cfg.DefaultCapacity, "capacity in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: casdb stat [options] <path>")
	}

	db, err := openStore(fs.Arg(0), *keySize, *capacity, false)
	if err != nil {
		return err
	}
	defer db.Close()

	printStat(db.Stat())
	return nil
}

func printStat(s caslog.Stat) {
	fmt.Printf("key_size:  %d\n", s.KeySize)
	fmt.Printf("capacity:  %d\n", s.Capacity)
	fmt.Printf("watermark: %d\n", s.Watermark)
	fmt.Printf("keys:      %d\n", s.Keys)
}

// runExport dumps every key/value pair in a store to one file per key
// named by the key's hex encoding, using an atomic temp-file-plus-
// rename write for each so a crash mid-export never leaves a
// half-written file in the target directory.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cfg := loadConfig()
	keySize := fs.Uint32P("key-size", "k", cfg.DefaultKeySize, "key size in bytes")
	capacity := fs.Uint64P("capacity", "c", cfg.DefaultCapacity, "capacity in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: casdb export [options] <path> <dir>")
	}

	db, err := openStore(fs.Arg(0), *keySize, *capacity, false)
	if err != nil {
		return err
	}
	defer db.Close()

	dir := fs.Arg(1)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	n, err := exportKeys(db, dir)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d keys to %s\n", n, dir)
	return nil
}

func exportKeys(db *caslog.DB, dir string) (int, error) {
	keys, err := caslog.ScanKeys(db)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	for _, key := range keys {
		v, ok := db.Read(key)
		if !ok {
			continue // key not found; skip rather than fail the whole export
		}
		name := filepath.Join(dir, hex.EncodeToString(key))
		if err := natomic.WriteFile(name, strings.NewReader(string(v))); err != nil {
			return 0, fmt.Errorf("export: write %s: %w", name, err)
		}
	}
	return len(keys), nil
}

func parseKey(s string, keySize uint32) ([]byte, error) {
	if raw, err := hex.DecodeString(s); err == nil && uint32(len(raw)) == keySize {
		return raw, nil
	}
	raw := []byte(s)
	if uint32(len(raw)) != keySize {
		key := make([]byte, keySize)
		copy(key, raw)
		return key, nil
	}
	return raw, nil
}

// repl is the interactive command loop shared by `casdb create` and
// `casdb <path>`.
type repl struct {
	db      *caslog.DB
	keySize uint32
	path    string
	liner   *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".casdb_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()
	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("casdb - %s (key_size=%d)\n", r.path, r.keySize)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("casdb> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "put":
			r.cmdPut(args)
		case "get":
			r.cmdGet(args)
		case "stat":
			r.cmdStat()
		case "scan-log":
			r.cmdScanLog(args)
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{"put", "get", "stat", "scan-log", "help", "exit", "quit", "q"}
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <value>   Write a key/value pair")
	fmt.Println("  get <key>           Read a value by key")
	fmt.Println("  stat                Show watermark, capacity, key size, entry count")
	fmt.Println("  scan-log [limit]    List the keys in the index, in no particular order")
	fmt.Println("  help                Show this help")
	fmt.Println("  exit / quit / q     Exit")
	fmt.Println()
	fmt.Println("Keys: hex (e.g. 'deadbeef') or plain text, zero-padded/truncated to key_size.")
}

func (r *repl) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: put <key> <value>")
		return
	}
	key, err := parseKey(args[0], r.keySize)
	if err != nil {
		fmt.Printf("Error parsing key: %v\n", err)
		return
	}
	if err := r.db.Write(key, []byte(strings.Join(args[1:], " "))); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func (r *repl) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <key>")
		return
	}
	key, err := parseKey(args[0], r.keySize)
	if err != nil {
		fmt.Printf("Error parsing key: %v\n", err)
		return
	}
	v, ok := r.db.Read(key)
	if !ok {
		fmt.Println("(not found)")
		return
	}
	fmt.Printf("%s\n", v)
}

func (r *repl) cmdStat() {
	printStat(r.db.Stat())
}

func (r *repl) cmdScanLog(args []string) {
	limit := 20
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("Error parsing limit: %v\n", err)
			return
		}
		limit = n
	}

	keys, err := caslog.ScanKeys(r.db)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for i, k := range keys {
		if i >= limit {
			fmt.Printf("... (%d more, use 'scan-log <limit>')\n", len(keys)-limit)
			break
		}
		fmt.Printf("%3d. %s\n", i+1, hex.EncodeToString(k))
	}
}
