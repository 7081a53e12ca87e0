package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/todotxt/internal/config"
	"github.com/amirbrooks/todotxt/internal/logging"
	"github.com/amirbrooks/todotxt/internal/store"
	"github.com/amirbrooks/todotxt/internal/todotxt"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitInternal = 10
)

var (
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
	timeNow           = time.Now
)

type GlobalFlags struct {
	File         string
	ConfigFile   string
	ExportDir    string
	LogLevel     string
	JSON         bool
	NDJSON       bool
	Plain        bool
	Quiet        bool
	Verbose      bool
	StdoutJSON   bool
	StdoutNDJSON bool
}

// session is the state one command runs against.
type session struct {
	gf   GlobalFlags
	cfg  *config.Config
	log  *logging.Logger
	list *store.List
}

func Run(args []string) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp()
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp()
		return ExitOK
	case "parse":
		// parse works on its arguments only; no file or config needed.
		return cmdParse(gf, cmdArgs)
	}

	s, err := openSession(gf)
	if err != nil {
		fmt.Fprintln(stderr, "todotxt:", err)
		return ExitInternal
	}
	defer s.log.Close()

	switch cmd {
	case "config", "cfg":
		return cmdConfig(s, cmdArgs)
	case "add", "a":
		return cmdAdd(s, cmdArgs)
	case "ls", "list":
		return cmdList(s, cmdArgs)
	case "show":
		return cmdShow(s, cmdArgs)
	case "done", "do":
		return cmdSetCompletion(s, "done", true, cmdArgs)
	case "undo", "reopen":
		return cmdSetCompletion(s, "undo", false, cmdArgs)
	case "rm", "del":
		return cmdRemove(s, cmdArgs)
	case "swap", "mv":
		return cmdSwap(s, cmdArgs)
	case "replace", "edit":
		return cmdReplace(s, cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		return ExitUsage
	}
}

func printHelp() {
	fmt.Fprint(stdout, `todotxt: todo.txt list manager

Usage:
  todotxt [global flags] <command> [args]

Global flags:
  --file <path>        todo.txt file (default: ~/todo.txt or TODOTXT_FILE)
  --config <path>      Config file (default: ~/.config/todotxt/config.toml, then ./todotxt.toml)
  --export-dir <path>  Export directory (default: <dir of file>/exports)
  --log-level <level>  debug|info|warn|error
  --json               Write JSON output to the export directory
  --ndjson             Write NDJSON output to the export directory
  --stdout-json        Allow JSON to stdout
  --stdout-ndjson      Allow NDJSON to stdout
  --plain              TSV output
  --quiet
  --verbose

Commands:
  add "<line>" [--date]
  ls [--tag <t>] [--search <q>] [--open|--done] [--priority <P>]
  show <n>
  parse "<line>"
  done <n>
  undo <n>
  rm <n>
  swap <a> <b>
  replace <n> "<line>"
  config show

Entries are addressed by 0-based index as printed by ls.
Use -- before a line whose first word starts with "-": todotxt add -- -5C buy coat
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}
	out := make([]string, 0, len(args))
	valueFlags := map[string]*string{
		"--file":       &gf.File,
		"--config":     &gf.ConfigFile,
		"--export-dir": &gf.ExportDir,
		"--log-level":  &gf.LogLevel,
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		if dst, ok := valueFlags[a]; ok {
			if i+1 >= len(args) {
				return gf, nil, fmt.Errorf("%s requires a value", a)
			}
			*dst = args[i+1]
			i++
			continue
		}
		switch a {
		case "--json":
			gf.JSON = true
		case "--ndjson":
			gf.NDJSON = true
		case "--stdout-json":
			gf.StdoutJSON = true
		case "--stdout-ndjson":
			gf.StdoutNDJSON = true
		case "--plain":
			gf.Plain = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.NDJSON {
		return gf, nil, errors.New("--json and --ndjson are mutually exclusive")
	}
	if gf.StdoutJSON && !gf.JSON {
		return gf, nil, errors.New("--stdout-json requires --json")
	}
	if gf.StdoutNDJSON && !gf.NDJSON {
		return gf, nil, errors.New("--stdout-ndjson requires --ndjson")
	}
	if gf.Quiet && gf.Verbose {
		return gf, nil, errors.New("--quiet and --verbose are mutually exclusive")
	}
	return gf, out, nil
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		// A quoted line such as "-5 degrees, buy coat" is text, not a flag.
		if strings.HasPrefix(a, "-") && len(a) > 1 && !strings.ContainsAny(a, " \t") {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(append(flags, "--"), rest...)
}

func openSession(gf GlobalFlags) (*session, error) {
	logLevel := gf.LogLevel
	switch {
	case gf.Verbose:
		logLevel = "debug"
	case gf.Quiet:
		logLevel = "error"
	}
	cfg, err := config.Load(config.Overrides{
		ConfigFile: gf.ConfigFile,
		File:       gf.File,
		ExportDir:  gf.ExportDir,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	log.Debugw("config loaded", "file", cfg.File, "source", cfg.Source, "export_dir", cfg.ExportDir)
	return &session{gf: gf, cfg: cfg, log: log}, nil
}

// load reads the todo file into s.list.
func (s *session) load() error {
	l, err := store.LoadFile(s.cfg.File, s.cfg.MaxEntries)
	if err != nil {
		s.log.Errorw("load failed", "file", s.cfg.File, "error", err)
		return err
	}
	s.list = l
	s.log.Debugw("todo file loaded", "file", s.cfg.File, "entries", l.Len())
	return nil
}

func (s *session) save() error {
	if err := store.SaveFile(s.cfg.File, s.list); err != nil {
		s.log.Errorw("save failed", "file", s.cfg.File, "error", err)
		return err
	}
	s.log.Debugw("todo file saved", "file", s.cfg.File, "entries", s.list.Len())
	return nil
}

// entryAt loads the list and resolves an index argument.
func (s *session) entryAt(arg string) (int, todotxt.Entry, error) {
	idx, err := store.ParseIndex(arg)
	if err != nil {
		return 0, todotxt.Entry{}, err
	}
	e, ok := s.list.At(idx)
	if !ok {
		return 0, todotxt.Entry{}, fmt.Errorf("%w: no entry %d", store.ErrNotFound, idx)
	}
	return idx, e, nil
}

// exitFor reports err and maps it to an exit code.
func exitFor(cmd string, err error) int {
	fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, store.ErrInvalid):
		return ExitUsage
	default:
		return ExitInternal
	}
}

func cmdConfig(s *session, args []string) int {
	if len(args) == 0 || args[0] != "show" {
		fmt.Fprintln(stderr, "Usage: todotxt config show")
		return ExitUsage
	}
	if s.gf.JSON {
		payload := map[string]any{
			"source":      s.cfg.Source,
			"file":        s.cfg.File,
			"export_dir":  s.cfg.ExportDir,
			"auto_date":   s.cfg.AutoDate,
			"max_entries": s.cfg.MaxEntries,
			"log":         map[string]string{"level": s.cfg.Log.Level, "format": s.cfg.Log.Format},
		}
		return writeJSON(s, "config", "config", payload)
	}
	if s.cfg.Source != "" {
		fmt.Fprintf(stdout, "# source: %s\n", s.cfg.Source)
	} else {
		fmt.Fprintln(stdout, "# source: defaults")
	}
	if err := s.cfg.Encode(stdout); err != nil {
		return exitFor("config show", err)
	}
	return ExitOK
}

func cmdAdd(s *session, args []string) int {
	args = reorderFlags(args, map[string]bool{"--date": false})
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	withDate := fs.Bool("date", false, "Stamp today's creation date when the line has none")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	line := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(line) == "" {
		fmt.Fprintln(stderr, "Usage: todotxt add \"<line>\" [--date]")
		return ExitUsage
	}
	if err := store.CheckLine(line); err != nil {
		return exitFor("add", err)
	}
	if err := s.load(); err != nil {
		return exitFor("add", err)
	}

	e := todotxt.Parse(line)
	if (*withDate || s.cfg.AutoDate) && !e.CreationDate.Valid() {
		e.CreationDate = todotxt.DateOf(timeNow())
	}
	idx, err := s.list.Append(e)
	if err != nil {
		return exitFor("add", err)
	}
	if err := s.save(); err != nil {
		return exitFor("add", err)
	}
	s.log.Infow("entry added", "index", idx)
	return writeEntryResult(s, "add", idx, e, fmt.Sprintf("%d %s", idx, e))
}

func cmdList(s *session, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--tag":      true,
		"--search":   true,
		"--priority": true,
		"--open":     false,
		"--done":     false,
	})
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tag := fs.String("tag", "", "Filter by +project, @context, key:value or key")
	search := fs.String("search", "", "Search query (description)")
	priority := fs.String("priority", "", "Filter by priority letter")
	open := fs.Bool("open", false, "Only open entries")
	done := fs.Bool("done", false, "Only completed entries")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *open && *done {
		fmt.Fprintln(stderr, "Usage: choose only one of --open/--done")
		return ExitUsage
	}
	if err := s.load(); err != nil {
		return exitFor("ls", err)
	}

	filter := store.ListFilter{Tag: *tag, Search: *search, Priority: *priority}
	if *open {
		filter.Status = store.StatusOpen
	}
	if *done {
		filter.Status = store.StatusDone
	}
	matches := s.list.Filter(filter)

	if s.gf.NDJSON {
		items := make([]any, 0, len(matches))
		for i := range matches {
			items = append(items, matches[i])
		}
		return writeNDJSON(s, "ls", "entries", items)
	}
	if s.gf.JSON {
		if matches == nil {
			matches = []store.Match{}
		}
		return writeJSON(s, "ls", "entries", map[string]any{"entries": matches})
	}

	if s.gf.Plain {
		fmt.Fprintln(stdout, "IDX\tST\tPRI\tDONE\tCREATED\tDESCRIPTION")
		for _, m := range matches {
			fmt.Fprintln(stdout, listRow(m))
		}
		return ExitOK
	}

	// Table output
	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDX\tST\tPRI\tDONE\tCREATED\tDESCRIPTION")
	for _, m := range matches {
		fmt.Fprintln(w, listRow(m))
	}
	_ = w.Flush()
	return ExitOK
}

func listRow(m store.Match) string {
	e := m.Entry
	status := "o"
	if e.Completed {
		status = "x"
	}
	return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s",
		m.Index, status, orDash(e.PriorityString()), dateOrDash(e.CompletionDate), dateOrDash(e.CreationDate), e.Description)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dateOrDash(d todotxt.Date) string {
	if !d.Valid() {
		return "-"
	}
	return d.String()
}

func cmdShow(s *session, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: todotxt show <n>")
		return ExitUsage
	}
	if err := s.load(); err != nil {
		return exitFor("show", err)
	}
	idx, e, err := s.entryAt(args[0])
	if err != nil {
		return exitFor("show", err)
	}
	if s.gf.JSON || s.gf.NDJSON {
		return writeEntryResult(s, "show", idx, e, "")
	}
	return writeYAML("show", store.Match{Index: idx, Entry: e})
}

func cmdParse(gf GlobalFlags, args []string) int {
	line := strings.Join(args, " ")
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: todotxt parse \"<line>\"")
		return ExitUsage
	}
	e := todotxt.Parse(line)
	if gf.JSON {
		// No export directory without a config; parse output always goes to stdout.
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"entry": e}); err != nil {
			return exitFor("parse", err)
		}
		return ExitOK
	}
	return writeYAML("parse", e)
}

func cmdSetCompletion(s *session, cmd string, completed bool, args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "Usage: todotxt %s <n>\n", cmd)
		return ExitUsage
	}
	if err := s.load(); err != nil {
		return exitFor(cmd, err)
	}
	idx, err := store.ParseIndex(args[0])
	if err != nil {
		return exitFor(cmd, err)
	}
	if !s.list.SetCompletion(idx, completed) {
		return exitFor(cmd, fmt.Errorf("%w: no entry %d", store.ErrNotFound, idx))
	}
	if err := s.save(); err != nil {
		return exitFor(cmd, err)
	}
	e, _ := s.list.At(idx)
	s.log.Infow("completion set", "index", idx, "completed", completed)
	label := "Done"
	if !completed {
		label = "Reopened"
	}
	return writeEntryResult(s, cmd, idx, e, fmt.Sprintf("%s %d: %s", label, idx, e))
}

func cmdRemove(s *session, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: todotxt rm <n>")
		return ExitUsage
	}
	if err := s.load(); err != nil {
		return exitFor("rm", err)
	}
	idx, e, err := s.entryAt(args[0])
	if err != nil {
		return exitFor("rm", err)
	}
	s.list.Remove(idx)
	if err := s.save(); err != nil {
		return exitFor("rm", err)
	}
	s.log.Infow("entry removed", "index", idx, "remaining", s.list.Len())
	return writeEntryResult(s, "rm", idx, e, fmt.Sprintf("Removed %d: %s", idx, e))
}

func cmdSwap(s *session, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "Usage: todotxt swap <a> <b>")
		return ExitUsage
	}
	if err := s.load(); err != nil {
		return exitFor("swap", err)
	}
	a, err := store.ParseIndex(args[0])
	if err != nil {
		return exitFor("swap", err)
	}
	b, err := store.ParseIndex(args[1])
	if err != nil {
		return exitFor("swap", err)
	}
	if !s.list.Swap(a, b) {
		return exitFor("swap", fmt.Errorf("%w: entries %d and %d", store.ErrNotFound, a, b))
	}
	if err := s.save(); err != nil {
		return exitFor("swap", err)
	}
	s.log.Infow("entries swapped", "a", a, "b", b)
	if !s.gf.Quiet {
		fmt.Fprintf(stdout, "Swapped %d <-> %d\n", a, b)
	}
	return ExitOK
}

func cmdReplace(s *session, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: todotxt replace <n> \"<line>\"")
		return ExitUsage
	}
	line := strings.Join(args[1:], " ")
	if strings.TrimSpace(line) == "" {
		fmt.Fprintln(stderr, "Usage: todotxt replace <n> \"<line>\"")
		return ExitUsage
	}
	if err := store.CheckLine(line); err != nil {
		return exitFor("replace", err)
	}
	if err := s.load(); err != nil {
		return exitFor("replace", err)
	}
	idx, _, err := s.entryAt(args[0])
	if err != nil {
		return exitFor("replace", err)
	}
	e := todotxt.Parse(line)
	s.list.Replace(idx, e)
	if err := s.save(); err != nil {
		return exitFor("replace", err)
	}
	s.log.Infow("entry replaced", "index", idx)
	return writeEntryResult(s, "replace", idx, e, fmt.Sprintf("%d %s", idx, e))
}

// writeEntryResult reports a single entry in the selected output mode.
func writeEntryResult(s *session, cmd string, idx int, e todotxt.Entry, human string) int {
	m := store.Match{Index: idx, Entry: e}
	if s.gf.NDJSON {
		return writeNDJSON(s, cmd, "entry", []any{m})
	}
	if s.gf.JSON {
		return writeJSON(s, cmd, "entry", m)
	}
	if s.gf.Plain {
		fmt.Fprintf(stdout, "%d\t%s\n", idx, e)
		return ExitOK
	}
	if !s.gf.Quiet && human != "" {
		fmt.Fprintln(stdout, human)
	}
	return ExitOK
}

func writeYAML(cmd string, v any) int {
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return exitFor(cmd, err)
	}
	if err := enc.Close(); err != nil {
		return exitFor(cmd, err)
	}
	return ExitOK
}

func writeJSON(s *session, cmd, base string, payload any) int {
	if s.gf.StdoutJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return exitFor(cmd, err)
		}
		return ExitOK
	}
	path, err := writeJSONExport(s.cfg.ExportDir, base, payload)
	if err != nil {
		return exitFor(cmd, err)
	}
	s.log.Debugw("export written", "path", path)
	if !s.gf.Quiet {
		fmt.Fprintln(stdout, "Wrote JSON to:", path)
	}
	return ExitOK
}

func writeNDJSON(s *session, cmd, base string, items []any) int {
	if s.gf.StdoutNDJSON {
		for _, item := range items {
			b, err := json.Marshal(item)
			if err != nil {
				return exitFor(cmd, err)
			}
			fmt.Fprintln(stdout, string(b))
		}
		return ExitOK
	}
	path, err := writeNDJSONExport(s.cfg.ExportDir, base, items)
	if err != nil {
		return exitFor(cmd, err)
	}
	s.log.Debugw("export written", "path", path)
	if !s.gf.Quiet {
		fmt.Fprintln(stdout, "Wrote NDJSON to:", path)
	}
	return ExitOK
}

func writeJSONExport(dir, base string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return writeExportFile(dir, base, "json", append(data, '\n'))
}

func writeNDJSONExport(dir, base string, items []any) (string, error) {
	var b strings.Builder
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return writeExportFile(dir, base, "ndjson", []byte(b.String()))
}

func writeExportFile(dir, base, ext string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("export directory is empty")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", base, store.NewULID(), ext))
	if err := store.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
