package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type harness struct {
	home string
	todo string
	out  *bytes.Buffer
	err  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, k := range []string{"TODOTXT_EXPORT_DIR", "TODOTXT_AUTO_DATE", "TODOTXT_MAX_ENTRIES", "TODOTXT_LOG_LEVEL", "TODOTXT_LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	h := &harness{
		home: home,
		todo: filepath.Join(home, "todo.txt"),
		out:  &bytes.Buffer{},
		err:  &bytes.Buffer{},
	}
	t.Setenv("TODOTXT_FILE", h.todo)

	oldOut, oldErr, oldNow := stdout, stderr, timeNow
	stdout, stderr = h.out, h.err
	timeNow = func() time.Time { return time.Date(2024, time.May, 6, 9, 30, 0, 0, time.Local) }
	t.Cleanup(func() { stdout, stderr, timeNow = oldOut, oldErr, oldNow })
	return h
}

func (h *harness) run(t *testing.T, want int, args ...string) string {
	t.Helper()
	h.out.Reset()
	h.err.Reset()
	if got := Run(args); got != want {
		t.Fatalf("Run(%q): exit %d, want %d\nstdout: %s\nstderr: %s", args, got, want, h.out, h.err)
	}
	return h.out.String()
}

func (h *harness) file(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(h.todo)
	if err != nil {
		t.Fatalf("read todo file: %v", err)
	}
	return string(b)
}

func TestAddAppendsLine(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, ExitOK, "add", "(A)", "call", "@mom")
	if out != "0 (A) call @mom\n" {
		t.Fatalf("stdout: %q", out)
	}
	h.run(t, ExitOK, "add", "Buy milk +errand")
	if got := h.file(t); got != "(A) call @mom\nBuy milk +errand\n" {
		t.Fatalf("file: %q", got)
	}
}

func TestAddWithDate(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "buy", "milk", "--date")
	h.run(t, ExitOK, "add", "--date", "2023-01-01 keeps its own date")
	want := "2024-05-06 buy milk\n2023-01-01 keeps its own date\n"
	if got := h.file(t); got != want {
		t.Fatalf("file: %q, want %q", got, want)
	}
}

func TestAddAutoDateFromEnv(t *testing.T) {
	h := newHarness(t)
	t.Setenv("TODOTXT_AUTO_DATE", "true")
	h.run(t, ExitOK, "add", "(B) water plants")
	if got := h.file(t); got != "(B) 2024-05-06 water plants\n" {
		t.Fatalf("file: %q", got)
	}
}

func TestAddRejectsEmptyLine(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitUsage, "add")
	h.run(t, ExitUsage, "add", "   ")
}

func TestAddOverLimit(t *testing.T) {
	h := newHarness(t)
	t.Setenv("TODOTXT_MAX_ENTRIES", "1")
	h.run(t, ExitOK, "add", "one")
	h.run(t, ExitInternal, "add", "two")
	if got := h.file(t); got != "one\n" {
		t.Fatalf("file: %q", got)
	}
	if !strings.Contains(h.err.String(), "capacity exceeded") {
		t.Fatalf("stderr: %q", h.err.String())
	}
}

func TestAddRejectsLineBreaks(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "call mom")
	before := h.file(t)
	h.run(t, ExitUsage, "add", "call mom\nx (A) second entry")
	h.run(t, ExitUsage, "add", "pay rent\r")
	if got := h.file(t); got != before {
		t.Fatalf("file changed: %q", got)
	}
	if !strings.Contains(h.err.String(), "line break") {
		t.Fatalf("stderr: %q", h.err.String())
	}
	out := h.run(t, ExitOK, "--plain", "ls")
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Fatalf("ls: %q", out)
	}
}

func TestReplaceRejectsLineBreaks(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "a")
	h.run(t, ExitOK, "add", "b")
	h.run(t, ExitUsage, "replace", "0", "new\nx (B) extra")
	if got := h.file(t); got != "a\nb\n" {
		t.Fatalf("file: %q", got)
	}
}

func TestAddLineStartingWithDash(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "-5 degrees tomorrow, buy coat")
	h.run(t, ExitOK, "add", "--", "-x", "stays", "text")
	h.run(t, ExitOK, "add", "--date", "-- dashes first")
	want := "-5 degrees tomorrow, buy coat\n-x stays text\n2024-05-06 -- dashes first\n"
	if got := h.file(t); got != want {
		t.Fatalf("file: %q, want %q", got, want)
	}
}

func TestListPlainAndFilters(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "(A) call @mom")
	h.run(t, ExitOK, "add", "x 2024-01-02 2024-01-01 pay rent +home")
	h.run(t, ExitOK, "add", "read book")

	out := h.run(t, ExitOK, "--plain", "ls")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got:\n%s", out)
	}
	if lines[1] != "0\to\tA\t-\t-\tcall @mom" {
		t.Fatalf("row 0: %q", lines[1])
	}
	if lines[2] != "1\tx\t-\t2024-01-02\t2024-01-01\tpay rent +home" {
		t.Fatalf("row 1: %q", lines[2])
	}

	out = h.run(t, ExitOK, "ls", "--plain", "--open")
	if strings.Contains(out, "pay rent") || !strings.Contains(out, "read book") {
		t.Fatalf("--open: %s", out)
	}
	out = h.run(t, ExitOK, "ls", "--tag", "+home", "--plain")
	if !strings.Contains(out, "1\tx") || strings.Contains(out, "read book") {
		t.Fatalf("--tag: %s", out)
	}
	h.run(t, ExitUsage, "ls", "--open", "--done")
}

func TestListEmptyFile(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, ExitOK, "ls")
	if !strings.HasPrefix(out, "IDX") {
		t.Fatalf("stdout: %q", out)
	}
	if _, err := os.Stat(h.todo); !os.IsNotExist(err) {
		t.Fatalf("ls should not create the todo file")
	}
}

func TestDoneUndo(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "(A) 2024-01-01 call @mom")
	out := h.run(t, ExitOK, "done", "0")
	if out != "Done 0: x (A) 2024-01-01 call @mom\n" {
		t.Fatalf("stdout: %q", out)
	}
	if got := h.file(t); got != "x (A) 2024-01-01 call @mom\n" {
		t.Fatalf("file: %q", got)
	}
	h.run(t, ExitOK, "undo", "0")
	if got := h.file(t); got != "(A) 2024-01-01 call @mom\n" {
		t.Fatalf("file: %q", got)
	}
}

func TestOutOfRangeLeavesFileUnchanged(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "only task")
	before := h.file(t)
	h.run(t, ExitNotFound, "done", "1")
	h.run(t, ExitNotFound, "rm", "4")
	h.run(t, ExitNotFound, "swap", "0", "1")
	h.run(t, ExitNotFound, "show", "2")
	h.run(t, ExitUsage, "done", "first")
	if got := h.file(t); got != before {
		t.Fatalf("file changed: %q", got)
	}
}

func TestRemoveSwapReplace(t *testing.T) {
	h := newHarness(t)
	for _, line := range []string{"a", "b", "c", "d"} {
		h.run(t, ExitOK, "add", line)
	}
	h.run(t, ExitOK, "rm", "1")
	if got := h.file(t); got != "a\nc\nd\n" {
		t.Fatalf("after rm: %q", got)
	}
	h.run(t, ExitOK, "swap", "0", "2")
	if got := h.file(t); got != "d\nc\na\n" {
		t.Fatalf("after swap: %q", got)
	}
	h.run(t, ExitOK, "replace", "1", "(C)", "see", "+doctor")
	if got := h.file(t); got != "d\n(C) see +doctor\na\n" {
		t.Fatalf("after replace: %q", got)
	}
}

func TestParsePrintsYAML(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, ExitOK, "parse", "x (A) 2024-01-02 2024-01-01 Buy milk +errand due:2024-01-05")
	for _, want := range []string{"completed: true", "priority: A", "2024-01-02", "description: Buy milk +errand due:2024-01-05", "key: due"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if _, err := os.Stat(h.todo); !os.IsNotExist(err) {
		t.Fatalf("parse should not touch the todo file")
	}
}

func TestShowStdoutJSON(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "(B) call @mom")
	out := h.run(t, ExitOK, "--json", "--stdout-json", "show", "0")
	var got struct {
		Index int `json:"index"`
		Entry struct {
			Priority    string `json:"priority"`
			Description string `json:"description"`
			Tags        []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"tags"`
		} `json:"entry"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Index != 0 || got.Entry.Priority != "B" || got.Entry.Description != "call @mom" {
		t.Fatalf("got %+v", got)
	}
	if len(got.Entry.Tags) != 1 || got.Entry.Tags[0].Key != "@" || got.Entry.Tags[0].Value != "mom" {
		t.Fatalf("tags: %+v", got.Entry.Tags)
	}
}

func TestJSONExport(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "a +x")
	out := h.run(t, ExitOK, "--json", "ls")
	path := strings.TrimSpace(strings.TrimPrefix(out, "Wrote JSON to:"))
	if filepath.Dir(path) != filepath.Join(h.home, "exports") || !strings.HasSuffix(path, ".json") {
		t.Fatalf("unexpected export path %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var payload struct {
		Entries []struct {
			Index int `json:"index"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Entries) != 1 || payload.Entries[0].Index != 0 {
		t.Fatalf("payload: %s", b)
	}
}

func TestNDJSONStdout(t *testing.T) {
	h := newHarness(t)
	h.run(t, ExitOK, "add", "a")
	h.run(t, ExitOK, "add", "b")
	out := h.run(t, ExitOK, "--ndjson", "--stdout-ndjson", "ls")
	if n := strings.Count(out, "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", n, out)
	}
}

func TestConfigShow(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, ExitOK, "config", "show")
	if !strings.Contains(out, "# source: defaults") || !strings.Contains(out, `file = "`+h.todo+`"`) {
		t.Fatalf("stdout:\n%s", out)
	}
	h.run(t, ExitUsage, "config")
}

func TestGlobalFlags(t *testing.T) {
	h := newHarness(t)
	other := filepath.Join(h.home, "other.txt")
	h.run(t, ExitOK, "add", "elsewhere", "--file", other)
	b, err := os.ReadFile(other)
	if err != nil || string(b) != "elsewhere\n" {
		t.Fatalf("--file not honored: %q, %v", b, err)
	}
	h.run(t, ExitUsage, "--json", "--ndjson", "ls")
	h.run(t, ExitUsage, "--stdout-json", "ls")
	h.run(t, ExitUsage, "ls", "--file")
	h.run(t, ExitUsage)
	h.run(t, ExitUsage, "frobnicate")
	h.run(t, ExitOK, "help")
}
