package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amirbrooks/todotxt/internal/todotxt"
)

const maxLineBytes = 1 << 20

// LoadFile reads a todo.txt file into a new list. A missing file is not an
// error; it yields an empty list.
func LoadFile(path string, limit int) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewList(limit), nil
		}
		return nil, err
	}
	defer f.Close()
	l, err := ReadList(f, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l, nil
}

// ReadList parses one entry per line. Blank lines are skipped and a
// trailing \r is dropped.
func ReadList(r io.Reader, limit int) (*List, error) {
	l := NewList(limit)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := l.Append(todotxt.Parse(line)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// CheckLine rejects text that would not stay a single line in the file.
func CheckLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: entry text contains a line break", ErrInvalid)
	}
	return nil
}

// WriteList renders every entry on its own line.
func WriteList(w io.Writer, l *List) error {
	bw := bufio.NewWriter(w)
	for _, e := range l.entries {
		if _, err := bw.WriteString(e.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile atomically replaces path with the rendered list.
func SaveFile(path string, l *List) error {
	var buf bytes.Buffer
	if err := WriteList(&buf, l); err != nil {
		return err
	}
	return AtomicWriteFile(path, buf.Bytes(), 0o644)
}
