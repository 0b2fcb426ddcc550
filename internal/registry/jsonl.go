// Package registry reads and writes JSONL files, including the append-only
// download registry used to resume interrupted runs.
package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends one JSON document per line. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
}

// Create truncates path and returns a writer for it.
func Create(path string) (*Writer, error) {
	return open(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

// OpenAppend opens path for appending, creating it if needed.
func OpenAppend(path string) (*Writer, error) {
	return open(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
}

func open(path string, flag int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{f: f, buf: buf, enc: enc}, nil
}

// Write encodes v as one line and flushes it so a crash loses at most the
// line being written.
func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	return w.buf.Flush()
}

// WriteRaw writes an already-encoded line as is.
func (w *Writer) WriteRaw(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// maxLine bounds a single JSONL line.
const maxLine = 16 * 1024 * 1024

// ScanLines calls fn for every line of r, including blank ones, without the
// trailing newline.
func ScanLines(r io.Reader, fn func(line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadAll decodes every non-blank line of a JSONL file into T. Lines that do
// not decode are reported through bad and skipped.
func ReadAll[T any](path string, bad func(lineNo int, err error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	n := 0
	err = ScanLines(f, func(line []byte) error {
		n++
		if len(bytes.TrimSpace(line)) == 0 {
			return nil
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			if bad != nil {
				bad(n, err)
			}
			return nil
		}
		out = append(out, v)
		return nil
	})
	return out, err
}
