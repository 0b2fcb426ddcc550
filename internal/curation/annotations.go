// Package curation selects, filters and copies annotated image datasets.
package curation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
)

// Record is one annotation object.
type Record = map[string]any

// ErrNotArray is returned for .json annotation files whose top level is not
// an array.
var ErrNotArray = errors.New("expected a JSON array of objects")

func isJSONL(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".jsonl")
}

// LoadRecords reads a JSON array or, for .jsonl files, one object per line.
// Undecodable JSONL lines and non-object entries are dropped.
func LoadRecords(p string) ([]Record, error) {
	if isJSONL(p) {
		var out []Record
		raw, err := registry.ReadAll[any](p, nil)
		if err != nil {
			return nil, err
		}
		for _, v := range raw {
			if m, ok := v.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var arr []any
	if err := json.Unmarshal(data, &arr); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotArray)
		}
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	out := make([]Record, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// WriteRecords writes JSONL for .jsonl paths and an indented JSON array
// otherwise.
func WriteRecords(p string, recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	if isJSONL(p) {
		w, err := registry.Create(p)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if err := w.Write(r); err != nil {
				w.Close()
				return err
			}
		}
		return w.Close()
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return err
	}
	return os.WriteFile(p, buf.Bytes(), 0644)
}

// NormPath cleans p and uses forward slashes.
func NormPath(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(NormPath(p), "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

// GroupKey returns the directory part of an image path, optionally cut to
// its first top or last tail segments. A final segment containing a dot is
// treated as the file name. Empty means the path has no group.
func GroupKey(p string, top, tail int) string {
	segs := segments(p)
	if len(segs) > 0 && strings.Contains(segs[len(segs)-1], ".") {
		segs = segs[:len(segs)-1]
	}
	switch {
	case top > 0 && len(segs) > top:
		segs = segs[:top]
	case tail > 0 && len(segs) > tail:
		segs = segs[len(segs)-tail:]
	}
	return strings.Join(segs, "/")
}

func writeCSV(p string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := encodeCSV(f, header, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// copyFile copies src to dst, keeping the modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
