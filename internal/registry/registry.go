package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Status of a registry record.
type Status string

const (
	StatusOK     Status = "ok"
	StatusError  Status = "error"
	StatusExists Status = "exists"
)

// Record is one line of the download registry.
type Record struct {
	ID          string    `json:"id"`
	PageURL     string    `json:"page_url,omitempty"`
	VisURL      string    `json:"vis_url,omitempty"`
	ExportURL   string    `json:"export_url,omitempty"`
	Output      string    `json:"output,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key identifies the downloaded resource of a record.
func (r Record) Key() string {
	switch {
	case r.ExportURL != "":
		return r.ExportURL
	case r.VisURL != "":
		return r.VisURL
	default:
		return r.PageURL
	}
}

// Registry is an append-only JSONL log of processed resources plus the
// in-memory set of keys already completed.
type Registry struct {
	mu     sync.Mutex
	w      *Writer
	done   map[string]struct{}
	counts map[Status]int
}

// Open opens the registry at path. With resume, keys of earlier successful
// records count as done; otherwise the file is truncated.
func Open(path string, resume bool) (*Registry, error) {
	r := &Registry{done: make(map[string]struct{}), counts: make(map[Status]int)}

	if resume {
		prior, err := ReadAll[Record](path, func(n int, err error) {
			log.Warn().Str("registry", path).Int("line", n).Err(err).Msg("Skipping unreadable registry line")
		})
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
		for _, rec := range prior {
			if rec.Status == StatusOK || rec.Status == StatusExists {
				r.done[rec.Key()] = struct{}{}
			}
		}
	}

	var err error
	if resume {
		r.w, err = OpenAppend(path)
	} else {
		r.w, err = Create(path)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Seen reports whether key was completed earlier.
func (r *Registry) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.done[key]
	return ok
}

// Claim marks key as taken and reports whether the caller is the first to
// claim it.
func (r *Registry) Claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.done[key]; ok {
		return false
	}
	r.done[key] = struct{}{}
	return true
}

// Append appends rec, filling ID and CreatedAt when empty.
func (r *Registry) Append(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.counts[rec.Status]++
	if rec.Status == StatusOK {
		r.done[rec.Key()] = struct{}{}
	}
	r.mu.Unlock()
	return r.w.Write(rec)
}

// Counts returns how many records of each status were added in this run.
func (r *Registry) Counts() map[Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Status]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Close closes the underlying file.
func (r *Registry) Close() error {
	return r.w.Close()
}
