package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
	"github.com/gorilla/mux"
)

var errOutsideRoot = errors.New("path escapes data root")

// ManifestInfo describes one manifest file under the data root.
type ManifestInfo struct {
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ManifestPage is one page of manifest records.
type ManifestPage struct {
	Name     string            `json:"name"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Records  []json.RawMessage `json:"records"`
}

func manifestFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json"
	case ".jsonl":
		return "jsonl"
	case ".csv":
		return "csv"
	}
	return ""
}

// safeJoin resolves a slash-separated request path inside root.
func safeJoin(root, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", errOutsideRoot
	}
	full := filepath.Join(root, filepath.FromSlash(path.Clean("/"+rel)))
	r, err := filepath.Rel(root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return full, nil
}

func (s *Server) listManifests(w http.ResponseWriter, r *http.Request) {
	root := s.config.DataRoot
	manifests := make([]ManifestInfo, 0)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		format := manifestFormat(d.Name())
		if format == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		manifests = append(manifests, ManifestInfo{
			Name:     filepath.ToSlash(rel),
			Format:   format,
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to list manifests", err)
		return
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	s.sendJSON(w, http.StatusOK, map[string]any{
		"manifests": manifests,
		"total":     len(manifests),
	})
}

func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	format := manifestFormat(name)
	if format == "" {
		s.sendError(w, http.StatusBadRequest, "Unsupported manifest type", nil)
		return
	}
	file, err := safeJoin(s.config.DataRoot, name)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid manifest name", err)
		return
	}

	page, pageSize := s.paging(r)
	records, err := loadRecords(file, format)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.sendError(w, http.StatusNotFound, "Manifest not found", nil)
			return
		}
		s.sendError(w, http.StatusUnprocessableEntity, "Failed to read manifest", err)
		return
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}

	s.sendJSON(w, http.StatusOK, ManifestPage{
		Name:     name,
		Total:    len(records),
		Page:     page,
		PageSize: pageSize,
		Records:  records[start:end],
	})
}

func (s *Server) paging(r *http.Request) (int, int) {
	params := r.URL.Query()

	pageSize, _ := strconv.Atoi(params.Get("page_size"))
	if pageSize <= 0 {
		pageSize = s.config.PageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}

	page, _ := strconv.Atoi(params.Get("page"))
	if page <= 0 {
		page = 1
	}
	return page, pageSize
}

// loadRecords reads a manifest as a list of JSON values. A JSON file holding
// a single object is one record; CSV rows become header-keyed objects.
func loadRecords(file, format string) ([]json.RawMessage, error) {
	switch format {
	case "jsonl":
		if _, err := os.Stat(file); err != nil {
			return nil, err
		}
		recs, err := registry.ReadAll[json.RawMessage](file, nil)
		if recs == nil {
			recs = make([]json.RawMessage, 0)
		}
		return recs, err
	case "csv":
		if _, err := os.Stat(file); err != nil {
			return nil, err
		}
		t, err := chart.ReadCSV(file, chart.ReadOptions{})
		if errors.Is(err, chart.ErrEmptyTable) {
			return make([]json.RawMessage, 0), nil
		}
		if err != nil {
			return nil, err
		}
		out := make([]json.RawMessage, 0, len(t.Rows))
		for _, row := range t.Rows {
			obj := make(map[string]string, len(t.Header))
			for i, h := range t.Header {
				obj[h] = row[i]
			}
			raw, err := json.Marshal(obj)
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
		return out, nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err == nil {
			if arr == nil {
				arr = make([]json.RawMessage, 0)
			}
			return arr, nil
		}
		var one json.RawMessage
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return []json.RawMessage{one}, nil
	}
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	file, err := safeJoin(s.config.DataRoot, mux.Vars(r)["path"])
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid image path", err)
		return
	}
	f, err := os.Open(file)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.sendError(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
