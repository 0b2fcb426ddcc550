package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Caia-Tech/caia-chartforge/internal/render"
	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
)

// maxRenderSide bounds requested image dimensions.
const maxRenderSide = 4000

// PieRequest is the body of POST /render/pie.
type PieRequest struct {
	Title         string           `json:"title"`
	Subtitle      string           `json:"subtitle"`
	Categories    []chart.Category `json:"categories"`
	Donut         bool             `json:"donut"`
	Format        string           `json:"format"` // png (default) or svg
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	Background    string           `json:"background"` // #RRGGBB, empty for transparent
	MaxCategories int              `json:"max_categories"`
}

// categories groups duplicate labels, drops non-positive values and folds
// the tail into "Other", the same way CSV inputs are aggregated.
func (p *PieRequest) categories() ([]chart.Category, error) {
	var positive float64
	t := &chart.Table{Header: []string{"label", "value"}}
	for _, c := range p.Categories {
		if c.Value > 0 {
			positive += c.Value
		}
		t.Rows = append(t.Rows, []string{c.Label, strconv.FormatFloat(c.Value, 'g', -1, 64)})
	}
	// all-zero values would otherwise fall back to label counts
	if positive <= 0 {
		return nil, chart.ErrNonPositiveTotal
	}
	opts := chart.DefaultAggregateOptions()
	opts.LabelColumn, opts.ValueColumn = 0, 1
	opts.MinCategories = 1
	if p.MaxCategories > 0 {
		opts.MaxCategories = p.MaxCategories
	}
	return chart.Aggregate(t, opts)
}

func (s *Server) renderPie(w http.ResponseWriter, r *http.Request) {
	var req PieRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Categories) == 0 {
		s.sendError(w, http.StatusBadRequest, "No categories", nil)
		return
	}
	if req.Width < 0 || req.Height < 0 || req.Width > maxRenderSide || req.Height > maxRenderSide {
		s.sendError(w, http.StatusBadRequest, "Invalid size", fmt.Errorf("%dx%d", req.Width, req.Height))
		return
	}

	cats, err := req.categories()
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, chart.ErrTooFewCategories) || errors.Is(err, chart.ErrNonPositiveTotal) {
			status = http.StatusUnprocessableEntity
		}
		s.sendError(w, status, "Nothing to draw", err)
		return
	}

	opts := render.Options{
		Width:    req.Width,
		Height:   req.Height,
		Title:    req.Title,
		Subtitle: req.Subtitle,
		Faces:    s.faces,
	}
	if req.Background != "" {
		bg, err := chart.ParseHex(req.Background)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "Invalid background", err)
			return
		}
		opts.Background = bg
	}

	kind := chart.DefaultPie()
	kind.Donut = req.Donut

	var buf bytes.Buffer
	switch req.Format {
	case "svg":
		if err := render.WritePieSVG(&buf, kind, cats, opts); err != nil {
			s.sendError(w, http.StatusInternalServerError, "Render failed", err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
	case "", "png":
		img, err := render.Render(kind, cats, opts)
		if err != nil {
			s.sendError(w, http.StatusInternalServerError, "Render failed", err)
			return
		}
		if err := render.EncodePNG(&buf, img); err != nil {
			s.sendError(w, http.StatusInternalServerError, "Encode failed", err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
	default:
		s.sendError(w, http.StatusBadRequest, "Unsupported format", fmt.Errorf("%q", req.Format))
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write image")
	}
}
