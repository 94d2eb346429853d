package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geoload/internal/validate"
)

// Status is the outcome of one file.
type Status string

// File outcomes.
const (
	StatusLoaded   Status = "loaded"   // every feature written
	StatusRejected Status = "rejected" // bad input, nothing written
	StatusFailed   Status = "failed"   // store or read failure, nothing kept
)

// FileResult records what happened to one file.
type FileResult struct {
	File       string            `json:"file" yaml:"file"`
	Status     Status            `json:"status" yaml:"status"`
	Fault      string            `json:"fault,omitempty" yaml:"fault,omitempty"`
	Category   validate.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Reason     string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	Features   int               `json:"features" yaml:"features"`
	Rows       int64             `json:"rows" yaml:"rows"`
	DurationMs int64             `json:"duration_ms" yaml:"duration_ms"`
}

// Totals counts outcomes across a run.
type Totals struct {
	Files    int   `json:"files" yaml:"files"`
	Loaded   int   `json:"loaded" yaml:"loaded"`
	Rejected int   `json:"rejected" yaml:"rejected"`
	Failed   int   `json:"failed" yaml:"failed"`
	Rows     int64 `json:"rows" yaml:"rows"`
}

// Report is the structured result of a run. Files keep listing order.
type Report struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Files      []FileResult `json:"files" yaml:"files"`
	Totals     Totals       `json:"totals" yaml:"totals"`
}

// Failed reports whether any file was rejected or failed.
func (r *Report) Failed() bool {
	return r.Totals.Rejected > 0 || r.Totals.Failed > 0
}

func (r *Report) finish(results []FileResult) {
	r.FinishedAt = time.Now().UTC()
	r.Files = r.Files[:0]
	r.Totals = Totals{}
	for _, fr := range results {
		if fr.File == "" {
			continue // never started
		}
		r.Files = append(r.Files, fr)
		r.Totals.Files++
		r.Totals.Rows += fr.Rows
		switch fr.Status {
		case StatusLoaded:
			r.Totals.Loaded++
		case StatusRejected:
			r.Totals.Rejected++
		case StatusFailed:
			r.Totals.Failed++
		}
	}
}

// WriteFile writes the report as JSON or YAML, chosen by the extension of
// path (.json, .yaml or .yml).
func (r *Report) WriteFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(r, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		return eris.Errorf("pipeline: unsupported report format %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return eris.Wrap(err, "pipeline: encode report")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write report %s", path)
	}
	return nil
}
