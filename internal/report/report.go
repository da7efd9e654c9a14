// Package report builds the JSON audit file every sync run leaves behind and
// the short summary printed to stdout.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/errors"
)

// DefaultDir is where reports go when no path is given.
const DefaultDir = "docs/import"

// Sample list bounds.
const (
	MinSampleLimit     = 30
	DefaultSampleLimit = 50
	MaxSampleLimit     = 300
)

// DefaultPath returns docs/import/<script>_report.json.
func DefaultPath(script string) string {
	return filepath.Join(DefaultDir, script+"_report.json")
}

// Report is the durable record of one run.
type Report struct {
	Script     string            `json:"script"`
	RunID      string            `json:"run_id,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DryRun     bool              `json:"dry_run"`
	Workspaces map[string]string `json:"workspaces,omitempty"`
	Options    map[string]any    `json:"options,omitempty"`
	Summary    map[string]int    `json:"summary"`
	Samples    map[string]any    `json:"samples"`

	now func() time.Time
}

// New starts a report.
func New(script, runID string, dryRun bool) *Report {
	r := &Report{
		Script:     script,
		RunID:      runID,
		DryRun:     dryRun,
		Workspaces: make(map[string]string),
		Options:    make(map[string]any),
		Summary:    make(map[string]int),
		Samples:    make(map[string]any),
		now:        func() time.Time { return time.Now().UTC() },
	}
	r.StartedAt = r.now()
	return r
}

// SetWorkspace labels a workspace by role ("source", "target").
func (r *Report) SetWorkspace(role string, ws bible.Workspace) {
	r.Workspaces[role] = ws.String()
}

// SetOption records a run option.
func (r *Report) SetOption(name string, value any) {
	r.Options[name] = value
}

// Set stores a summary count.
func (r *Report) Set(key string, n int) {
	r.Summary[key] = n
}

// Add increments a summary count.
func (r *Report) Add(key string, n int) {
	r.Summary[key] += n
}

// Merge copies every integer field of v, by JSON name, into the summary.
// v is typically a struct of counts.
func (r *Report) Merge(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrap(err, "summary is not an object")
	}
	for k, raw := range fields {
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			r.Summary[k] = n
		}
	}
	return nil
}

// Sample stores at most limit items of a list under key. limit is clamped to
// [MinSampleLimit, MaxSampleLimit]; zero means DefaultSampleLimit.
func Sample[T any](r *Report, key string, items []T, limit int) {
	limit = clampLimit(limit)
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}
	r.Samples[key] = items
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSampleLimit
	case limit < MinSampleLimit:
		return MinSampleLimit
	case limit > MaxSampleLimit:
		return MaxSampleLimit
	}
	return limit
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.FinishedAt = r.now()
}

// Encode writes the report as indented JSON without HTML escaping.
func (r *Report) Encode(w io.Writer) error {
	return encodeJSON(w, r)
}

// Write saves the report to path, creating parent directories. The file is
// replaced atomically.
func (r *Report) Write(path string) error {
	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIO("create directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return errors.NewIO("create temp file", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.NewIO("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIO("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return errors.NewIO("chmod", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.NewIO("rename", path, err)
	}
	return nil
}

// StdoutSummary is what a run prints on success.
type StdoutSummary struct {
	DryRun  bool           `json:"dry_run"`
	Summary map[string]int `json:"summary"`
	Report  string         `json:"report"`
}

// Brief returns the stdout summary for a report saved at path.
func (r *Report) Brief(path string) StdoutSummary {
	return StdoutSummary{DryRun: r.DryRun, Summary: r.Summary, Report: path}
}

// PrintSummary writes s to w as indented JSON.
func PrintSummary(w io.Writer, s StdoutSummary) error {
	return encodeJSON(w, s)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
