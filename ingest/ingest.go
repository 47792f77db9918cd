// Package ingest refreshes reference dataset entries from their source documents through the
// field-extraction collaborator.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/patch"
	"github.com/tbxark/rneagent/reference"
)

// AllowedPaths are the only entry fields an ingestion run may touch.
var AllowedPaths = []string{
	"/*/required_documents",
	"/*/deadline",
	"/*/fee",
	"/*/observations",
}

type Failure struct {
	Index      int
	EntityType string
	Procedure  string
	Err        error
}

type Report struct {
	Updated  []int
	Skipped  int
	Failures []Failure
}

type Option func(*Ingester)

// WithBaseDir resolves relative source paths against dir.
func WithBaseDir(dir string) Option {
	return func(i *Ingester) {
		i.baseDir = dir
	}
}

func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(i *Ingester) {
		i.readFile = fn
	}
}

type Ingester struct {
	extractor nlu.FieldExtractor
	baseDir   string
	readFile  func(string) ([]byte, error)
}

func NewIngester(extractor nlu.FieldExtractor, opts ...Option) *Ingester {
	i := &Ingester{
		extractor: extractor,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run extracts fields for every entry that lists sources and merges them into a copy of
// entries. Entries that fail are left unchanged and reported. The error is non-nil only when
// the merged dataset cannot be produced or ctx is done.
func (i *Ingester) Run(ctx context.Context, entries []reference.Entry) ([]reference.Entry, *Report, error) {
	report := &Report{}
	var ops []patch.Operation
	for idx, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		if len(entry.Sources) == 0 {
			report.Skipped++
			continue
		}
		entryOps, err := i.entryOperations(ctx, entry)
		if err == nil {
			entryOps = patch.Prefix("/"+strconv.Itoa(idx), entryOps)
			err = patch.ValidateOperations(entryOps, AllowedPaths)
		}
		if err != nil {
			slog.Warn("Ingestion failed", "entity_type", entry.EntityType, "procedure", entry.Procedure, "error", err)
			report.Failures = append(report.Failures, Failure{
				Index:      idx,
				EntityType: entry.EntityType,
				Procedure:  entry.Procedure,
				Err:        err,
			})
			continue
		}
		if len(entryOps) > 0 {
			report.Updated = append(report.Updated, idx)
			ops = append(ops, entryOps...)
		}
		slog.Debug("Entry ingested", "entity_type", entry.EntityType, "procedure", entry.Procedure, "operations", len(entryOps))
	}

	merged, err := patch.Apply(entries, ops)
	if err != nil {
		return nil, report, fmt.Errorf("merge extracted fields: %w", err)
	}
	if merged == nil {
		merged = []reference.Entry{}
	}
	return merged, report, nil
}

func (i *Ingester) entryOperations(ctx context.Context, entry reference.Entry) ([]patch.Operation, error) {
	text, err := i.sourceText(entry.Sources)
	if err != nil {
		return nil, err
	}
	fields, err := i.extractor.ExtractProcedureFields(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract fields: %w", err)
	}
	return patch.Diff(entry, apply(entry, fields))
}

func (i *Ingester) sourceText(sources []string) (string, error) {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		path := src
		if i.baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(i.baseDir, path)
		}
		data, err := i.readFile(path)
		if err != nil {
			return "", fmt.Errorf("read source %s: %w", src, err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("sources are empty")
	}
	return strings.Join(parts, "\n\n"), nil
}

func apply(entry reference.Entry, fields *nlu.ProcedureFields) reference.Entry {
	target := entry
	if len(fields.Documents) > 0 {
		target.RequiredDocuments = fields.Documents
	}
	if len(fields.Deadlines) > 0 {
		target.Deadline = strings.Join(fields.Deadlines, " ; ")
	}
	if len(fields.Fees) > 0 {
		target.Fee = strings.Join(fields.Fees, " ; ")
	}
	if len(fields.Observations) > 0 {
		target.Observations = fields.Observations
	}
	return target
}

// WriteFile stores entries as indented JSON.
func WriteFile(path string, entries []reference.Entry) error {
	data, err := sonic.ConfigDefault.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// Render prints the report as a table, one row per updated or failed entry.
func (r *Report) Render(w io.Writer, entries []reference.Entry) error {
	table := tablewriter.NewTable(w)
	table.Header("#", "Entity type", "Procedure", "Status")
	for _, idx := range r.Updated {
		if err := table.Append(strconv.Itoa(idx), entries[idx].EntityType, entries[idx].Procedure, "updated"); err != nil {
			return err
		}
	}
	for _, f := range r.Failures {
		if err := table.Append(strconv.Itoa(f.Index), f.EntityType, f.Procedure, "failed: "+f.Err.Error()); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d updated, %d failed, %d without sources\n", len(r.Updated), len(r.Failures), r.Skipped)
	return err
}
