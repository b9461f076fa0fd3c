package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

// Extractor runs one gated extraction. *service.Service satisfies it.
type Extractor interface {
	Extract(ctx context.Context, in service.Input) (domain.Outcome, domain.Report)
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Log        *logger.Logger
	Extractor  Extractor
	Usage      func() fallback.CostSummary
	ResetUsage func()
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Batch BatchCmd `cmd:"" help:"Extract fields from a dataset or a directory of PDFs"`
	Eval  EvalCmd  `cmd:"" help:"Benchmark accuracy and latency against a golden dataset"`
}

// Task is one dataset entry. Schema holds descriptions for batch runs and
// expected values for benchmarks.
type Task struct {
	Label      domain.Category   `json:"label"`
	Schema     json.RawMessage   `json:"extraction_schema"`
	PDFPath    string            `json:"pdf_path"`
	ScreenType domain.ScreenType `json:"tela_sistema_tipo,omitempty"`
}

func loadDataset(path string) ([]Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var tasks []Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, fmt.Errorf("dataset %s must hold a list of tasks: %w", path, err)
	}
	for i := range tasks {
		if tasks[i].Label == domain.CategoryScreen && tasks[i].ScreenType == "" {
			tasks[i].ScreenType = processor.InferScreenType(tasks[i].PDFPath)
		}
	}
	return tasks, nil
}

// loadDir lists every PDF in dir. Names containing "oab" get the license
// superset, everything else the screen superset.
func loadDir(dir string) ([]Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var tasks []Task
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		cat := domain.CategoryScreen
		if strings.Contains(strings.ToLower(name), "oab") {
			cat = domain.CategoryLicense
		}
		prompts, err := json.Marshal(domain.NewFields(schema.Superset(cat), nil))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, Task{Label: cat, Schema: prompts, PDFPath: name})
	}
	return tasks, nil
}

// rawSchema accepts both a JSON object and the "ALL" string
func rawSchema(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// input turns a task into a pipeline input, validating label and schema
func (t Task) input(pdfDir string, useFallback bool) (service.Input, error) {
	if !t.Label.Known() {
		return service.Input{}, fmt.Errorf("unsupported label %q", t.Label)
	}
	if t.PDFPath == "" {
		return service.Input{}, fmt.Errorf("missing pdf_path")
	}
	s, err := schema.Resolve(t.Label, rawSchema(t.Schema))
	if err != nil {
		return service.Input{}, err
	}
	return service.Input{
		Path:        resolvePath(pdfDir, t.PDFPath),
		Category:    t.Label,
		Schema:      s,
		ScreenType:  t.ScreenType,
		UseFallback: useFallback,
	}, nil
}

// writeJSONAtomic writes v indented to path through a temporary sibling
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
