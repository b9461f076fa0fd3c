package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
)

// Output modes
const (
	modeFilled  = "filled"
	modePrompts = "prompts"
	modeBoth    = "both"
)

// BatchCmd is the "batch" subcommand.
type BatchCmd struct {
	Source string   `arg:"" help:"Dataset JSON file or directory of PDFs"`
	Args   []string `arg:"" optional:"" help:"PDF directory (dataset mode) and output path"`
	Mode   string   `default:"filled" enum:"filled,prompts,both" help:"Write filled values, the prompts schema or both"`
	LLM    bool     `name:"llm" help:"Enable the language-model fallback pass"`
	Jobs   int      `short:"j" default:"4" help:"Documents processed concurrently"`
}

// batchItem is one consolidated output entry
type batchItem struct {
	Label     domain.Category `json:"label"`
	Schema    any             `json:"extraction_schema"`
	Extracted *domain.Fields  `json:"extracted,omitempty"`
	PDFPath   string          `json:"pdf_path"`
}

type batchResult struct {
	task   Task
	values *domain.Fields
	ok     bool
}

// Run executes the batch command.
func (c *BatchCmd) Run(deps *Dependencies) error {
	tasks, pdfDir, out, err := c.plan()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintf(deps.Stderr, "[WARN] no PDF found in %s\n", pdfDir)
	}

	results := c.process(deps, tasks, pdfDir)

	if strings.EqualFold(filepath.Ext(out), ".json") {
		return c.writeConsolidated(deps, results, out)
	}
	return c.writePerDocument(deps, results, out)
}

// plan resolves positional arguments for dataset or directory mode
func (c *BatchCmd) plan() (tasks []Task, pdfDir, out string, err error) {
	cwd, _ := os.Getwd()
	defaultOut := filepath.Join(cwd, "outputs")

	st, statErr := os.Stat(c.Source)
	switch {
	case statErr == nil && !st.IsDir() && strings.EqualFold(filepath.Ext(c.Source), ".json"):
		if len(c.Args) < 1 {
			return nil, "", "", fmt.Errorf("dataset mode needs a PDF directory")
		}
		pdfDir, out = c.Args[0], defaultOut
		if len(c.Args) > 1 {
			out = c.Args[1]
		}
		tasks, err = loadDataset(c.Source)
	case statErr == nil && st.IsDir():
		pdfDir, out = c.Source, defaultOut
		if len(c.Args) > 0 {
			out = c.Args[0]
		}
		tasks, err = loadDir(pdfDir)
	default:
		return nil, "", "", fmt.Errorf("%s is neither a dataset .json nor a directory", c.Source)
	}
	return tasks, pdfDir, out, err
}

func (c *BatchCmd) process(deps *Dependencies, tasks []Task, pdfDir string) []batchResult {
	results := make([]batchResult, len(tasks))
	needExtract := c.Mode != modePrompts

	g, gctx := errgroup.WithContext(deps.Ctx)
	g.SetLimit(max(c.Jobs, 1))

	for i, t := range tasks {
		results[i].task = t
		in, err := t.input(pdfDir, c.LLM)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "[SKIP] invalid task %s: %v\n", t.PDFPath, err)
			continue
		}
		if !fileExists(in.Path) {
			fmt.Fprintf(deps.Stderr, "[SKIP] PDF not found: %s\n", in.Path)
			continue
		}
		if !needExtract {
			results[i].ok = true
			continue
		}

		g.Go(func() error {
			out, report := deps.Extractor.Extract(gctx, in)
			if report.Error != "" {
				deps.Log.Warn().Str("document", t.PDFPath).Str("error", report.Error).Msg("extraction failed")
				return nil
			}
			values := out.Fields
			if t.Label == domain.CategoryScreen && c.Mode == modeFilled {
				values = pruneToBestLayout(values)
			}
			results[i].values = &values
			results[i].ok = true
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *BatchCmd) writeConsolidated(deps *Dependencies, results []batchResult, path string) error {
	items := make([]batchItem, 0, len(results))
	for _, r := range results {
		if !r.ok {
			continue
		}
		item := batchItem{Label: r.task.Label, PDFPath: r.task.PDFPath}
		switch c.Mode {
		case modeFilled:
			item.Schema = r.values
		case modePrompts:
			item.Schema = r.task.Schema
		case modeBoth:
			item.Schema = r.task.Schema
			item.Extracted = r.values
		}
		items = append(items, item)
	}

	if err := writeJSONAtomic(path, items); err != nil {
		fmt.Fprintf(deps.Stderr, "error: failed to write %s: %v\n", path, err)
		return err
	}
	fmt.Fprintf(deps.Stdout, "[OK] consolidated %d documents -> %s\n", len(items), path)
	return nil
}

func (c *BatchCmd) writePerDocument(deps *Dependencies, results []batchResult, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processed := 0
	for _, r := range results {
		if !r.ok {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(r.task.PDFPath), filepath.Ext(r.task.PDFPath)) + ".json"
		path := filepath.Join(dir, base)

		var v any = r.values
		if c.Mode == modePrompts {
			v = r.task.Schema
		}
		if err := writeJSONAtomic(path, v); err != nil {
			fmt.Fprintf(deps.Stderr, "[ERROR] failed to write %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(deps.Stdout, "[OK] %s -> %s\n", r.task.PDFPath, path)
		processed++
	}

	abs, _ := filepath.Abs(dir)
	fmt.Fprintf(deps.Stdout, "[OK] processed %d | output: %s\n", processed, abs)
	return nil
}

// pruneToBestLayout keeps only the keys of the screen layout that filled the
// most fields. Ties favour C, then B.
func pruneToBestLayout(f domain.Fields) domain.Fields {
	canon := make(map[string]string, f.Len())
	vals := domain.Values{}
	for _, k := range f.Keys() {
		ck := schema.Canonical(domain.CategoryScreen, k)
		if v := f.Get(k); v != "" || canon[ck] == "" {
			canon[ck] = v
		}
		vals.Set(ck, canon[ck])
	}

	keys := schema.LayoutKeys(processor.BestLayout(vals))
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		if k == "data_vencimento" && !contains(f.Keys(), k) {
			k = "data_verncimento"
			keys[i] = k
		}
		out[k] = canon[schema.Canonical(domain.CategoryScreen, k)]
	}
	return domain.NewFields(keys, out)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
