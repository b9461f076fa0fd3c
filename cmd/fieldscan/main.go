package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/metrics"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/pipeline"
	"github.com/fieldscan/fieldscan-backend/pkg/config"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

const programName = "fieldscan"

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errSLAViolated) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// ConfigName selects the config file and log service name.
	ConfigName string

	// Pipeline is built on first use unless an Extractor is injected.
	Pipeline *pipeline.Pipeline

	// Services for end-to-end testing.
	Extractor  Extractor
	Usage      func() fallback.CostSummary
	ResetUsage func()
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{ConfigName: programName}
}

// Close stops the pipeline background loops.
func (m *Main) Close() {
	if m.Pipeline != nil {
		m.Pipeline.Close()
	}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
		Log:    logger.Nop(),
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name(programName),
		kong.Description("Batch extraction and benchmarking for license cards and system screens."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'fieldscan --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if m.Extractor == nil {
		cfg, err := config.Load(m.ConfigName)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log := logger.NewWithWriter(stderr, m.ConfigName, cfg.Server.Environment)
		p, err := pipeline.Build(ctx, cfg, metrics.New(m.ConfigName), log)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: check FIELDSCAN_FALLBACK_PROVIDER and FIELDSCAN_FALLBACK_API_KEY")
			return fmt.Errorf("failed to build extraction pipeline: %w", err)
		}
		m.Pipeline = p
		defer m.Close()

		m.Extractor = p.Service
		m.Usage = p.Usage.Summary
		m.ResetUsage = p.Usage.Reset
		deps.Log = log
	}

	deps.Extractor = m.Extractor
	deps.Usage = m.Usage
	if deps.Usage == nil {
		deps.Usage = func() fallback.CostSummary { return fallback.CostSummary{} }
	}
	deps.ResetUsage = m.ResetUsage
	if deps.ResetUsage == nil {
		deps.ResetUsage = func() {}
	}

	return kongCtx.Run(deps)
}
