// Command mirrorpen rewrites a draft document in the style of a writing
// sample. It reads the draft (and optionally a sample) from disk, runs the
// rewrite pipeline against the configured LLM providers, and writes the
// rewritten text plus an optional JSON analysis report.
//
// Exit codes: 0 on a complete run, 2 when the run finished partially (some
// sentences or chunks kept their original text), 1 on any other error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mirrorpen/mirrorpen/internal/config"
	"github.com/mirrorpen/mirrorpen/internal/health"
	"github.com/mirrorpen/mirrorpen/internal/observe"
	"github.com/mirrorpen/mirrorpen/internal/report"
	"github.com/mirrorpen/mirrorpen/internal/resilience"
	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/internal/styleguide"
	"github.com/mirrorpen/mirrorpen/internal/workflow"
	"github.com/mirrorpen/mirrorpen/pkg/provider/llm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	samplePath := flag.String("sample", "", "path to the writing sample (optional; without it the style guide is derived locally)")
	draftPath := flag.String("draft", "", "path to the draft document to rewrite (required)")
	outPath := flag.String("out", "", "output path for the rewritten text (default: stdout)")
	modeFlag := flag.String("mode", "", `pipeline mode override: "sentence-edit" or "full-text"`)
	reportPath := flag.String("report-json", "", "path for the JSON analysis report (optional)")
	flag.Parse()

	if *draftPath == "" {
		fmt.Fprintln(os.Stderr, "mirrorpen: -draft is required")
		flag.Usage()
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "mirrorpen: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "mirrorpen: %v\n", err)
		}
		return 1
	}
	if *modeFlag != "" {
		cfg.Pipeline.Mode = *modeFlag
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("mirrorpen starting",
		"config", *configPath,
		"mode", cfg.Pipeline.Mode,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Input documents ───────────────────────────────────────────────────────
	draft, err := os.ReadFile(*draftPath)
	if err != nil {
		slog.Error("failed to read draft", "path", *draftPath, "err", err)
		return 1
	}
	var sample []byte
	if *samplePath != "" {
		sample, err = os.ReadFile(*samplePath)
		if err != nil {
			slog.Error("failed to read sample", "path", *samplePath, "err", err)
			return 1
		}
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "mirrorpen"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers and services ────────────────────────────────────────────────
	services, err := buildServices(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Run-report archive (optional) ─────────────────────────────────────────
	var archive *report.Store
	if cfg.Report.PostgresDSN != "" {
		archive, err = report.Open(ctx, cfg.Report.PostgresDSN)
		if err != nil {
			// Archiving is best-effort: a broken archive never blocks a run.
			slog.Warn("run archive unavailable", "err", err)
		} else {
			defer archive.Close()
			slog.Info("run archive connected")
		}
	}

	// ── Metrics server (optional) ─────────────────────────────────────────────
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	g, gctx := errgroup.WithContext(srvCtx)
	if cfg.Server.MetricsAddr != "" {
		startMetricsServer(g, gctx, cfg.Server.MetricsAddr, archive)
	}

	printStartupSummary(cfg, *samplePath, *draftPath)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	runner, err := workflow.NewRunner(cfg.Pipeline.Workflow(), services, workflow.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise pipeline", "err", err)
		return 1
	}

	started := time.Now()
	res, err := runner.Run(ctx, string(sample), string(draft), newProgressPrinter())
	finished := time.Now()
	if err != nil {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Outputs ───────────────────────────────────────────────────────────────
	if err := writeOutputs(cfg.Pipeline.Workflow().Mode, *outPath, res); err != nil {
		slog.Error("failed to write output", "err", err)
		return 1
	}
	if *reportPath != "" {
		if err := writeReport(*reportPath, res, finished.Sub(started)); err != nil {
			slog.Error("failed to write report", "err", err)
			return 1
		}
	}
	if archive != nil {
		rec := report.NewRunRecord(cfg.Pipeline.Workflow().Mode, res, started, finished)
		if err := archive.SaveRun(ctx, &rec); err != nil {
			slog.Warn("failed to archive run", "err", err)
		} else {
			slog.Debug("run archived", "id", rec.ID)
		}
	}

	// Stop the metrics server and wait for it to drain.
	stopServer()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("metrics server error", "err", err)
	}

	slog.Info("run finished",
		"status", res.Status,
		"duration", finished.Sub(started).Round(time.Millisecond),
		"message", res.Message,
	)
	if res.Status == workflow.StatusPartial {
		return 2
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildServices instantiates the configured LLM providers and assembles the
// pipeline services on top of them. When fallback providers are configured,
// both the rewrite service and the style/context extraction are wrapped in
// circuit-breaking fallback chains.
func buildServices(cfg *config.Config) (workflow.Services, error) {
	reg := config.DefaultRegistry()

	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return workflow.Services{}, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	rewriter := resilience.NewRewriteFallback(newRewriteService(primary, cfg.Providers.LLM), cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	extraction := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})

	for _, entry := range cfg.Providers.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return workflow.Services{}, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		rewriter.AddFallback(entry.Name, newRewriteService(p, entry))
		extraction.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}

	return workflow.Services{
		Rewriter:      rewriter,
		ChunkRewriter: rewriter,
		Styles:        styleguide.NewLLMExtractor(extraction),
		Context:       styleguide.NewLLMContextBuilder(extraction),
	}, nil
}

// newRewriteService builds an [rewrite.LLMService] for one provider entry,
// applying the optional sampling overrides from its options map.
func newRewriteService(p llm.Provider, entry config.ProviderEntry) *rewrite.LLMService {
	var opts []rewrite.Option
	if temp, ok := optFloat(entry.Options, "temperature"); ok {
		opts = append(opts, rewrite.WithTemperature(temp))
	}
	if n, ok := optInt(entry.Options, "max_tokens"); ok {
		opts = append(opts, rewrite.WithMaxTokens(n))
	}
	return rewrite.NewLLMService(p, opts...)
}

// ── Metrics server ────────────────────────────────────────────────────────────

// startMetricsServer serves /metrics, /healthz, and /readyz on addr until
// gctx is cancelled. When the run archive is connected, readiness includes a
// database ping.
func startMetricsServer(g *errgroup.Group, gctx context.Context, addr string, archive *report.Store) {
	var checkers []health.Checker
	if archive != nil {
		checkers = append(checkers, health.Checker{Name: "archive", Check: archive.Ping})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// ── Outputs ───────────────────────────────────────────────────────────────────

// writeOutputs writes the rewritten text. In full-text mode the conservative
// and enhanced variants are written next to the standard output file with the
// variant name inserted before the extension; with no -out path only the
// standard variant is printed to stdout.
func writeOutputs(mode workflow.Mode, outPath string, res *workflow.Result) error {
	if outPath == "" {
		fmt.Println(res.Standard)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(res.Standard), 0o644); err != nil {
		return err
	}
	if mode != workflow.ModeFullText {
		return nil
	}
	for variant, text := range map[string]string{
		"conservative": res.Conservative,
		"enhanced":     res.Enhanced,
	} {
		if err := os.WriteFile(variantPath(outPath, variant), []byte(text), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// variantPath inserts a variant name before the file extension:
// "out/draft.txt" becomes "out/draft.conservative.txt".
func variantPath(path, variant string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + variant + ext
}

// runReport is the JSON shape written by -report-json.
type runReport struct {
	Status          workflow.Status `json:"status"`
	Message         string          `json:"message"`
	Chunks          int             `json:"chunks"`
	FailedChunks    int             `json:"failed_chunks,omitempty"`
	FailedSentences int             `json:"failed_sentences,omitempty"`
	DurationMS      int64           `json:"duration_ms"`
	Analysis        any             `json:"analysis,omitempty"`
}

func writeReport(path string, res *workflow.Result, elapsed time.Duration) error {
	data, err := json.MarshalIndent(runReport{
		Status:          res.Status,
		Message:         res.Message,
		Chunks:          res.Chunks,
		FailedChunks:    res.FailedChunks,
		FailedSentences: res.FailedSentences,
		DurationMS:      elapsed.Milliseconds(),
		Analysis:        res.Report,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ── Progress ──────────────────────────────────────────────────────────────────

// newProgressPrinter reports pipeline progress on stderr, one line per stage
// transition plus batch-level counts at debug level.
func newProgressPrinter() workflow.ProgressFunc {
	var lastStage string
	return func(p workflow.Progress) {
		if p.Stage != lastStage {
			lastStage = p.Stage
			slog.Info("pipeline stage", "stage", p.Stage, "total", p.Total)
			return
		}
		slog.Debug("pipeline progress", "stage", p.Stage, "current", p.Current, "total", p.Total)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, samplePath, draftPath string) {
	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║         mirrorpen — startup summary       ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════════╣")
	printEntry("Mode", cfg.Pipeline.Mode)
	printEntry("LLM", providerLabel(cfg.Providers.LLM))
	for _, fb := range cfg.Providers.Fallbacks {
		printEntry("Fallback", providerLabel(fb))
	}
	printEntry("Sample", pathLabel(samplePath))
	printEntry("Draft", pathLabel(draftPath))
	printEntry("Metrics", orDisabled(cfg.Server.MetricsAddr))
	printEntry("Archive", orDisabled(cfg.Report.PostgresDSN))
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════════╝")
}

func providerLabel(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func pathLabel(path string) string {
	if path == "" {
		return "(none)"
	}
	return filepath.Base(path)
}

func orDisabled(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return "enabled"
}

func printEntry(name, value string) {
	if len([]rune(value)) > 23 {
		value = string([]rune(value)[:22]) + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-12s : %-23s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// numbers as int or float64 depending on their spelling, so both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// optInt extracts an integer value from a provider Options map.
func optInt(opts map[string]any, key string) (int, bool) {
	if v, ok := opts[key].(int); ok {
		return v, true
	}
	return 0, false
}
