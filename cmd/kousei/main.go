// Command kousei corrects timestamped Japanese lecture transcripts produced
// by speech-to-text systems.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hokomura/kousei/internal/config"
	"github.com/hokomura/kousei/internal/corrector"
	"github.com/hokomura/kousei/internal/evaluate"
	"github.com/hokomura/kousei/internal/health"
	"github.com/hokomura/kousei/internal/history"
	"github.com/hokomura/kousei/internal/observe"
	"github.com/hokomura/kousei/internal/resilience"
	"github.com/hokomura/kousei/internal/watch"
	"github.com/hokomura/kousei/internal/web"
	"github.com/hokomura/kousei/pkg/provider/llm"
	"github.com/hokomura/kousei/pkg/provider/llm/anyllm"
	"github.com/hokomura/kousei/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

var logLevel slog.LevelVar

func run() int {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := args[0]; cmd {
	case "correct":
		err = runCorrect(ctx, args[1:])
	case "batch":
		err = runBatch(ctx, args[1:])
	case "evaluate":
		err = runEvaluate(args[1:])
	case "watch":
		err = runWatch(ctx, args[1:])
	case "serve":
		err = runServe(ctx, args[1:])
	case "history":
		err = runHistory(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "kousei: unknown command %q\n\n", cmd)
		usage()
		return 2
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "kousei: %v\n", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: kousei <command> [flags]

Commands:
  correct   correct a single transcript file
  batch     correct every transcript in a directory
  evaluate  compare an original transcript against its corrected version
  watch     watch a directory and correct transcripts as they appear
  serve     run the correction HTTP server
  history   show recorded correction runs and total spend

Run "kousei <command> -h" for command flags.
`)
}

// ── Configuration ─────────────────────────────────────────────────────────────

// loadConfig loads the YAML config at path, or returns defaults when path is
// empty. It also applies the configured log level.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	logLevel.Set(levelFor(cfg.Server.LogLevel))
	return cfg, nil
}

func levelFor(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Orchestrator wiring ───────────────────────────────────────────────────────

func policyFrom(cfg *config.Config) corrector.Policy {
	return corrector.Policy{
		CorrectionThreshold:     cfg.Policy.CorrectionThreshold,
		LLMUsageThreshold:       cfg.Policy.LLMUsageThreshold,
		PreserveTechnicalTerms:  cfg.Policy.PreserveTechnicalTerms,
		AggressiveFillerRemoval: cfg.Policy.AggressiveFillerRemoval,
		SmartPunctuation:        cfg.Policy.SmartPunctuation,
	}
}

func ratesFrom(cfg *config.Config) corrector.Rates {
	return corrector.Rates{
		InputUSDPerMTok:  cfg.Cost.InputUSDPerMTok,
		OutputUSDPerMTok: cfg.Cost.OutputUSDPerMTok,
	}
}

// newRemoteClient builds the escalation client from the remote config: the
// primary backend plus any fallbacks, each behind its own circuit breaker.
func newRemoteClient(rc config.RemoteConfig) (llm.Client, error) {
	primary, err := backendClient(rc.RemoteBackend, rc)
	if err != nil {
		return nil, fmt.Errorf("remote backend %q: %w", rc.Provider, err)
	}

	group := resilience.NewLLMFallback(primary, backendLabel(rc.RemoteBackend), resilience.FallbackConfig{})
	for _, fb := range rc.Fallbacks {
		client, err := backendClient(fb, rc)
		if err != nil {
			return nil, fmt.Errorf("fallback backend %q: %w", fb.Provider, err)
		}
		group.AddFallback(backendLabel(fb), client)
	}
	return group, nil
}

// backendClient constructs one LLM client. The "openai" provider uses the
// official SDK; every other name is routed through any-llm-go.
func backendClient(b config.RemoteBackend, rc config.RemoteConfig) (llm.Client, error) {
	if strings.EqualFold(b.Provider, "openai") {
		opts := []openai.Option{
			openai.WithTemperature(rc.Temperature),
			openai.WithMaxTokens(rc.MaxTokens),
			openai.WithTimeout(time.Duration(rc.RequestTimeoutSeconds) * time.Second),
		}
		if b.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(b.BaseURL))
		}
		apiKey := b.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.New(apiKey, b.Model, opts...)
	}

	opts := []anyllm.Option{
		anyllm.WithTemperature(rc.Temperature),
		anyllm.WithMaxTokens(rc.MaxTokens),
	}
	if b.APIKey != "" {
		opts = append(opts, anyllm.WithAPIKey(b.APIKey))
	}
	if b.BaseURL != "" {
		opts = append(opts, anyllm.WithBaseURL(b.BaseURL))
	}
	return anyllm.New(b.Provider, b.Model, opts...)
}

func backendLabel(b config.RemoteBackend) string {
	return b.Provider + "/" + b.Model
}

// buildOrchestrator wires a fresh orchestrator (with its own run ledger) from
// the config.
func buildOrchestrator(cfg *config.Config, source string, ruleOnly bool) (*corrector.Orchestrator, error) {
	opts := []corrector.Option{
		corrector.WithWorkers(cfg.Policy.Workers),
		corrector.WithSource(source),
	}
	if cfg.Remote.Enabled && !ruleOnly {
		client, err := newRemoteClient(cfg.Remote)
		if err != nil {
			return nil, err
		}
		opts = append(opts, corrector.WithClient(client))
	}
	return corrector.New(policyFrom(cfg), ratesFrom(cfg), cfg.Cost.MaxUSDPerRun, cfg.CustomTerms, opts...), nil
}

// recordRun persists a finished run when a history database is configured.
func recordRun(ctx context.Context, cfg *config.Config, source string, started time.Time, files int, report corrector.Report) {
	if cfg.History.Path == "" {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("history database unavailable, run not recorded", "error", err)
		return
	}
	defer store.Close()

	rec := history.RunRecord{
		ID:         uuid.NewString(),
		Source:     source,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Files:      files,
		Report:     report,
	}
	if err := store.RecordRun(ctx, rec); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}

func printReport(report corrector.Report) {
	fmt.Fprintf(os.Stderr,
		"segments: %d  escalated: %d  model used: %d  acceptable: %d  success rate: %.0f%%  avg quality: %.2f  cost: $%.4f\n",
		report.Segments, report.Escalated, report.ModelUsed,
		report.AcceptableSegments, report.SuccessRate*100,
		report.AverageQuality, report.EstimatedCostUSD)
}

// ── correct ───────────────────────────────────────────────────────────────────

func runCorrect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("correct", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	outPath := fs.String("out", "", "output file (default: <input>_corrected.txt, or stdout with \"-\")")
	noLLM := fs.Bool("no-llm", false, "disable remote escalation even when configured")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("correct: exactly one input file required")
	}
	inPath := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	o, err := buildOrchestrator(cfg, "file", *noLLM)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	started := time.Now()
	corrected, segments, err := o.CorrectTranscript(ctx, string(data))
	if err != nil {
		return fmt.Errorf("correct %s: %w", inPath, err)
	}

	out := *outPath
	if out == "" {
		ext := filepath.Ext(inPath)
		out = strings.TrimSuffix(inPath, ext) + "_corrected" + ext
	}
	if out == "-" {
		fmt.Print(corrected)
	} else {
		if err := os.WriteFile(out, []byte(corrected), 0o644); err != nil {
			return err
		}
		slog.Info("transcript corrected", "input", inPath, "output", out, "segments", len(segments))
	}

	report := o.Ledger().Report()
	printReport(report)
	recordRun(ctx, cfg, "file", started, 1, report)
	return nil
}

// ── batch ─────────────────────────────────────────────────────────────────────

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	outDir := fs.String("out", "", "output directory (default: <input>_corrected)")
	noLLM := fs.Bool("no-llm", false, "disable remote escalation even when configured")
	workers := fs.Int("workers", 0, "concurrent segment workers (default: config value)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("batch: exactly one input directory required")
	}
	inDir := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Policy.Workers = *workers
	}

	o, err := buildOrchestrator(cfg, "batch", *noLLM)
	if err != nil {
		return err
	}

	result, err := o.ProcessDirectory(ctx, inDir, *outDir)
	if err != nil {
		return err
	}

	slog.Info("batch finished",
		"run_id", result.RunID,
		"files", len(result.Files),
		"failed", result.Failed,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	printReport(result.Totals)
	recordRun(ctx, cfg, "batch", result.StartedAt, len(result.Files), result.Totals)

	// A partially failed batch is still a successful run; only a run where
	// nothing was corrected counts as a failure.
	if result.Failed > 0 && result.Failed == len(result.Files) {
		return fmt.Errorf("batch: all %d files failed", result.Failed)
	}
	return nil
}

// ── evaluate ──────────────────────────────────────────────────────────────────

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	jsonPath := fs.String("json", "", "write the full evaluation as JSON to this file (\"-\" for stdout)")
	fs.Parse(args)

	if fs.NArg() != 2 {
		return errors.New("evaluate: original and corrected transcript files required")
	}

	original, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	corrected, err := os.ReadFile(fs.Arg(1))
	if err != nil {
		return err
	}

	summary, err := evaluate.Compare(string(original), string(corrected))
	if err != nil {
		return err
	}

	if *jsonPath != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if *jsonPath == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(*jsonPath, data, 0o644)
	}

	fmt.Printf("segments: %d  average score: %.3f  character reduction: %d\n",
		len(summary.Segments), summary.AverageScore, summary.CharacterReduction)
	for _, grade := range []evaluate.Grade{evaluate.GradeExcellent, evaluate.GradeGood, evaluate.GradeFair, evaluate.GradePoor} {
		if n := summary.Distribution[grade]; n > 0 {
			fmt.Printf("  %-10s %d\n", grade, n)
		}
	}
	for category, n := range summary.CorrectionCounts {
		fmt.Printf("  %-20s %d\n", category, n)
	}
	return nil
}

// ── watch ─────────────────────────────────────────────────────────────────────

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	outDir := fs.String("out", "", "output directory (default: <input>_corrected)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("watch: exactly one input directory required")
	}
	inDir := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	o, err := buildOrchestrator(cfg, "file", false)
	if err != nil {
		return err
	}

	out := *outDir
	if out == "" {
		out = strings.TrimSuffix(inDir, string(filepath.Separator)) + "_corrected"
	}

	w, err := watch.New(o, inDir, out)
	if err != nil {
		return err
	}

	slog.Info("watching for transcripts, press Ctrl+C to stop", "input", inDir, "output", out)
	return w.Run(ctx)
}

// ── serve ─────────────────────────────────────────────────────────────────────

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	listenAddr := fs.String("listen", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "kousei"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}()

	// The current config is swapped atomically on reload; each correction
	// request builds its orchestrator from the value at request time.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
			diff := config.Diff(old, updated)
			if diff.LogLevelChanged {
				logLevel.Set(levelFor(diff.NewLogLevel))
			}
			current.Store(updated)
			slog.Info("configuration reloaded",
				"log_level_changed", diff.LogLevelChanged,
				"policy_changed", diff.PolicyChanged,
				"custom_terms_changed", diff.CustomTermsChanged,
				"cost_changed", diff.CostChanged)
		})
		if err != nil {
			return err
		}
		defer watcher.Stop()
	}

	factory := func() *corrector.Orchestrator {
		o, err := buildOrchestrator(current.Load(), "web", false)
		if err != nil {
			// Construction fails only on backend config Validate already rejects.
			slog.Error("failed to build remote client, serving rule-only", "error", err)
			c := current.Load()
			return corrector.New(policyFrom(c), ratesFrom(c), c.Cost.MaxUSDPerRun, c.CustomTerms,
				corrector.WithWorkers(c.Policy.Workers), corrector.WithSource("web"))
		}
		return o
	}

	var checkers []health.Checker
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer store.Close()
		checkers = append(checkers, health.Checker{
			Name: "history",
			Check: func(ctx context.Context) error {
				_, err := store.TotalCost(ctx)
				return err
			},
		})
	}

	srv := web.New(cfg.Server.ListenAddr, factory, web.WithHealthCheckers(checkers...))
	return srv.Run(ctx)
}

// ── history ───────────────────────────────────────────────────────────────────

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	dbPath := fs.String("db", "", "history database file (overrides config)")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	fs.Parse(args)

	path := *dbPath
	if path == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		path = cfg.History.Path
	}
	if path == "" {
		return errors.New("history: no database configured; set history.path or pass -db")
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %-6s  %5s  %8s  %9s  %8s\n",
		"ID", "STARTED", "SOURCE", "FILES", "SEGMENTS", "ESCALATED", "COST")
	for _, r := range runs {
		fmt.Printf("%-36s  %-19s  %-6s  %5d  %8d  %9d  $%.4f\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Source,
			r.Files,
			r.Report.Segments,
			r.Report.Escalated,
			r.Report.EstimatedCostUSD)
	}

	total, err := store.TotalCost(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\ntotal recorded spend: $%.4f\n", total)
	return nil
}
