package corrector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileResult records the outcome of one transcript file in a batch run.
type FileResult struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Report Report `json:"report"`
}

// BatchResult summarises a whole directory run.
type BatchResult struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Files      []FileResult `json:"files"`
	Failed     int          `json:"failed"`
	Totals     Report       `json:"totals"`
}

// correctedSuffix marks output files so that re-runs over the same directory
// do not pick up previous results as input.
const correctedSuffix = "_corrected"

// statisticsFile is the per-run summary written next to the corrected files.
const statisticsFile = "batch_statistics.json"

// ProcessDirectory corrects every .txt transcript in inputDir and writes the
// results to outputDir (inputDir + "_corrected" when empty). Files already
// carrying the corrected suffix are skipped. A failing file is recorded and
// the run continues with the next one. A JSON statistics summary is written
// to the output directory alongside the corrected transcripts.
//
// Files are processed one at a time; parallelism happens inside each file
// through the segment worker pool. Per-file reports are ledger deltas taken
// before and after the file, which is only sound while no two files touch
// the ledger concurrently.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, inputDir, outputDir string) (*BatchResult, error) {
	if outputDir == "" {
		outputDir = strings.TrimRight(inputDir, string(filepath.Separator)) + correctedSuffix
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("corrector: read input dir %q: %w", inputDir, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("corrector: create output dir %q: %w", outputDir, err)
	}

	result := &BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".txt" {
			continue
		}
		base := strings.TrimSuffix(name, ".txt")
		if strings.HasSuffix(base, correctedSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inPath := filepath.Join(inputDir, name)
		outPath := filepath.Join(outputDir, base+correctedSuffix+".txt")

		fr, err := o.processFile(ctx, inPath, outPath)
		if err != nil {
			slog.Error("batch file failed, continuing",
				"run_id", result.RunID,
				"file", inPath,
				"error", err)
			result.Failed++
			fr = FileResult{Input: inPath, Error: err.Error()}
		}
		result.Files = append(result.Files, fr)
		result.Totals.merge(fr.Report)
	}

	result.FinishedAt = time.Now()

	if err := writeStatistics(filepath.Join(outputDir, statisticsFile), result); err != nil {
		return nil, err
	}

	slog.Info("batch run finished",
		"run_id", result.RunID,
		"files", len(result.Files),
		"failed", result.Failed,
		"segments", result.Totals.Segments,
		"estimated_cost_usd", result.Totals.EstimatedCostUSD)

	return result, nil
}

// processFile corrects a single transcript file. The per-file report is the
// ledger delta produced by this file's segments.
func (o *Orchestrator) processFile(ctx context.Context, inPath, outPath string) (FileResult, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return FileResult{}, fmt.Errorf("read %q: %w", inPath, err)
	}

	before := o.ledger.Report()
	rendered, _, err := o.CorrectTranscript(ctx, string(data))
	if err != nil {
		return FileResult{}, fmt.Errorf("correct %q: %w", inPath, err)
	}
	after := o.ledger.Report()

	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return FileResult{}, fmt.Errorf("write %q: %w", outPath, err)
	}

	return FileResult{
		Input:  inPath,
		Output: outPath,
		Report: delta(before, after),
	}, nil
}

// delta computes the per-file report from two ledger snapshots.
func delta(before, after Report) Report {
	d := Report{
		Segments:           after.Segments - before.Segments,
		Escalated:          after.Escalated - before.Escalated,
		ModelUsed:          after.ModelUsed - before.ModelUsed,
		AcceptableSegments: after.AcceptableSegments - before.AcceptableSegments,
		InputTokens:        after.InputTokens - before.InputTokens,
		OutputTokens:       after.OutputTokens - before.OutputTokens,
		EstimatedCostUSD:   after.EstimatedCostUSD - before.EstimatedCostUSD,
	}
	if d.Segments > 0 {
		qualitySum := after.AverageQuality*float64(after.Segments) - before.AverageQuality*float64(before.Segments)
		d.AverageQuality = qualitySum / float64(d.Segments)
		d.SuccessRate = float64(d.AcceptableSegments) / float64(d.Segments)
	}
	return d
}

// writeStatistics serialises the batch summary as indented JSON.
func writeStatistics(path string, result *BatchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("corrector: marshal statistics: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("corrector: write statistics %q: %w", path, err)
	}
	return nil
}
