// Command biasaudit runs the disaggregated fairness audit as an offline
// batch job. It reads labeled prediction records as JSON and writes the
// structured report; a run with too few samples fails loudly instead of
// producing a partial report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"surasmart/internal/biasaudit"
	"surasmart/internal/platform/config"
	"surasmart/internal/platform/logger"
)

func main() {
	var (
		inPath     = flag.String("in", "-", "predictions JSON file, or - for stdin")
		outPath    = flag.String("out", "-", "report destination, or - for stdout")
		minSamples = flag.Int("min-samples", biasaudit.DefaultMinSamples, "minimum sample count for a valid audit")
		tuneAxis   = flag.String("tune", "", "also tune thresholds for this axis (gender, skin_type, age_group)")
		targetFPR  = flag.Float64("target-fpr", 0, "target false positive rate for tuning (default from config)")
		logLevel   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log := logger.New(*logLevel)
	if err := run(*inPath, *outPath, *minSamples, *tuneAxis, *targetFPR, log); err != nil {
		log.Error("bias audit failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(inPath, outPath string, minSamples int, tuneAxis string, targetFPR float64, log *slog.Logger) error {
	predictions, err := readPredictions(inPath)
	if err != nil {
		return err
	}

	thresholds := config.FromEnv().Thresholds
	if targetFPR == 0 {
		targetFPR = thresholds.TargetFPR
	}
	auditor := biasaudit.New(thresholds, log, biasaudit.WithMinSamples(minSamples))

	report, err := auditor.DisaggregatedEvaluation(context.Background(), predictions)
	if err != nil {
		return err
	}

	output := struct {
		biasaudit.Report
		TunedThresholds map[string]float64 `json:"tuned_thresholds,omitempty"`
	}{Report: report}

	if tuneAxis != "" {
		tuned, err := auditor.TuneThresholds(predictions, tuneAxis, targetFPR)
		if err != nil {
			return err
		}
		output.TunedThresholds = tuned
	}

	if err := writeReport(outPath, output); err != nil {
		return err
	}
	if !report.AuditPassed {
		log.Warn("audit failed the variance check",
			slog.Int("variance_alerts", len(report.VarianceAlerts)))
	}
	return nil
}

func readPredictions(path string) ([]biasaudit.PredictionRecord, error) {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open predictions: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	var predictions []biasaudit.PredictionRecord
	if err := json.NewDecoder(in).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	return predictions, nil
}

func writeReport(path string, report any) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
