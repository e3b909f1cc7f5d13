// Package export drives one full export: Cursor telemetry, transcript
// events, and eval artifacts into a freshly built SQLite store, plus
// any configured reports.
package export

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arclabs561/webpipe/internal/artifacts"
	"github.com/arclabs561/webpipe/internal/chatvault"
	"github.com/arclabs561/webpipe/internal/config"
	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/report"
	"github.com/arclabs561/webpipe/internal/storage"
	"github.com/arclabs561/webpipe/internal/transcript"
)

// Summary reports what one export run produced.
type Summary struct {
	StorePath              string
	ExportID               string
	ToolCounts             int64
	TranscriptFiles        int64
	TranscriptEvents       int64
	TranscriptLinesSkipped int64
	JudgeSwarmRuns         int64
	VLMRuns                int64
}

// Run performs a complete export per the configuration. The store at
// cfg.Out is replaced. A failed export removes the partial store so a
// consumer never sees a half-built file.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger) (summary *Summary, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !chatvault.Available(cfg.Chatvault.Bin) {
		return nil, fmt.Errorf("chatvault binary not found at %s (set chatvault.bin)", cfg.Chatvault.Bin)
	}

	db, err := storage.OpenFresh(cfg.Out, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		db.Close()
		if err != nil {
			os.Remove(cfg.Out)
		}
	}()

	summary = &Summary{
		StorePath: db.Path(),
		ExportID:  uuid.NewString(),
	}

	meta := map[string]string{
		"generated_at_utc": time.Now().UTC().Format(time.RFC3339),
		"export_id":        summary.ExportID,
		"webpipe_root":     cfg.WebpipeRoot,
		"chatvault_bin":    cfg.Chatvault.Bin,
	}
	for k, v := range meta {
		if err := db.UpsertMeta(k, v); err != nil {
			return nil, fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	payload, err := chatvault.Run(ctx, chatvault.Options{
		Bin:               cfg.Chatvault.Bin,
		MaxKeys:           cfg.Chatvault.MaxKeys,
		Top:               cfg.Chatvault.Top,
		IncludePrefixes:   cfg.Chatvault.IncludePrefixes,
		ExcludeSubstrings: cfg.Chatvault.ExcludeSubstrings,
	}, log)
	if err != nil {
		return nil, err
	}
	summary.ToolCounts, err = chatvault.IngestToolCounts(db, payload, cfg.Chatvault.MaxKeys)
	if err != nil {
		return nil, err
	}

	stats, err := transcript.Ingest(db, cfg.WebpipeRoot, log)
	if err != nil {
		return nil, err
	}
	summary.TranscriptFiles = stats.FilesIngested
	summary.TranscriptEvents = stats.EventsIngested
	summary.TranscriptLinesSkipped = stats.LinesSkipped
	if err := metaCount(db, "webpipe_transcripts_files_ingested", stats.FilesIngested); err != nil {
		return nil, err
	}
	if err := metaCount(db, "webpipe_transcripts_events_ingested", stats.EventsIngested); err != nil {
		return nil, err
	}
	if err := metaCount(db, "webpipe_transcripts_lines_skipped", stats.LinesSkipped); err != nil {
		return nil, err
	}

	summary.JudgeSwarmRuns, err = artifacts.IngestJudgeSwarm(db, cfg.WebpipeRoot, log)
	if err != nil {
		return nil, err
	}
	if err := metaCount(db, "webpipe_eval_judge_swarm_runs_ingested", summary.JudgeSwarmRuns); err != nil {
		return nil, err
	}

	summary.VLMRuns, err = artifacts.IngestVLMRuns(db, cfg.WebpipeRoot, log)
	if err != nil {
		return nil, err
	}
	if err := metaCount(db, "webpipe_eval_vlm_runs_ingested", summary.VLMRuns); err != nil {
		return nil, err
	}

	if err := writeReports(db, cfg, log); err != nil {
		return nil, err
	}

	log.Info("export complete", map[string]interface{}{
		"store":             summary.StorePath,
		"tool_counts":       summary.ToolCounts,
		"transcript_files":  summary.TranscriptFiles,
		"transcript_events": summary.TranscriptEvents,
		"judge_swarm_runs":  summary.JudgeSwarmRuns,
		"vlm_runs":          summary.VLMRuns,
	})
	return summary, nil
}

func metaCount(db *storage.DB, key string, n int64) error {
	if err := db.UpsertMeta(key, strconv.FormatInt(n, 10)); err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

func writeReports(db *storage.DB, cfg *config.Config, log *logging.Logger) error {
	r := cfg.Reports
	if r.VLMOut != "" {
		if err := report.WriteVLM(db, r.VLMOut, log); err != nil {
			return err
		}
	}
	if r.CriticOut != "" {
		if err := report.WriteCritic(db, r.CriticOut, r.SrcSubstring, log); err != nil {
			return err
		}
	}
	if r.JudgeMusingsOut != "" {
		if err := report.WriteJudgeMusings(db, r.JudgeMusingsOut, r.SrcSubstring, log); err != nil {
			return err
		}
	}
	if r.JudgeContextOut != "" {
		if err := report.WriteJudgeContext(db, r.JudgeContextOut, r.SrcSubstring, log); err != nil {
			return err
		}
	}
	return nil
}
