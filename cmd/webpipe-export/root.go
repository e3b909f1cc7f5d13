package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arclabs561/webpipe/internal/config"
	"github.com/arclabs561/webpipe/internal/export"
	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/version"
)

var (
	flagOut               string
	flagWebpipeRoot       string
	flagChatvaultBin      string
	flagMaxKeys           int64
	flagTop               int64
	flagIncludePrefixes   []string
	flagExcludeSubstrings []string
	flagVLMReportOut      string
	flagCriticReportOut   string
	flagMusingsReportOut  string
	flagContextReportOut  string
	flagReportSrcSub      string
	flagLogFormat         string
	flagLogLevel          string
)

var rootCmd = &cobra.Command{
	Use:   "webpipe-export",
	Short: "Export webpipe self-optimization telemetry to SQLite",
	Long: `webpipe-export rebuilds a privacy-safe SQLite store from Cursor tool-use
telemetry, webpipe eval transcripts, and .generated eval artifacts.

The store is derived data: every run deletes and recreates it. Free text
never enters the store; only counts, booleans, controlled vocabulary, and
content hashes do.

On success the store path is printed to stdout.`,
	Version: version.Version,
	RunE:    runExport,
}

func init() {
	rootCmd.SetVersionTemplate("webpipe-export version {{.Version}}\n")

	f := rootCmd.Flags()
	f.StringVar(&flagOut, "out", "", "Output SQLite path (default: <webpipe-root>/.generated/webpipe_self_opt.sqlite3)")
	f.StringVar(&flagWebpipeRoot, "webpipe-root", ".", "webpipe repo root")
	f.StringVar(&flagChatvaultBin, "chatvault-bin", "", "Path to chatvault binary (default: ~/.cargo/bin/chatvault)")
	f.Int64Var(&flagMaxKeys, "max-keys", 0, "Max agentKv keys to scan via chatvault (default: 50000)")
	f.Int64Var(&flagTop, "top", 0, "How many tool names to retain (default: 5000)")
	f.StringArrayVar(&flagIncludePrefixes, "include-prefix", nil, "Prefix filter for tool names (repeatable)")
	f.StringArrayVar(&flagExcludeSubstrings, "exclude-substring", nil, "Substring exclusion filter for tool names (repeatable)")
	f.StringVar(&flagVLMReportOut, "vlm-report-out", "", "Optional: write a small VLM report JSON to this path")
	f.StringVar(&flagCriticReportOut, "critic-report-out", "", "Optional: write a small critic report JSON to this path")
	f.StringVar(&flagMusingsReportOut, "judge-musings-report-out", "", "Optional: write a small judge musings report JSON to this path")
	f.StringVar(&flagContextReportOut, "judge-context-report-out", "", "Optional: write a small judge context report JSON to this path")
	f.StringVar(&flagReportSrcSub, "report-src-substring", "", "Restrict report aggregation to transcripts whose path contains this substring")
	f.StringVar(&flagLogFormat, "log-format", "", "Log format: human or json")
	f.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// resolveConfig layers CLI flags over .webpipe/config.json over
// defaults.
func resolveConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flagWebpipeRoot)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagOut != "" {
		cfg.Out = flagOut
	}
	if flagChatvaultBin != "" {
		cfg.Chatvault.Bin = flagChatvaultBin
	}
	if flagMaxKeys > 0 {
		cfg.Chatvault.MaxKeys = flagMaxKeys
	}
	if flagTop > 0 {
		cfg.Chatvault.Top = flagTop
	}
	if len(flagIncludePrefixes) > 0 {
		cfg.Chatvault.IncludePrefixes = flagIncludePrefixes
	}
	if len(flagExcludeSubstrings) > 0 {
		cfg.Chatvault.ExcludeSubstrings = flagExcludeSubstrings
	}
	if flagVLMReportOut != "" {
		cfg.Reports.VLMOut = flagVLMReportOut
	}
	if flagCriticReportOut != "" {
		cfg.Reports.CriticOut = flagCriticReportOut
	}
	if flagMusingsReportOut != "" {
		cfg.Reports.JudgeMusingsOut = flagMusingsReportOut
	}
	if flagContextReportOut != "" {
		cfg.Reports.JudgeContextOut = flagContextReportOut
	}
	if flagReportSrcSub != "" {
		cfg.Reports.SrcSubstring = flagReportSrcSub
	}
	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	summary, err := export.Run(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.StorePath)
	return nil
}
