package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nbrem108/sprintdeck/internal/api"
	"github.com/nbrem108/sprintdeck/internal/config"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/report"
	"github.com/nbrem108/sprintdeck/internal/tracker"
)

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a sprint review report",
	Long: `Export a sprint review report.

The report is composed from the issue tracker (configure tracker.base_url
and tracker.board_id) or read from a JSON file via --input.

Examples:
  sprintdeck export --format pdf
  sprintdeck export --board 10 --sprint 42 --format all --output ./out
  sprintdeck export --input review.json --format html
  sprintdeck export --format markdown --async`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		board, _ := cmd.Flags().GetInt("board")
		sprintID, _ := cmd.Flags().GetInt("sprint")
		format, _ := cmd.Flags().GetString("format")
		quality, _ := cmd.Flags().GetString("quality")
		outDir, _ := cmd.Flags().GetString("output")
		async, _ := cmd.Flags().GetBool("async")

		req, err := buildExportRequest(ctx, input, board, sprintID)
		if err != nil {
			return err
		}
		req.Options.Quality = model.Quality(quality)

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if format == "all" {
			if async {
				return fmt.Errorf("--async cannot be combined with --format all")
			}
			g, gctx := errgroup.WithContext(ctx)
			for _, f := range model.Formats() {
				g.Go(func() error {
					return runExport(gctx, client, req, f, outDir)
				})
			}
			return g.Wait()
		}

		if async {
			body := req
			body.Options.Format = model.Format(format)
			resp, err := client.post(ctx, "/exports", body)
			if err != nil {
				return err
			}
			var queued struct {
				ID string `json:"id"`
			}
			if err := decodeJSON(resp, &queued); err != nil {
				return err
			}
			printSuccess("Queued export job %s", queued.ID)
			printStep("Check progress with: sprintdeck jobs show %s", queued.ID)
			return nil
		}

		return runExport(ctx, client, req, model.Format(format), outDir)
	},
}

func init() {
	exportCmd.Flags().String("input", "", "JSON file with presentation, issues, and metrics")
	exportCmd.Flags().Int("board", 0, "tracker board ID (default: tracker.board_id from config)")
	exportCmd.Flags().Int("sprint", 0, "sprint ID (default: the board's active sprint)")
	exportCmd.Flags().String("format", "markdown", `target format, or "all"`)
	exportCmd.Flags().String("quality", "medium", "quality tier: low, medium, or high")
	exportCmd.Flags().String("output", ".", "output directory")
	exportCmd.Flags().Bool("async", false, "enqueue the export and return immediately")
}

// buildExportRequest assembles the export body from a JSON file or by
// fetching the sprint from the configured tracker.
func buildExportRequest(ctx context.Context, input string, board, sprintID int) (api.ExportRequest, error) {
	var req api.ExportRequest

	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return req, fmt.Errorf("reading input file: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parsing %s: %w", input, err)
		}
		if req.Presentation == nil {
			return req, fmt.Errorf("%s has no presentation", input)
		}
		return req, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return req, err
	}
	if cfg.Tracker.BaseURL == "" {
		return req, fmt.Errorf("tracker not configured; set tracker.base_url or use --input")
	}
	if board == 0 {
		board = cfg.Tracker.BoardID
	}
	if board == 0 {
		return req, fmt.Errorf("no board; pass --board or set tracker.board_id")
	}

	tc := tracker.New(cfg.Tracker.BaseURL, cfg.Tracker.Token)

	sprints, err := tc.FetchSprints(ctx, board)
	if err != nil {
		return req, err
	}

	var sprint *model.Sprint
	if sprintID > 0 {
		for i := range sprints {
			if sprints[i].ID == sprintID {
				sprint = &sprints[i]
				break
			}
		}
		if sprint == nil {
			return req, fmt.Errorf("sprint %d not found on board %d", sprintID, board)
		}
	} else {
		for i := range sprints {
			if sprints[i].State == "active" {
				sprint = &sprints[i]
				break
			}
		}
		if sprint == nil {
			return req, fmt.Errorf("board %d has no active sprint; pass --sprint", board)
		}
	}

	printStep("Fetching issues for sprint %q...", sprint.Name)
	issues, err := tc.FetchSprintIssues(ctx, sprint.ID)
	if err != nil {
		return req, err
	}

	metrics := report.DeriveMetrics(issues)
	req.Presentation = report.Compose(sprint, issues, metrics)
	req.Issues = issues
	req.Upcoming = upcomingIssues(ctx, tc, sprints, sprint.ID)
	req.Metrics = metrics
	return req, nil
}

// upcomingIssues pulls the first future sprint's issues for the "next
// sprint" section. Best effort; a report without it is still valid.
func upcomingIssues(ctx context.Context, tc *tracker.Client, sprints []model.Sprint, currentID int) []model.Issue {
	for _, s := range sprints {
		if s.State != "future" || s.ID == currentID {
			continue
		}
		issues, err := tc.FetchSprintIssues(ctx, s.ID)
		if err != nil {
			printWarning("could not fetch upcoming issues for sprint %q: %v", s.Name, err)
			return nil
		}
		return issues
	}
	return nil
}

func runExport(ctx context.Context, client *apiClient, req api.ExportRequest,
	f model.Format, outDir string) error {
	body := req
	body.Options.Format = f

	resp, err := client.post(ctx, "/export", body)
	if err != nil {
		return err
	}

	var result struct {
		FileName      string `json:"file_name"`
		ByteSize      int    `json:"byte_size"`
		ContentBase64 string `json:"content_base64"`
		CacheHit      bool   `json:"cache_hit"`
		QualityReport *struct {
			Score  float64 `json:"score"`
			Status string  `json:"status"`
		} `json:"quality_report"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return fmt.Errorf("%s: %w", f, err)
	}

	payload, err := base64.StdEncoding.DecodeString(result.ContentBase64)
	if err != nil {
		return fmt.Errorf("%s: decoding payload: %w", f, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(outDir, result.FileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	note := ""
	if result.CacheHit {
		note = " (cached)"
	}
	if result.QualityReport != nil {
		printSuccess("%s: %s, %d bytes, quality %.0f/%s%s",
			f, path, result.ByteSize, result.QualityReport.Score, result.QualityReport.Status, note)
	} else {
		printSuccess("%s: %s, %d bytes%s", f, path, result.ByteSize, note)
	}
	return nil
}

// --- formats ---

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported export formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/formats")
		if err != nil {
			return err
		}

		var formats []struct {
			Format    string `json:"format"`
			Extension string `json:"extension"`
		}
		if err := decodeJSON(resp, &formats); err != nil {
			return err
		}

		for _, f := range formats {
			fmt.Printf("  %s (.%s)\n", colorize(colorBold, f.Format), f.Extension)
		}
		return nil
	},
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect async export jobs",
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an export job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/exports/"+args[0])
		if err != nil {
			return err
		}

		var job struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			Attempts   int    `json:"attempts"`
			LastError  string `json:"last_error"`
			ResultPath string `json:"result_path"`
		}
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printStatus("Job", "%s", job.ID)
		printStatus("Status", "%s", job.Status)
		if job.Attempts > 0 {
			printStatus("Attempts", "%d", job.Attempts)
		}
		if job.LastError != "" {
			printStatus("Last error", "%s", job.LastError)
		}
		if job.ResultPath != "" {
			printStatus("Artifact", "%s", job.ResultPath)
		}
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsShowCmd)
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show export and cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Exports struct {
				TotalStarted   int            `json:"total_started"`
				TotalCompleted int            `json:"total_completed"`
				TotalFailed    int            `json:"total_failed"`
				CacheHits      int            `json:"cache_hits"`
				ByFormat       map[string]int `json:"by_format"`
				AvgDurationMS  float64        `json:"avg_duration_ms"`
			} `json:"exports"`
			Cache struct {
				Entries    int     `json:"entries"`
				TotalBytes int     `json:"total_bytes"`
				HitRate    float64 `json:"hit_rate"`
				Strategy   string  `json:"strategy"`
			} `json:"cache"`
			ErrorsByCode map[string]int `json:"errors_by_code"`
			RecoveryRate float64        `json:"recovery_rate"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Exports", "%d completed, %d failed of %d started",
			stats.Exports.TotalCompleted, stats.Exports.TotalFailed, stats.Exports.TotalStarted)
		printStatus("Cache hits", "%d", stats.Exports.CacheHits)
		printStatus("Avg duration", "%.0fms", stats.Exports.AvgDurationMS)
		for f, n := range stats.Exports.ByFormat {
			printStatus("  "+f, "%d", n)
		}
		printStatus("Cache", "%d entries, %d bytes, hit rate %.2f (%s)",
			stats.Cache.Entries, stats.Cache.TotalBytes, stats.Cache.HitRate, stats.Cache.Strategy)
		if len(stats.ErrorsByCode) > 0 {
			printStatus("Recovery rate", "%.2f", stats.RecoveryRate)
			for code, n := range stats.ErrorsByCode {
				printStatus("  "+code, "%d", n)
			}
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent export events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var events []struct {
			CreatedAt string `json:"created_at"`
			Format    string `json:"format"`
			Event     string `json:"event"`
			ByteSize  int    `json:"byte_size"`
			CacheHit  bool   `json:"cache_hit"`
			ErrorCode string `json:"error_code"`
		}
		if err := decodeJSON(resp, &events); err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No export events recorded.")
			return nil
		}

		for _, e := range events {
			detail := ""
			switch {
			case e.ErrorCode != "":
				detail = colorize(colorRed, e.ErrorCode)
			case e.CacheHit:
				detail = "cached"
			case e.ByteSize > 0:
				detail = fmt.Sprintf("%d bytes", e.ByteSize)
			}
			fmt.Printf("%s  %-10s %-9s %s\n",
				e.CreatedAt, colorize(colorCyan, e.Format), e.Event, detail)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of events to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
