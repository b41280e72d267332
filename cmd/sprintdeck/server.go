package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nbrem108/sprintdeck/internal/analytics"
	"github.com/nbrem108/sprintdeck/internal/api"
	"github.com/nbrem108/sprintdeck/internal/cache"
	"github.com/nbrem108/sprintdeck/internal/classify"
	"github.com/nbrem108/sprintdeck/internal/config"
	"github.com/nbrem108/sprintdeck/internal/export"
	"github.com/nbrem108/sprintdeck/internal/model"
	"github.com/nbrem108/sprintdeck/internal/quality"
	"github.com/nbrem108/sprintdeck/internal/render"
	"github.com/nbrem108/sprintdeck/internal/storage"
	"github.com/nbrem108/sprintdeck/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sprintdeck server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running sprintdeck server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sprintdeck system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "sprintdeck.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func cacheStrategy(name string) cache.Strategy {
	switch strings.ToLower(name) {
	case "fifo":
		return cache.FIFO{}
	case "adaptive":
		return cache.NewAdaptive(0)
	default:
		return cache.LRU{}
	}
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "sprintdeck version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.Token == "" {
		return fmt.Errorf("no API token configured; set SPRINTDECK_AUTH_TOKEN")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	// Refuse to double-start: probe the health endpoint before claiming
	// the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("sprintdeck is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("sprintdeck is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the export pipeline.
	resultCache := cache.New(cache.Config{
		TTL:        time.Duration(cfg.Export.CacheTTLHours) * time.Hour,
		MaxBytes:   cfg.Export.CacheMaxMB << 20,
		MaxEntries: cfg.Export.CacheMaxEntries,
		Strategy:   cacheStrategy(cfg.Export.CacheStrategy),
	})
	go resultCache.RunJanitor(ctx, 5*time.Minute)

	classifier := classify.New(0)
	gate := quality.NewGate(quality.Config{PassThreshold: cfg.Quality.PassThreshold})
	recorder := analytics.NewRecorder(store, slog.Default())
	exporter := export.New(render.NewDefaultRegistry(), resultCache, classifier, gate, recorder,
		export.Config{
			MaxAttempts:    cfg.Export.MaxAttempts,
			BaseDelay:      time.Duration(cfg.Export.BaseDelayMS) * time.Millisecond,
			AttemptTimeout: time.Duration(cfg.Export.AttemptTimeoutSec) * time.Second,
		}, slog.Default())

	// Start the async export worker.
	artifactDir := filepath.Join(cfg.Storage.DataDir, "exports")
	exportWorker := worker.NewWorker(store, exporter, artifactDir, 500*time.Millisecond)
	go exportWorker.Run(ctx)

	// Build HTTP handler and server.
	deps := api.AppDeps{
		Exporter:   exporter,
		Store:      store,
		Cache:      resultCache,
		Classifier: classifier,
		Recorder:   recorder,
		Formats:    model.Formats(),
		Token:      cfg.Auth.Token,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewAppHandler(deps),
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{App: deps})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "sprintdeck listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("sprintdeck is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop sprintdeck (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to sprintdeck (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	serverUp := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			serverUp = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Tracker.BaseURL != "" {
		printStatus("Tracker", "%s (board %d)", cfg.Tracker.BaseURL, cfg.Tracker.BoardID)
	} else {
		printStatus("Tracker", "not configured")
	}

	// Show export totals if the server is running.
	if serverUp && cfg.Auth.Token != "" {
		statsResp, err := apiGet(client, serverURL+"/stats", cfg.Auth.Token)
		if err == nil {
			var stats struct {
				Exports struct {
					TotalCompleted int `json:"total_completed"`
					TotalFailed    int `json:"total_failed"`
				} `json:"exports"`
				Cache struct {
					Entries int `json:"entries"`
				} `json:"cache"`
			}
			if decodeJSON(statsResp, &stats) == nil {
				printStatus("Exports", "%d completed, %d failed",
					stats.Exports.TotalCompleted, stats.Exports.TotalFailed)
				printStatus("Cache", "%d entries", stats.Cache.Entries)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
