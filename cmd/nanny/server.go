package main

import (
	"context"
	"encoding/json"
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

	"github.com/kalambet/nanny/internal/api"
	"github.com/kalambet/nanny/internal/chat"
	"github.com/kalambet/nanny/internal/composer"
	"github.com/kalambet/nanny/internal/config"
	"github.com/kalambet/nanny/internal/history"
	"github.com/kalambet/nanny/internal/ingest"
	"github.com/kalambet/nanny/internal/knowledge"
	"github.com/kalambet/nanny/internal/llm"
	"github.com/kalambet/nanny/internal/pipeline"
	"github.com/kalambet/nanny/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the nanny server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running nanny server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show nanny server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "nanny.pid")
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

func logLevel(s string) slog.Level {
	if strings.EqualFold(s, "debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// newCompleter returns nil when no credential is configured.
func newCompleter(cfg config.LLMConfig) pipeline.Completer {
	if !cfg.HasCredential() {
		return nil
	}
	opts := llm.DefaultOptions()
	opts.BaseURL = cfg.BaseURL
	opts.Model = cfg.Model
	opts.MaxTokens = cfg.MaxTokens
	opts.Temperature = cfg.Temperature
	opts.Timeout = cfg.RequestTimeout()
	return llm.NewClient(cfg.APIKey, opts)
}

func newComposer(style string) *composer.Composer {
	s, err := composer.ParseStyle(style)
	if err != nil {
		slog.Warn("unknown response style, using default", "value", style, "error", err)
		s = composer.StyleWarm
	}
	return composer.New(s)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "nanny version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	// Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("nanny is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("nanny is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	completer := newCompleter(cfg.LLM)
	if completer == nil {
		slog.Info("no language-model key configured, answering from reference material only")
	} else {
		slog.Info("language model configured", "model", cfg.LLM.Model, "base_url", cfg.LLM.BaseURL)
	}

	responder := pipeline.NewResponder(
		knowledge.NewStoreSource(store),
		completer,
		newComposer(cfg.Response.Style),
		pipeline.Options{HistoryTurns: cfg.LLM.HistoryTurns},
	)
	conversations := history.NewStore(store)
	chatSvc := chat.NewService(responder, conversations)

	handler := api.NewHandler(api.Deps{
		Chat:           chatSvc,
		Responder:      responder,
		Conversations:  conversations,
		Documents:      store,
		Model:          cfg.LLM.Model,
		AllowedOrigins: cfg.Server.Origins(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start ingest worker.
	worker := ingest.NewWorker(store, ingest.NewExtractor(nil), 500*time.Millisecond, cfg.Ingest.Workers)
	go worker.Run(ctx)

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Chat:          chatSvc,
			Conversations: conversations,
			Documents:     store,
			Version:       version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "nanny listening on %s\n", addr)
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
		printError("nanny is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop nanny (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to nanny (PID %d)", pid)
	return nil
}

type healthResponse struct {
	Status     string   `json:"status"`
	State      string   `json:"state"`
	Strategies []string `json:"strategies"`
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient.Timeout = 2 * time.Second

	var health healthResponse
	resp, err := client.get(ctx, "/health")
	running := err == nil
	if running {
		if err := decodeJSON(resp, &health); err != nil {
			printStatus("Server", "error (%v)", err)
			running = false
		}
	}

	if running {
		printStatus("Server", "running on port %d", cfg.Server.Port)
		printStatus("Mode", "%s", health.State)
		printStatus("Strategies", "%s", strings.Join(health.Strategies, " → "))
		if docs, err := fetchDocuments(ctx, client, 100); err == nil {
			printStatus("Documents", "%s", countLabel(len(docs), 100))
		}
		var convs []json.RawMessage
		if resp, err := client.get(ctx, "/conversations"); err == nil && decodeJSON(resp, &convs) == nil {
			printStatus("Conversations", "%d", len(convs))
		}
	} else {
		printStatus("Server", "stopped")
		if cfg.LLM.HasCredential() {
			printStatus("Mode", "%s", pipeline.StateHasCredential)
		} else {
			printStatus("Mode", "%s", pipeline.StateNoCredential)
		}
	}

	printStatus("Model", "%s", cfg.LLM.Model)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
