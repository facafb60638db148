package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/concierge/internal/calendar"
	"github.com/user/concierge/internal/convo"
	"github.com/user/concierge/internal/delivery"
	"github.com/user/concierge/internal/dispatch"
	"github.com/user/concierge/internal/finance"
	"github.com/user/concierge/internal/gateway"
	"github.com/user/concierge/internal/notes"
	"github.com/user/concierge/internal/ops"
	"github.com/user/concierge/internal/prompt"
	"github.com/user/concierge/internal/schedule"
	"github.com/user/concierge/internal/scheduler"
	"github.com/user/concierge/internal/telegram"
	"github.com/user/concierge/internal/types"
	"github.com/user/concierge/internal/webhook"
	"github.com/user/concierge/pkg/llm"
	"github.com/user/concierge/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the concierge daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "concierge.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Conversation stores
	threads := convo.NewThreadStore(cfg.ThreadsDir())
	messages := convo.NewMessageStore(cfg.ThreadsDir())

	// Domain stores
	calStore, err := calendar.OpenSQLite(cfg.CalendarDBPath())
	if err != nil {
		return fmt.Errorf("open calendar store: %w", err)
	}
	defer calStore.Close()

	expenses, err := finance.Open(cfg.FinanceDBPath())
	if err != nil {
		return fmt.Errorf("open finance store: %w", err)
	}
	defer expenses.Close()

	noteStore := notes.NewStore(cfg.NotesPath())

	planner := schedule.NewPlanner(calStore, loc)

	// Oracle provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	// Prompt engine
	engine, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, loc)
	if err != nil {
		return fmt.Errorf("create prompt engine: %w", err)
	}

	// Operation registry
	registry := dispatch.NewRegistry()
	ops.RegisterAll(registry, planner, expenses, noteStore, cfg.Brave.APIKey, loc)

	// Orchestrator
	orch := dispatch.New(provider, engine, threads, messages, registry, cfg.MaxTurnRounds)

	// Gateway
	gw := gateway.New(threads, messages, int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(orch.ProcessTurn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("concierge started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"timezone", cfg.Timezone,
		"max_concurrent", cfg.MaxConcurrent,
		"max_turn_rounds", cfg.MaxTurnRounds,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"operations", len(registry.Names()),
		"pid_file", pidPath,
	)

	// Task store
	taskStore := scheduler.NewTaskStore(filepath.Join(cfg.TasksDir(), "tasks.json"))

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, threads, messages)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		// Register telegram delivery for scheduled task responses
		deliveryReg.Register("telegram:", func(threadKey, message string) error {
			return adapter.SendTo(threadKey, message)
		})
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Helper: synchronously process a task turn through the gateway.
	processTask := func(threadKey, text string) (string, error) {
		res, err := gw.Process(ctx, &types.InboundMessage{
			Source:    "task",
			ThreadKey: types.ThreadKey(threadKey),
			UserID:    "scheduler",
			Text:      text,
		})
		if err != nil {
			return "", err
		}
		return res.Answer, nil
	}

	// Scheduler
	sched := scheduler.New(taskStore, func(threadKey, text string) {
		answer, err := processTask(threadKey, text)
		if err != nil {
			slog.Error("scheduled task failed", "thread_key", threadKey, "error", err)
			return
		}
		if answer == "" {
			return
		}
		if err := deliveryReg.Deliver(threadKey, answer); err != nil {
			slog.Error("scheduled delivery failed", "thread_key", threadKey, "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// Webhook HTTP server
	if cfg.Webhook.Addr != "" {
		webhookSrv := webhook.NewServer(taskStore, processTask, gw.Process, threads, messages)
		httpServer := &http.Server{
			Addr:    cfg.Webhook.Addr,
			Handler: webhookSrv,
		}
		go func() {
			slog.Info("webhook server started", "addr", cfg.Webhook.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
