package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/concierge/internal/calendar"
	"github.com/user/concierge/internal/convo"
	"github.com/user/concierge/internal/dispatch"
	"github.com/user/concierge/internal/finance"
	"github.com/user/concierge/internal/gateway"
	"github.com/user/concierge/internal/notes"
	"github.com/user/concierge/internal/ops"
	"github.com/user/concierge/internal/prompt"
	"github.com/user/concierge/internal/schedule"
	"github.com/user/concierge/internal/types"
	"github.com/user/concierge/pkg/llm"
	"github.com/user/concierge/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("thread-key", "cli:default", "thread key for the conversation")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the concierge from the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		threadKey, _ := cmd.Flags().GetString("thread-key")

		loc, err := cfg.Location()
		if err != nil {
			return fmt.Errorf("resolve timezone: %w", err)
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		threads := convo.NewThreadStore(cfg.ThreadsDir())
		messages := convo.NewMessageStore(cfg.ThreadsDir())

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

		provider := openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})

		engine, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, loc)
		if err != nil {
			return fmt.Errorf("create prompt engine: %w", err)
		}

		registry := dispatch.NewRegistry()
		ops.RegisterAll(registry, planner, expenses, noteStore, cfg.Brave.APIKey, loc)

		orch := dispatch.New(provider, engine, threads, messages, registry, cfg.MaxTurnRounds)

		gw := gateway.New(threads, messages, int64(cfg.MaxConcurrent))
		gw.Queue.SetProcessor(orch.ProcessTurn)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		gw.Start(ctx)
		defer gw.Stop()

		fmt.Println("Concierge chat. Type a message, or /quit to exit.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "/quit" || text == "/exit" {
				break
			}

			res, err := gw.Process(ctx, &types.InboundMessage{
				Source:    "cli",
				ThreadKey: types.ThreadKey(threadKey),
				UserID:    "cli",
				Text:      text,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Printf("[%s] %s\n", res.Capability, res.Answer)
		}
		return scanner.Err()
	},
}
