package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/concierge/internal/convo"
	"github.com/user/concierge/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadShowCmd, threadDeleteCmd)

	threadShowCmd.Flags().Int("limit", 50, "maximum number of messages to show")
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage conversation threads",
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		threads := convo.NewThreadStore(cfg.ThreadsDir())

		list, err := threads.List(context.Background())
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tSTATUS\tMESSAGES\tTITLE\tUPDATED")
		for _, th := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				th.ThreadID,
				th.ThreadKey,
				th.Status,
				th.MessageCount,
				th.Title,
				th.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Show the messages in a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		limit, _ := cmd.Flags().GetInt("limit")

		threads := convo.NewThreadStore(cfg.ThreadsDir())
		messages := convo.NewMessageStore(cfg.ThreadsDir())

		ctx := context.Background()
		tid := types.ThreadID(args[0])
		if _, err := threads.Get(ctx, tid); err != nil {
			return fmt.Errorf("thread not found: %s", args[0])
		}

		history, err := messages.History(ctx, tid, limit)
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}

		for _, msg := range history {
			ts := time.UnixMilli(msg.TimestampMs).Format("2006-01-02 15:04:05")
			switch msg.Kind {
			case types.KindOperationCall:
				fmt.Fprintf(os.Stdout, "[%s] %s (directive)\n", ts, msg.Role)
			case types.KindOperationResult:
				fmt.Fprintf(os.Stdout, "[%s] %s (result)\n", ts, msg.Role)
			default:
				fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", ts, msg.Role, msg.Content)
			}
		}
		return nil
	},
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Archive a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		threads := convo.NewThreadStore(cfg.ThreadsDir())

		deleted, err := threads.SoftDelete(context.Background(), types.ThreadID(args[0]))
		if err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}
		if !deleted {
			fmt.Fprintf(os.Stdout, "Thread %s was already archived.\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stdout, "Thread %s archived.\n", args[0])
		return nil
	},
}
