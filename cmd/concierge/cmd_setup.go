package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/concierge/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Concierge Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.LLM.BaseURL = promptValue(scanner, "LLM base URL", cfg.LLM.BaseURL)
		cfg.LLM.APIKey = promptValue(scanner, "LLM API key", cfg.LLM.APIKey)
		cfg.LLM.Model = promptValue(scanner, "LLM model name", cfg.LLM.Model)

		maxTokensStr := promptValue(scanner, "Max output tokens", strconv.Itoa(cfg.LLM.MaxTokens))
		if n, err := strconv.Atoi(maxTokensStr); err == nil {
			cfg.LLM.MaxTokens = n
		}

		cfg.Timezone = promptValue(scanner, "Timezone", cfg.Timezone)
		cfg.Telegram.Token = promptValue(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		cfg.Brave.APIKey = promptValue(scanner, "Brave API key (optional)", cfg.Brave.APIKey)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// promptValue displays a labeled prompt with a default value and reads user
// input. If the user enters nothing, the default is returned.
func promptValue(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
