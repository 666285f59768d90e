package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/artdevesa7/Agentic-AI-designs/config"
)

const Version = "0.1.0"

var (
	configPath string
	envFile    string

	// cfg is populated by the root pre-run hook.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "agentctl - run market research agents",
	Long: `agentctl drives LLM agents through one of four execution patterns
(react, plan_execute, reflection, multi_agent) with stock market tools and a
research index. Threads are checkpointed after every step and can be resumed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("AGENTIC_CONFIG"),
		"Path to a YAML config file (defaults to AGENTIC_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Dotenv file loaded before the environment is read; a missing file is ignored")

	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(memoryCmd)
}

// loadEnv loads a dotenv file without overriding variables already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
