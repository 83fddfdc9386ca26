// Package cli defines the Cobra command tree for the tempo CLI.
// This file contains the root command and shared client construction.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tempo-ai/tempo-go/internal/config"
	"github.com/tempo-ai/tempo-go/internal/dotenv"
	tempo "github.com/tempo-ai/tempo-go/sdk"
)

var (
	baseURLFlag string
	verbose     bool
	version     = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "Voice and chat client for the Tempo calendar assistant",
	Long: `Tempo talks to your calendar assistant from the terminal.
Log in once with "tempo login", then ask questions with "tempo chat"
or hold a realtime voice conversation with "tempo talk".`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Backend base URL (overrides config and TEMPO_BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(talkCmd)
}

// loadConfig resolves the effective configuration: .env file, then the
// config file, then environment, then flags.
func loadConfig() *config.Config {
	_ = dotenv.Load()
	cfg := config.Load()
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if verbose || cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClient builds an SDK client backed by the persisted login token.
func newClient() (*tempo.Client, *slog.Logger, error) {
	cfg := loadConfig()
	logger := newLogger(cfg)

	store, err := tempo.NewFileTokenStore("")
	if err != nil {
		return nil, nil, err
	}

	client := tempo.NewClient(cfg.BaseURL,
		tempo.WithTokenProvider(store),
		tempo.WithLogger(logger),
	)
	return client, logger, nil
}
