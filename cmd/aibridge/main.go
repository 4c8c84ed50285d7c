package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mireles/aibridge/pkg/orchestrator"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: aibridge [flags]\n\nInteractive chat client for the configured AI providers.\n\nFlags:\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "", "path to configuration file (default: aibridge.yaml if present)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	model := flag.String("model", "", "model or alias to chat with (overrides config default)")
	noStream := flag.Bool("no-stream", false, "wait for complete responses instead of streaming")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}
	if *model != "" {
		cfg.DefaultModel = *model
	}

	if err := run(cfg, !*noStream); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadConfig reads the config file when one is available; otherwise the
// configuration comes entirely from environment variables.
func loadConfig(explicit string) (orchestrator.Config, error) {
	path := explicit
	if path == "" {
		if _, err := os.Stat("aibridge.yaml"); err == nil {
			path = "aibridge.yaml"
		}
	}

	if path == "" {
		cfg := orchestrator.DefaultConfig()
		cfg.ApplyEnv()
		return cfg, nil
	}

	return orchestrator.LoadConfig(path)
}
