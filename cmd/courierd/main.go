package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/osilveira/courier/internal/config"
	"github.com/osilveira/courier/internal/daemon"
	"github.com/osilveira/courier/internal/session"
)

func main() {
	configFlag := flag.String("config", defaultConfigPath(), "path to config file")
	flag.Parse()

	// Credentials come from the environment, optionally seeded from a .env
	// file in the working directory.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		cfg = config.Default()
	}

	sess, err := session.New(
		os.Getenv("COURIER_TOKEN"),
		os.Getenv("COURIER_USER_ID"),
		os.Getenv("COURIER_USERNAME"),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Config: cfg, Session: sess}),
	)

	app.Run()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".courier", "config.toml")
}
