// ====================================
// File: cmd/fairlaunch/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/app"
	"github.com/rovshanmuradov/fairlaunch/internal/config"
	"github.com/rovshanmuradov/fairlaunch/internal/logger"
)

const usage = `usage: fairlaunch [-config path] [serve|init-curve]

  serve        run the backend (default)
  init-curve   send the one-time initialize instruction of the curve program
`

func main() {
	configPath := flag.String("config", "", "path to config file (json/yaml), optional")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := "serve"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Options{Debug: cfg.DebugLogging, FilePath: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	code := run(command, cfg, log)

	_ = log.Sync()
	_ = closeLog()
	os.Exit(code)
}

func run(command string, cfg *config.Config, log *zap.Logger) int {
	ctx := context.Background()
	runner := app.NewRunner(cfg, log)

	switch command {
	case "serve":
		if err := runner.Run(ctx); err != nil {
			log.Error("Backend stopped with error", zap.Error(err))
			return 1
		}
	case "init-curve":
		sig, err := runner.InitCurve(ctx)
		if err != nil {
			log.Error("Initialize failed", zap.String("signature", sig), zap.Error(err))
			return 1
		}
		fmt.Println(sig)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}
