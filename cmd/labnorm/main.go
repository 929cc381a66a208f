package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"labnorm/internal/config"
	"labnorm/internal/logging"
	"labnorm/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.SetLevel(cfg.LogLevel)

	app := &cli.Command{
		Name:  "labnorm",
		Usage: "normalize laboratory results and harmonize their units",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Value: cfg.DBPath,
				Usage: "SQLite database holding the conversion table and run history",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: cfg.LogLevel,
				Usage: "debug|info|warn|error",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetLevel(cmd.String("log-level"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			normalizeCommand(&cfg),
			conversionCommand(&cfg),
			unitsCommand(),
			runsCommand(),
			watchCommand(&cfg),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	must(app.Run(ctx, os.Args))
}

func openDB(cmd *cli.Command) (*storage.DB, error) {
	path := cmd.String("db")
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return db, nil
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
