package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"labnorm/internal/config"
	"labnorm/internal/conversion"
	"labnorm/internal/listener"
	"labnorm/internal/logging"
	"labnorm/internal/pipeline"
	"labnorm/internal/units"
	"labnorm/internal/util"
)

func normalizeCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "normalize a delimited lab export, optionally converting units",
		ArgsUsage: "<input>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path (.csv, .xlsx or .parquet)"},
			&cli.StringFlag{Name: "conversion", Usage: "conversion table (.xlsx or delimited)"},
			&cli.BoolFlag{Name: "stored", Usage: "convert with the imported conversion table"},
			&cli.BoolFlag{Name: "harmonize", Value: cfg.Harmonize, Usage: "convert each test to its most common unit"},
			&cli.StringFlag{Name: "ranges", Value: cfg.RangesPath, Usage: "plausibility ranges file (YAML)"},
			&cli.BoolFlag{Name: "no-ranges", Usage: "skip plausibility checks"},
			&cli.IntFlag{Name: "chunk-size", Value: cfg.ChunkSize, Usage: "rows per chunk"},
			&cli.IntFlag{Name: "workers", Value: cfg.Workers, Usage: "normalization goroutines per chunk"},
			&cli.StringFlag{Name: "delimiter", Value: cfg.Delimiter, Usage: "field delimiter of input and delimited output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input := cmd.Args().First()
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("input path is required")
			}

			runCfg := *cfg
			runCfg.ChunkSize = cmd.Int("chunk-size")
			runCfg.Workers = cmd.Int("workers")
			runCfg.Delimiter = cmd.String("delimiter")
			runCfg.RangesPath = cmd.String("ranges")
			if err := runCfg.Validate(); err != nil {
				return err
			}

			opts := pipeline.RunOptions{
				InputPath:      input,
				OutputPath:     cmd.String("output"),
				OutputDir:      runCfg.OutputDir,
				ConversionPath: cmd.String("conversion"),
				StoredTable:    cmd.Bool("stored"),
				Harmonize:      cmd.Bool("harmonize"),
				RangesPath:     runCfg.RangesPath,
				SkipRanges:     cmd.Bool("no-ranges"),
			}
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := pipeline.NewProcessingService(db, runCfg).Run(ctx, opts)
			if err != nil {
				return err
			}

			logger := logging.Logger(logging.SourceApp)
			counts := res.Stats.Counts()
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				logger.Info("stat", "key", k, "value", counts[k])
			}
			fmt.Printf("normalize done trace=%s rows=%d written=%d converted=%v output=%s elapsed=%s\n",
				res.TraceID, res.Stats.RowsRead, res.Stats.RowsWritten, res.Converted, res.OutputPath, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
}

func conversionCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "conversion",
		Usage: "manage the stored conversion table",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "replace the stored table with a file",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return fmt.Errorf("table path is required")
					}
					db, err := openDB(cmd)
					if err != nil {
						return err
					}
					defer db.Close()

					n, err := conversion.NewService(db, *cfg).Import(path)
					if err != nil {
						return err
					}
					fmt.Printf("conversion import done rules=%d source=%s\n", n, path)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "print the stored table",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					db, err := openDB(cmd)
					if err != nil {
						return err
					}
					defer db.Close()

					rules, err := db.ListConversionRules()
					if err != nil {
						return err
					}
					for _, r := range rules {
						fmt.Printf("%s\t%s\t%s\t%s\t%s\n", r.Code, r.FromUnit, r.ToUnit, util.FormatNumber(r.Factor), r.Group)
					}
					if source, err := db.GetMetadata("conversion.source"); err == nil && source != nil {
						fmt.Printf("rules=%d source=%s\n", len(rules), *source)
					}
					return nil
				},
			},
		},
	}
}

func unitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "units",
		Usage: "inspect unit harmonization",
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "print the canonical form of raw units",
				ArgsUsage: "<unit>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					for _, raw := range cmd.Args().Slice() {
						token, ok := units.Canonical(raw)
						status := "resolved"
						if !ok {
							status = "unresolved"
						}
						fmt.Printf("%q\t%s\t%s\n", raw, token, status)
					}
					return nil
				},
			},
			{
				Name:      "factor",
				Usage:     "print the multiplier between two units",
				ArgsUsage: "<from> <to>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("expected <from> <to>")
					}
					from, _ := units.Canonical(cmd.Args().Get(0))
					to, _ := units.Canonical(cmd.Args().Get(1))
					f, err := units.ConversionFactor(from, to)
					if err != nil {
						return err
					}
					fmt.Printf("%s -> %s = %s\n", from, to, util.FormatNumber(f))
					return nil
				},
			},
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "show recorded runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print the latest runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					db, err := openDB(cmd)
					if err != nil {
						return err
					}
					defer db.Close()

					runs, err := db.ListRuns(cmd.Int("limit"))
					if err != nil {
						return err
					}
					for _, r := range runs {
						fmt.Printf("%d\t%s\t%s\t%s\t%s\trows=%d written=%d\n",
							r.ID, r.CreatedAt, r.TraceID, r.InputPath, r.OutputPath, r.Counts["rows_read"], r.Counts["rows_written"])
					}
					return nil
				},
			},
		},
	}
}

func watchCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "poll the inbox directory and normalize new exports",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "inbox", Value: cfg.InboxDir, Usage: "directory to poll"},
			&cli.IntFlag{Name: "interval", Value: cfg.WatchIntervalSec, Usage: "seconds between polls"},
			&cli.BoolFlag{Name: "stored", Usage: "convert with the imported conversion table"},
			&cli.BoolFlag{Name: "harmonize", Value: cfg.Harmonize, Usage: "convert each test to its most common unit"},
			&cli.BoolFlag{Name: "once", Usage: "run a single cycle and exit"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			watchCfg := *cfg
			watchCfg.InboxDir = cmd.String("inbox")
			watchCfg.WatchIntervalSec = cmd.Int("interval")

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := listener.NewService(db, watchCfg)
			svc.StoredTable = cmd.Bool("stored")
			svc.Harmonize = cmd.Bool("harmonize")
			if cmd.Bool("once") {
				n, err := svc.RunCycle(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("watch cycle done processed=%d inbox=%s\n", n, watchCfg.InboxDir)
				return nil
			}
			return svc.Run(ctx)
		},
	}
}
