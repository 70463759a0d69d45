// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/arxivsearch"
	"github.com/poiesic/arxivsearch/config"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/ingestion"
	"github.com/urfave/cli/v2"
)

// Exit codes
const (
	ExitOK               = 0
	ExitError            = 1
	ExitUsage            = 2
	ExitStoreUnreachable = 3
	ExitSourceNotFound   = 4
	ExitBatchFailure     = 5
)

func main() {
	r := &runner{
		lookup: os.LookupEnv,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(r.run(os.Args))
}

// runner holds what the commands read from the outside world.
type runner struct {
	lookup     config.LookupFunc
	stdout     io.Writer
	stderr     io.Writer
	appOptions []arxivsearch.AppOption
}

func (r *runner) run(args []string) int {
	err := r.newApp().Run(args)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(r.stderr, "error:", err)

	var batchErr *ingestion.BatchError
	if errors.As(err, &batchErr) {
		fmt.Fprintf(r.stderr, "batches before %d are committed; resume with: arxivsearch ingest --resume\n", batchErr.Part)
		fmt.Fprintf(r.stderr, "or retry the range explicitly: arxivsearch ingest %d END\n", batchErr.Part)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, core.ErrUsage):
		return ExitUsage
	case errors.Is(err, core.ErrStoreUnreachable):
		return ExitStoreUnreachable
	case errors.Is(err, core.ErrSourceNotFound):
		return ExitSourceNotFound
	case ingestion.IsBatchFailure(err):
		return ExitBatchFailure
	default:
		return ExitError
	}
}

func usageError(c *cli.Context, err error, isSubcommand bool) error {
	return fmt.Errorf("%w: %v", core.ErrUsage, err)
}

func (r *runner) newApp() *cli.App {
	return &cli.App{
		Name:  "arxivsearch",
		Usage: "Semantic search over arXiv paper metadata",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file if it exists",
				Value: ".env",
			},
		},
		Before:          r.setup,
		Writer:          r.stdout,
		ErrWriter:       r.stderr,
		OnUsageError:    usageError,
		ExitErrHandler:  func(*cli.Context, error) {},
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Embed the source file into the vector store",
				ArgsUsage: "[BATCH | START END]",
				Description: "With no arguments every batch is ingested. One argument ingests only that batch;\n" +
					"two arguments ingest the half-open range [START, END).",
				Action:       r.ingestCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Start after the last committed batch of the previous run",
					},
					&cli.BoolFlag{
						Name:  "skip-unchanged",
						Usage: "Skip documents whose stored text is unchanged",
					},
					&cli.BoolFlag{
						Name:  "pipelined",
						Usage: "Embed the next batch while the current one is written",
					},
					&cli.BoolFlag{
						Name:  "on-disk",
						Usage: "Stage cleaned documents on disk instead of in memory",
					},
				},
			},
			{
				Name:         "search",
				Usage:        "Find papers similar to a query",
				ArgsUsage:    "QUERY",
				Action:       r.searchCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of results",
						Value:   5,
					},
					&cli.StringSliceFlag{
						Name:  "year",
						Usage: "Restrict results to a publication year (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Log each search step at info level",
					},
				},
			},
			{
				Name:         "trend",
				Usage:        "Count matching papers per year",
				ArgsUsage:    "TOPIC",
				Action:       r.trendCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "from",
						Usage:    "First year",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "to",
						Usage:    "Last year (inclusive)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of matches the counts are computed over",
						Value: 5000,
					},
				},
			},
			{
				Name:         "ask",
				Usage:        "Answer a question from the most relevant papers",
				ArgsUsage:    "QUESTION",
				Action:       r.askCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of papers given to the model",
						Value: 10,
					},
				},
			},
			{
				Name:         "live",
				Usage:        "Search the public arXiv API instead of the local index",
				ArgsUsage:    "QUERY",
				Action:       r.liveCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of results",
						Value:   3,
					},
				},
			},
			{
				Name:         "reembed",
				Usage:        "Re-embed every stored paper with the configured embedding model",
				Action:       r.reembedCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entries to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entries",
						Value: 100,
					},
				},
			},
			{
				Name:         "status",
				Usage:        "Show store size and ingestion checkpoint",
				Action:       r.statusCommand,
				OnUsageError: usageError,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Forget the checkpoint for the configured source",
					},
				},
			},
		},
	}
}

func (r *runner) setup(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}
	return setupLogger(c, r.stderr)
}

// openApp loads and validates the configuration for purpose and opens the
// application.
func (r *runner) openApp(purpose config.Purpose) (*arxivsearch.App, error) {
	cfg, err := config.Load(r.lookup)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(purpose); err != nil {
		return nil, err
	}
	app, err := arxivsearch.NewApp(cfg, r.appOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to open application: %w", err)
	}
	return app, nil
}

func setupLogger(c *cli.Context, w io.Writer) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("%w: invalid log level %q: must be one of debug, info, warn, error", core.ErrUsage, levelStr)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
