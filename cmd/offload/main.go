// cmd/offload/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/offloadops/offload/internal/app"
	"github.com/offloadops/offload/internal/config"
	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/engine"
	"github.com/offloadops/offload/internal/offload"
	"github.com/offloadops/offload/internal/reconcile"
	"github.com/offloadops/offload/pkg/logger"
	"github.com/urfave/cli/v2"
)

var application *app.App

func setup(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(c.String("log-level"))

	a, err := app.Build(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	application = a
	return nil
}

func teardown(c *cli.Context) error {
	if application != nil {
		application.Close(c.Context)
	}
	return nil
}

func main() {
	cliApp := &cli.App{
		Name:   "offload",
		Usage:  "Migrate local media to object storage and keep it reconciled",
		Before: setup,
		After:  teardown,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run the migration workflow to completion",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "batch-size", Usage: "Items per batch"},
					&cli.BoolFlag{Name: "remove-local", Usage: "Delete local files after a confirmed upload"},
					&cli.BoolFlag{Name: "resume", Usage: "Continue an interrupted run instead of starting fresh"},
					&cli.DurationFlag{Name: "pause-between", Usage: "Delay between batches", Value: 0},
				},
				Action: runMigrate,
			},
			{
				Name:  "reconcile",
				Usage: "Scan the remote store and resolve drift against the catalog",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "batch-size", Usage: "Items per batch"},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "report or mark_found",
						Value: string(domain.ModeReport),
					},
					&cli.DurationFlag{Name: "pause-between", Usage: "Delay between batches", Value: 0},
				},
				Action: runReconcile,
			},
			{
				Name:   "report",
				Usage:  "Print the discrepancy report without mutating anything",
				Action: runReport,
			},
			{
				Name:   "retry",
				Usage:  "Drain the failed-operation queue once",
				Action: runRetry,
			},
			{
				Name:   "status",
				Usage:  "Show the persisted state of every workflow",
				Action: runStatus,
			},
			{
				Name:  "stop",
				Usage: "Clear a workflow's persisted run state",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "workflow", Usage: "Workflow to stop", Required: true},
				},
				Action: runStop,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runMigrate(c *cli.Context) error {
	eng := application.Engines[offload.WorkflowName]
	if !c.Bool("resume") {
		opts := domain.RunOptions{
			BatchSize:   c.Int("batch-size"),
			RemoveLocal: c.Bool("remove-local") || application.Config.Offload.RemoveLocal,
		}
		if opts.BatchSize <= 0 {
			opts.BatchSize = application.Config.Offload.BatchSize
		}
		if _, err := eng.Start(c.Context, opts); err != nil {
			if errors.Is(err, engine.ErrAlreadyRunning) {
				return fmt.Errorf("a run is already in progress; use --resume to continue it or 'stop' to discard it")
			}
			return err
		}
	}
	return drive(c.Context, eng, c.Duration("pause-between"))
}

func runReconcile(c *cli.Context) error {
	mode := domain.ReconcileMode(c.String("mode"))
	if mode != domain.ModeReport && mode != domain.ModeMarkFound {
		return fmt.Errorf("unknown mode %q", c.String("mode"))
	}

	eng := application.Engines[reconcile.WorkflowName]
	opts := domain.RunOptions{BatchSize: c.Int("batch-size"), Mode: mode}
	if _, err := eng.Start(c.Context, opts); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			return fmt.Errorf("a reconciliation is already in progress; 'stop' it first")
		}
		return err
	}
	return drive(c.Context, eng, c.Duration("pause-between"))
}

// drive invokes batches until the run completes or the processor is no
// longer running.
func drive(ctx context.Context, eng *engine.Engine, pause time.Duration) error {
	for {
		result, err := eng.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		if result.Completed {
			state := eng.State(ctx)
			fmt.Printf("done: %d processed, %d failed, %d skipped\n",
				state.Processed, state.Failed, state.Skipped)
			return nil
		}
		if !result.Success {
			fmt.Println(result.Message)
			return nil
		}

		state := eng.State(ctx)
		fmt.Printf("batch %d: %d/%d items, %d failed, %d skipped\n",
			state.CurrentBatch, state.Processed+state.Failed+state.Skipped,
			state.TotalItems, state.Failed, state.Skipped)

		if pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
}

func runReport(c *cli.Context) error {
	report, err := application.Reconciliation.Report(c.Context)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runRetry(c *cli.Context) error {
	summary, err := application.Retrier.RetryAll(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("retries: %d attempted, %d succeeded, %d failed, %d purged\n",
		summary.Attempted, summary.Succeeded, summary.Failed, summary.Purged)
	return nil
}

func runStatus(c *cli.Context) error {
	states := make(map[string]*domain.ProcessorState, len(application.Engines))
	for name, eng := range application.Engines {
		states[name] = eng.State(c.Context)
	}
	return printJSON(states)
}

func runStop(c *cli.Context) error {
	name := c.String("workflow")
	eng, ok := application.Engines[name]
	if !ok {
		return fmt.Errorf("unknown workflow %q", name)
	}
	if err := eng.Stop(c.Context); err != nil {
		return err
	}
	fmt.Printf("%s state cleared\n", name)
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
