package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dipwatch/internal/app"
	"dipwatch/internal/config"
	"dipwatch/internal/heightlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath, envFile string

	root := &cobra.Command{
		Use:           "dipwatch",
		Short:         "Track a Deep Dip 2 player's live height",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", config.GetEnv(config.EnvConfigPath, "dipwatch.yaml"), "config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets; missing is fine")

	root.AddCommand(newRunCmd(&cfgPath))
	root.AddCommand(newTickCmd(&cfgPath))
	root.AddCommand(newRenderCmd(&cfgPath))
	root.AddCommand(newStatsCmd(&cfgPath))
	root.AddCommand(newMergeCmd(&cfgPath))
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, *cfgPath, app.Options{})
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				_ = a.Close()
				return err
			}

			reason := app.StopSignal
			select {
			case <-ctx.Done():
			case <-a.Done():
				if a.Err() != nil {
					reason = app.StopFatalError
				}
			}
			stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
			defer stopCancel()
			_ = a.Stop(stopCtx, reason)
			return a.Err()
		},
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "graceful shutdown bound")
	return cmd
}

func newTickCmd(cfgPath *string) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one monitoring tick (for cron or CI)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts := app.Options{Report: cmd.OutOrStdout()}
			if quiet {
				opts.Report = nil
			}
			a, err := app.New(ctx, *cfgPath, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			tctx, cancel := context.WithTimeout(ctx, a.Config().TickTimeout())
			defer cancel()
			_, err = a.Tick(tctx)
			return err
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress report")
	return cmd
}

func newRenderCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Re-render the chart from the stored heights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), *cfgPath, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Render(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s (%d points)\n", a.Config().Data.ChartPath, len(doc.DataPoints))
			return nil
		},
	}
}

func newStatsCmd(cfgPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored heights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), *cfgPath, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Recorder().Load(cmd.Context())
			if err != nil {
				return err
			}
			sum := heightlog.Summarize(doc)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			printStats(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStats(w io.Writer, sum heightlog.Summary) {
	height := func(h *float64) string {
		if h == nil {
			return "n/a"
		}
		return heightlog.FloorLabel(*h)
	}
	_, _ = fmt.Fprintf(w, "Player:    %s\n", sum.Player)
	_, _ = fmt.Fprintf(w, "Target:    %.0fm\n", sum.FloorTarget)
	_, _ = fmt.Fprintf(w, "Current:   %s\n", height(sum.Current))
	_, _ = fmt.Fprintf(w, "Peak:      %s\n", height(sum.Peak))
	if sum.Progress != nil {
		_, _ = fmt.Fprintf(w, "Progress:  %.1f%%\n", *sum.Progress)
	}
	_, _ = fmt.Fprintf(w, "Checks:    %d (%d while playing)\n", sum.Checks, sum.Sessions)
	if !sum.First.IsZero() {
		_, _ = fmt.Fprintf(w, "Span:      %s .. %s\n", sum.First.UTC().Format(time.RFC3339), sum.Last.UTC().Format(time.RFC3339))
	}
	if sum.Reached {
		_, _ = fmt.Fprintf(w, "Reached:   %s\n", sum.ReachedAt.UTC().Format(time.RFC3339))
	}
}

func newMergeCmd(cfgPath *string) *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "merge <file>",
		Short: "Backfill samples from a heights document or a JSON array of samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			incoming, err := decodeBackfill(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			a, err := app.New(cmd.Context(), *cfgPath, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Recorder().Load(cmd.Context())
			if err != nil {
				return err
			}
			added := heightlog.Merge(doc, incoming)
			if added > 0 {
				if err := a.Recorder().Replace(cmd.Context(), doc); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "merged %d of %d samples (%d total)\n", added, len(incoming), len(doc.DataPoints))
			if render && added > 0 {
				if _, err := a.Render(cmd.Context()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", true, "re-render the chart after merging")
	return cmd
}

// decodeBackfill accepts either a whole heights document or a bare array of
// samples.
func decodeBackfill(raw []byte) ([]heightlog.Sample, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return heightlog.DecodeSamples(trimmed)
	}
	doc, err := heightlog.Decode(raw)
	if err != nil {
		return nil, err
	}
	return doc.DataPoints, nil
}
