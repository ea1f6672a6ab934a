package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/compass/internal/location"
	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/UnknownOlympus/compass/internal/tracker"
	"github.com/spf13/cobra"
)

const replayPollInterval = 50 * time.Millisecond

type replayOptions struct {
	env         string
	timeout     time.Duration
	maxRetries  int
	backoffStep time.Duration
	linger      time.Duration
}

func replayCmd() *cobra.Command {
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Drive a tracker from a scripted sequence of fixes and errors",
		Long: `Replay loads a YAML script of readings and platform errors, feeds it to a single
tracker and logs every state transition. It exits once the tracker has failed or the
script is exhausted and the tracker has settled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), args[0], opts)
		},
	}

	defaults := tracker.DefaultConfig()
	cmd.Flags().StringVar(&opts.env, "env", envLocal, "logging environment (local, development, production)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaults.Watch.Timeout, "watch timeout")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", defaults.MaxRetries, "consecutive failures tolerated")
	cmd.Flags().DurationVar(&opts.backoffStep, "backoff", defaults.BackoffStep, "linear backoff step")
	cmd.Flags().DurationVar(&opts.linger, "linger", time.Second, "time to keep watching after the last step")

	return cmd
}

func runReplay(parent context.Context, path string, opts replayOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := setupLogger(opts.env)

	script, err := location.LoadScript(path)
	if err != nil {
		return err
	}
	source := location.NewReplay(script, logger)

	cfg := tracker.DefaultConfig()
	cfg.Watch.Timeout = opts.timeout
	cfg.MaxRetries = opts.maxRetries
	cfg.BackoffStep = opts.backoffStep

	trk := tracker.New(source, cfg, tracker.WithLogger(logger))
	unsubscribe := trk.Subscribe(func(state models.TrackerState) {
		logTransition(logger, state)
	})
	defer unsubscribe()

	cancel := trk.Start()
	defer cancel()

	state, err := awaitReplay(ctx, trk, source, opts.linger)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "status=%s attempt=%d", state.Status, state.Attempt)
	if state.Current != nil {
		fmt.Fprintf(os.Stdout, " lat=%.6f lon=%.6f", state.Current.Latitude, state.Current.Longitude)
	}
	if state.LastError != nil {
		fmt.Fprintf(os.Stdout, " error=%s", state.LastError.Kind)
	}
	fmt.Fprintln(os.Stdout)

	return nil
}

// awaitReplay polls until the tracker fails, the script drains and linger elapses, or ctx ends.
func awaitReplay(
	ctx context.Context,
	trk *tracker.Tracker,
	source *location.Replay,
	linger time.Duration,
) (models.TrackerState, error) {
	ticker := time.NewTicker(replayPollInterval)
	defer ticker.Stop()

	var drainedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return trk.State(), fmt.Errorf("replay interrupted: %w", ctx.Err())
		case <-ticker.C:
		}

		state := trk.State()
		if state.Status == models.StatusFailed {
			return state, nil
		}

		if source.Remaining() > 0 {
			drainedAt = time.Time{}
			continue
		}
		if drainedAt.IsZero() {
			drainedAt = time.Now()
		}
		if time.Since(drainedAt) >= linger {
			return state, nil
		}
	}
}

func logTransition(log *slog.Logger, state models.TrackerState) {
	attrs := []any{"status", state.Status, "attempt", state.Attempt, "generation", state.Generation}
	if state.Current != nil {
		attrs = append(attrs, "latitude", state.Current.Latitude, "longitude", state.Current.Longitude)
	}
	if state.LastError != nil {
		attrs = append(attrs, "error", state.LastError.Kind, "message", state.LastError.Message)
	}
	log.Info("Tracker state changed", attrs...)
}
