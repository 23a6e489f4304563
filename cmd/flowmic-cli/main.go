package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flowmic/internal/bootstrap"
	"flowmic/internal/terminal"
	"flowmic/internal/usecase"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var apiBase string

	root := &cobra.Command{
		Use:           "flowmic-cli",
		Short:         "Analyze speech audio from a file or the microphone",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("api-base") {
				return os.Setenv("FLOWMIC_API_BASE", apiBase)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&apiBase, "api-base", "", "analysis service base URL (overrides FLOWMIC_API_BASE)")
	root.SetOut(out)

	root.AddCommand(newUploadCmd(out))
	root.AddCommand(newRecordCmd(in, out))
	return root
}

func newUploadCmd(out io.Writer) *cobra.Command {
	var chartOut string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an audio file for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := bootstrap.Build(terminal.New(out), nil, nil)
			if err != nil {
				return err
			}
			defer services.Close()

			services.Upload.Select(args[0])
			if _, err := services.Upload.Submit(cmd.Context()); err != nil {
				return err
			}
			return writeChart(services, chartOut)
		},
	}
	cmd.Flags().StringVar(&chartOut, "chart-out", "", "write the state chart PNG to this path")
	return cmd
}

func newRecordCmd(in io.Reader, out io.Writer) *cobra.Command {
	var (
		chartOut string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until Enter is pressed, then analyze",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := bootstrap.Build(terminal.New(out), nil, nil)
			if err != nil {
				return err
			}
			defer services.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := services.Capture.Start(ctx); err != nil {
				return err
			}
			if duration <= 0 {
				_, _ = fmt.Fprintln(out, "Press Enter to stop.")
			}

			if !waitForStop(ctx, in, duration) {
				if err := services.Capture.Discard(); err != nil && !errors.Is(err, usecase.ErrNotRecording) {
					return err
				}
				return ctx.Err()
			}

			if _, err := services.Capture.Stop(ctx); err != nil {
				if errors.Is(err, usecase.ErrNoAudioCaptured) {
					return nil
				}
				return err
			}
			return writeChart(services, chartOut)
		},
	}
	cmd.Flags().StringVar(&chartOut, "chart-out", "", "write the state chart PNG to this path")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop automatically after this long instead of waiting for Enter")
	return cmd
}

// waitForStop blocks until Enter, the duration elapses or ctx ends. It
// reports false when ctx ended first.
func waitForStop(ctx context.Context, in io.Reader, duration time.Duration) bool {
	stopped := make(chan struct{}, 1)
	if duration > 0 {
		timer := time.AfterFunc(duration, func() { stopped <- struct{}{} })
		defer timer.Stop()
	} else {
		go func() {
			_, _ = bufio.NewReader(in).ReadString('\n')
			stopped <- struct{}{}
		}()
	}

	select {
	case <-stopped:
		return true
	case <-ctx.Done():
		return false
	}
}

func writeChart(services bootstrap.Services, path string) error {
	if path == "" {
		return nil
	}
	png := services.Chart.PNG()
	if len(png) == 0 {
		return errors.New("no chart has been drawn")
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
