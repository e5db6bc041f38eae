package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"onlytests-e2e/internal/config"
	"onlytests-e2e/internal/fixture"
	"onlytests-e2e/internal/interact"
	"onlytests-e2e/internal/preflight"
	"onlytests-e2e/internal/server"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the active profile and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.Instance()
			if err != nil {
				return err
			}
			if err := preflight.ValidateAll(store); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), preflight.Summarize(store))
		},
	}
}

func initCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Validate the profile and create the artifact directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.Instance()
			if err != nil {
				return err
			}
			setup := fixture.NewSetup(store, fixture.WithResultsDir(dir))
			if err := setup.Initialize(); err != nil {
				return err
			}
			defer setup.Cleanup()
			return printJSON(cmd.OutOrStdout(), setup.Status())
		},
	}
	cmd.Flags().StringVar(&dir, "results", fixture.DefaultResultsDir, "artifact directory")
	return cmd
}

func smokeCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Open every page in parallel and check that it renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.Instance()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			setup := fixture.NewSetup(store, fixture.WithResultsDir(dir))
			defer setup.Cleanup()

			results, runErr := fixture.RunParallel(ctx, setup, fixture.SmokeJobs())
			out := cmd.OutOrStdout()
			for _, r := range results {
				status := "PASS"
				if r.Err != nil {
					status = "FAIL"
				}
				fmt.Fprintf(out, "%-4s %-24s %6dms", status, r.Name, r.Duration.Milliseconds())
				if r.Screenshot != "" {
					fmt.Fprintf(out, "  %s", r.Screenshot)
				}
				fmt.Fprintln(out)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&dir, "results", fixture.DefaultResultsDir, "artifact directory")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, dir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose a browser tab over HTTP and websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.Instance()
			if err != nil {
				return err
			}
			setup := fixture.NewSetup(store, fixture.WithResultsDir(dir))
			if err := setup.Initialize(); err != nil {
				return err
			}
			defer setup.Cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := setup.Launch(ctx)
			if err != nil {
				return fmt.Errorf("launch browser: %w", err)
			}
			defer setup.Release(d, "serve", false)

			ix := interact.New(d, store,
				interact.WithLogger(setup.Logger()),
				interact.WithScreenshotDir(setup.Dir(fixture.ScreenshotsDir)),
			)
			srv := server.NewServer(ix, addr)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			setup.Logger().Info("Server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&dir, "results", fixture.DefaultResultsDir, "artifact directory")
	return cmd
}
