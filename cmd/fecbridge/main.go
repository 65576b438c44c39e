package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arcfec/fecpacker/internal/config"
	"github.com/arcfec/fecpacker/internal/logging"
	"github.com/arcfec/fecpacker/internal/xcmd"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string
	// Mode is either "tx" or "rx".
	Mode string
}

var rootCmd = &cobra.Command{
	Use:   "fecbridge",
	Short: "Forward-error-corrected byte stream bridge over a lossy PHY",
	Run: func(_ *cobra.Command, _ []string) {
		if err := run(cmd); err != nil {
			if errors.Is(err, xcmd.Interrupted{}) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.Flags().StringVarP(&cmd.Mode, "mode", "m", "", "Bridge mode: tx or rx (required)")
	rootCmd.MarkFlagRequired("config")
	rootCmd.MarkFlagRequired("mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	cfg, err := config.LoadConfig(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Log, cmd.Mode)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)

	switch cmd.Mode {
	case "tx":
		wg.Go(func() error {
			return runTX(ctx, cfg, log)
		})
	case "rx":
		wg.Go(func() error {
			return runRX(ctx, cfg, log)
		})
	default:
		return fmt.Errorf("unknown mode %q, want tx or rx", cmd.Mode)
	}

	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}
