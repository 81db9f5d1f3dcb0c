package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"tilepipe/pkg/config"
	"tilepipe/pkg/driver"
	_ "tilepipe/pkg/provider/prelude"
	"tilepipe/pkg/registry"
	"tilepipe/pkg/version"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func main() {
	// Load config early to set driver weights
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	for id, weight := range cfg.Drivers {
		driver.SetWeight(id, weight)
	}

	var verbose bool
	var cpuProfilePath string
	var memProfilePath string
	var stopProfiling func() error

	cmd := &cobra.Command{
		Use:          "tilepipe",
		Short:        "tilepipe - reproject rasters to Web Mercator and cut them into map tiles",
		Version:      version.BuildID(),
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}

			if stopProfiling != nil {
				return nil
			}
			cpuPath := cpuProfilePath
			if cpuPath == "" {
				cpuPath = os.Getenv("TILEPIPE_CPUPROFILE")
			}
			memPath := memProfilePath
			if memPath == "" {
				memPath = os.Getenv("TILEPIPE_MEMPROFILE")
			}

			var err error
			stopProfiling, err = startProfiling(cpuPath, memPath)
			if err == nil && (cpuPath != "" || memPath != "") {
				slog.Info("profiling started", "cpu", cpuPath, "mem", memPath)
			}
			return err
		},
		PersistentPostRunE: func(c *cobra.Command, args []string) error {
			if stopProfiling == nil {
				return nil
			}
			err := stopProfiling()
			stopProfiling = nil
			return err
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&cpuProfilePath, "cpuprofile", "", "Write CPU profile to file (or set TILEPIPE_CPUPROFILE)")
	cmd.PersistentFlags().StringVar(&memProfilePath, "memprofile", "", "Write heap profile to file at end (or set TILEPIPE_MEMPROFILE)")
	Registry.FillCommands(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = config.WithContext(ctx, cfg)

	err = cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if stopProfiling != nil {
			if stopErr := stopProfiling(); stopErr != nil {
				slog.Error("failed to stop profiling", "err", stopErr)
			}
		}
		slog.Error("error", "err", err)
		os.Exit(1)
	}
}

func startProfiling(cpuProfilePath, memProfilePath string) (func() error, error) {
	var cpuFile *os.File
	if cpuProfilePath != "" {
		f, err := os.Create(cpuProfilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create cpuprofile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		cpuFile = f
	}

	return func() error {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			if err := cpuFile.Close(); err != nil {
				return err
			}
		}
		if memProfilePath != "" {
			f, err := os.Create(memProfilePath)
			if err != nil {
				return fmt.Errorf("failed to create memprofile file: %w", err)
			}
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write heap profile: %w", err)
			}
			return f.Close()
		}
		return nil
	}, nil
}
