package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jtyers/pcachefs/internal/cachestore"
	"github.com/jtyers/pcachefs/internal/engine"
	"github.com/jtyers/pcachefs/internal/fusefs"
	"github.com/jtyers/pcachefs/internal/origin"
	"github.com/jtyers/pcachefs/internal/pclog"
)

var rootCommand = &cobra.Command{
	Use:           "pcachefs <mountpoint>",
	Short:         "Mount a persistently caching, read-only mirror of a directory tree",
	Args:          cobra.ExactArgs(1),
	RunE:          runMount,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var rootConfiguration struct {
	cacheDir   string
	targetDir  string
	virtualDir string
	verbose    bool
}

func init() {
	flags := rootCommand.Flags()
	flags.SortFlags = false

	flags.StringVar(&rootConfiguration.cacheDir, "cache-dir", "", "Directory in which cached data is stored (required)")
	flags.StringVar(&rootConfiguration.targetDir, "target-dir", "", "Origin directory tree to mirror (required)")
	flags.StringVar(&rootConfiguration.virtualDir, "virtual-dir", ".pcachefs", "Name of the synthetic control namespace at the mount root")
	flags.BoolVarP(&rootConfiguration.verbose, "verbose", "v", false, "Enable debug-level trace logging")
}

func runMount(command *cobra.Command, arguments []string) error {
	if rootConfiguration.cacheDir == "" {
		return fmt.Errorf("pcachefs: --cache-dir is required")
	}
	if rootConfiguration.targetDir == "" {
		return fmt.Errorf("pcachefs: --target-dir is required")
	}
	mountpoint := arguments[0]

	pclog.SetVerbose(rootConfiguration.verbose)
	if rootConfiguration.verbose {
		pclog.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	store, err := cachestore.New(rootConfiguration.cacheDir)
	if err != nil {
		return fmt.Errorf("pcachefs: %w", err)
	}
	eng := engine.New(store, origin.New(rootConfiguration.targetDir))

	ctx, cancel := context.WithCancel(command.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		pclog.Infof(ctx, "received shutdown signal, unmounting %s", mountpoint)
		cancel()
	}()

	return fusefs.Mount(ctx, mountpoint, eng, rootConfiguration.virtualDir)
}
