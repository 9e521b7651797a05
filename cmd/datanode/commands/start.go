package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/blockmanager"
	"github.com/StewAway/Distributed-File-System/pkg/blockstore"
	"github.com/StewAway/Distributed-File-System/pkg/config"
	"github.com/StewAway/Distributed-File-System/pkg/datanode"
	"github.com/StewAway/Distributed-File-System/pkg/metrics"
	dnmetrics "github.com/StewAway/Distributed-File-System/pkg/metrics/prometheus"
)

var enableMetrics bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the data node",
	Long: `Start the data node's storage engine and block until a termination
signal is received. The RPC listener that dispatches decoded requests into
this process's Handler is provided by the surrounding transport layer and is
not started here.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&enableMetrics, "metrics", false, "enable Prometheus instrumentation")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var dnm *dnmetrics.DataNodeMetrics
	if enableMetrics {
		metrics.InitRegistry()
		dnm = dnmetrics.New()
	}

	store, err := blockstore.New(blockstore.Config{
		BlocksDir:     cfg.BlocksDir,
		CacheEnabled:  cfg.Cache.Enabled,
		CacheCapacity: cfg.Cache.SizePages,
		CachePolicy:   normalizePolicy(cfg.Cache.Policy),
	})
	if err != nil {
		return fmt.Errorf("failed to construct block store: %w", err)
	}
	store.SetMetrics(dnm)
	defer store.Close()

	manager := blockmanager.New(store)
	if err := manager.LoadExistingBlocks(); err != nil {
		return fmt.Errorf("failed to scan blocks directory: %w", err)
	}

	handler := datanode.New(cfg.NodeID, manager)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var flusher *datanode.Flusher
	if cfg.Cache.Enabled {
		flusher = datanode.NewFlusher(handler)
		flusher.SetMetrics(dnm)
		flusher.Start(ctx)
	}

	logger.Info("datanode: started",
		logger.NodeID(cfg.NodeID), logger.Path(cfg.BlocksDir), logger.CacheCapacity(store.CacheCapacity()))

	<-ctx.Done()
	logger.Info("datanode: shutdown signal received, draining")

	if flusher != nil {
		flusher.Stop()
	}
	return nil
}

func normalizePolicy(name string) string {
	switch name {
	case "LFU", "lfu":
		return "lfu"
	default:
		return "lru"
	}
}
