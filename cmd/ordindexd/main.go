// Command ordindexd runs the Bitcoin Ordinal inscription indexer: it
// replays blocks from a node's on-disk chain, then tip-follows via RPC,
// maintaining the five-table inscription index on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ordlayer/ordindex/internal/chainindex"
	"github.com/ordlayer/ordindex/internal/config"
	"github.com/ordlayer/ordindex/internal/engine"
	"github.com/ordlayer/ordindex/internal/logging"
	"github.com/ordlayer/ordindex/internal/metrics"
	"github.com/ordlayer/ordindex/internal/rpcclient"
	"github.com/ordlayer/ordindex/internal/wireformat"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ordindexd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	btcDataDir := fs.String("btc-data-dir", os.Getenv("btc_data_dir"), "bitcoind datadir (blocks/ and blocks/index)")
	ordiDataDir := fs.String("ordi-data-dir", os.Getenv("ordi_data_dir"), "indexer's own LevelDB datadir")
	btcRPCHost := fs.String("btc-rpc-host", os.Getenv("btc_rpc_host"), "bitcoind JSON-RPC URL, e.g. http://127.0.0.1:8332")
	btcRPCUser := fs.String("btc-rpc-user", os.Getenv("btc_rpc_user"), "bitcoind RPC username")
	btcRPCPass := fs.String("btc-rpc-pass", os.Getenv("btc_rpc_pass"), "bitcoind RPC password")
	indexPrevOutVal := fs.Bool("index-previous-output-value", false, "pre-populate output_value for [0, FIRST_INSCRIPTION_HEIGHT) before the main run")
	logLevel := fs.String("log-level", envOr("log_level", "info"), "log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", os.Getenv("metrics_addr"), "address to serve /metrics on, empty to disable")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	getenv := func(name string) string {
		switch name {
		case "btc_data_dir":
			return *btcDataDir
		case "ordi_data_dir":
			return *ordiDataDir
		case "btc_rpc_host":
			return *btcRPCHost
		case "btc_rpc_user":
			return *btcRPCUser
		case "btc_rpc_pass":
			return *btcRPCPass
		case "index_previous_output_value":
			if *indexPrevOutVal {
				return "true"
			}
			return os.Getenv("index_previous_output_value")
		case "log_level":
			return *logLevel
		case "metrics_addr":
			return *metricsAddr
		default:
			return ""
		}
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	if *dryRun {
		fmt.Fprintf(stdout, "%+v\n", cfg)
		return 0
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "logging init failed: %v\n", err)
		return 2
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.OrdiDataDir, 0o750); err != nil {
		logger.Error("ordi datadir create failed", zap.Error(err))
		return 2
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	var rpc *rpcclient.Client
	if cfg.BtcRPCHost != "" {
		rpc = rpcclient.New(cfg.BtcRPCHost, cfg.BtcRPCUser, cfg.BtcRPCPass, wireformat.DefaultParams)
	}

	index, err := chainindex.Open(cfg.BtcDataDir, wireformat.DefaultParams)
	if err != nil {
		logger.Error("chain index open failed", zap.Error(err))
		return 2
	}
	defer index.Close()

	store, err := engine.OpenStore(cfg.OrdiDataDir)
	if err != nil {
		logger.Error("store open failed", zap.Error(err))
		return 2
	}
	defer store.Close()

	sidecar, err := engine.OpenSidecar(filepath.Join(cfg.OrdiDataDir, "sidecar.db"))
	if err != nil {
		logger.Error("sidecar open failed", zap.Error(err))
		return 2
	}
	defer sidecar.Close()

	var fetcher engine.RawTxFetcher
	if rpc != nil {
		fetcher = rpc
	}
	eng, err := engine.New(store, fetcher, &chaincfg.MainNetParams)
	if err != nil {
		logger.Error("engine init failed", zap.Error(err))
		return 2
	}
	defer eng.Close()

	eng.RegisterInscribeHandler(func(ev engine.InscribeEntry) {
		if ev.ID < 0 {
			m.InscriptionsCursed.Inc()
		} else {
			m.InscriptionsBlessed.Inc()
		}
		logger.Debug("inscribed", zap.Int64("id", ev.ID), zap.String("inscription_id", ev.InscriptionID))
	})
	eng.RegisterTransferHandler(func(ev engine.TransferEntry) {
		m.TransfersEmitted.Inc()
		logger.Debug("transferred", zap.String("inscription_id", ev.InscriptionID), zap.String("to", ev.To))
	})

	var source engine.BlockSource
	if rpc != nil {
		source = rpc
	}
	driver := engine.NewDriver(eng, index, source, sidecar, logger).
		WithMetrics(m.BlocksIndexed, m.RPCRetries, m.LostSats)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IndexPreviousOutputVal {
		logger.Info("pre-populating output_value", zap.Int64("up_to_height", engine.FirstInscriptionHeight))
		if err := driver.PrePopulateOutputValues(ctx, engine.FirstInscriptionHeight); err != nil {
			logger.Error("pre-population failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("starting replay")
	if err := driver.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("driver stopped", zap.Error(err))
		return 1
	}

	if height, err := eng.IndexedHeight(); err == nil {
		m.IndexedHeight.Set(float64(height))
	}
	logger.Info("ordindexd stopped")
	return 0
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
