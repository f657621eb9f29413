package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	samillogger "github.com/sam-413/SamilLogger"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

// How long to wait before checking the PVOutput credentials again.
const startRetry = time.Minute

func main() {
	configFile := flag.StringP("config", "c", "", "config file (default: samillogger.yaml in /etc, $HOME/.config or .)")
	flag.Bool("debug", false, "log every status sent and its response")
	flag.Parse()

	cfg, err := samillogger.LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("Fatal error in config file")
	}
	if err := cfg.Viper().BindPFlag("debug", flag.Lookup("debug")); err != nil {
		log.WithError(err).Fatal("bind flags")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("samillogger failed")
	}
}

func setupLogging(cfg *samillogger.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(cfg.LogLevel())
	if err != nil {
		log.WithError(err).Warn("bad log level, using info")
		level = log.InfoLevel
	}
	if cfg.Debug() {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

func run(ctx context.Context, cfg *samillogger.Config) error {
	var sinks []samillogger.Sink

	if dbFile := cfg.DBFile(); dbFile != "" {
		history, err := samillogger.OpenHistory(dbFile)
		if err != nil {
			return err
		}
		defer history.Close()
		sinks = append(sinks, history)
	}

	//Where does the live data file live?
	if liveFilename := cfg.LiveDataFile(); liveFilename != "" {
		sinks = append(sinks, &samillogger.LiveFile{Filename: liveFilename})
	}

	if addr := cfg.MetricsListen(); addr != "" {
		registry := prometheus.NewRegistry()
		sinks = append(sinks, samillogger.NewMetrics(registry))
		go serveMetrics(addr, registry)
	}

	inv := &samillogger.SolarEdgeModbus{SlaveID: cfg.InverterSlaveID()}
	inv.Host = cfg.Viper().GetString("inverter.host")
	inv.Port = uint16(cfg.Viper().GetInt("inverter.port"))
	defer inv.Close()

	publisher := samillogger.NewPublisher(cfg, samillogger.NewPVOutput(),
		samillogger.WithSinks(sinks...))

	for {
		err := publisher.Start()
		if err == nil {
			break
		}
		log.WithError(err).WithField("retry", startRetry).Warn("PVOutput api key or system id missing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startRetry):
		}
		if err := cfg.Reload(); err != nil {
			log.WithError(err).Warn("config reload failed")
		}
	}
	defer publisher.Stop()

	//How long to sleep between polls?
	pollInterval := cfg.PollInterval()
	log.WithFields(log.Fields{
		"inverter": cfg.InverterAddr(),
		"interval": cfg.Settings().UpdateInterval,
		"poll":     pollInterval,
	}).Info("publishing inverter status to PVOutput")

	return publisher.Run(ctx, inv, pollInterval)
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}
