// Package main is the entry point for the ps2mqtt agent.
// It loads configuration, registers metric collectors, connects to the
// MQTT broker, and runs the sampling-publish scheduler until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ps2mqtt/agent/internal/config"
	"github.com/ps2mqtt/agent/internal/hass"
	"github.com/ps2mqtt/agent/internal/metrics"
	"github.com/ps2mqtt/agent/internal/mqtt"
	"github.com/ps2mqtt/agent/internal/scheduler"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath       = flag.String("config", "", "configuration file, will be created if non existing")
	period           = flag.Int("period", 0, "updates period in seconds")
	mqttServer       = flag.String("mqtt-server", "", "MQTT server")
	mqttPort         = flag.Int("mqtt-port", 0, "MQTT port")
	mqttUsername     = flag.String("mqtt-username", "", "MQTT username")
	mqttPassword     = flag.String("mqtt-password", "", "MQTT password")
	mqttBaseTopic    = flag.String("mqtt-base-topic", "", "MQTT base topic")
	haDiscoverPrefix = flag.String("ha-discover-prefix", "", "HA discover MQTT prefix")
	haStatusTopic    = flag.String("ha-status-topic", "", "HA status MQTT topic")
	storagePaths     = flag.String("storage-paths", "", "path(s) for storage usage monitoring (comma separated)")
	logLevel         = flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFile          = flag.String("log-file", "", "optional JSON log file")
	showVersion      = flag.Bool("version", false, "show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("ps2mqtt %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.LoadLayered(config.Flags{
		MQTTServer:       *mqttServer,
		MQTTPort:         *mqttPort,
		MQTTUsername:     *mqttUsername,
		MQTTPassword:     *mqttPassword,
		MQTTBaseTopic:    *mqttBaseTopic,
		HADiscoverPrefix: *haDiscoverPrefix,
		HAStatusTopic:    *haStatusTopic,
		PeriodSeconds:    *period,
		StoragePaths:     *storagePaths,
		LogLevel:         *logLevel,
		LogFile:          *logFile,
	}, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting ps2mqtt",
		zap.String("version", version),
		zap.String("server", cfg.MQTTServer),
		zap.Int("port", cfg.MQTTPort))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Persist the merged effective configuration so flag and env overrides
	// survive restarts; the file is created on first run.
	if *configPath != "" {
		if err := config.Write(cfg, *configPath); err != nil {
			logger.Warn("Failed to save configuration",
				zap.String("path", *configPath),
				zap.Error(err))
		} else {
			logger.Info("Saved configuration", zap.String("path", *configPath))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
		cancel()
	}()

	runAgent(ctx, cfg, logger)
	logger.Info("Agent stopped")
}

// runAgent initializes all components and starts the scheduler loop.
// It blocks until the context is cancelled.
func runAgent(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	registry := metrics.NewRegistry(logger)
	registry.Register(metrics.NewCPUCollector())
	registry.Register(metrics.NewMemoryCollector())
	registry.Register(metrics.NewUptimeCollector())
	registry.Register(metrics.NewNetworkCollector())
	registry.Register(metrics.NewDiskCollector(splitPaths(cfg.StoragePaths), logger))
	registry.Register(metrics.NewTemperatureCollector())

	encoder := hass.NewEncoder(cfg.HADiscoverPrefix, cfg.MQTTBaseTopic, version, hostInfo(ctx))

	// The callbacks close over sched, which is assigned before Connect;
	// paho only fires them once a connection attempt is underway.
	var sched *scheduler.Scheduler
	client := mqtt.New(cfg, mqtt.Options{
		StatusTopic: encoder.StatusTopic(),
		WillPayload: hass.PayloadOffline,
		Callbacks: mqtt.Callbacks{
			OnConnected:      func() { sched.Connected() },
			OnConnectionLost: func(err error) { sched.ConnectionLost(err) },
			OnHubStatus: func(payload string) {
				if payload == hass.PayloadOnline {
					sched.HubRestart()
				}
			},
		},
	}, logger)
	sched = scheduler.New(cfg, registry, encoder, client, logger)

	if err := client.Connect(); err != nil {
		logger.Fatal("Broker connection failed", zap.Error(err))
	}

	logger.Info("Agent running",
		zap.Duration("period", cfg.Period.Duration),
		zap.String("base_topic", cfg.MQTTBaseTopic))
	sched.Start(ctx)

	client.Disconnect()
}

// hostInfo gathers the host identity used in discovery payloads, falling
// back to basic values when gopsutil cannot provide them.
func hostInfo(ctx context.Context) hass.HostInfo {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		hostname, _ := os.Hostname()
		return hass.HostInfo{Hostname: hostname, Platform: runtime.GOOS, OS: runtime.GOOS}
	}
	platform := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	if platform == "" {
		platform = runtime.GOOS
	}
	return hass.HostInfo{
		Hostname: info.Hostname,
		Platform: platform,
		OS:       info.OS,
	}
}

// splitPaths splits the comma-separated storage path list, dropping empty
// entries.
func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// initLogger creates a zap logger based on the configuration.
// It outputs to console (human-readable) and optionally a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
