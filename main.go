package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/blogapi/cmd/server"
	"example.com/blogapi/cmd/worker"
	appkafka "example.com/blogapi/internal/broker"
	config "example.com/blogapi/internal/init"
	"example.com/blogapi/internal/logger"
	"example.com/blogapi/internal/store"
)

var logg = logger.New()

func fatal(msg string, err error) {
	logg.Error("main", msg, err)
	os.Exit(1)
}

func main() {
	// Initialize application configuration
	cfg := config.Init()
	logger.SetLevel(cfg.LogLevel)
	mode := cfg.Mode

	// Initialize the configured store (Cassandra, Postgres or SQLite)
	st, err := store.New(cfg)
	if err != nil {
		fatal("Store connection failed", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run application depending on selected mode
	switch mode {
	case "server":
		// The server publishes deletion events for the cascade worker
		kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			fatal("Kafka writer init failed", err)
		}
		defer kafkaWriter.Close()

		if err := server.SeedGroups(ctx, st, cfg.Groups); err != nil {
			fatal("Group seeding failed", err)
		}

		s := server.New(st, kafkaWriter, server.Options{
			JWTSecret:  []byte(cfg.JWTSecret),
			AccessTTL:  cfg.JWTAccessTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		})
		server.Run(ctx, s, cfg.ServerAddr, cfg.TLSCertFile, cfg.TLSKeyFile)
	case "worker":
		// The worker reads deletion events and purges dependent rows
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(st, kafkaReader, cfg.WorkerCount, 0)
		w.Run(ctx)
		if err := kafkaReader.Close(); err != nil {
			logg.Error("main", "Error closing Kafka reader", err)
		}
	default:
		logg.Error("main", "Unknown mode: "+mode, nil)
		os.Exit(1)
	}

	logg.Info("main", "Shutdown completed")
}
