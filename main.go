package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"example.com/bufferproxy/cmd/server"
	"example.com/bufferproxy/cmd/worker"
	"example.com/bufferproxy/internal/audit"
	"example.com/bufferproxy/internal/broker"
	config "example.com/bufferproxy/internal/init"
	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/store"
)

var logg = logger.New()

func main() {
	cfg, err := config.Init(os.Args[1:])
	if err != nil {
		fatal("Invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case "server":
		err = runServer(ctx, cfg)
	case "worker":
		err = runWorker(ctx, cfg)
	case "token":
		err = printAdminToken(cfg)
	default:
		err = fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
	if err != nil {
		fatal("Mode "+cfg.Mode+" failed", err)
	}

	logg.Info("main", "Shutdown completed")
}

func fatal(msg string, err error) {
	logg.Error("main", msg, err)
	os.Exit(1)
}

func kafkaConfig(cfg *config.Config) broker.KafkaConfig {
	return broker.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}
}

func newAuditPublisher(ctx context.Context, cfg *config.Config) (broker.AuditPublisher, error) {
	switch cfg.AuditSink {
	case config.SinkKafka:
		w, err := broker.NewKafkaWriter(ctx, kafkaConfig(cfg))
		if err != nil {
			return nil, err
		}
		return broker.NewKafkaPublisher(w), nil
	case config.SinkRabbitMQ:
		r, err := broker.NewRabbitMQ(broker.RabbitMQConfig{
			URL:        cfg.RabbitMQURL,
			Exchange:   cfg.RabbitMQExchange,
			RoutingKey: cfg.RabbitMQRoutingKey,
			QueueName:  cfg.RabbitMQQueue,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	opts := server.Options{
		Addr:              cfg.ServerAddr,
		TLSCertFile:       cfg.TLSCertFile,
		TLSKeyFile:        cfg.TLSKeyFile,
		BufferAPIBase:     cfg.BufferAPIBase,
		BufferAccessToken: cfg.BufferAccessToken,
		Demo:              cfg.DemoMode,
		AdminSecret:       []byte(cfg.AdminJWTSecret),
	}

	if cfg.AuditStore {
		st, err := store.New()
		if err != nil {
			return fmt.Errorf("cassandra connection failed: %w", err)
		}
		defer st.Close()
		opts.Store = st
	}

	pub, err := newAuditPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("audit sink %s init failed: %w", cfg.AuditSink, err)
	}

	var wg sync.WaitGroup
	if pub != nil {
		defer pub.Close()
		opts.Recorder = audit.NewRecorder(pub, cfg.AuditQueueSize)

		recCtx, cancel := context.WithCancel(context.Background())
		wg.Add(1)
		go func() {
			defer wg.Done()
			opts.Recorder.Run(recCtx)
		}()
		// Stop the recorder only after the HTTP server has drained.
		defer wg.Wait()
		defer cancel()
	}

	return server.Run(ctx, opts)
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	st, err := store.New()
	if err != nil {
		return fmt.Errorf("cassandra connection failed: %w", err)
	}

	w := worker.New(st, broker.NewKafkaReader(kafkaConfig(cfg)), 0, 0)
	w.Run(ctx)
	return w.Close()
}

func printAdminToken(cfg *config.Config) error {
	token, err := middleware.IssueAdminToken([]byte(cfg.AdminJWTSecret), cfg.AdminSubject, cfg.AdminTokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
