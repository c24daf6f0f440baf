package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/audit_replay_parse_service/internal/application"
	"github.com/audit_replay_parse_service/internal/infrastructure/config"
	"github.com/audit_replay_parse_service/internal/infrastructure/kafka"
	"github.com/audit_replay_parse_service/internal/infrastructure/logging"
	"golang.org/x/sync/errgroup"
)

func main() {
	conf, err := config.Load("./.env")
	if err != nil {
		logging.New("info", "json").Fatal(err)
	}
	logger := logging.New(conf.LogLevel, conf.LogFormat)

	if !conf.UseKafka {
		logger.Fatal("chunk_processor publishes to kafka, set USE_KAFKA=true or use cmd/sync for local runs")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rawLinesProducer, err := kafka.NewKafkaProducer(conf.KafkaBootstrap, conf.RawLinesTopic)
	if err != nil {
		logger.Fatal(err)
	}
	defer rawLinesProducer.Close()

	chunks, err := application.DefineChunkWorkers(int64(runtime.NumCPU()), conf.ExportPath)
	if err != nil {
		logger.WithField("path", conf.ExportPath).Fatal(err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		chunkProcessor := application.NewChunkProcessor(conf.ExportPath, chunk.StartBits, chunk.FinalBits, rawLinesProducer, logger)
		g.Go(func() error {
			_, err := chunkProcessor.ProcessChunk(ctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("error during processing chunk")
		rawLinesProducer.Close()
		os.Exit(1)
	}
	logger.WithField("chunks", len(chunks)).Info("export published")
}
