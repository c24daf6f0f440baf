package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/audit_replay_parse_service/internal/application"
	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/audit_replay_parse_service/internal/infrastructure/config"
	"github.com/audit_replay_parse_service/internal/infrastructure/kafka"
	"github.com/audit_replay_parse_service/internal/infrastructure/logging"
	"github.com/audit_replay_parse_service/internal/infrastructure/memory"
	repomemory "github.com/audit_replay_parse_service/internal/infrastructure/repository/memory"
	"github.com/audit_replay_parse_service/internal/infrastructure/repository/mongodb"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	conf, err := config.Load("./.env")
	if err != nil {
		logging.New("info", "json").Fatal(err)
	}
	logger := logging.New(conf.LogLevel, conf.LogFormat)

	if !conf.UseKafka {
		logger.Fatal("command_processor consumes from kafka, set USE_KAFKA=true or use cmd/sync for local runs")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	initMetricsServer(conf.MetricsHost, logger)

	parserConf, err := conf.ParserConfig()
	if err != nil {
		logger.Fatal(err)
	}
	commandParser, err := application.NewDefaultCommandParserFactory().GetParser(conf.ParserName, parserConf)
	if err != nil {
		logger.Fatal(err)
	}

	rawLinesConsumer, err := kafka.NewKafkaConsumer(conf.KafkaBootstrap, conf.RawLinesTopic, conf.ConsumerGroup, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer rawLinesConsumer.Close()

	commandsProducer, err := kafka.NewKafkaProducer(conf.KafkaBootstrap, conf.CommandsTopic)
	if err != nil {
		logger.Fatal(err)
	}
	defer commandsProducer.Close()

	repository := initRepository(ctx, conf, logger)

	sessionID := uuid.NewString()
	replayStart := application.ReplayStart(time.Now(), conf.ReplayStartDelay)
	rebase := application.BoundedRebaser(replayStart)
	logger.WithFields(logrus.Fields{
		"session":      sessionID,
		"parser":       conf.ParserName,
		"replay_start": replayStart,
	}).Info("starting command processor")

	// on SIGINT/SIGTERM polling stops first; the lines already fetched are
	// still parsed and saved, and offsets are committed once that is done
	go func() {
		<-ctx.Done()
		logger.Info("initiating graceful shutdown")
		rawLinesConsumer.Stop()
	}()

	workerPoolSize := runtime.NumCPU() * 2
	g, gctx := errgroup.WithContext(context.Background())
	messageChan := make(chan entity.Message, workerPoolSize*conf.BatchSize)

	g.Go(func() error {
		defer close(messageChan)
		for msg := range rawLinesConsumer.Messages() {
			select {
			case messageChan <- msg:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workerPoolSize; i++ {
		processor := application.NewCommandProcessor(
			application.CommandProcessorSettings{
				ParserName:   conf.ParserName,
				SessionID:    sessionID,
				BatchSize:    conf.BatchSize,
				BatchTimeout: 500 * time.Millisecond,
			},
			memory.NewInMemoryConsumer(messageChan),
			commandsProducer,
			commandParser,
			rebase,
			repository,
			logger.WithField("worker", i),
		)

		g.Go(func() error {
			defer processor.Close()
			return processor.ProcessCommands(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("shutdown with error")
	}
	logger.Info("command processor stopped")
}

func initMetricsServer(host string, logger logrus.FieldLogger) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(host, nil); err != nil {
			logger.WithError(err).Fatal("metrics server failed")
		}
	}()
	logger.WithField("host", host).Info("metrics server listening")
}

func initRepository(ctx context.Context, conf *config.ServiceConfig, logger logrus.FieldLogger) entity.CommandRepository {
	if !conf.UseMongoDB {
		return repomemory.NewCommandMemoryRepository(logger)
	}

	client, err := mongodb.StartConnection(ctx, conf.MongoURL, logger)
	if err != nil {
		logger.Fatal(err)
	}
	return mongodb.NewCommandMongoDBRepository(client, conf.MongoDatabase, conf.MongoCollection)
}
