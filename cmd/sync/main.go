package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/audit_replay_parse_service/internal/application"
	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/audit_replay_parse_service/internal/infrastructure/config"
	"github.com/audit_replay_parse_service/internal/infrastructure/logging"
	"github.com/audit_replay_parse_service/internal/infrastructure/memory"
	repomemory "github.com/audit_replay_parse_service/internal/infrastructure/repository/memory"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// sync reads an export file and parses it in a single process, keeping the
// commands in memory.
func main() {
	start := time.Now()

	conf, err := config.Load("./.env")
	if err != nil {
		logging.New("info", "json").Fatal(err)
	}
	logger := logging.New(conf.LogLevel, conf.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	parserConf, err := conf.ParserConfig()
	if err != nil {
		logger.Fatal(err)
	}
	commandParser, err := application.NewDefaultCommandParserFactory().GetParser(conf.ParserName, parserConf)
	if err != nil {
		logger.Fatal(err)
	}

	// a single reader keeps the file's line order
	chunks, err := application.DefineChunkWorkers(1, conf.ExportPath)
	if err != nil {
		logger.WithField("path", conf.ExportPath).Fatal(err)
	}

	sessionID := uuid.NewString()
	rawCh := make(chan entity.Message, conf.BatchSize*2)
	repository := repomemory.NewCommandMemoryRepository(logger)
	processor := application.NewCommandProcessor(
		application.CommandProcessorSettings{
			ParserName:   conf.ParserName,
			SessionID:    sessionID,
			BatchSize:    conf.BatchSize,
			BatchTimeout: 500 * time.Millisecond,
		},
		memory.NewInMemoryConsumer(rawCh),
		nil,
		commandParser,
		application.OffsetRebaser(application.ReplayStart(start, conf.ReplayStartDelay)),
		repository,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rawCh)
		producer := memory.NewInMemoryProducer(rawCh)
		for _, chunk := range chunks {
			_, err := application.NewChunkProcessor(conf.ExportPath, chunk.StartBits, chunk.FinalBits, producer, logger).ProcessChunk(gctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		return processor.ProcessCommands(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("sync run failed")
	}
	processor.Close()

	logger.WithFields(logrus.Fields{
		"session":  sessionID,
		"commands": len(repository.Commands(sessionID)),
		"seconds":  time.Since(start).Seconds(),
	}).Info("program finished")
}
