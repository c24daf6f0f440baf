package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/audit_replay_parse_service/internal/infrastructure/metrics"
	"github.com/sirupsen/logrus"
)

const maxPersistAttempts = 5

type CommandProcessorSettings struct {
	ParserName   string
	SessionID    string
	BatchSize    int
	BatchTimeout time.Duration
}

type pendingCommand struct {
	command entity.AuditReplayCommand
	message entity.Message
}

// CommandProcessor turns raw audit lines from a consumer into replay commands.
// Parsed commands are published (when a producer is set) and persisted in
// batches. Lines that fail to parse are logged and counted, never fatal.
//
// A message is acked once it is handled for good: right away when it cannot
// be parsed, after its batch was saved otherwise. Lines that could not be
// published or saved stay unacked.
type CommandProcessor struct {
	settings   CommandProcessorSettings
	consumer   entity.MessageConsumer
	producer   entity.MessageProducer
	parser     entity.CommandParser
	rebase     entity.RelativeToAbsolute
	repository entity.CommandRepository
	logger     logrus.FieldLogger
	backoff    func(attempt int) time.Duration
	batchChan  chan pendingCommand
	closeBatch sync.Once
	wg         sync.WaitGroup
}

func NewCommandProcessor(
	settings CommandProcessorSettings,
	consumer entity.MessageConsumer,
	producer entity.MessageProducer,
	parser entity.CommandParser,
	rebase entity.RelativeToAbsolute,
	repository entity.CommandRepository,
	logger logrus.FieldLogger,
) *CommandProcessor {
	if settings.BatchSize < 1 {
		settings.BatchSize = 1
	}
	if settings.BatchTimeout <= 0 {
		settings.BatchTimeout = 500 * time.Millisecond
	}

	cp := &CommandProcessor{
		settings:   settings,
		consumer:   consumer,
		producer:   producer,
		parser:     parser,
		rebase:     rebase,
		repository: repository,
		logger:     logger.WithFields(logrus.Fields{"parser": settings.ParserName, "session": settings.SessionID}),
		backoff:    persistBackoff,
		batchChan:  make(chan pendingCommand, settings.BatchSize*2),
	}

	cp.wg.Add(1)
	go func() {
		defer cp.wg.Done()
		cp.batchWorker()
	}()
	return cp
}

// persistBackoff is the pause before retry number attempt (1-based).
func persistBackoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 100 * time.Millisecond
}

func (cp *CommandProcessor) batchWorker() {
	var batch []pendingCommand
	ticker := time.NewTicker(cp.settings.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case pending, ok := <-cp.batchChan:
			if !ok {
				cp.flush(batch)
				return
			}
			batch = append(batch, pending)
			if len(batch) >= cp.settings.BatchSize {
				cp.flush(batch)
				batch = nil
			}

		case <-ticker.C:
			cp.flush(batch)
			batch = nil
		}
	}
}

// ProcessCommands runs until the consumer is drained or ctx is done.
// Messages still queued in the consumer when ctx ends are left unacked.
func (cp *CommandProcessor) ProcessCommands(ctx context.Context) error {
	defer cp.closeBatches()

	for {
		select {
		case msg, ok := <-cp.consumer.Messages():
			if !ok {
				return nil
			}
			metrics.ReceivedLines.Inc()

			command, err := cp.processSingleLine(ctx, msg.Value)
			if err != nil {
				if isPermanent(err) {
					msg.Ack()
				}
				cp.logger.WithError(err).Warn("skipping audit line")
				continue
			}

			select {
			case cp.batchChan <- pendingCommand{command: command, message: msg}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type publishError struct {
	err error
}

func (e *publishError) Error() string { return "send error: " + e.err.Error() }

func (e *publishError) Unwrap() error { return e.err }

func (cp *CommandProcessor) processSingleLine(ctx context.Context, line string) (entity.AuditReplayCommand, error) {
	start := time.Now()
	command, err := cp.parser.Parse(line, cp.rebase)
	metrics.ParseLatency.WithLabelValues(cp.settings.ParserName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FailedLines.WithLabelValues(cp.settings.ParserName, failureReason(err)).Inc()
		return entity.AuditReplayCommand{}, fmt.Errorf("parse error: %w", err)
	}
	metrics.ParsedCommands.WithLabelValues(cp.settings.ParserName).Inc()

	if cp.producer != nil {
		data, err := json.Marshal(command)
		if err != nil {
			return entity.AuditReplayCommand{}, fmt.Errorf("encode error: %w", err)
		}
		if err := cp.producer.Send(ctx, string(data)); err != nil {
			metrics.FailedLines.WithLabelValues(cp.settings.ParserName, "publish").Inc()
			return entity.AuditReplayCommand{}, &publishError{err: err}
		}
	}

	return command, nil
}

// isPermanent reports whether retrying the line can never succeed.
func isPermanent(err error) bool {
	var pubErr *publishError
	return !errors.As(err, &pubErr)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, entity.ErrFormat):
		return "format"
	case errors.Is(err, entity.ErrInitialization):
		return "initialization"
	default:
		return "rebase"
	}
}

func (cp *CommandProcessor) flush(batch []pendingCommand) {
	if len(batch) == 0 {
		return
	}

	commands := make([]entity.AuditReplayCommand, 0, len(batch))
	for _, pending := range batch {
		commands = append(commands, pending.command)
	}

	for attempt := 1; attempt <= maxPersistAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(cp.backoff(attempt - 1))
		}

		err := cp.repository.Save(cp.settings.SessionID, commands)
		if err == nil {
			metrics.PersistedCommands.Add(float64(len(commands)))
			for _, pending := range batch {
				pending.message.Ack()
			}
			return
		}
		cp.logger.WithError(err).WithField("attempt", attempt).Warn("could not persist batch")
	}
	cp.logger.Errorf("failed to persist batch of %d commands after %d attempts", len(commands), maxPersistAttempts)
}

func (cp *CommandProcessor) closeBatches() {
	cp.closeBatch.Do(func() {
		close(cp.batchChan)
	})
}

// Close persists what is left and waits for the batch worker. It must not
// run concurrently with ProcessCommands; call it after ProcessCommands
// returned, or instead of it.
func (cp *CommandProcessor) Close() {
	cp.closeBatches()
	cp.wg.Wait()
}
