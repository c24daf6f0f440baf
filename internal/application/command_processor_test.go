package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/audit_replay_parse_service/internal/application/parser"
	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/audit_replay_parse_service/internal/infrastructure/memory"
	"github.com/audit_replay_parse_service/internal/infrastructure/metrics"
	repomemory "github.com/audit_replay_parse_service/internal/infrastructure/repository/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRepository struct {
	mu       sync.Mutex
	failures int
	attempts int
	saved    []entity.AuditReplayCommand
}

func (r *flakyRepository) Save(sessionID string, commands []entity.AuditReplayCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset")
	}
	r.saved = append(r.saved, commands...)
	return nil
}

type ackRecorder struct {
	mu    sync.Mutex
	acked []string
}

func (r *ackRecorder) acks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.acked...)
}

func feedTracked(recorder *ackRecorder, lines ...string) *memory.InMemoryConsumer {
	ch := make(chan entity.Message, len(lines))
	for _, line := range lines {
		line := line
		ch <- entity.NewMessage(line, func() {
			recorder.mu.Lock()
			defer recorder.mu.Unlock()
			recorder.acked = append(recorder.acked, line)
		})
	}
	close(ch)
	return memory.NewInMemoryConsumer(ch)
}

func feed(lines ...string) *memory.InMemoryConsumer {
	return feedTracked(&ackRecorder{}, lines...)
}

func TestCommandProcessor(t *testing.T) {
	formatBefore := testutil.ToFloat64(metrics.FailedLines.WithLabelValues(parser.HiveTableParserName, "format"))
	rebaseBefore := testutil.ToFloat64(metrics.FailedLines.WithLabelValues(parser.HiveTableParserName, "rebase"))

	published := make(chan entity.Message, 10)
	repo := repomemory.NewCommandMemoryRepository(logrus.New())
	processor := NewCommandProcessor(
		CommandProcessorSettings{
			ParserName:   parser.HiveTableParserName,
			SessionID:    "session-1",
			BatchSize:    2,
			BatchTimeout: time.Hour,
		},
		feed(
			"500\u0001user1\u0001rename\u0001/a\u0001/b\u000110.0.0.1",
			"100\u0001user",
			"abc\u0001u\u0001c\u0001s\u0001d\u0001ip",
			"-1\u0001u\u0001delete\u0001/x\u0001\u000110.0.0.3",
			"10\u0001u\u0001listStatus\u0001/a\u0001\u00010.0.0.2",
			"20\u0001u\u0001open\u0001/c\u0001\u00010.0.0.2",
		),
		memory.NewInMemoryProducer(published),
		parser.NewHiveTableParser(),
		BoundedRebaser(1_600_000_000_000),
		repo,
		logrus.New(),
	)

	require.NoError(t, processor.ProcessCommands(context.Background()))
	processor.Close()
	close(published)

	expected := []entity.AuditReplayCommand{
		entity.NewAuditReplayCommand(1_600_000_000_500, "user1", "rename", "/a", "/b", "10.0.0.1"),
		entity.NewAuditReplayCommand(1_600_000_000_010, "u", "listStatus", "/a", "", "0.0.0.2"),
		entity.NewAuditReplayCommand(1_600_000_000_020, "u", "open", "/c", "", "0.0.0.2"),
	}
	assert.Equal(t, expected, repo.Commands("session-1"))

	var decoded []entity.AuditReplayCommand
	for msg := range published {
		var command entity.AuditReplayCommand
		require.NoError(t, json.Unmarshal([]byte(msg.Value), &command))
		decoded = append(decoded, command)
	}
	assert.Equal(t, expected, decoded)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FailedLines.WithLabelValues(parser.HiveTableParserName, "format"))-formatBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FailedLines.WithLabelValues(parser.HiveTableParserName, "rebase"))-rebaseBefore)
}

func TestCommandProcessorRetriesPersistence(t *testing.T) {
	repo := &flakyRepository{failures: 1}
	processor := NewCommandProcessor(
		CommandProcessorSettings{ParserName: parser.HiveTableParserName, BatchSize: 10},
		feed("1\u0001u\u0001open\u0001/a\u0001\u00011.1.1.1"),
		nil,
		parser.NewHiveTableParser(),
		OffsetRebaser(0),
		repo,
		logrus.New(),
	)

	require.NoError(t, processor.ProcessCommands(context.Background()))
	processor.Close()

	assert.Equal(t, []entity.AuditReplayCommand{entity.NewAuditReplayCommand(1, "u", "open", "/a", "", "1.1.1.1")}, repo.saved)
}

func TestCommandProcessorStopsOnCancel(t *testing.T) {
	ch := make(chan entity.Message)
	processor := NewCommandProcessor(
		CommandProcessorSettings{ParserName: parser.HiveTableParserName},
		memory.NewInMemoryConsumer(ch),
		nil,
		parser.NewHiveTableParser(),
		OffsetRebaser(0),
		&flakyRepository{},
		logrus.New(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, processor.ProcessCommands(ctx), context.Canceled)
	processor.Close()
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "format", failureReason(entity.NewFormatError("x", "bad", nil)))
	assert.Equal(t, "initialization", failureReason(entity.NewInitializationError("direct", errors.New("x"))))
	assert.Equal(t, "rebase", failureReason(ErrNegativeRelativeTimestamp))
}

func TestCommandProcessorAcksHandledLinesOnly(t *testing.T) {
	recorder := &ackRecorder{}
	valid := "1\u0001u\u0001open\u0001/a\u0001\u00011.1.1.1"
	malformed := "100\u0001user"
	repo := &flakyRepository{}
	processor := NewCommandProcessor(
		CommandProcessorSettings{ParserName: parser.HiveTableParserName, BatchSize: 10, BatchTimeout: time.Hour},
		feedTracked(recorder, valid, malformed),
		nil,
		parser.NewHiveTableParser(),
		OffsetRebaser(0),
		repo,
		logrus.New(),
	)

	require.NoError(t, processor.ProcessCommands(context.Background()))
	processor.Close()

	// unparsable lines are done at once, parsed ones only after their batch was saved
	assert.Equal(t, []string{malformed, valid}, recorder.acks())
	assert.Len(t, repo.saved, 1)
}

func TestCommandProcessorLeavesUnsavedLinesUnacked(t *testing.T) {
	recorder := &ackRecorder{}
	repo := &flakyRepository{failures: maxPersistAttempts}
	processor := NewCommandProcessor(
		CommandProcessorSettings{ParserName: parser.HiveTableParserName, BatchSize: 10},
		feedTracked(recorder, "1\u0001u\u0001open\u0001/a\u0001\u00011.1.1.1"),
		nil,
		parser.NewHiveTableParser(),
		OffsetRebaser(0),
		repo,
		logrus.New(),
	)
	var pauses []int
	processor.backoff = func(attempt int) time.Duration {
		pauses = append(pauses, attempt)
		return 0
	}

	require.NoError(t, processor.ProcessCommands(context.Background()))
	processor.Close()

	assert.Equal(t, maxPersistAttempts, repo.attempts)
	assert.Equal(t, []int{1, 2, 3, 4}, pauses)
	assert.Empty(t, recorder.acks())
	assert.Empty(t, repo.saved)
}

func TestPersistBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, persistBackoff(1))
	assert.Equal(t, 400*time.Millisecond, persistBackoff(2))
	assert.Equal(t, 1600*time.Millisecond, persistBackoff(4))
}

func TestCommandProcessorCloseWithoutProcessing(t *testing.T) {
	processor := NewCommandProcessor(
		CommandProcessorSettings{ParserName: parser.HiveTableParserName},
		feed(),
		nil,
		parser.NewHiveTableParser(),
		OffsetRebaser(0),
		&flakyRepository{},
		logrus.New(),
	)

	closed := make(chan struct{})
	go func() {
		processor.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked without ProcessCommands")
	}
	assert.NotPanics(t, processor.Close)
}
