package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/audit_replay_parse_service/internal/infrastructure/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExport(t *testing.T, lines []string, trailingNewline bool) string {
	t.Helper()
	content := strings.Join(lines, "\n")
	if trailingNewline {
		content += "\n"
	}
	path := filepath.Join(t.TempDir(), "export.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readAllChunks(t *testing.T, path string, workers int64) []string {
	t.Helper()
	chunks, err := DefineChunkWorkers(workers, path)
	require.NoError(t, err)

	ch := make(chan entity.Message, 1024)
	producer := memory.NewInMemoryProducer(ch)
	logger := logrus.New()

	var previousEnd int64
	for _, chunk := range chunks {
		assert.Equal(t, previousEnd, chunk.StartBits)
		previousEnd = chunk.FinalBits

		_, err := NewChunkProcessor(path, chunk.StartBits, chunk.FinalBits, producer, logger).ProcessChunk(context.Background())
		require.NoError(t, err)
	}
	close(ch)

	var lines []string
	for msg := range ch {
		lines = append(lines, msg.Value)
	}
	return lines
}

func TestChunkProcessorReadsEveryLineOnce(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("%d\u0001user%d\u0001open\u0001/data/%d\u0001\u000110.0.0.%d ", i*10, i, i, i))
	}

	for _, trailing := range []bool{true, false} {
		path := writeExport(t, lines, trailing)
		for _, workers := range []int64{1, 3, 7, 64, 5000} {
			assert.Equal(t, lines, readAllChunks(t, path, workers), "workers=%d trailing=%v", workers, trailing)
		}
	}
}

func TestChunkProcessorEmptyFile(t *testing.T) {
	path := writeExport(t, nil, false)

	chunks, err := DefineChunkWorkers(4, path)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDefineChunkWorkersMissingFile(t *testing.T) {
	_, err := DefineChunkWorkers(2, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
