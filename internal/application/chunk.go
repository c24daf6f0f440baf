package application

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/sirupsen/logrus"
)

// Chunk is a byte range [StartBits, FinalBits) of an export file. Both ends
// fall on line starts so chunks can be read independently.
type Chunk struct {
	StartBits int64
	FinalBits int64
}

type ChunkProcessor struct {
	offsetStart int64
	offsetEnd   int64
	filepath    string
	producer    entity.MessageProducer
	logger      logrus.FieldLogger
}

func NewChunkProcessor(filepath string, offsetStart, offsetEnd int64, producer entity.MessageProducer, logger logrus.FieldLogger) *ChunkProcessor {
	return &ChunkProcessor{
		offsetStart: offsetStart,
		offsetEnd:   offsetEnd,
		filepath:    filepath,
		producer:    producer,
		logger:      logger.WithField("chunk", fmt.Sprintf("%d-%d", offsetStart, offsetEnd)),
	}
}

// DefineChunkWorkers splits the file at filepath into at most workers chunks
// aligned on newlines.
func DefineChunkWorkers(workers int64, filepath string) ([]Chunk, error) {
	if workers < 1 {
		workers = 1
	}

	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("error getting file info: %w", err)
	}
	filesize := fileInfo.Size()
	bytesPerWorker := filesize / workers

	var chunks []Chunk
	var currentStart int64
	for i := int64(1); i <= workers && currentStart < filesize; i++ {
		currentEnd := filesize
		if i < workers && bytesPerWorker > 0 {
			currentEnd, err = nextLineStart(file, max(i*bytesPerWorker, currentStart+1), filesize)
			if err != nil {
				return nil, err
			}
		}
		if currentEnd <= currentStart {
			continue
		}

		chunks = append(chunks, Chunk{
			StartBits: currentStart,
			FinalBits: currentEnd,
		})
		currentStart = currentEnd
	}
	return chunks, nil
}

// nextLineStart returns the offset of the first line starting at or after pos.
func nextLineStart(file *os.File, pos, filesize int64) (int64, error) {
	if pos >= filesize {
		return filesize, nil
	}
	if _, err := file.Seek(pos-1, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek error: %w", err)
	}

	skipped, err := bufio.NewReader(file).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("error scanning for line end: %w", err)
	}
	return min(pos-1+int64(len(skipped)), filesize), nil
}

// ProcessChunk sends every line of the chunk to the producer, without the
// line terminator, and returns how many lines were sent.
func (c *ChunkProcessor) ProcessChunk(ctx context.Context) (int, error) {
	file, err := os.Open(c.filepath)
	if err != nil {
		return 0, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(c.offsetStart, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek error: %w", err)
	}

	bufferedReader := bufio.NewReader(io.LimitReader(file, c.offsetEnd-c.offsetStart))
	sent := 0

	for {
		lineBytes, err := bufferedReader.ReadString('\n')
		if err != nil && err != io.EOF {
			return sent, fmt.Errorf("error reading line: %w", err)
		}

		// fields are kept byte for byte, only the terminator goes
		line := strings.TrimSuffix(lineBytes, "\n")
		if line != "" {
			if sendErr := c.producer.Send(ctx, line); sendErr != nil {
				return sent, fmt.Errorf("error sending line: %w", sendErr)
			}
			sent++
		}

		if err == io.EOF {
			break
		}
	}

	c.logger.WithField("lines", sent).Debug("chunk processed")
	return sent, nil
}
