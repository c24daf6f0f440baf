package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/audit_replay_parse_service/internal/domain/entity"
)

var ErrNegativeRelativeTimestamp = errors.New("relative timestamp before replay start")

// OffsetRebaser anchors relative timestamps at start (epoch milliseconds).
func OffsetRebaser(start int64) entity.RelativeToAbsolute {
	return func(relative int64) (int64, error) {
		return start + relative, nil
	}
}

// BoundedRebaser behaves like OffsetRebaser but refuses events that would be
// scheduled before start.
func BoundedRebaser(start int64) entity.RelativeToAbsolute {
	return func(relative int64) (int64, error) {
		if relative < 0 {
			return 0, fmt.Errorf("%w: %d", ErrNegativeRelativeTimestamp, relative)
		}
		return start + relative, nil
	}
}

// ReplayStart is the absolute time the first event of a session is due.
func ReplayStart(now time.Time, delay time.Duration) int64 {
	return now.Add(delay).UnixMilli()
}
