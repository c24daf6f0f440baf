package entity

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatErrorMatchesSentinel(t *testing.T) {
	_, cause := strconv.ParseInt("abc", 10, 64)
	err := error(NewFormatError("abc", "invalid relative timestamp", cause))

	assert.ErrorIs(t, err, ErrFormat)
	assert.ErrorIs(t, err, strconv.ErrSyntax)
	assert.NotErrorIs(t, err, ErrInitialization)

	var formatErr *FormatError
	if assert.True(t, errors.As(err, &formatErr)) {
		assert.Equal(t, "invalid relative timestamp", formatErr.Reason)
	}
}

func TestInitializationErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("missing start time")
	err := error(NewInitializationError("direct", cause))

	assert.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "direct")
}
