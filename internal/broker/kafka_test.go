package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleWithRetryRedeliversSameMessage(t *testing.T) {
	msg := kafka.Message{Offset: 42, Value: []byte(`{}`)}

	var offsets []int64
	handler := func(_ context.Context, m kafka.Message) error {
		offsets = append(offsets, m.Offset)
		if len(offsets) < 3 {
			return errors.New("database unavailable")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), zap.NewNop(), handler, msg, &backoff.ZeroBackOff{})
	assert.NoError(t, err)
	assert.Equal(t, []int64{42, 42, 42}, offsets)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	handler := func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("database unavailable")
	}

	err := handleWithRetry(ctx, zap.NewNop(), handler, kafka.Message{}, &backoff.ZeroBackOff{})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestHandleWithRetryGivesUpOnPermanentError(t *testing.T) {
	poison := errors.New("unprocessable")

	calls := 0
	handler := func(context.Context, kafka.Message) error {
		calls++
		return backoff.Permanent(poison)
	}

	err := handleWithRetry(context.Background(), zap.NewNop(), handler, kafka.Message{}, &backoff.ZeroBackOff{})
	assert.ErrorIs(t, err, poison)
	assert.Equal(t, 1, calls)
}
