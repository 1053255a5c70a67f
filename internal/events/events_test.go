package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent_Envelope(t *testing.T) {
	event := NewEvent(AttemptGraded, AttemptGradedData{AttemptID: 7, ScorePercent: 70, Passed: true})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, AttemptGraded, event.Type)
	assert.Equal(t, "assessment-service", event.Source)
	assert.Equal(t, "1.0", event.Version)
	assert.False(t, event.Timestamp.IsZero())
}

func TestWatermillPublisher_DeliversJSON(t *testing.T) {
	logger := testLogger()
	channel := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	defer channel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := channel.Subscribe(ctx, "assessment.events")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(channel, "assessment.events", logger)
	event := NewEvent(TestCreated, TestCreatedData{TestID: 12, CreatedBy: "teacher-1", Kind: "course"})
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(TestCreated), msg.Metadata.Get("event_type"))

		var decoded struct {
			Type EventType       `json:"type"`
			Data TestCreatedData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, TestCreated, decoded.Type)
		assert.Equal(t, uint(12), decoded.Data.TestID)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	require.NoError(t, mock.Publish(ctx, NewEvent(AttemptStarted, nil)))
	require.NoError(t, mock.Publish(ctx, NewEvent(AttemptGraded, nil)))

	assert.Len(t, mock.GetPublishedEvents(), 2)
	assert.Len(t, mock.EventsOfType(AttemptGraded), 1)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())

	mock.FailWith(errors.New("broker down"))
	assert.Error(t, mock.Publish(ctx, NewEvent(PlanEdited, nil)))
}
