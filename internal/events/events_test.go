package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	deadline  bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	_, c.deadline = ctx.Deadline()
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestRabbitPublisher_PublishScheduleGenerated(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitPublisher{ch: ch, queue: "schedule.generated", timeout: time.Second}

	evt := ScheduleGenerated{
		ScheduleID:    "sch-1",
		TerminalState: "converged",
		CoverageRate:  100,
		FairnessScore: 1,
		Assignments:   []model.Assignment{{EmployeeID: "e1", ShiftID: "s1"}},
		GeneratedAt:   time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishScheduleGenerated(context.Background(), evt))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "schedule.generated", ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.True(t, ch.deadline)

	var decoded ScheduleGenerated
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, evt, decoded)
}

func TestRabbitPublisher_Error(t *testing.T) {
	p := &RabbitPublisher{ch: &fakeChannel{err: errors.New("channel closed")}, queue: "q"}

	err := p.PublishScheduleGenerated(context.Background(), ScheduleGenerated{ScheduleID: "sch-1"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodePublishError))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishScheduleGenerated(context.Background(), ScheduleGenerated{}))
	assert.NoError(t, p.Close())
}
