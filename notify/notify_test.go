package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitPublisherNotify(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewRabbitPublisher(ch, "yt-vision.tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"yt-vision.tasks:topic"}, ch.declared)

	event := Event{
		TaskID:     "task-1",
		SourceURL:  "https://example.com/v",
		State:      "completed",
		FrameCount: 12,
		FinishedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Notify(context.Background(), event))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "task-1", msg.MessageId)
	assert.Equal(t, []string{"yt-vision.tasks/task.status"}, ch.keys)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, event, got)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestRabbitPublisherNotifyError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, err := NewRabbitPublisher(ch, "x")
	require.NoError(t, err)

	assert.Error(t, p.Notify(context.Background(), Event{TaskID: "t"}))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), Event{}))
}
