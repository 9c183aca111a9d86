package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu       sync.Mutex
	err      error
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Deliver(t *testing.T) {
	writer := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(writer)

	entry := newEntry(affiliate.EventTypePayoutApproved)
	require.NoError(t, sink.Deliver(context.Background(), entry))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, entry.AggregateID.String(), string(msg.Key), "keyed by aggregate for per-payout ordering")
	assert.Equal(t, entry.Payload, msg.Value)
	assert.Equal(t, entry.EventID.String(), headerValue(msg, "event_id"))
	assert.Equal(t, affiliate.EventTypePayoutApproved, headerValue(msg, "event_type"))

	require.NoError(t, sink.Close())
	assert.True(t, writer.closed)
}

func TestKafkaSink_FiltersEventTypes(t *testing.T) {
	writer := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(writer, affiliate.EventTypePayoutApproved)

	require.NoError(t, sink.Deliver(context.Background(), newEntry(affiliate.EventTypeRevenueAdmitted)))
	require.NoError(t, sink.Deliver(context.Background(), newEntry(affiliate.EventTypePayoutApproved)))

	assert.Len(t, writer.messages, 1)
}

func TestKafkaSink_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	sink := NewKafkaSinkWithWriter(writer)

	err := sink.Deliver(context.Background(), newEntry(affiliate.EventTypePayoutApproved))
	assert.ErrorContains(t, err, "leader not available")
}

func TestBusSink_Deliver(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	event := newTestEvent("TestEvent")
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)

	sink := NewBusSink(bus, serializer)
	entry := newEntry("TestEvent")
	entry.Payload = payload
	require.NoError(t, sink.Deliver(context.Background(), entry))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event.EventID(), handler.getHandled()[0].EventID())

	handler.setError(errors.New("handler failed"))
	assert.Error(t, sink.Deliver(context.Background(), entry), "handler failures are surfaced for retry")
}
