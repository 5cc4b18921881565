package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/events"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafka_Publish(t *testing.T) {
	w := &recordingWriter{}
	pub := events.NewKafkaWithWriter(w)

	evt := events.NewShipmentStateChanged("ord-1", "assign_courier", map[string]any{"awb_code": "AWB1"})
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("ord-1"), msg.Key)
	assert.Equal(t, evt.OccurredAt, msg.Time)

	var decoded events.ShipmentStateChanged
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.EventID, decoded.EventID)
	assert.Equal(t, events.TypeShipmentStateChanged, decoded.Type)
	assert.Equal(t, "AWB1", decoded.Fields["awb_code"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, evt.EventID, headers["event_id"])

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafka_PublishError(t *testing.T) {
	pub := events.NewKafkaWithWriter(&recordingWriter{err: errors.New("broker down")})

	err := pub.Publish(context.Background(), events.NewShipmentStateChanged("ord-1", "cancel", nil))
	assert.ErrorContains(t, err, "broker down")
}

func TestNewShipmentStateChanged_UniqueIDs(t *testing.T) {
	a := events.NewShipmentStateChanged("ord-1", "track", nil)
	b := events.NewShipmentStateChanged("ord-1", "track", nil)
	assert.NotEqual(t, a.EventID, b.EventID)
}
