package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversFiltered(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeSaved}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.CorrelationID)
		mu.Unlock()
	})
	require.NoError(t, err)

	saved, err := NewEnvelope("test", TypeSaved, "s1", Saved{Schematic: "s1", Name: "house", Size: 42})
	require.NoError(t, err)
	deleted, err := NewEnvelope("test", TypeDeleted, "s2", Deleted{Schematic: "s2"})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), saved))
	require.NoError(t, bus.Publish(context.Background(), deleted))
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s1"}, got)

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Consumed)

	assert.ErrorIs(t, bus.Publish(context.Background(), saved), ErrClosed)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	ev, err := NewEnvelope("api", TypeCellChanged, "abc", CellChanged{Schematic: "abc", X: 1, Y: 2, Z: 3, Change: "offer"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Priority)

	payload, err := Decode[CellChanged](ev)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.Y)
	assert.Equal(t, "offer", payload.Change)

	ev.Payload = []byte("{")
	_, err = Decode[CellChanged](ev)
	assert.Error(t, err)
}

func TestMatchFilter(t *testing.T) {
	ev := &Envelope{EventType: TypeSaved, Source: "api"}
	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Sources: []string{"api"}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{TypeDeleted}}))
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	_, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)
	assert.Equal(t, float64(0), counterValue(t, reg, "blockverse_eventbus_messages_published_total"))

	ev, _ := NewEnvelope("test", TypeSaved, "x", Saved{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Equal(t, float64(2), counterValue(t, reg, "blockverse_eventbus_messages_published_total"))

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация")
}

func TestMemoryBusOrderAndDrop(t *testing.T) {
	bus := NewMemoryBus(2)

	release := make(chan struct{})
	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		<-release
		mu.Lock()
		got = append(got, ev.ID)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Первое событие забирает обработчик, два ложатся в очередь, четвёртое низкоприоритетное теряется
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: id, Priority: 1}))
		if i == 0 {
			require.Eventually(t, func() bool { return bus.Metrics().InFlight == 0 }, time.Second, time.Millisecond)
		}
	}
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "lost", Priority: 1}))
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	close(release)
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "1"}))
	require.Eventually(t, func() bool { return bus.Metrics().Consumed == 1 }, time.Second, time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "2"}))

	mu.Lock()
	assert.Equal(t, 1, count)
	mu.Unlock()
}

func TestMemoryBusSubscribeContextCancel(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) {})
	require.NoError(t, err)
	cancel()

	mb := bus.(*memoryBus)
	require.Eventually(t, func() bool {
		mb.mu.RLock()
		defer mb.mu.RUnlock()
		return len(mb.subs) == 0
	}, time.Second, time.Millisecond)
}

func TestJetStreamHeaders(t *testing.T) {
	ev, err := NewEnvelope("node-1", TypeSaved, "s1", Saved{Schematic: "s1", Name: "house", Size: 10})
	require.NoError(t, err)
	ev.Metadata = map[string]string{"user": "admin"}

	msg := encodeMsg(ev)
	assert.Equal(t, "blockverse.schematic.saved", msg.Subject)

	back := decodeMsg(msg)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.EventType, back.EventType)
	assert.Equal(t, ev.Source, back.Source)
	assert.Equal(t, ev.CorrelationID, back.CorrelationID)
	assert.Equal(t, ev.Priority, back.Priority)
	assert.Equal(t, ev.Version, back.Version)
	assert.True(t, ev.Timestamp.Equal(back.Timestamp))
	assert.Equal(t, ev.Payload, back.Payload)
	assert.Equal(t, "admin", back.Metadata["user"])
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
