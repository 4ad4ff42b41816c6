package eventbus

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	defaultStream = "BLOCKVERSE_EVENTS"
	subjectPrefix = "blockverse"
)

// Поля конверта передаются заголовками, тело сообщения — Payload как есть
const (
	hdrType        = "Bv-Event-Type"
	hdrSource      = "Bv-Source"
	hdrTimestamp   = "Bv-Timestamp"
	hdrVersion     = "Bv-Version"
	hdrCorrelation = "Bv-Schematic"
	hdrPriority    = "Bv-Priority"
	hdrMetaPrefix  = "Bv-Meta-"
)

func subjectFor(eventType string) string {
	return subjectPrefix + "." + eventType
}

// JetStreamBus публикует события в стрим JetStream.
// Подписки эфемерные и получают только новые события.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// NewJetStreamBus подключается к NATS и создаёт стрим blockverse.>, если его нет.
// retention == 0 хранит события без ограничения по времени.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = defaultStream
	}
	nc, err := nats.Connect(url, nats.Name("blockverse-eventbus"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:       stream,
			Subjects:   []string{subjectPrefix + ".>"},
			Retention:  nats.LimitsPolicy,
			MaxAge:     retention,
			Storage:    nats.FileStorage,
			Duplicates: 2 * time.Minute,
		}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("jetstream stream %s: %w", stream, err)
		}
	}
	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

func encodeMsg(ev *Envelope) *nats.Msg {
	msg := nats.NewMsg(subjectFor(ev.EventType))
	msg.Data = ev.Payload
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	msg.Header.Set(hdrType, ev.EventType)
	msg.Header.Set(hdrSource, ev.Source)
	msg.Header.Set(hdrTimestamp, ev.Timestamp.UTC().Format(time.RFC3339Nano))
	msg.Header.Set(hdrVersion, strconv.Itoa(ev.Version))
	msg.Header.Set(hdrCorrelation, ev.CorrelationID)
	msg.Header.Set(hdrPriority, strconv.Itoa(ev.Priority))
	for k, v := range ev.Metadata {
		msg.Header.Set(hdrMetaPrefix+k, v)
	}
	return msg
}

func decodeMsg(msg *nats.Msg) *Envelope {
	h := msg.Header
	ev := &Envelope{
		ID:            h.Get(nats.MsgIdHdr),
		EventType:     h.Get(hdrType),
		Source:        h.Get(hdrSource),
		CorrelationID: h.Get(hdrCorrelation),
		Payload:       msg.Data,
	}
	ev.Timestamp, _ = time.Parse(time.RFC3339Nano, h.Get(hdrTimestamp))
	ev.Version, _ = strconv.Atoi(h.Get(hdrVersion))
	ev.Priority, _ = strconv.Atoi(h.Get(hdrPriority))
	for k, vals := range h {
		if len(k) > len(hdrMetaPrefix) && k[:len(hdrMetaPrefix)] == hdrMetaPrefix && len(vals) > 0 {
			if ev.Metadata == nil {
				ev.Metadata = make(map[string]string)
			}
			ev.Metadata[k[len(hdrMetaPrefix):]] = vals[0]
		}
	}
	return ev
}

// Publish ждёт подтверждения стрима; повтор с тем же ID отбрасывается сервером
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	if _, err := jb.js.PublishMsg(encodeMsg(ev), nats.Context(ctx)); err != nil {
		jb.dropped.Add(1)
		return fmt.Errorf("jetstream publish %s: %w", ev.EventType, err)
	}
	jb.published.Add(1)
	return nil
}

func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subject := subjectPrefix + ".>"
	if len(f.Types) == 1 {
		subject = subjectFor(f.Types[0])
	}

	sub, err := jb.js.Subscribe(subject, func(msg *nats.Msg) {
		ev := decodeMsg(msg)
		if f.match(ev) {
			h(ctx, ev)
			jb.consumed.Add(1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), nats.DeliverNew(), nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("jetstream subscribe %s: %w", subject, err)
	}
	return jetSub{sub}, nil
}

type jetSub struct{ s *nats.Subscription }

func (j jetSub) Unsubscribe() { _ = j.s.Unsubscribe() }

func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
	}
}

// Close отправляет накопленное и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
