package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed возвращается при работе с закрытой шиной
var ErrClosed = errors.New("eventbus: closed")

// Envelope — конверт события. Payload содержит JSON из events.go.
type Envelope struct {
	ID            string    // UUID
	Timestamp     time.Time // UTC
	Source        string    // узел или утилита, опубликовавшая событие
	EventType     string    // schematic.saved, schematic.cell_changed...
	Version       int       // версия Payload
	CorrelationID string    // ID схематики
	Priority      int       // 0..9, см. blockingPriority
	Payload       []byte
	Metadata      map[string]string
}

// Filter ограничивает подписку. Пустой список пропускает всё.
type Filter struct {
	Types   []string
	Sources []string
}

func (f Filter) match(ev *Envelope) bool {
	return oneOf(ev.EventType, f.Types) && oneOf(ev.Source, f.Sources)
}

func oneOf(val string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == val {
			return true
		}
	}
	return false
}

func matchFilter(ev *Envelope, f Filter) bool { return f.match(ev) }

type Subscription interface {
	Unsubscribe()
}

// Handler вызывается последовательно для каждого подписчика
type Handler func(ctx context.Context, ev *Envelope)

// Stats — счётчики шины
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus — шина событий схематик: in-memory или JetStream
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

// При переполнении очереди подписчика события с приоритетом ниже
// blockingPriority отбрасываются, остальные ждут места.
const blockingPriority = 5

// memoryBus держит отдельную очередь на каждого подписчика,
// поэтому подписчик видит события в порядке публикации.
type memoryBus struct {
	mu        sync.RWMutex
	subs      map[uint64]*memSub
	nextID    uint64
	queueSize int
	closed    bool
	wg        sync.WaitGroup

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

type memSub struct {
	bus     *memoryBus
	id      uint64
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan *Envelope
}

// NewMemoryBus создаёт шину в памяти; queueSize — ёмкость очереди одного подписчика
func NewMemoryBus(queueSize int) EventBus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &memoryBus{
		subs:      make(map[uint64]*memSub),
		queueSize: queueSize,
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return ErrClosed
	}
	mb.published.Add(1)

	for _, s := range mb.subs {
		if !s.filter.match(ev) {
			continue
		}
		select {
		case s.queue <- ev:
			continue
		default:
		}
		if ev.Priority < blockingPriority {
			mb.dropped.Add(1)
			continue
		}
		select {
		case s.queue <- ev:
		case <-s.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	cctx, cancel := context.WithCancel(ctx)

	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	s := &memSub{
		bus:     mb,
		id:      mb.nextID,
		filter:  f,
		handler: h,
		ctx:     cctx,
		cancel:  cancel,
		queue:   make(chan *Envelope, mb.queueSize),
	}
	mb.nextID++
	mb.subs[s.id] = s
	mb.wg.Add(1)
	mb.mu.Unlock()

	go s.run()
	go func() {
		<-cctx.Done()
		mb.remove(s)
	}()
	return s, nil
}

func (s *memSub) run() {
	defer s.bus.wg.Done()
	for ev := range s.queue {
		if s.ctx.Err() != nil {
			continue // отписан, очередь дочищается
		}
		s.handler(s.ctx, ev)
		s.bus.consumed.Add(1)
	}
}

func (s *memSub) Unsubscribe() {
	s.cancel()
	s.bus.remove(s)
}

func (mb *memoryBus) remove(s *memSub) {
	mb.mu.Lock()
	if _, ok := mb.subs[s.id]; ok {
		delete(mb.subs, s.id)
		close(s.queue)
	}
	mb.mu.Unlock()
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	inflight := 0
	for _, s := range mb.subs {
		inflight += len(s.queue)
	}
	mb.mu.RUnlock()

	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  inflight,
	}
}

// Close перестаёт принимать события и ждёт, пока подписчики разберут очереди
func (mb *memoryBus) Close() error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return nil
	}
	mb.closed = true
	subs := make([]*memSub, 0, len(mb.subs))
	for id, s := range mb.subs {
		delete(mb.subs, id)
		close(s.queue)
		subs = append(subs, s)
	}
	mb.mu.Unlock()

	mb.wg.Wait()
	for _, s := range subs {
		s.cancel()
	}
	return nil
}
