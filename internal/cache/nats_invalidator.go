package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator реализует CacheInvalidator поверх NATS Pub/Sub.
// Узлы сервиса сообщают друг другу о перезаписанных схематиках.
type NATSInvalidator struct {
	conn    *nats.Conn
	config  *InvalidatorConfig
	subject string
	nodeID  string
	log     *logging.Logger

	subMu        sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	seen      map[string]time.Time // ID сообщений в окне дедупликации
	seenMutex sync.Mutex

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig содержит конфигурацию для NATS invalidator.
type InvalidatorConfig struct {
	NATSURL        string        `yaml:"nats_url"`
	Subject        string        `yaml:"subject"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	DedupeWindow   time.Duration `yaml:"dedupe_window"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// InvalidationMessage представляет сообщение об инвалидации кеша.
type InvalidationMessage struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

func (c *InvalidatorConfig) withDefaults() {
	if c.Subject == "" {
		c.Subject = "blockverse.cache.invalidation"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = 5 * time.Second
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 5 * time.Second
	}
}

// NewNATSInvalidator подключается к NATS. nodeID отличает собственные сообщения.
func NewNATSInvalidator(config *InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	config.withDefaults()
	log := logging.GetComponentLogger("cache")

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := newInvalidator(config, nodeID, log)
	n.conn = conn
	n.startDedupeCleanup()

	log.Info("NATS invalidator initialized: %s (subject: %s)", config.NATSURL, config.Subject)
	return n, nil
}

func newInvalidator(config *InvalidatorConfig, nodeID string, log *logging.Logger) *NATSInvalidator {
	return &NATSInvalidator{
		config:  config,
		subject: config.Subject,
		nodeID:  nodeID,
		log:     log,
		stopCh:  make(chan struct{}),
		seen:    make(map[string]time.Time),
	}
}

// PublishInvalidation отправляет уведомление об инвалидации ключа.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	data, err := n.encode(key)
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return err
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.PublishTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("flush invalidation: %w", err)
	}

	atomic.AddInt64(&n.publishedCount, 1)
	n.log.Debug("Published invalidation for key: %s", key)
	return nil
}

func (n *NATSInvalidator) encode(key string) ([]byte, error) {
	data, err := json.Marshal(&InvalidationMessage{
		ID:        uuid.NewString(),
		Key:       key,
		Timestamp: time.Now().UTC(),
		NodeID:    n.nodeID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invalidation message: %w", err)
	}
	return data, nil
}

// SubscribeInvalidations подписывается на уведомления об инвалидации.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}

	n.handler = handler
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) { n.handle(msg.Data) })
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()

	n.log.Info("Subscribed to cache invalidations on subject: %s", n.subject)
	return nil
}

// handle обрабатывает входящее сообщение об инвалидации.
func (n *NATSInvalidator) handle(data []byte) {
	atomic.AddInt64(&n.receivedCount, 1)

	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		n.log.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}

	// Собственные сообщения уже применены локально
	if msg.NodeID == n.nodeID {
		return
	}
	if n.isDuplicate(msg.ID) {
		return
	}

	if n.handler != nil {
		if err := n.handler(msg.Key); err != nil {
			atomic.AddInt64(&n.errorsCount, 1)
			n.log.Error("Invalidation handler failed for key %s: %v", msg.Key, err)
		}
	}
}

// isDuplicate отмечает ID и сообщает, встречался ли он в окне дедупликации.
func (n *NATSInvalidator) isDuplicate(id string) bool {
	n.seenMutex.Lock()
	defer n.seenMutex.Unlock()

	if last, ok := n.seen[id]; ok && time.Since(last) < n.config.DedupeWindow {
		return true
	}
	n.seen[id] = time.Now()
	return false
}

func (n *NATSInvalidator) unsubscribe() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.subscription == nil {
		return
	}
	if err := n.subscription.Unsubscribe(); err != nil {
		n.log.Error("Failed to unsubscribe from invalidations: %v", err)
	}
	n.subscription = nil
}

// startDedupeCleanup периодически чистит окно дедупликации.
func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func (n *NATSInvalidator) cleanupDedupe() {
	n.seenMutex.Lock()
	defer n.seenMutex.Unlock()

	now := time.Now()
	for id, ts := range n.seen {
		if now.Sub(ts) > n.config.DedupeWindow {
			delete(n.seen, id)
		}
	}
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}

// GetMetrics возвращает счётчики invalidator.
func (n *NATSInvalidator) GetMetrics() map[string]int64 {
	return map[string]int64{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
	}
}
