package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
)

const (
	defaultWebhookTimeout = 30 // секунд
	defaultWebhookRetries = 3
	maxWebhookBackoff     = 30 * time.Second
	webhookWorkers        = 8

	// SignatureHeader содержит "sha256=" + hex(HMAC-SHA256(body, secret))
	SignatureHeader = "X-Webhook-Signature"
	// AnyEvent в списке events подписывает webhook на все события
	AnyEvent = "*"
)

// OutboundWebhook — получатель событий схематик
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"`
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // секунды
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

func (w *OutboundWebhook) wants(eventType string) bool {
	if !w.Active {
		return false
	}
	for _, e := range w.Events {
		if e == eventType || e == AnyEvent {
			return true
		}
	}
	return false
}

// OutboundWebhookEvent — тело POST-запроса к webhook'у
type OutboundWebhookEvent struct {
	ID          string                 `json:"id"`
	EventType   string                 `json:"event_type"`
	Timestamp   int64                  `json:"timestamp"`
	ServerID    string                 `json:"server_id"`
	Schematic   string                 `json:"schematic,omitempty"`
	Data        map[string]interface{} `json:"data"`
	Source      string                 `json:"source"`
	Environment string                 `json:"environment"`
}

type delivery struct {
	hook  OutboundWebhook
	event OutboundWebhookEvent
	body  []byte
}

// OutboundWebhookManager хранит webhook'и и рассылает им события шины.
// Доставку выполняет фиксированный пул воркеров с повторами.
type OutboundWebhookManager struct {
	mu     sync.RWMutex
	hooks  map[uint64]*OutboundWebhook
	lastID uint64

	serverID    string
	environment string
	client      *http.Client
	backoff     time.Duration
	log         *logging.Logger

	queue     chan delivery
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewOutboundWebhookManager(serverID, environment string) *OutboundWebhookManager {
	m := &OutboundWebhookManager{
		hooks:       make(map[uint64]*OutboundWebhook),
		serverID:    serverID,
		environment: environment,
		client:      &http.Client{},
		backoff:     time.Second,
		log:         logging.GetComponentLogger("webhooks"),
		queue:       make(chan delivery, 1000),
		done:        make(chan struct{}),
	}
	m.wg.Add(webhookWorkers)
	for i := 0; i < webhookWorkers; i++ {
		go m.worker()
	}
	return m
}

func (m *OutboundWebhookManager) AddWebhook(w OutboundWebhook) *OutboundWebhook {
	if w.Timeout <= 0 {
		w.Timeout = defaultWebhookTimeout
	}
	if w.RetryCount <= 0 {
		w.RetryCount = defaultWebhookRetries
	}
	w.Active = true
	w.CreatedAt = time.Now()
	w.FailureCount = 0
	w.LastUsed = nil

	m.mu.Lock()
	m.lastID++
	w.ID = m.lastID
	m.hooks[w.ID] = &w
	m.mu.Unlock()

	m.log.Info("🔗 Webhook %d %q -> %s %v", w.ID, w.Name, w.URL, w.Events)
	return &w
}

// GetWebhooks возвращает копии, упорядоченные по ID
func (m *OutboundWebhookManager) GetWebhooks() []OutboundWebhook {
	m.mu.RLock()
	out := make([]OutboundWebhook, 0, len(m.hooks))
	for _, w := range m.hooks {
		out = append(out, *w)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *OutboundWebhookManager) GetWebhook(id uint64) *OutboundWebhook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.hooks[id]; ok {
		cp := *w
		return &cp
	}
	return nil
}

// UpdateWebhook применяет непустые поля patch; RetryCount < 0 значит "не менять"
func (m *OutboundWebhookManager) UpdateWebhook(id uint64, patch OutboundWebhook) *OutboundWebhook {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.hooks[id]
	if !ok {
		return nil
	}
	if patch.Name != "" {
		w.Name = patch.Name
	}
	if patch.URL != "" {
		w.URL = patch.URL
	}
	if patch.Secret != "" {
		w.Secret = patch.Secret
	}
	if len(patch.Events) > 0 {
		w.Events = patch.Events
	}
	if patch.Timeout > 0 {
		w.Timeout = patch.Timeout
	}
	if patch.RetryCount >= 0 {
		w.RetryCount = patch.RetryCount
	}
	w.Active = patch.Active

	cp := *w
	return &cp
}

func (m *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hooks[id]; !ok {
		return false
	}
	delete(m.hooks, id)
	return true
}

// GetEventTypes — события, на которые можно подписать webhook
func (m *OutboundWebhookManager) GetEventTypes() []string {
	return []string{eventbus.TypeSaved, eventbus.TypeDeleted, eventbus.TypeCellChanged}
}

// Forward подписывается на шину и ставит события схематик в очередь доставки
func (m *OutboundWebhookManager) Forward(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	return bus.Subscribe(ctx, eventbus.Filter{Types: m.GetEventTypes()}, func(_ context.Context, ev *eventbus.Envelope) {
		var data map[string]interface{}
		if err := json.Unmarshal(ev.Payload, &data); err != nil {
			m.log.Warn("Событие %s (%s): payload не JSON: %v", ev.EventType, ev.ID, err)
			return
		}
		m.dispatch(OutboundWebhookEvent{
			ID:          ev.ID,
			EventType:   ev.EventType,
			Timestamp:   ev.Timestamp.Unix(),
			ServerID:    m.serverID,
			Schematic:   ev.CorrelationID,
			Data:        data,
			Source:      ev.Source,
			Environment: m.environment,
		})
	})
}

// dispatch кодирует событие один раз и ставит по доставке на каждый подписанный webhook
func (m *OutboundWebhookManager) dispatch(event OutboundWebhookEvent) {
	m.mu.RLock()
	var targets []OutboundWebhook
	for _, w := range m.hooks {
		if w.wants(event.EventType) {
			targets = append(targets, *w)
		}
	}
	m.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		m.log.Error("❌ Кодирование события %s: %v", event.ID, err)
		return
	}
	for _, w := range targets {
		select {
		case <-m.done:
			return
		case m.queue <- delivery{hook: w, event: event, body: body}:
		default:
			m.log.Warn("⚠️  Очередь webhook'ов переполнена, %s для %q пропущено", event.EventType, w.Name)
		}
	}
}

func (m *OutboundWebhookManager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case d := <-m.queue:
			m.deliver(d)
		}
	}
}

// deliver делает до RetryCount+1 попыток с экспоненциальной паузой
func (m *OutboundWebhookManager) deliver(d delivery) {
	var signature string
	if d.hook.Secret != "" {
		signature = Sign(d.body, d.hook.Secret)
	}

	ok := false
	wait := m.backoff
	for attempt := 1; attempt <= d.hook.RetryCount+1; attempt++ {
		if attempt > 1 {
			select {
			case <-m.done:
				attempt = d.hook.RetryCount + 1
				continue
			case <-time.After(wait):
			}
			if wait *= 2; wait > maxWebhookBackoff {
				wait = maxWebhookBackoff
			}
		}
		err := m.post(d, signature)
		if err == nil {
			ok = true
			m.log.Debug("✅ %s -> %q", d.event.EventType, d.hook.Name)
			break
		}
		m.log.Warn("⚠️  Webhook %q, попытка %d/%d: %v", d.hook.Name, attempt, d.hook.RetryCount+1, err)
	}

	m.mu.Lock()
	if w, exists := m.hooks[d.hook.ID]; exists {
		now := time.Now()
		w.LastUsed = &now
		if !ok {
			w.FailureCount++
		}
	}
	m.mu.Unlock()
}

func (m *OutboundWebhookManager) post(d delivery, signature string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(d.hook.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.hook.URL, bytes.NewReader(d.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Blockverse-Webhooks/"+Version)
	req.Header.Set("X-Event-Type", d.event.EventType)
	req.Header.Set("X-Event-ID", d.event.ID)
	req.Header.Set("X-Server-ID", d.event.ServerID)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("статус %d", resp.StatusCode)
	}
	return nil
}

// Close останавливает воркеров; недоставленные события теряются
func (m *OutboundWebhookManager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

// Sign возвращает значение заголовка X-Webhook-Signature для тела запроса
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время
func VerifySignature(body []byte, secret, header string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(header))
}
