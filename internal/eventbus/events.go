package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий сервиса схематик
const (
	TypeCellChanged = "schematic.cell_changed"
	TypeSaved       = "schematic.saved"
	TypeDeleted     = "schematic.deleted"
)

// PayloadVersion — версия JSON полезной нагрузки
const PayloadVersion = 1

// CellChanged — изменение данных одной ячейки схематики
type CellChanged struct {
	Schematic string   `json:"schematic"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Z         int      `json:"z"`
	Change    string   `json:"change"` // offer, remove, block…
	Layer     string   `json:"layer"`
	Result    string   `json:"result"`
	Values    []string `json:"values,omitempty"`
}

// Saved — схематика сохранена в хранилище
type Saved struct {
	Schematic string `json:"schematic"`
	Name      string `json:"name"`
	Size      int    `json:"size"` // байт в закодированном виде
}

// Deleted — схематика удалена
type Deleted struct {
	Schematic string `json:"schematic"`
}

// NewEnvelope упаковывает полезную нагрузку в конверт с новым UUID
func NewEnvelope(source, eventType, correlationID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        source,
		EventType:     eventType,
		Version:       PayloadVersion,
		CorrelationID: correlationID,
		Priority:      priorityFor(eventType),
		Payload:       data,
	}, nil
}

// Decode разбирает полезную нагрузку конверта
func Decode[T any](ev *Envelope) (T, error) {
	var out T
	if err := json.Unmarshal(ev.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	return out, nil
}

// Изменения ячеек можно терять при переполнении, сохранение и удаление нет
func priorityFor(eventType string) int {
	if eventType == TypeCellChanged {
		return 1
	}
	return 7
}
