package eventbus

import (
	"context"

	"github.com/annel0/blockverse/internal/logging"
)

// StartLoggingListener пишет события в лог компонента eventbus.
// Изменения ячеек идут на TRACE, сохранения и удаления на INFO.
func StartLoggingListener(bus EventBus) (Subscription, error) {
	log := logging.GetEventLogger()
	return bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, ev *Envelope) {
		switch ev.EventType {
		case TypeCellChanged:
			if p, err := Decode[CellChanged](ev); err == nil {
				log.Trace("%s (%d,%d,%d) %s/%s -> %s", p.Schematic, p.X, p.Y, p.Z, p.Change, p.Layer, p.Result)
			}
		case TypeSaved:
			if p, err := Decode[Saved](ev); err == nil {
				log.Info("💾 %s %q сохранена (%d байт) src=%s", p.Schematic, p.Name, p.Size, ev.Source)
			}
		case TypeDeleted:
			log.Info("🗑️ %s удалена src=%s", ev.CorrelationID, ev.Source)
		default:
			log.Debug("%s %s src=%s %dB", ev.ID, ev.EventType, ev.Source, len(ev.Payload))
		}
	})
}
