package data

// MergeFunction объединяет существующее значение назначения с входящим.
// Должна быть чистой: вызывается синхронно ровно один раз на ключ.
type MergeFunction func(existing, incoming Value) Value

// ReplacementPreferred всегда выбирает входящее значение
func ReplacementPreferred(_, incoming Value) Value { return incoming }

// OriginalPreferred сохраняет существующее значение
func OriginalPreferred(existing, _ Value) Value { return existing }
