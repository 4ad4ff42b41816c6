package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// LoggerManager раздаёт логгеры компонентов (storage, api, eventbus...)
// с общими настройками вывода.
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	level   LogLevel
	toFile  bool
	out     io.Writer
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func newManager() *LoggerManager {
	return &LoggerManager{
		loggers: make(map[string]*Logger),
		level:   INFO,
		toFile:  true,
		out:     os.Stdout,
	}
}

// GetLoggerManager возвращает глобальный менеджер
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() { globalManager = newManager() })
	return globalManager
}

// Configure задаёт уровень и режим вывода. Уже созданные логгеры получают новый уровень,
// смена toFile действует на логгеры, созданные после вызова.
func (lm *LoggerManager) Configure(level LogLevel, toFile bool, out io.Writer) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.level = level
	lm.toFile = toFile
	if out != nil {
		lm.out = out
	}
	for _, l := range lm.loggers {
		l.SetLevels(level, minLevel(level, DEBUG))
	}
}

func minLevel(a, b LogLevel) LogLevel {
	if a < b {
		return a
	}
	return b
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}

	var l *Logger
	if lm.toFile {
		var err error
		if l, err = NewLogger(component); err != nil {
			return nil, fmt.Errorf("логгер %s: %w", component, err)
		}
		l.SetLevels(lm.level, minLevel(lm.level, DEBUG))
	} else {
		l = NewWriterLogger(component, lm.out, lm.level)
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger при ошибке файла возвращает консольный логгер
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return NewWriterLogger(component, os.Stdout, INFO)
	}
	return l
}

// CloseAll закрывает файлы и забывает все логгеры
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var firstErr error
	for component, l := range lm.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("закрытие логгера %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return firstErr
}

// ListComponents возвращает отсортированные имена компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetLogLevel переопределяет пороги одного компонента
func (lm *LoggerManager) SetLogLevel(component string, console, file LogLevel) error {
	lm.mu.Lock()
	l, ok := lm.loggers[component]
	lm.mu.Unlock()
	if !ok {
		return fmt.Errorf("логгер %s не найден", component)
	}
	l.SetLevels(console, file)
	return nil
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetServerLogger() *Logger  { return GetComponentLogger("server") }
func GetStorageLogger() *Logger { return GetComponentLogger("storage") }
func GetAPILogger() *Logger     { return GetComponentLogger("api") }
func GetVolumeLogger() *Logger  { return GetComponentLogger("volume") }
func GetEventLogger() *Logger   { return GetComponentLogger("eventbus") }
