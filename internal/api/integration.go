package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/annel0/blockverse/internal/logging"
)

// ServerIntegration запускает REST сервер в фоне и останавливает его gracefully
type ServerIntegration struct {
	restServer *RestServer
	httpServer *http.Server
	errCh      chan error
}

// NewServerIntegration создает HTTP сервер для addr (например ":8088")
func NewServerIntegration(addr string, rs *RestServer) *ServerIntegration {
	return &ServerIntegration{
		restServer: rs,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           rs.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		errCh: make(chan error, 1),
	}
}

// Start занимает порт и обслуживает запросы в отдельной горутине
func (si *ServerIntegration) Start() error {
	ln, err := net.Listen("tcp", si.httpServer.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := si.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка REST API сервера: %v", err)
			si.errCh <- err
		}
		close(si.errCh)
	}()

	logging.Info("✅ REST API сервер запущен на %s", ln.Addr())
	logging.Info("📋 Эндпоинты: /health, /metrics, /api/auth/login, /api/schematics, /api/stats, /api/admin/*")
	return nil
}

// Errors сообщает о падении сервера после Start
func (si *ServerIntegration) Errors() <-chan error {
	return si.errCh
}

// Stop останавливает REST API сервер
func (si *ServerIntegration) Stop(ctx context.Context) error {
	logging.Info("🛑 Остановка REST API сервера...")
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := si.httpServer.Shutdown(ctx); err != nil {
		logging.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		return err
	}
	logging.Info("✅ REST API сервер остановлен")
	return nil
}
