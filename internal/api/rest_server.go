package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/middleware"
	"github.com/annel0/blockverse/internal/service"
)

// Version — версия сервиса в /api/server
const Version = "v0.1.0"

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	auth       *auth.Authenticator
	schematics *service.Schematics
	webhooks   *OutboundWebhookManager
	started    time.Time
	name       string
	log        *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	ServiceName   string                  // имя сервиса в otel и /api/server
	Authenticator *auth.Authenticator     // вход и проверка токенов
	Schematics    *service.Schematics     // операции над схематиками
	Webhooks      *OutboundWebhookManager // необязателен
	Registry      *prometheus.Registry    // регистр метрик HTTP и /metrics
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Authenticator == nil || config.Schematics == nil {
		return nil, fmt.Errorf("api: authenticator and schematics are required")
	}
	if config.ServiceName == "" {
		config.ServiceName = "blockverse"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	log := logging.GetAPILogger()
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(log).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("blockverse", config.Registry)
	if err != nil {
		return nil, fmt.Errorf("api: регистрация HTTP метрик: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	server := &RestServer{
		router:     router,
		auth:       config.Authenticator,
		schematics: config.Schematics,
		webhooks:   config.Webhooks,
		started:    time.Now(),
		name:       config.ServiceName,
		log:        log,
	}
	server.setupRoutes()
	return server, nil
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := rs.router.Group("/api")

	// Эндпоинт для аутентификации (без JWT защиты)
	api.POST("/auth/login", rs.handleLogin)

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/stats", rs.handleStats)
		protected.GET("/server", rs.handleServerInfo)

		schem := protected.Group("/schematics")
		schem.GET("", rs.handleListSchematics)
		schem.POST("", rs.handleCreateSchematic)
		schem.POST("/generate", rs.handleGenerateSchematic)
		schem.POST("/import", rs.handleImportSchematic)
		schem.GET("/:id", rs.handleGetSchematic)
		schem.DELETE("/:id", rs.handleDeleteSchematic)
		schem.GET("/:id/export", rs.handleExportSchematic)
		schem.POST("/:id/save", rs.handleSaveSchematic)
		schem.GET("/:id/kit", rs.handleSchematicKit)

		cells := schem.Group("/:id/cells/:x/:y/:z")
		cells.GET("", rs.handleGetCell)
		cells.POST("/offer", rs.handleOffer)
		cells.POST("/remove", rs.handleRemove)
		cells.POST("/undo", rs.handleUndo)
		cells.POST("/copy", rs.handleCopy)
		cells.POST("/block", rs.handleSetBlock)
		cells.POST("/block-entity", rs.handleAddBlockEntity)

		// Административные эндпоинты (только для админов)
		admin := protected.Group("/admin")
		admin.Use(rs.adminMiddleware())
		{
			admin.POST("/register", rs.handleAdminRegister)

			if rs.webhooks != nil {
				admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
				admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
				admin.GET("/webhooks/events", rs.handleGetWebhookEventTypes)
				admin.GET("/webhooks/:id", rs.handleGetOutboundWebhook)
				admin.PUT("/webhooks/:id", rs.handleUpdateOutboundWebhook)
				admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
			}
		}
	}

	rs.router.GET("/health", rs.handleHealth)
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
	UserID    uint64    `json:"user_id,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
}

// RegisterRequest представляет запрос на регистрацию
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, GenericResponse{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, GenericResponse{Success: false, Message: message})
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Message: "Неверный формат запроса"})
		return
	}

	sess, err := rs.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, LoginResponse{Message: "Неверное имя пользователя или пароль"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, LoginResponse{Message: "Внутренняя ошибка сервера"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Message:   "Успешная авторизация",
		UserID:    sess.User.ID,
		IsAdmin:   sess.User.IsAdmin,
	})
}

// handleAdminRegister обрабатывает регистрацию нового пользователя (только для админов)
func (rs *RestServer) handleAdminRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 30 {
		fail(c, http.StatusBadRequest, "Имя пользователя должно быть от 3 до 30 символов")
		return
	}

	user, err := rs.auth.Register(req.Username, req.Password, req.IsAdmin)
	switch {
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
		fail(c, http.StatusBadRequest, "Пароль должен быть от 6 до 72 символов")
		return
	case errors.Is(err, auth.ErrUserExists):
		fail(c, http.StatusConflict, "Пользователь уже существует")
		return
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Ошибка создания пользователя")
		return
	}

	respond(c, http.StatusCreated, "Пользователь успешно создан", user)
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := struct {
		Process    processInfo   `json:"process"`
		Host       *hostInfo     `json:"host,omitempty"`
		Schematics service.Stats `json:"schematics"`
		ServerTime int64         `json:"server_time"`
	}{
		Process:    readProcess(rs.started),
		Schematics: rs.schematics.Stats(),
		ServerTime: time.Now().Unix(),
	}
	if host, err := readHost(); err == nil {
		stats.Host = host
	} else {
		rs.log.Debug("gopsutil: %v", err)
	}
	respond(c, http.StatusOK, "Статистика получена", stats)
}

// handleServerInfo возвращает информацию о сервере
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	respond(c, http.StatusOK, "Информация о сервере", gin.H{
		"version": Version,
		"name":    rs.name,
		"status":  "running",
		"uptime":  uptime(time.Since(rs.started)),
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}
