package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/schematic"
	"github.com/annel0/blockverse/internal/service"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
)

// maxImportSize ограничивает тело POST /api/schematics/import
const maxImportSize = 32 << 20

// CreateRequest — запрос на создание пустой схематики
type CreateRequest struct {
	Name string   `json:"name" binding:"required"`
	Size vec.Vec3 `json:"size"`
}

// GenerateRequest — запрос на генерацию рельефа; нулевые поля берутся по умолчанию
type GenerateRequest struct {
	Name          string   `json:"name"`
	Seed          int64    `json:"seed"`
	Size          vec.Vec3 `json:"size"`
	SeaLevel      *float64 `json:"sea_level"`
	NoiseScale    float64  `json:"noise_scale"`
	BiomeScale    float64  `json:"biome_scale"`
	ForestDensity *float64 `json:"forest_density"`
	Chest         *bool    `json:"chest"`
}

// OfferRequest — запись значения ключа
type OfferRequest struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value"`
}

// RemoveRequest — удаление значения ключа
type RemoveRequest struct {
	Key string `json:"key" binding:"required"`
}

// UndoRequest — откат по вытесненным значениям (поле replaced ответа offer)
type UndoRequest struct {
	Replaced map[string]any `json:"replaced" binding:"required"`
}

// CopyRequest — копирование значений из другой ячейки
type CopyRequest struct {
	From  vec.Vec3 `json:"from"`
	Merge string   `json:"merge"` // replace | original
}

// BlockRequest — установка блока, например "door[half=upper,open=true]"
type BlockRequest struct {
	State string `json:"state" binding:"required"`
}

// ResultView — JSON-представление data.TransactionResult
type ResultView struct {
	Type     string         `json:"type"`
	Success  map[string]any `json:"success"`
	Replaced map[string]any `json:"replaced"`
	Rejected map[string]any `json:"rejected"`
}

func valuesMap(values []data.Value) map[string]any {
	m := make(map[string]any, len(values))
	for _, v := range values {
		if !v.IsZero() {
			m[v.Key().ID] = v.Payload()
		}
	}
	return m
}

func resultView(r data.TransactionResult) ResultView {
	return ResultView{
		Type:     r.Type.String(),
		Success:  valuesMap(r.Success),
		Replaced: valuesMap(r.Replaced),
		Rejected: valuesMap(r.Rejected),
	}
}

// statusFor сопоставляет ошибки сервиса HTTP-статусам
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownKey),
		errors.Is(err, service.ErrInvalidSize),
		errors.Is(err, service.ErrOutOfBounds),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (rs *RestServer) serviceError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		fail(c, status, "Внутренняя ошибка сервера")
		return
	}
	fail(c, status, err.Error())
}

func schematicID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Неверный ID схематики")
		return uuid.Nil, false
	}
	return id, true
}

func cellParams(c *gin.Context) (uuid.UUID, vec.Vec3, bool) {
	id, valid := schematicID(c)
	if !valid {
		return uuid.Nil, vec.Vec3{}, false
	}
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		n, err := strconv.Atoi(c.Param(name))
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Неверная координата %s", name))
			return uuid.Nil, vec.Vec3{}, false
		}
		coords[i] = n
	}
	return id, vec.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: "+err.Error())
		return false
	}
	return true
}

func author(c *gin.Context) string {
	if user, exists := currentUser(c); exists {
		return user.Username
	}
	return ""
}

// handleListSchematics ищет схематики в каталоге (?name=&author=&limit=)
func (rs *RestServer) handleListSchematics(c *gin.Context) {
	q := storage.Query{Name: c.Query("name"), Author: c.Query("author")}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			fail(c, http.StatusBadRequest, "Неверный limit")
			return
		}
		q.Limit = n
	}
	entries, err := rs.schematics.List(c.Request.Context(), q)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Список схематик", gin.H{"schematics": entries, "total": len(entries)})
}

func (rs *RestServer) handleCreateSchematic(c *gin.Context) {
	var req CreateRequest
	if !bind(c, &req) {
		return
	}
	sum, err := rs.schematics.Create(c.Request.Context(), req.Name, author(c), req.Size)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Схематика создана", sum)
}

func (rs *RestServer) handleGenerateSchematic(c *gin.Context) {
	var req GenerateRequest
	if !bind(c, &req) {
		return
	}
	opts := schematic.DefaultGenerateOptions()
	opts.Author = author(c)
	if req.Name != "" {
		opts.Name = req.Name
	}
	if req.SeaLevel != nil {
		opts.SeaLevel = *req.SeaLevel
	}
	if req.NoiseScale > 0 {
		opts.NoiseScale = req.NoiseScale
	}
	if req.BiomeScale > 0 {
		opts.BiomeScale = req.BiomeScale
	}
	if req.ForestDensity != nil {
		opts.ForestDensity = *req.ForestDensity
	}
	if req.Chest != nil {
		opts.Chest = *req.Chest
	}

	sum, err := rs.schematics.Generate(c.Request.Context(), req.Seed, req.Size, opts)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Схематика сгенерирована", sum)
}

// handleImportSchematic принимает файл .schem в теле запроса
func (rs *RestServer) handleImportSchematic(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize+1))
	if err != nil {
		fail(c, http.StatusBadRequest, "Не удалось прочитать тело запроса")
		return
	}
	if len(body) > maxImportSize {
		fail(c, http.StatusRequestEntityTooLarge, "Слишком большой файл")
		return
	}
	sum, err := rs.schematics.Import(c.Request.Context(), body)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Схематика импортирована", sum)
}

func (rs *RestServer) handleGetSchematic(c *gin.Context) {
	id, valid := schematicID(c)
	if !valid {
		return
	}
	sum, err := rs.schematics.Summary(c.Request.Context(), id)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Схематика найдена", sum)
}

func (rs *RestServer) handleDeleteSchematic(c *gin.Context) {
	id, valid := schematicID(c)
	if !valid {
		return
	}
	if err := rs.schematics.Delete(c.Request.Context(), id); err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Схематика удалена", nil)
}

func (rs *RestServer) handleExportSchematic(c *gin.Context) {
	id, valid := schematicID(c)
	if !valid {
		return
	}
	b, err := rs.schematics.Export(c.Request.Context(), id)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.schem"`, id))
	c.Data(http.StatusOK, "application/octet-stream", b)
}

func (rs *RestServer) handleSaveSchematic(c *gin.Context) {
	id, valid := schematicID(c)
	if !valid {
		return
	}
	if err := rs.schematics.Save(c.Request.Context(), id); err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Схематика сохранена", nil)
}

func (rs *RestServer) handleSchematicKit(c *gin.Context) {
	id, valid := schematicID(c)
	if !valid {
		return
	}
	kit, err := rs.schematics.Kit(c.Request.Context(), id)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Набор собран", kit)
}

func (rs *RestServer) handleGetCell(c *gin.Context) {
	id, cell, valid := cellParams(c)
	if !valid {
		return
	}
	view, err := rs.schematics.Cell(c.Request.Context(), id, cell)
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Ячейка", view)
}

// transaction отвечает результатом транзакции; неуспех — это 200 с type=FAILURE
func (rs *RestServer) transaction(c *gin.Context, r data.TransactionResult, err error) {
	if err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Транзакция выполнена", resultView(r))
}

func (rs *RestServer) handleOffer(c *gin.Context) {
	id, cell, valid := cellParams(c)
	var req OfferRequest
	if !valid || !bind(c, &req) {
		return
	}
	r, err := rs.schematics.Offer(c.Request.Context(), id, cell, req.Key, req.Value)
	rs.transaction(c, r, err)
}

func (rs *RestServer) handleRemove(c *gin.Context) {
	id, cell, valid := cellParams(c)
	var req RemoveRequest
	if !valid || !bind(c, &req) {
		return
	}
	r, err := rs.schematics.Remove(c.Request.Context(), id, cell, req.Key)
	rs.transaction(c, r, err)
}

func (rs *RestServer) handleUndo(c *gin.Context) {
	id, cell, valid := cellParams(c)
	var req UndoRequest
	if !valid || !bind(c, &req) {
		return
	}
	r, err := rs.schematics.Undo(c.Request.Context(), id, cell, req.Replaced)
	rs.transaction(c, r, err)
}

func (rs *RestServer) handleCopy(c *gin.Context) {
	id, cell, valid := cellParams(c)
	var req CopyRequest
	if !valid || !bind(c, &req) {
		return
	}
	r, err := rs.schematics.Copy(c.Request.Context(), id, cell, req.From, req.Merge)
	rs.transaction(c, r, err)
}

func (rs *RestServer) handleSetBlock(c *gin.Context) {
	id, cell, valid := cellParams(c)
	var req BlockRequest
	if !valid || !bind(c, &req) {
		return
	}
	if err := rs.schematics.SetBlock(c.Request.Context(), id, cell, req.State); err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Блок установлен", nil)
}

// handleAddBlockEntity принимает сырые данные блок-сущности с записью Id
func (rs *RestServer) handleAddBlockEntity(c *gin.Context) {
	id, cell, valid := cellParams(c)
	var raw map[string]any
	if !valid || !bind(c, &raw) {
		return
	}
	if err := rs.schematics.AddBlockEntity(c.Request.Context(), id, cell, raw); err != nil {
		rs.serviceError(c, err)
		return
	}
	respond(c, http.StatusOK, "Блок-сущность добавлена", nil)
}
