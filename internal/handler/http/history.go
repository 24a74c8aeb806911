package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
)

// HistoryReader 全局历史查询
type HistoryReader interface {
	ListRecent(ctx context.Context, page int) (*dto.HistoryPage, error)
	GameMoves(ctx context.Context, gameID uint) ([]domain.MoveRecord, error)
}

// HistoryHandler 分页历史和单局落子
type HistoryHandler struct {
	history HistoryReader
}

// NewHistoryHandler 创建 HistoryHandler 实例
func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	if history == nil {
		panic("HistoryReader cannot be nil for HistoryHandler")
	}
	return &HistoryHandler{history: history}
}

// List GET /api/history?page=N，页码非法时按第 1 页处理
func (h *HistoryHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	result, err := h.history.ListRecent(c.Request.Context(), page)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// Moves GET /api/history/:gameId/moves
func (h *HistoryHandler) Moves(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("gameId"), 10, 64)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid game ID format")
		return
	}
	moves, err := h.history.GameMoves(c.Request.Context(), uint(id))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"gameId": id, "moves": moves})
}
