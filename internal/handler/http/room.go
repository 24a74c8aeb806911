package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
)

// RoomQuerier 房间的只读查询
type RoomQuerier interface {
	RoomList() []dto.RoomSummary
	RoomExists(roomID string) dto.RoomExistsResult
}

// RoomHandler 房间列表和存在性查询
type RoomHandler struct {
	rooms RoomQuerier
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(rooms RoomQuerier) *RoomHandler {
	if rooms == nil {
		panic("RoomQuerier cannot be nil for RoomHandler")
	}
	return &RoomHandler{rooms: rooms}
}

// List GET /api/rooms
func (h *RoomHandler) List(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, dto.RoomListUpdated{Rooms: h.rooms.RoomList()})
}

// Exists GET /api/rooms/:roomId/exists
func (h *RoomHandler) Exists(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, h.rooms.RoomExists(c.Param("roomId")))
}
