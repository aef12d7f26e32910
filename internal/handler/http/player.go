package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arcade-rooms/internal/service"
)

// PlayerHandler 用户自己的玩家，以及全局的玩家归属查询
type PlayerHandler struct {
	players *service.PlayerService
	owners  *service.OwnershipService
}

func NewPlayerHandler(players *service.PlayerService, owners *service.OwnershipService) *PlayerHandler {
	return &PlayerHandler{players: players, owners: owners}
}

// CreatePlayerRequest 新玩家
type CreatePlayerRequest struct {
	Name  string `json:"name" binding:"required,max=32"`
	Emoji string `json:"emoji" binding:"max=16"`
	Color string `json:"color" binding:"max=16"`
}

func (h *PlayerHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreatePlayerRequest
	if !bindJSON(c, &req) {
		return
	}
	player, err := h.players.CreatePlayer(c.Request.Context(), userID, req.Name, req.Emoji, req.Color)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, player)
}

func (h *PlayerHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	players, err := h.players.ListPlayers(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"players": players})
}

func (h *PlayerHandler) Deactivate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.players.DeactivatePlayer(c.Request.Context(), userID, c.Param("playerId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Owners 全局目录中 playerId -> userId 的映射；?ids=a,b 只返回指定的玩家
func (h *PlayerHandler) Owners(c *gin.Context) {
	owners, err := h.owners.BuildGlobal(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if ids := strings.TrimSpace(c.Query("ids")); ids != "" {
		filtered := make(map[string]string)
		for _, id := range strings.Split(ids, ",") {
			if owner, ok := owners.OwnerOf(strings.TrimSpace(id)); ok {
				filtered[strings.TrimSpace(id)] = owner
			}
		}
		SuccessResponse(c, http.StatusOK, gin.H{"owners": filtered})
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"owners": owners})
}
