package http

import "github.com/gin-gonic/gin"

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Identity *IdentityHandler
	Rooms    *RoomHandler
	Members  *MemberHandler
	Sessions *SessionHandler
	Players  *PlayerHandler
}

// RegisterRoutes 在 /api 下注册所有路由，auth 保护除访客登录和游戏列表以外的路由
func (h *Handlers) RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	api := router.Group("/api")
	{
		api.POST("/identity/guest", h.Identity.Guest)
		api.GET("/games", h.Rooms.ListGames)

		me := api.Group("/me", auth)
		{
			me.GET("", h.Identity.Me)
			me.GET("/rooms", h.Members.MyRooms)
			me.GET("/session", h.Sessions.MySession)
		}

		players := api.Group("/players", auth)
		{
			players.POST("", h.Players.Create)
			players.GET("", h.Players.List)
			players.GET("/owners", h.Players.Owners)
			players.DELETE("/:playerId", h.Players.Deactivate)
		}

		rooms := api.Group("/rooms", auth)
		{
			rooms.POST("", h.Rooms.CreateRoom)
			rooms.GET("", h.Rooms.ListRooms)
			rooms.GET("/code/:code", h.Rooms.GetRoomByCode)
			rooms.GET("/:roomId", h.Rooms.GetRoom)
			rooms.PATCH("/:roomId", h.Rooms.UpdateRoom)
			rooms.DELETE("/:roomId", h.Rooms.DeleteRoom)
			rooms.GET("/:roomId/snapshot", h.Rooms.Snapshot)

			rooms.POST("/:roomId/join", h.Members.Join)
			rooms.POST("/:roomId/leave", h.Members.Leave)
			rooms.GET("/:roomId/members", h.Members.List)
			rooms.POST("/:roomId/kick", h.Members.Kick)
			rooms.POST("/:roomId/ban", h.Members.Ban)
			rooms.POST("/:roomId/unban", h.Members.Unban)
			rooms.GET("/:roomId/bans", h.Members.Bans)
			rooms.POST("/:roomId/invite", h.Members.Invite)
			rooms.GET("/:roomId/history", h.Members.History)

			rooms.POST("/:roomId/session", h.Sessions.Create)
			rooms.GET("/:roomId/session", h.Sessions.Get)
			rooms.DELETE("/:roomId/session", h.Sessions.Delete)
			rooms.POST("/:roomId/session/moves", h.Sessions.ApplyMove)
			rooms.POST("/:roomId/session/heartbeat", h.Sessions.Heartbeat)
			rooms.PUT("/:roomId/session/players", h.Sessions.UpdateActivePlayers)
		}
	}
}
