package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"partygame/internal/api/handlers"
	"partygame/internal/service"
	"partygame/pkg/config"
)

func SetupRoutes(r *gin.Engine, services *service.Services, cfg config.ServerConfig) {
	// 初始化 handlers
	sessionHandler := handlers.NewSessionHandler(services.Registry)
	wsHandler := handlers.NewWebSocketHandler(services.Hub, services.Registry, cfg.AllowedOrigins)

	r.Use(corsMiddleware(cfg.AllowedOrigins))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// WebSocket 連接點
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api")
	{
		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":   "ok",
				"sessions": services.Registry.SessionCount(),
			})
		})

		sessions := api.Group("/session")
		{
			sessions.POST("/create", sessionHandler.CreateSession)              // 建立場次
			sessions.GET("/:code", sessionHandler.GetSession)                   // 場次即時狀態
			sessions.POST("/:code/question", sessionHandler.StartQuestion)      // 開始題目
			sessions.GET("/:code/leaderboard", sessionHandler.Leaderboard)      // 排行榜
			sessions.GET("/:code/export/results", sessionHandler.ExportResults) // 匯出成績
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
