package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/handler"
	"sudooom.im.client/internal/health"
	"sudooom.im.client/internal/metrics"
	"sudooom.im.client/internal/middleware"
)

// Readiness 就绪状态
type Readiness interface {
	LoggedIn() bool
	Warm() bool
}

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	checker *health.Checker,
	readiness Readiness,
	conversationHandler *handler.ConversationHandler,
	messageHandler *handler.MessageHandler,
	directoryHandler *handler.DirectoryHandler,
) *gin.Engine {
	// 设置 Gin 模式
	gin.SetMode(cfg.HTTP.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))

	// 运维接口
	r.GET("/health", gin.WrapH(checker))
	r.GET("/ready", func(c *gin.Context) {
		ready := readiness.LoggedIn() && readiness.Warm()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 会话接口
		conversations := v1.Group("/conversations")
		{
			conversations.GET("", conversationHandler.ListConversations)
			conversations.GET("/:kind/:name", conversationHandler.GetConversation)
			conversations.DELETE("/direct/:name", conversationHandler.ClearConversation)
		}

		// 消息接口
		v1.POST("/messages", messageHandler.SendMessage)

		// 用户接口
		users := v1.Group("/users")
		{
			users.GET("", directoryHandler.GetUsers)
			users.GET("/online", directoryHandler.GetOnlineUsers)
		}

		// 群组接口
		groups := v1.Group("/groups")
		{
			groups.GET("", directoryHandler.GetGroups)
			groups.GET("/mine", directoryHandler.GetMyGroups)
			groups.POST("", directoryHandler.CreateGroup)
			groups.POST("/:name/members", directoryHandler.AddMember)
		}
	}

	return r
}
