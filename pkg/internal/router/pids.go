package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/handle"
)

// RegisterPIDRoutes 注册持久标识符解析路由.
func RegisterPIDRoutes(g *gin.RouterGroup) {
	pidRoutes := g.Group("/pids")
	{
		pidRoutes.GET("/:type/:value", handle.ResolvePID)
		pidRoutes.GET("/:type/:value/redirect", handle.ResolvePIDRedirect)
	}
}
