// Package router 管理路由配置，将 HTTP 路径绑定到 pkg/internal/handle 的处理器.
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes 将全部业务路由注册到 /api/v1 组.
func RegisterAPIRoutes(g *gin.RouterGroup) {
	RegisterDepositRoutes(g)
	RegisterRecordRoutes(g)
	RegisterCommunityRoutes(g)
	RegisterPIDRoutes(g)
	RegisterStatsRoutes(g)
	RegisterHealthCheckRoute(g)
	RegisterSchedulerRoutes(g)
}
