// Package router 管理路由配置，用于设置HTTP服务的路由.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/handle"
	"github.com/yeisme/depovault/pkg/middleware"
)

// RegisterSchedulerRoutes 注册调度器相关路由，仅限 admin 角色访问.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	adm := g.Group("/scheduler", middleware.RequireMinRole(middleware.RoleAdmin))

	adm.GET("/jobs", handle.SchedulerJobs)

	adm.POST("/jobs/stop", handle.SchedulerStopJobs)

	adm.DELETE("/jobs/:id", handle.SchedulerRemoveJob)

	adm.GET("/queue/waiting", handle.SchedulerQueueWaiting)
}
