// Package api 汇总对外 HTTP 接口：业务路由组与 Swagger 文档.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/router"
)

// RegisterGroup 注册存缴/记录/社区等业务路由组到传入的 gin 引擎.
func RegisterGroup(e *gin.Engine) *gin.Engine {
	router.RegisterAPIRoutes(e.Group("/api/v1"))
	router.RegisterSwaggerRoute(e)

	return e
}
