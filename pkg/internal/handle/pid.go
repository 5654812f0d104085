package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/service"
)

// ResolvePID 按 (type, value) 解析持久标识符.
func ResolvePID(c *gin.Context) {
	svc := service.NewPIDService(c.Request.Context())

	pid, err := svc.Resolve(c.Request.Context(), c.Param("type"), c.Param("value"))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, pid)
}

// ResolvePIDRedirect 跟随重定向返回最终 PID（概念 recid 落到最新版本）.
func ResolvePIDRedirect(c *gin.Context) {
	svc := service.NewPIDService(c.Request.Context())

	pid, err := svc.ResolveRedirect(c.Request.Context(), c.Param("type"), c.Param("value"))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, pid)
}
