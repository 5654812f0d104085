package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/handle"
)

// RegisterRecordRoutes 注册已发布记录的读路由.
func RegisterRecordRoutes(g *gin.RouterGroup) {
	recordRoutes := g.Group("/records")
	{
		singleGroup := recordRoutes.Group("/:recid")
		{
			singleGroup.GET("", handle.GetRecord)
			singleGroup.GET("/revisions/:revision", handle.GetRecordRevision)
			singleGroup.GET("/versions", handle.ListRecordVersions)
			singleGroup.GET("/files", handle.ListRecordFiles)
			singleGroup.POST("/files/:key/download", handle.DownloadRecordFile)
		}
	}
}
