package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/handle"
)

// RegisterDepositRoutes 注册存缴生命周期相关路由.
func RegisterDepositRoutes(g *gin.RouterGroup) {
	depositRoutes := g.Group("/deposits")
	{
		// 新建与列表
		depositRoutes.POST("", handle.CreateDeposit)
		depositRoutes.GET("", handle.ListDeposits)

		// 单个存缴
		singleGroup := depositRoutes.Group("/:depid")
		{
			singleGroup.GET("", handle.GetDeposit)
			singleGroup.PUT("", handle.UpdateDeposit)
			singleGroup.DELETE("", handle.DeleteDeposit)

			// 状态机动作
			actionGroup := singleGroup.Group("/actions")
			{
				actionGroup.POST("/publish", handle.PublishDeposit)
				actionGroup.POST("/edit", handle.EditDeposit)
				actionGroup.POST("/discard", handle.DiscardDeposit)
				actionGroup.POST("/newversion", handle.NewDepositVersion)
				actionGroup.POST("/registerconceptdoi", handle.RegisterConceptDOI)
			}

			// 草稿文件
			filesGroup := singleGroup.Group("/files")
			{
				filesGroup.GET("", handle.ListDepositFiles)
				filesGroup.PUT("/sort", handle.SortDepositFiles)
				filesGroup.PUT("/:key", handle.UploadDepositFile)
				filesGroup.DELETE("/:key", handle.DeleteDepositFile)
				filesGroup.POST("/:key/download", handle.DownloadDepositFile)
			}

			// 大文件直传会话
			multipartGroup := singleGroup.Group("/multipart")
			{
				multipartGroup.POST("", handle.InitiateDepositMultipart)
				multipartGroup.POST("/:upload_id/complete", handle.CompleteDepositMultipart)
				multipartGroup.DELETE("/:upload_id", handle.AbortDepositMultipart)
			}
		}
	}
}
