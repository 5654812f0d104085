package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/handle"
	"github.com/yeisme/depovault/pkg/middleware"
)

// RegisterCommunityRoutes 注册社区与策展路由.
// 收录请求的裁决（accept/reject）要求 curator 及以上角色.
func RegisterCommunityRoutes(g *gin.RouterGroup) {
	communityRoutes := g.Group("/communities")
	{
		communityRoutes.POST("", handle.CreateCommunity)

		singleGroup := communityRoutes.Group("/:id")
		{
			singleGroup.GET("", handle.GetCommunity)
			singleGroup.GET("/requests", handle.ListCommunityRequests)

			curation := singleGroup.Group("/requests/:recid", middleware.RequireMinRole(middleware.RoleCurator))
			{
				curation.POST("/accept", handle.AcceptToCommunity)
				curation.POST("/reject", handle.RejectFromCommunity)
			}
		}
	}
}
