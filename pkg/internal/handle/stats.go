package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/service"
	"github.com/yeisme/depovault/pkg/log"
)

// GetStatsSummary 仓库整体统计.
//
//	@Summary	仓库统计汇总
//	@Tags		统计
//	@Produce	json
//	@Success	200	{object}	types.StatsSummary
//	@Router		/api/v1/stats [get]
func GetStatsSummary(c *gin.Context) {
	svc := service.NewStatsService(c.Request.Context())

	res, err := svc.Summary(c.Request.Context())
	if err != nil {
		log.Logger().Error().Err(err).Msg("stats summary failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, res)
}
