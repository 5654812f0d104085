package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/service"
	"github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/rule"
)

// createCommunityRequest 新建社区.
type createCommunityRequest struct {
	ID          string `binding:"required" json:"id"`
	Title       string `binding:"required" json:"title"`
	Description string `json:"description"`
}

// CreateCommunity 新建社区，属主为当前用户.
func CreateCommunity(c *gin.Context) {
	owner, err := checkUser(c)
	if owner == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	if err := rule.ValidateVar(req.ID, "community_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})

		return
	}

	svc := service.NewCommunityService(c.Request.Context())

	res, err := svc.Create(c.Request.Context(), req.ID, req.Title, owner, req.Description)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, res)
}

// GetCommunity 读取社区.
func GetCommunity(c *gin.Context) {
	svc := service.NewCommunityService(c.Request.Context())

	res, err := svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// ListCommunityRequests 列出社区的待处理收录请求.
func ListCommunityRequests(c *gin.Context) {
	svc := service.NewCommunityService(c.Request.Context())

	res, err := svc.ListRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// communityRecid 解析路径中的 :recid（社区策展操作）.
func communityRecid(c *gin.Context) (int64, bool) {
	recid, err := strconv.ParseInt(c.Param("recid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recid"})

		return 0, false
	}

	return recid, true
}

// AcceptToCommunity 接受记录进社区，作用于概念下全部版本.
//
//	@Summary	接受收录请求
//	@Tags		社区
//	@Param		id		path	string	true	"社区 ID"
//	@Param		recid	path	int		true	"记录号"
//	@Success	204
//	@Router		/api/v1/communities/{id}/requests/{recid}/accept [post]
func AcceptToCommunity(c *gin.Context) {
	l := log.Logger()

	recid, ok := communityRecid(c)
	if !ok {
		return
	}

	svc := service.NewCommunityService(c.Request.Context())

	if err := svc.AcceptRecord(c.Request.Context(), c.Param("id"), recid); err != nil {
		l.Warn().Err(err).Str("community", c.Param("id")).Int64("recid", recid).Msg("accept failed")
		fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// RejectFromCommunity 拒绝收录请求并移除既有成员关系，作用于概念下全部版本.
func RejectFromCommunity(c *gin.Context) {
	recid, ok := communityRecid(c)
	if !ok {
		return
	}

	svc := service.NewCommunityService(c.Request.Context())

	if err := svc.RejectRecord(c.Request.Context(), c.Param("id"), recid); err != nil {
		fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}
