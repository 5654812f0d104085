package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/service"
	"github.com/yeisme/depovault/pkg/internal/types"
	"github.com/yeisme/depovault/pkg/log"
)

// fail 将领域错误映射成统一错误信封输出.
func fail(c *gin.Context, err error) {
	env := types.NewErrorEnvelope(err)
	c.JSON(env.Status, env)
}

// depidParam 解析路径中的 :depid.
func depidParam(c *gin.Context) (int64, bool) {
	depid, err := strconv.ParseInt(c.Param("depid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorEnvelope{
			Status:  http.StatusBadRequest,
			Message: "invalid depid",
		})

		return 0, false
	}

	return depid, true
}

// CreateDeposit 新建草稿存缴.
//
//	@Summary		新建存缴
//	@Description	校验并规范化元数据，预留 recid/概念 recid，创建草稿与文件桶.
//	@Tags			存缴
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.CreateDepositRequest	true	"元数据"
//	@Success		201		{object}	types.DepositResponse
//	@Failure		400		{object}	types.ErrorEnvelope
//	@Router			/api/v1/deposits [post]
func CreateDeposit(c *gin.Context) {
	l := log.Logger()

	owner, err := checkUser(c)
	if owner == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req types.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.Create(c.Request.Context(), owner, &req)
	if err != nil {
		l.Warn().Err(err).Msg("create deposit failed")
		fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, res)
}

// ListDeposits 按属主分页列出存缴.
func ListDeposits(c *gin.Context) {
	owner, err := checkUser(c)
	if owner == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req types.ListDepositsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})

		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.List(c.Request.Context(), owner, &req)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// GetDeposit 读取单个存缴.
func GetDeposit(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.Get(c.Request.Context(), depid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// UpdateDeposit 更新草稿元数据.
//
//	@Summary	更新存缴元数据
//	@Tags		存缴
//	@Param		depid	path		int							true	"存缴号"
//	@Param		request	body		types.UpdateDepositRequest	true	"元数据"
//	@Success	200		{object}	types.DepositResponse
//	@Failure	403		{object}	types.ErrorEnvelope	"非 draft 态"
//	@Router		/api/v1/deposits/{depid} [put]
func UpdateDeposit(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	var req types.UpdateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.Update(c.Request.Context(), depid, &req)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// DeleteDeposit 删除从未发布过的草稿，释放其 recid.
func DeleteDeposit(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	if err := svc.Delete(c.Request.Context(), depid); err != nil {
		fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// PublishDeposit 发布草稿为不可变记录修订.
//
//	@Summary	发布存缴
//	@Tags		存缴
//	@Param		depid	path		int	true	"存缴号"
//	@Success	202		{object}	types.PublishResponse
//	@Failure	400		{object}	types.ErrorEnvelope	"校验失败 / 文件缺失 / 版本文件重复"
//	@Failure	409		{object}	types.ErrorEnvelope	"并发版本冲突"
//	@Router		/api/v1/deposits/{depid}/actions/publish [post]
func PublishDeposit(c *gin.Context) {
	l := log.Logger()

	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.Publish(c.Request.Context(), depid)
	if err != nil {
		l.Warn().Err(err).Int64("depid", depid).Msg("publish failed")
		fail(c, err)

		return
	}

	c.JSON(http.StatusAccepted, res)
}

// EditDeposit 将已发布存缴重新打开为草稿.
func EditDeposit(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.Edit(c.Request.Context(), depid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// DiscardDeposit 丢弃草稿修改，回到最近发布的状态.
func DiscardDeposit(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.Discard(c.Request.Context(), depid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// NewDepositVersion 在概念下开新版本草稿.
func NewDepositVersion(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.NewVersion(c.Request.Context(), depid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, res)
}

// RegisterConceptDOI 为概念补铸概念 DOI.
func RegisterConceptDOI(c *gin.Context) {
	depid, ok := depidParam(c)
	if !ok {
		return
	}

	svc := service.NewDepositService(c.Request.Context())

	res, err := svc.RegisterConceptDOI(c.Request.Context(), depid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}
