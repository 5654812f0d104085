package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/service"
	"github.com/yeisme/depovault/pkg/internal/types"
)

// recidParam 解析路径中的 :recid.
func recidParam(c *gin.Context) (int64, bool) {
	recid, err := strconv.ParseInt(c.Param("recid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorEnvelope{
			Status:  http.StatusBadRequest,
			Message: "invalid recid",
		})

		return 0, false
	}

	return recid, true
}

// GetRecord 读取已发布记录的头修订.
// recid 为概念 recid 时跟随重定向落到最新版本.
//
//	@Summary	读取记录
//	@Tags		记录
//	@Param		recid	path		int	true	"记录号"
//	@Success	200		{object}	types.RecordResponse
//	@Failure	404		{object}	types.ErrorEnvelope
//	@Router		/api/v1/records/{recid} [get]
func GetRecord(c *gin.Context) {
	recid, ok := recidParam(c)
	if !ok {
		return
	}

	// 概念 recid 解析到最新版本
	pids := service.NewPIDService(c.Request.Context())
	if target, err := pids.ResolveRedirect(c.Request.Context(), "recid", strconv.FormatInt(recid, 10)); err == nil {
		if v, pErr := strconv.ParseInt(target.PIDValue, 10, 64); pErr == nil {
			recid = v
		}
	}

	svc := service.NewRecordService(c.Request.Context())

	res, err := svc.Get(c.Request.Context(), recid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// GetRecordRevision 读取历史修订.
func GetRecordRevision(c *gin.Context) {
	recid, ok := recidParam(c)
	if !ok {
		return
	}

	revision, err := strconv.Atoi(c.Param("revision"))
	if err != nil || revision < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid revision"})

		return
	}

	svc := service.NewRecordService(c.Request.Context())

	res, err := svc.GetRevision(c.Request.Context(), recid, revision)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// ListRecordVersions 列出概念下的全部已发布版本.
func ListRecordVersions(c *gin.Context) {
	recid, ok := recidParam(c)
	if !ok {
		return
	}

	vsvc := service.NewVersioningService(c.Request.Context())

	conceptRecid, err := vsvc.ConceptOf(c.Request.Context(), recid)
	if err != nil {
		// 传入的可能已经是概念 recid
		conceptRecid = recid
	}

	svc := service.NewRecordService(c.Request.Context())

	res, err := svc.ListVersions(c.Request.Context(), conceptRecid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// DownloadRecordFile 生成已发布记录文件的预签名下载 URL.
func DownloadRecordFile(c *gin.Context) {
	recid, ok := recidParam(c)
	if !ok {
		return
	}

	rsvc := service.NewRecordService(c.Request.Context())

	rec, err := rsvc.Get(c.Request.Context(), recid)
	if err != nil {
		fail(c, err)

		return
	}

	key := c.Param("key")

	bsvc := service.NewBucketService(c.Request.Context())

	res, err := bsvc.DownloadURL(c.Request.Context(), rec.BucketID, key)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// ListRecordFiles 列出已发布记录的文件清单.
func ListRecordFiles(c *gin.Context) {
	recid, ok := recidParam(c)
	if !ok {
		return
	}

	svc := service.NewRecordService(c.Request.Context())

	rec, err := svc.Get(c.Request.Context(), recid)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, types.ListFilesResponse{
		Files: rec.Files,
		Total: len(rec.Files),
	})
}
