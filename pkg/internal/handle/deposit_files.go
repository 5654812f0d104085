package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/depovault/pkg/internal/service"
	"github.com/yeisme/depovault/pkg/internal/types"
	"github.com/yeisme/depovault/pkg/log"
)

// depositBucket 解析 :depid 并返回其草稿桶 ID.
func depositBucket(c *gin.Context) (string, bool) {
	depid, ok := depidParam(c)
	if !ok {
		return "", false
	}

	svc := service.NewDepositService(c.Request.Context())

	dep, err := svc.Get(c.Request.Context(), depid)
	if err != nil {
		fail(c, err)

		return "", false
	}

	return dep.BucketID, true
}

// UploadDepositFile 向存缴桶上传文件，键取自路径参数.
//
//	@Summary		上传文件
//	@Description	流式写入对象存储并计算 md5 校验和；桶锁定、超配额或超单文件上限时拒绝.
//	@Tags			存缴文件
//	@Accept			octet-stream
//	@Param			depid	path		int		true	"存缴号"
//	@Param			key		path		string	true	"文件键"
//	@Success		201		{object}	types.UploadFileResponse
//	@Failure		403		{object}	types.ErrorEnvelope	"桶已锁定"
//	@Failure		413		{object}	types.ErrorEnvelope	"配额或单文件超限"
//	@Router			/api/v1/deposits/{depid}/files/{key} [put]
func UploadDepositFile(c *gin.Context) {
	l := log.Logger()

	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file key"})

		return
	}

	size := c.Request.ContentLength
	if size < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content length required"})

		return
	}

	svc := service.NewBucketService(c.Request.Context())

	res, err := svc.UploadFile(c.Request.Context(), bucketID, key,
		c.Request.Body, size, c.ContentType())
	if err != nil {
		l.Warn().Err(err).Str("bucket", bucketID).Str("key", key).Msg("upload failed")
		fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, res)
}

// ListDepositFiles 列出存缴的文件（头版本，按 sort_order 排序）.
func ListDepositFiles(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	svc := service.NewBucketService(c.Request.Context())

	res, err := svc.ListFiles(c.Request.Context(), bucketID)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// SortDepositFiles 重排文件列表，keys 必须恰好覆盖当前全部键.
func SortDepositFiles(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	var req types.SortFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewBucketService(c.Request.Context())

	if err := svc.SortFiles(c.Request.Context(), bucketID, req.Keys); err != nil {
		fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteDepositFile 删除一个键（写入删除标记）.
func DeleteDepositFile(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	key := c.Param("key")

	svc := service.NewBucketService(c.Request.Context())

	if err := svc.DeleteFile(c.Request.Context(), bucketID, key); err != nil {
		fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// InitiateDepositMultipart 开启大文件直传会话.
//
//	@Summary		开启大文件直传
//	@Description	预分配对象存储键并签发 PUT URL，会话未完成前该存缴无法发布.
//	@Tags			存缴文件
//	@Accept			json
//	@Param			depid	path		int								true	"存缴号"
//	@Param			request	body		types.MultipartInitRequest		true	"文件键与类型"
//	@Success		201		{object}	types.MultipartInitResponse
//	@Failure		403		{object}	types.ErrorEnvelope	"桶已锁定"
//	@Router			/api/v1/deposits/{depid}/multipart [post]
func InitiateDepositMultipart(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	var req types.MultipartInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewBucketService(c.Request.Context())

	res, err := svc.InitiateMultipart(c.Request.Context(), bucketID, req.Key, req.ContentType)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, res)
}

// CompleteDepositMultipart 完成直传会话，落一个新头版本.
func CompleteDepositMultipart(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	svc := service.NewBucketService(c.Request.Context())

	res, err := svc.CompleteMultipart(c.Request.Context(), bucketID, c.Param("upload_id"))
	if err != nil {
		log.Logger().Warn().Err(err).Str("bucket", bucketID).Msg("complete multipart failed")
		fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, res)
}

// AbortDepositMultipart 放弃直传会话.
func AbortDepositMultipart(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	svc := service.NewBucketService(c.Request.Context())

	if err := svc.AbortMultipart(c.Request.Context(), bucketID, c.Param("upload_id")); err != nil {
		fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// DownloadDepositFile 生成文件的预签名下载 URL.
func DownloadDepositFile(c *gin.Context) {
	bucketID, ok := depositBucket(c)
	if !ok {
		return
	}

	key := c.Param("key")

	svc := service.NewBucketService(c.Request.Context())

	res, err := svc.DownloadURL(c.Request.Context(), bucketID, key)
	if err != nil {
		fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}
