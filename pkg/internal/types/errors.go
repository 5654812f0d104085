// Package types 定义服务层的请求/响应结构、规范化元数据契约与领域错误.
package types

import (
	"errors"
	"fmt"
	"net/http"
)

// 校验类错误：同步返回给调用方，不可重试.
var (
	// ErrMissingFiles 发布时桶内没有任何对象.
	ErrMissingFiles = errors.New("missing uploaded files")
	// ErrOngoingMultipartUpload 桶上仍有未完成的分片上传.
	ErrOngoingMultipartUpload = errors.New("multipart upload in progress")
	// ErrVersioningFiles 新版本的文件校验和集合与某个既有版本完全相同.
	ErrVersioningFiles = errors.New("new version files are identical to a previous version")
	// ErrInvalidLocalDOI 本地托管前缀下的 DOI 后缀不符合保留模板.
	ErrInvalidLocalDOI = errors.New("invalid DOI for locally managed prefix")
	// ErrInvalidDOI DOI 语法非法.
	ErrInvalidDOI = errors.New("malformed DOI")
)

// 并发类错误：瞬态，调用方可重试.
var (
	// ErrConcurrentVersion 同一概念上的并发 new_version/publish 冲突.
	ErrConcurrentVersion = errors.New("concurrent version operation on concept")
	// ErrPIDAlreadyAssigned assign 时目标已存在且未允许覆盖.
	ErrPIDAlreadyAssigned = errors.New("pid already assigned to an object")
)

// 策略类错误：状态机禁止的操作，不可重试.
var (
	// ErrPIDAlreadyExists (type, value) 已存在.
	ErrPIDAlreadyExists = errors.New("pid already exists")
	// ErrPIDInvalidAction 非法状态迁移（如 REGISTERED → RESERVED）.
	ErrPIDInvalidAction = errors.New("invalid pid state transition")
	// ErrCannotDelete 已发布过的存缴不可删除.
	ErrCannotDelete = errors.New("deposit cannot be deleted")
	// ErrNotFound 通用未找到.
	ErrNotFound = errors.New("not found")
	// ErrDepositNotDraft 操作要求存缴处于 draft 态.
	ErrDepositNotDraft = errors.New("deposit is not in draft state")
	// ErrDepositNotPublished 操作要求存缴处于 published 态.
	ErrDepositNotPublished = errors.New("deposit is not published")
	// ErrBucketLocked 对已锁定桶的写操作.
	ErrBucketLocked = errors.New("bucket is locked")
	// ErrExternalDOI 操作要求本地托管 DOI（如 new_version、register_concept_doi）.
	ErrExternalDOI = errors.New("operation requires a locally managed DOI")
)

// 资源类错误：上传时的配额检查.
var (
	// ErrQuotaExceeded 上传将超出桶配额.
	ErrQuotaExceeded = errors.New("bucket quota exceeded")
	// ErrFileTooLarge 上传超过单文件上限.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// FieldError 字段级错误，校验器累积后整体返回.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// ValidationError 元数据/契约校验失败，收集全部 (field, message) 而非首错即停.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("metadata validation failed with %d error(s)", len(e.Errors))
}

// Add 追加一个字段错误.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// HasErrors 是否收集到错误.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// MissingCommunityError 引用了不存在的社区.
type MissingCommunityError struct {
	Community string
}

func (e *MissingCommunityError) Error() string {
	return fmt.Sprintf("unknown community: %s", e.Community)
}

// ErrorEnvelope 对外统一错误信封 {status, message, errors?}.
type ErrorEnvelope struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// NewErrorEnvelope 将领域错误映射为错误信封与 HTTP 状态码.
func NewErrorEnvelope(err error) *ErrorEnvelope {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return &ErrorEnvelope{
			Status:  http.StatusBadRequest,
			Message: "Validation error.",
			Errors:  vErr.Errors,
		}
	}

	var cErr *MissingCommunityError
	if errors.As(err, &cErr) {
		return &ErrorEnvelope{
			Status:  http.StatusBadRequest,
			Message: cErr.Error(),
		}
	}

	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConcurrentVersion),
		errors.Is(err, ErrPIDAlreadyAssigned):
		status = http.StatusConflict
	case errors.Is(err, ErrPIDAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMissingFiles),
		errors.Is(err, ErrOngoingMultipartUpload),
		errors.Is(err, ErrVersioningFiles),
		errors.Is(err, ErrInvalidLocalDOI),
		errors.Is(err, ErrInvalidDOI):
		status = http.StatusBadRequest
	case errors.Is(err, ErrPIDInvalidAction),
		errors.Is(err, ErrCannotDelete),
		errors.Is(err, ErrDepositNotDraft),
		errors.Is(err, ErrDepositNotPublished),
		errors.Is(err, ErrBucketLocked),
		errors.Is(err, ErrExternalDOI):
		status = http.StatusForbidden
	}

	return &ErrorEnvelope{Status: status, Message: err.Error()}
}
