package types

import "sort"

// FileEntry 文件清单中的一项：一个键的头版本.
type FileEntry struct {
	Key         string `json:"key"`
	VersionID   string `json:"version_id"`
	FileID      string `json:"file_id"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"` // md5:<hex>
	ContentType string `json:"type,omitempty"`
	SortOrder   int    `json:"-"`
}

// FilesManifest 桶快照生成的有序文件清单，随记录修订一起持久化.
type FilesManifest []FileEntry

// ChecksumSet 返回清单的校验和集合，用于跨版本的文件同一性比较.
func (m FilesManifest) ChecksumSet() map[string]struct{} {
	set := make(map[string]struct{}, len(m))
	for _, f := range m {
		set[f.Checksum] = struct{}{}
	}

	return set
}

// EqualChecksums 判断两份清单的校验和集合是否完全一致.
func (m FilesManifest) EqualChecksums(other FilesManifest) bool {
	a, b := m.ChecksumSet(), other.ChecksumSet()
	if len(a) != len(b) {
		return false
	}

	for c := range a {
		if _, ok := b[c]; !ok {
			return false
		}
	}

	return true
}

// Sorted 返回按 SortOrder（次级按键名）排序的副本.
func (m FilesManifest) Sorted() FilesManifest {
	out := make(FilesManifest, len(m))
	copy(out, m)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}

		return out[i].Key < out[j].Key
	})

	return out
}

// UploadFileResponse 上传单个文件的结果.
type UploadFileResponse struct {
	ObjectVersionID string `json:"object_version_id"`
	Key             string `json:"key"`
	Size            int64  `json:"size"`
	Checksum        string `json:"checksum"`
}

// ListFilesResponse 存缴/记录文件列表.
type ListFilesResponse struct {
	Files []FileEntry `json:"files"`
	Total int         `json:"total"`
}

// SortFilesRequest 重排文件列表，keys 必须恰好覆盖当前全部键.
type SortFilesRequest struct {
	Keys []string `binding:"required" json:"keys"`
}

// MultipartInitRequest 开启大文件直传会话.
type MultipartInitRequest struct {
	Key         string `binding:"required" json:"key"`
	ContentType string `json:"content_type"`
}

// MultipartInitResponse 分片上传会话：客户端经预签名 URL 直传字节流.
type MultipartInitResponse struct {
	UploadID  string `json:"upload_id"`
	Key       string `json:"key"`
	PutURL    string `json:"put_url"`
	ExpiresIn int    `json:"expires_in"` // 秒
}

// FileDownloadResponse 预签名下载结果.
type FileDownloadResponse struct {
	Key       string `json:"key"`
	GetURL    string `json:"get_url"`
	ExpiresIn int    `json:"expires_in"` // 秒
}
