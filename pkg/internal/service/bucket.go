package service

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/storage/s3"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// DefaultPresignedOpTimeout 默认预签名操作超时时间.
const DefaultPresignedOpTimeout = 15 * time.Minute

// BlobStore 抽象物理字节的读写：桶/清单以 FileID 寻址一段不可变字节流.
// 数据库是清单与校验和的权威来源，快照与同步只复制行、不复制字节.
type BlobStore interface {
	Put(ctx context.Context, fileID string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, fileID, filename string, expiry time.Duration) (string, error)
	PresignPut(ctx context.Context, fileID string, expiry time.Duration) (string, error)
	Stat(ctx context.Context, fileID string) (size int64, checksum string, err error)
	Remove(ctx context.Context, fileID string) error
}

// s3BlobStore 基于 MinIO 的 BlobStore 实现，所有字节放在单个物理桶内按 FileID 寻址.
type s3BlobStore struct {
	s3c    *s3.Client
	bucket string
}

func (b *s3BlobStore) Put(ctx context.Context, fileID string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}

	if _, err := b.s3c.PutObject(ctx, b.bucket, fileID, r, size, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", fileID, err)
	}

	return nil
}

func (b *s3BlobStore) PresignGet(ctx context.Context, fileID, filename string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))

	u, err := b.s3c.PresignedGetObject(ctx, b.bucket, fileID, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", fileID, err)
	}

	return u.String(), nil
}

func (b *s3BlobStore) PresignPut(ctx context.Context, fileID string, expiry time.Duration) (string, error) {
	u, err := b.s3c.PresignedPutObject(ctx, b.bucket, fileID, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", fileID, err)
	}

	return u.String(), nil
}

func (b *s3BlobStore) Stat(ctx context.Context, fileID string) (int64, string, error) {
	info, err := b.s3c.StatObject(ctx, b.bucket, fileID, minio.StatObjectOptions{})
	if err != nil {
		return 0, "", fmt.Errorf("stat blob %s: %w", fileID, err)
	}

	return info.Size, "md5:" + info.ETag, nil
}

func (b *s3BlobStore) Remove(ctx context.Context, fileID string) error {
	return b.s3c.RemoveObject(ctx, b.bucket, fileID, minio.RemoveObjectOptions{})
}

// BucketService 负责文件桶：上传、列表、排序、删除、快照与同步.
type BucketService struct {
	dbc   *db.Client
	blobs BlobStore
}

// NewBucketService 从 context 获取依赖实例.
func NewBucketService(c context.Context) *BucketService {
	dbc := ctxPkg.GetDBClient(c)
	s3c := ctxPkg.GetS3Client(c)

	if dbc == nil || dbc.DB == nil || s3c == nil || s3c.Client == nil {
		nlog.Logger().Fatal().Msg("storage clients not initialized")
	}

	return &BucketService{
		dbc:   dbc,
		blobs: &s3BlobStore{s3c: s3c, bucket: configs.GetConfig().S3.ObjectBucket()},
	}
}

// UploadFile 向桶写入一个键的新头版本，返回版本 ID 与校验和.
// 配额在上传时生效：超出桶配额返回 ErrQuotaExceeded，超出单文件上限返回 ErrFileTooLarge.
func (bs *BucketService) UploadFile(ctx context.Context, bucketID, key string,
	r io.Reader, size int64, contentType string,
) (*types.UploadFileResponse, error) {
	bucket, err := bucketByID(bs.dbc.WithContext(ctx), bucketID)
	if err != nil {
		return nil, err
	}

	if bucket.Locked {
		return nil, fmt.Errorf("%w: bucket %s", types.ErrBucketLocked, bucketID)
	}

	if bucket.MaxFileSize > 0 && size > bucket.MaxFileSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", types.ErrFileTooLarge, size, bucket.MaxFileSize)
	}

	prevHead, err := headVersion(bs.dbc.WithContext(ctx), bucketID, key)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	var replaced int64
	if prevHead != nil && !prevHead.IsDeleteMarker {
		replaced = prevHead.Size
	}

	if bucket.QuotaSize > 0 && bucket.Size-replaced+size > bucket.QuotaSize {
		return nil, fmt.Errorf("%w: bucket %s", types.ErrQuotaExceeded, bucketID)
	}

	// 边上传边计算 md5；字节流先于事务写入对象存储，
	// 事务失败只会留下一个不被任何清单引用的 FileID
	fileID := newULID()
	hasher := md5.New()

	if err := bs.blobs.Put(ctx, fileID, io.TeeReader(r, hasher), size, contentType); err != nil {
		return nil, err
	}

	checksum := fmt.Sprintf("md5:%x", hasher.Sum(nil))

	version := model.ObjectVersion{
		ID:          newULID(),
		BucketID:    bucketID,
		Key:         key,
		FileID:      fileID,
		Size:        size,
		Checksum:    checksum,
		ContentType: contentType,
		IsHead:      true,
	}

	err = bs.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if prevHead != nil {
			version.SortOrder = prevHead.SortOrder

			if err := tx.Model(&model.ObjectVersion{}).
				Where("id = ?", prevHead.ID).Update("is_head", false).Error; err != nil {
				return err
			}
		} else {
			var maxOrder int
			if err := tx.Model(&model.ObjectVersion{}).
				Where("bucket_id = ? AND is_head = ?", bucketID, true).
				Select("COALESCE(MAX(sort_order), -1)").Scan(&maxOrder).Error; err != nil {
				return err
			}

			version.SortOrder = maxOrder + 1
		}

		if err := tx.Create(&version).Error; err != nil {
			return fmt.Errorf("create object version: %w", err)
		}

		return tx.Model(&model.Bucket{}).Where("id = ?", bucketID).
			Update("size", gorm.Expr("size - ? + ?", replaced, size)).Error
	})
	if err != nil {
		return nil, err
	}

	return &types.UploadFileResponse{
		ObjectVersionID: version.ID,
		Key:             key,
		Size:            size,
		Checksum:        checksum,
	}, nil
}

// ListFiles 返回桶内全部有效头版本（按 SortOrder 排序）.
func (bs *BucketService) ListFiles(ctx context.Context, bucketID string) (*types.ListFilesResponse, error) {
	manifest, err := bucketManifest(bs.dbc.WithContext(ctx), bucketID)
	if err != nil {
		return nil, err
	}

	return &types.ListFilesResponse{Files: manifest, Total: len(manifest)}, nil
}

// SortFiles 重排文件列表；keys 必须恰好覆盖当前全部有效键.
func (bs *BucketService) SortFiles(ctx context.Context, bucketID string, keys []string) error {
	return bs.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bucket, err := bucketByID(tx, bucketID)
		if err != nil {
			return err
		}

		if bucket.Locked {
			return fmt.Errorf("%w: bucket %s", types.ErrBucketLocked, bucketID)
		}

		manifest, err := bucketManifest(tx, bucketID)
		if err != nil {
			return err
		}

		if len(keys) != len(manifest) {
			return fmt.Errorf("sort keys count %d does not match file count %d", len(keys), len(manifest))
		}

		known := make(map[string]struct{}, len(manifest))
		for _, f := range manifest {
			known[f.Key] = struct{}{}
		}

		for order, key := range keys {
			if _, ok := known[key]; !ok {
				return fmt.Errorf("%w: key %s not in bucket", types.ErrNotFound, key)
			}

			err := tx.Model(&model.ObjectVersion{}).
				Where("bucket_id = ? AND key = ? AND is_head = ?", bucketID, key, true).
				Update("sort_order", order).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// DeleteFile 删除桶内的一个键：写入删除标记作为新头版本，历史版本保留.
func (bs *BucketService) DeleteFile(ctx context.Context, bucketID, key string) error {
	return bs.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bucket, err := bucketByID(tx, bucketID)
		if err != nil {
			return err
		}

		if bucket.Locked {
			return fmt.Errorf("%w: bucket %s", types.ErrBucketLocked, bucketID)
		}

		head, err := headVersion(tx, bucketID, key)
		if err != nil {
			return err
		}

		if head.IsDeleteMarker {
			return nil
		}

		if err := tx.Model(&model.ObjectVersion{}).
			Where("id = ?", head.ID).Update("is_head", false).Error; err != nil {
			return err
		}

		marker := model.ObjectVersion{
			ID:             newULID(),
			BucketID:       bucketID,
			Key:            key,
			IsHead:         true,
			IsDeleteMarker: true,
			SortOrder:      head.SortOrder,
		}
		if err := tx.Create(&marker).Error; err != nil {
			return err
		}

		return tx.Model(&model.Bucket{}).Where("id = ?", bucketID).
			Update("size", gorm.Expr("size - ?", head.Size)).Error
	})
}

// DownloadURL 为桶内的一个键生成预签名下载 URL.
func (bs *BucketService) DownloadURL(ctx context.Context, bucketID, key string) (*types.FileDownloadResponse, error) {
	head, err := headVersion(bs.dbc.WithContext(ctx), bucketID, key)
	if err != nil {
		return nil, err
	}

	if head.IsDeleteMarker {
		return nil, fmt.Errorf("%w: file %s", types.ErrNotFound, key)
	}

	u, err := bs.blobs.PresignGet(ctx, head.FileID, key, DefaultPresignedOpTimeout)
	if err != nil {
		return nil, err
	}

	return &types.FileDownloadResponse{
		Key:       key,
		GetURL:    u,
		ExpiresIn: int(DefaultPresignedOpTimeout.Seconds()),
	}, nil
}

// ---- 事务内工具 ----

// bucketByID 取桶，不存在返回 ErrNotFound.
func bucketByID(tx *gorm.DB, bucketID string) (*model.Bucket, error) {
	var bucket model.Bucket

	err := tx.Where("id = ?", bucketID).First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: bucket %s", types.ErrNotFound, bucketID)
		}

		return nil, err
	}

	return &bucket, nil
}

// headVersion 取键当前的头版本（含删除标记）.
func headVersion(tx *gorm.DB, bucketID, key string) (*model.ObjectVersion, error) {
	var head model.ObjectVersion

	err := tx.Where("bucket_id = ? AND key = ? AND is_head = ?", bucketID, key, true).
		First(&head).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: key %s in bucket %s", types.ErrNotFound, key, bucketID)
		}

		return nil, err
	}

	return &head, nil
}

// bucketCreate 创建新桶.
func bucketCreate(tx *gorm.DB, quota, maxFileSize int64) (*model.Bucket, error) {
	bucket := model.Bucket{
		ID:          newULID(),
		QuotaSize:   quota,
		MaxFileSize: maxFileSize,
	}
	if err := tx.Create(&bucket).Error; err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &bucket, nil
}

// bucketLock 锁定桶，之后所有写操作被拒绝.
func bucketLock(tx *gorm.DB, bucketID string) error {
	return tx.Model(&model.Bucket{}).Where("id = ?", bucketID).
		Update("locked", true).Error
}

// bucketUnlock 解锁桶（new_version 草稿桶从快照解锁开始）.
func bucketUnlock(tx *gorm.DB, bucketID string) error {
	return tx.Model(&model.Bucket{}).Where("id = ?", bucketID).
		Update("locked", false).Error
}

// bucketSnapshot 创建桶的快照：新桶 + 复制全部有效头版本行，字节不复制（共享 FileID）.
func bucketSnapshot(tx *gorm.DB, srcID string, lock bool) (*model.Bucket, error) {
	src, err := bucketByID(tx, srcID)
	if err != nil {
		return nil, err
	}

	snap := model.Bucket{
		ID:          newULID(),
		Locked:      lock,
		QuotaSize:   src.QuotaSize,
		MaxFileSize: src.MaxFileSize,
		Size:        src.Size,
	}
	if err := tx.Create(&snap).Error; err != nil {
		return nil, fmt.Errorf("create snapshot bucket: %w", err)
	}

	heads, err := headVersions(tx, srcID)
	if err != nil {
		return nil, err
	}

	for _, h := range heads {
		if h.IsDeleteMarker {
			continue
		}

		clone := model.ObjectVersion{
			ID:          newULID(),
			BucketID:    snap.ID,
			Key:         h.Key,
			FileID:      h.FileID,
			Size:        h.Size,
			Checksum:    h.Checksum,
			ContentType: h.ContentType,
			IsHead:      true,
			SortOrder:   h.SortOrder,
		}
		if err := tx.Create(&clone).Error; err != nil {
			return nil, fmt.Errorf("snapshot object %s: %w", h.Key, err)
		}
	}

	return &snap, nil
}

// bucketSync 把 src 的头版本状态同步进 dest：
//   - src 有而 dest 没有（或 FileID 不同）的键，把 src 的头版本复制为 dest 新头
//   - src 中被删除（删除标记为头）的键，在 dest 中同样删除
//   - deleteExtras 时删除 dest 中 src 不存在的键
//
// 前置条件 dest 未锁定；完成后两边的 {key → FileID, 删除态} 一致.
func bucketSync(tx *gorm.DB, srcID, destID string, deleteExtras bool) error {
	dest, err := bucketByID(tx, destID)
	if err != nil {
		return err
	}

	if dest.Locked {
		return fmt.Errorf("%w: sync dest %s", types.ErrBucketLocked, destID)
	}

	srcHeads, err := headVersions(tx, srcID)
	if err != nil {
		return err
	}

	destHeads, err := headVersions(tx, destID)
	if err != nil {
		return err
	}

	destByKey := make(map[string]model.ObjectVersion, len(destHeads))
	for _, h := range destHeads {
		destByKey[h.Key] = h
	}

	var size int64

	for _, sh := range srcHeads {
		dh, exists := destByKey[sh.Key]
		delete(destByKey, sh.Key)

		if sh.IsDeleteMarker {
			if exists && !dh.IsDeleteMarker {
				if err := replaceHead(tx, destID, dh, model.ObjectVersion{
					ID:             newULID(),
					BucketID:       destID,
					Key:            sh.Key,
					IsHead:         true,
					IsDeleteMarker: true,
					SortOrder:      dh.SortOrder,
				}); err != nil {
					return err
				}
			}

			continue
		}

		size += sh.Size

		if exists && dh.FileID == sh.FileID {
			continue
		}

		clone := model.ObjectVersion{
			ID:          newULID(),
			BucketID:    destID,
			Key:         sh.Key,
			FileID:      sh.FileID,
			Size:        sh.Size,
			Checksum:    sh.Checksum,
			ContentType: sh.ContentType,
			IsHead:      true,
			SortOrder:   sh.SortOrder,
		}

		if exists {
			if err := replaceHead(tx, destID, dh, clone); err != nil {
				return err
			}
		} else if err := tx.Create(&clone).Error; err != nil {
			return fmt.Errorf("sync create %s: %w", sh.Key, err)
		}
	}

	if deleteExtras {
		for _, dh := range destByKey {
			if dh.IsDeleteMarker {
				continue
			}

			if err := replaceHead(tx, destID, dh, model.ObjectVersion{
				ID:             newULID(),
				BucketID:       destID,
				Key:            dh.Key,
				IsHead:         true,
				IsDeleteMarker: true,
				SortOrder:      dh.SortOrder,
			}); err != nil {
				return err
			}
		}
	}

	return tx.Model(&model.Bucket{}).Where("id = ?", destID).
		Update("size", size).Error
}

// replaceHead 把 old 降级并插入 next 作为新头.
func replaceHead(tx *gorm.DB, bucketID string, old model.ObjectVersion, next model.ObjectVersion) error {
	if err := tx.Model(&model.ObjectVersion{}).
		Where("id = ?", old.ID).Update("is_head", false).Error; err != nil {
		return err
	}

	if err := tx.Create(&next).Error; err != nil {
		return fmt.Errorf("replace head %s in %s: %w", next.Key, bucketID, err)
	}

	return nil
}

// headVersions 返回桶内全部头版本（含删除标记），按 SortOrder 排序.
func headVersions(tx *gorm.DB, bucketID string) ([]model.ObjectVersion, error) {
	var heads []model.ObjectVersion

	err := tx.Where("bucket_id = ? AND is_head = ?", bucketID, true).
		Order("sort_order ASC, key ASC").Find(&heads).Error
	if err != nil {
		return nil, err
	}

	return heads, nil
}

// bucketManifest 由桶头版本生成文件清单（不含删除标记）.
func bucketManifest(tx *gorm.DB, bucketID string) (types.FilesManifest, error) {
	heads, err := headVersions(tx, bucketID)
	if err != nil {
		return nil, err
	}

	manifest := make(types.FilesManifest, 0, len(heads))

	for _, h := range heads {
		if h.IsDeleteMarker {
			continue
		}

		manifest = append(manifest, types.FileEntry{
			Key:         h.Key,
			VersionID:   h.ID,
			FileID:      h.FileID,
			Size:        h.Size,
			Checksum:    h.Checksum,
			ContentType: h.ContentType,
			SortOrder:   h.SortOrder,
		})
	}

	return manifest, nil
}

// bucketHasOngoingMultipart 是否存在未完成的分片上传.
func bucketHasOngoingMultipart(tx *gorm.DB, bucketID string) (bool, error) {
	var count int64

	err := tx.Model(&model.MultipartUpload{}).
		Where("bucket_id = ? AND completed = ?", bucketID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// bucketRemove 删除桶（软删除）及其全部对象版本行（草稿被删除时）.
// 物理字节可能被其他桶的快照引用，回收留给离线任务.
func bucketRemove(tx *gorm.DB, bucketID string) error {
	if err := tx.Where("bucket_id = ?", bucketID).
		Delete(&model.ObjectVersion{}).Error; err != nil {
		return err
	}

	return tx.Where("id = ?", bucketID).Delete(&model.Bucket{}).Error
}
