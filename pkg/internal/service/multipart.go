package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/types"
)

// multipartByID 查进行中的分片上传会话，已完成或不存在返回 ErrNotFound.
func multipartByID(tx *gorm.DB, bucketID, uploadID string) (*model.MultipartUpload, error) {
	var mp model.MultipartUpload

	err := tx.Where("id = ? AND bucket_id = ? AND completed = ?", uploadID, bucketID, false).
		First(&mp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: multipart upload %s", types.ErrNotFound, uploadID)
	}

	if err != nil {
		return nil, err
	}

	return &mp, nil
}

// InitiateMultipart 开启大文件直传会话：预分配物理字节流 id 并签发 PUT URL.
// 会话未完成前桶上的发布会被拒绝.
func (bs *BucketService) InitiateMultipart(ctx context.Context, bucketID, key, contentType string,
) (*types.MultipartInitResponse, error) {
	bucket, err := bucketByID(bs.dbc.WithContext(ctx), bucketID)
	if err != nil {
		return nil, err
	}

	if bucket.Locked {
		return nil, fmt.Errorf("%w: bucket %s", types.ErrBucketLocked, bucketID)
	}

	mp := model.MultipartUpload{
		ID:          uuid.NewString(),
		BucketID:    bucketID,
		Key:         key,
		FileID:      newULID(),
		ContentType: contentType,
	}
	if err := bs.dbc.WithContext(ctx).Create(&mp).Error; err != nil {
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}

	u, err := bs.blobs.PresignPut(ctx, mp.FileID, DefaultPresignedOpTimeout)
	if err != nil {
		return nil, err
	}

	return &types.MultipartInitResponse{
		UploadID:  mp.ID,
		Key:       key,
		PutURL:    u,
		ExpiresIn: int(DefaultPresignedOpTimeout.Seconds()),
	}, nil
}

// CompleteMultipart 完成直传会话：以对象存储中的实际字节为准落一个新头版本.
// 配额在完成时生效，与 UploadFile 一致.
func (bs *BucketService) CompleteMultipart(ctx context.Context, bucketID, uploadID string,
) (*types.UploadFileResponse, error) {
	mp, err := multipartByID(bs.dbc.WithContext(ctx), bucketID, uploadID)
	if err != nil {
		return nil, err
	}

	size, checksum, err := bs.blobs.Stat(ctx, mp.FileID)
	if err != nil {
		return nil, fmt.Errorf("multipart upload %s not yet transferred: %w", uploadID, err)
	}

	version := model.ObjectVersion{
		ID:          newULID(),
		BucketID:    bucketID,
		Key:         mp.Key,
		FileID:      mp.FileID,
		Size:        size,
		Checksum:    checksum,
		ContentType: mp.ContentType,
		IsHead:      true,
	}

	err = bs.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bucket, err := bucketByID(tx, bucketID)
		if err != nil {
			return err
		}

		if bucket.Locked {
			return fmt.Errorf("%w: bucket %s", types.ErrBucketLocked, bucketID)
		}

		if bucket.MaxFileSize > 0 && size > bucket.MaxFileSize {
			return fmt.Errorf("%w: %d > %d bytes", types.ErrFileTooLarge, size, bucket.MaxFileSize)
		}

		prevHead, err := headVersion(tx, bucketID, mp.Key)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return err
		}

		var replaced int64
		if prevHead != nil && !prevHead.IsDeleteMarker {
			replaced = prevHead.Size
		}

		if bucket.QuotaSize > 0 && bucket.Size-replaced+size > bucket.QuotaSize {
			return fmt.Errorf("%w: bucket %s", types.ErrQuotaExceeded, bucketID)
		}

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

		if err := tx.Model(&model.Bucket{}).Where("id = ?", bucketID).
			Update("size", gorm.Expr("size - ? + ?", replaced, size)).Error; err != nil {
			return err
		}

		return tx.Model(&model.MultipartUpload{}).
			Where("id = ?", mp.ID).Update("completed", true).Error
	})
	if err != nil {
		return nil, err
	}

	return &types.UploadFileResponse{
		ObjectVersionID: version.ID,
		Key:             mp.Key,
		Size:            size,
		Checksum:        checksum,
	}, nil
}

// AbortMultipart 放弃直传会话并尽力回收已传字节.
func (bs *BucketService) AbortMultipart(ctx context.Context, bucketID, uploadID string) error {
	mp, err := multipartByID(bs.dbc.WithContext(ctx), bucketID, uploadID)
	if err != nil {
		return err
	}

	// 字节可能尚未直传，删除失败不阻塞会话回收
	_ = bs.blobs.Remove(ctx, mp.FileID)

	return bs.dbc.WithContext(ctx).Delete(&model.MultipartUpload{}, "id = ?", mp.ID).Error
}
