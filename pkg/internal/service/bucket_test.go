package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/types"
)

// newBucket 在测试库里建一个桶.
func newBucket(t *testing.T, env *testEnv, quota, maxFile int64) *model.Bucket {
	t.Helper()

	var bucket *model.Bucket

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		var err error
		bucket, err = bucketCreate(tx, quota, maxFile)

		return err
	})
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	return bucket
}

// TestUploadAndList 测试上传、清单与覆盖写.
func TestUploadAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 0, 0)

	up := env.upload(t, bucket.ID, "data.csv", "a,b,c\n1,2,3\n")

	if !strings.HasPrefix(up.Checksum, "md5:") {
		t.Errorf("checksum %q missing md5 prefix", up.Checksum)
	}

	env.upload(t, bucket.ID, "readme.md", "# hi")

	list, err := env.buckets.ListFiles(ctx, bucket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if list.Total != 2 {
		t.Fatalf("expected 2 files, got %d", list.Total)
	}

	// 同键覆盖写：仍然只有一个头版本，字节数随之更新
	env.upload(t, bucket.ID, "data.csv", "a,b\n")

	list, err = env.buckets.ListFiles(ctx, bucket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if list.Total != 2 {
		t.Errorf("expected 2 files after overwrite, got %d", list.Total)
	}

	reloaded, err := bucketByID(env.dbc.DB, bucket.ID)
	if err != nil {
		t.Fatalf("reload bucket: %v", err)
	}

	wantSize := int64(len("a,b\n") + len("# hi"))
	if reloaded.Size != wantSize {
		t.Errorf("bucket size = %d, want %d", reloaded.Size, wantSize)
	}
}

// TestUploadQuota 测试配额与单文件上限.
func TestUploadQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 10, 6)

	content := "over-limit"

	_, err := env.buckets.UploadFile(ctx, bucket.ID, "big.bin",
		strings.NewReader(content), int64(len(content)), "application/octet-stream")
	if !errors.Is(err, types.ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}

	env.upload(t, bucket.ID, "a.txt", "123456")

	_, err = env.buckets.UploadFile(ctx, bucket.ID, "b.txt",
		strings.NewReader("123456"), 6, "text/plain")
	if !errors.Is(err, types.ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}

	// 覆盖写按净增长计配额
	env.upload(t, bucket.ID, "a.txt", "abcdef")
}

// TestBucketLockedRejectsWrites 测试锁定桶拒绝一切写操作.
func TestBucketLockedRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 0, 0)

	env.upload(t, bucket.ID, "a.txt", "aa")

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		return bucketLock(tx, bucket.ID)
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := env.buckets.UploadFile(ctx, bucket.ID, "b.txt",
		strings.NewReader("bb"), 2, "text/plain"); !errors.Is(err, types.ErrBucketLocked) {
		t.Errorf("upload on locked bucket: got %v", err)
	}

	if err := env.buckets.DeleteFile(ctx, bucket.ID, "a.txt"); !errors.Is(err, types.ErrBucketLocked) {
		t.Errorf("delete on locked bucket: got %v", err)
	}

	if err := env.buckets.SortFiles(ctx, bucket.ID, []string{"a.txt"}); !errors.Is(err, types.ErrBucketLocked) {
		t.Errorf("sort on locked bucket: got %v", err)
	}
}

// TestDeleteFileMarker 测试删除以删除标记表达，历史版本保留.
func TestDeleteFileMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 0, 0)

	env.upload(t, bucket.ID, "a.txt", "aa")

	if err := env.buckets.DeleteFile(ctx, bucket.ID, "a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := env.buckets.ListFiles(ctx, bucket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if list.Total != 0 {
		t.Errorf("expected empty manifest after delete, got %d", list.Total)
	}

	var versions int64
	env.dbc.Model(&model.ObjectVersion{}).Where("bucket_id = ?", bucket.ID).Count(&versions)

	if versions != 2 {
		t.Errorf("expected 2 version rows (data + marker), got %d", versions)
	}

	// 重复删除是幂等的
	if err := env.buckets.DeleteFile(ctx, bucket.ID, "a.txt"); err != nil {
		t.Errorf("second delete: %v", err)
	}

	if _, err := env.buckets.DownloadURL(ctx, bucket.ID, "a.txt"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("download of deleted key: got %v", err)
	}
}

// TestSortFiles 测试重排要求键集合完全覆盖.
func TestSortFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 0, 0)

	env.upload(t, bucket.ID, "a.txt", "aa")
	env.upload(t, bucket.ID, "b.txt", "bb")

	if err := env.buckets.SortFiles(ctx, bucket.ID, []string{"b.txt"}); err == nil {
		t.Error("expected error for incomplete key set")
	}

	if err := env.buckets.SortFiles(ctx, bucket.ID, []string{"b.txt", "c.txt"}); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown key, got %v", err)
	}

	if err := env.buckets.SortFiles(ctx, bucket.ID, []string{"b.txt", "a.txt"}); err != nil {
		t.Fatalf("sort: %v", err)
	}

	list, err := env.buckets.ListFiles(ctx, bucket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if list.Files[0].Key != "b.txt" || list.Files[1].Key != "a.txt" {
		t.Errorf("order = [%s %s], want [b.txt a.txt]", list.Files[0].Key, list.Files[1].Key)
	}
}

// TestBucketSnapshotSharesBytes 测试快照只复制行、共享 FileID.
func TestBucketSnapshotSharesBytes(t *testing.T) {
	env := newTestEnv(t)
	bucket := newBucket(t, env, 0, 0)

	env.upload(t, bucket.ID, "a.txt", "aa")
	env.upload(t, bucket.ID, "b.txt", "bb")

	if err := env.buckets.DeleteFile(context.Background(), bucket.ID, "b.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var snap *model.Bucket

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = bucketSnapshot(tx, bucket.ID, true)

		return err
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if !snap.Locked {
		t.Error("snapshot should be locked")
	}

	srcManifest, err := bucketManifest(env.dbc.DB, bucket.ID)
	if err != nil {
		t.Fatalf("src manifest: %v", err)
	}

	snapManifest, err := bucketManifest(env.dbc.DB, snap.ID)
	if err != nil {
		t.Fatalf("snap manifest: %v", err)
	}

	// 删除标记不进快照
	if len(snapManifest) != 1 || snapManifest[0].Key != "a.txt" {
		t.Fatalf("snapshot manifest = %+v, want single a.txt", snapManifest)
	}

	if snapManifest[0].FileID != srcManifest[0].FileID {
		t.Errorf("snapshot must share FileID, got %s vs %s", snapManifest[0].FileID, srcManifest[0].FileID)
	}

	if snapManifest[0].VersionID == srcManifest[0].VersionID {
		t.Errorf("snapshot must clone version rows, shared id %s", snapManifest[0].VersionID)
	}
}

// TestBucketSync 测试头状态同步：新增、覆盖、删除与 deleteExtras.
func TestBucketSync(t *testing.T) {
	env := newTestEnv(t)
	src := newBucket(t, env, 0, 0)
	dest := newBucket(t, env, 0, 0)

	env.upload(t, src.ID, "keep.txt", "same")
	env.upload(t, src.ID, "new.txt", "fresh")
	env.upload(t, dest.ID, "keep.txt", "same")
	env.upload(t, dest.ID, "stale.txt", "old")

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		return bucketSync(tx, src.ID, dest.ID, true)
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	srcManifest, _ := bucketManifest(env.dbc.DB, src.ID)
	destManifest, _ := bucketManifest(env.dbc.DB, dest.ID)

	if !srcManifest.EqualChecksums(destManifest) {
		t.Errorf("manifests differ after sync: src=%+v dest=%+v", srcManifest, destManifest)
	}

	byKey := make(map[string]types.FileEntry, len(destManifest))
	for _, f := range destManifest {
		byKey[f.Key] = f
	}

	if _, ok := byKey["stale.txt"]; ok {
		t.Error("stale.txt should be deleted by deleteExtras")
	}

	if byKey["new.txt"].Checksum == "" {
		t.Error("new.txt missing from dest after sync")
	}

	// src 中的删除同步到 dest
	if err := env.buckets.DeleteFile(context.Background(), src.ID, "new.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	err = env.dbc.Transaction(func(tx *gorm.DB) error {
		return bucketSync(tx, src.ID, dest.ID, true)
	})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	destManifest, _ = bucketManifest(env.dbc.DB, dest.ID)
	if len(destManifest) != 1 || destManifest[0].Key != "keep.txt" {
		t.Errorf("dest manifest = %+v, want single keep.txt", destManifest)
	}
}

// TestMultipartLifecycle 测试直传会话：开启、完成落头版本、放弃回收.
func TestMultipartLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 0, 0)

	init, err := env.buckets.InitiateMultipart(ctx, bucket.ID, "big.bin", "application/zip")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if init.PutURL == "" || init.UploadID == "" {
		t.Fatalf("incomplete init response: %+v", init)
	}

	// 字节未直传时完成失败
	if _, err := env.buckets.CompleteMultipart(ctx, bucket.ID, init.UploadID); err == nil {
		t.Error("complete before transfer should fail")
	}

	var mp model.MultipartUpload
	if err := env.dbc.First(&mp, "id = ?", init.UploadID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}

	payload := strings.Repeat("z", 1024)
	if err := env.blobs.Put(ctx, mp.FileID, strings.NewReader(payload), int64(len(payload)), "application/zip"); err != nil {
		t.Fatalf("direct put: %v", err)
	}

	res, err := env.buckets.CompleteMultipart(ctx, bucket.ID, init.UploadID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if res.Size != 1024 {
		t.Errorf("size = %d, want 1024", res.Size)
	}

	files, err := env.buckets.ListFiles(ctx, bucket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if files.Total != 1 || files.Files[0].Key != "big.bin" {
		t.Errorf("manifest = %+v, want single big.bin", files.Files)
	}

	// 完成后的会话不可再完成或放弃
	if _, err := env.buckets.CompleteMultipart(ctx, bucket.ID, init.UploadID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("re-complete: expected ErrNotFound, got %v", err)
	}

	// 放弃的会话不再阻断，行与字节被回收
	aborted, err := env.buckets.InitiateMultipart(ctx, bucket.ID, "scrap.bin", "")
	if err != nil {
		t.Fatalf("initiate second: %v", err)
	}

	if err := env.buckets.AbortMultipart(ctx, bucket.ID, aborted.UploadID); err != nil {
		t.Fatalf("abort: %v", err)
	}

	var count int64
	if err := env.dbc.Model(&model.MultipartUpload{}).
		Where("bucket_id = ? AND completed = ?", bucket.ID, false).
		Count(&count).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}

	if count != 0 {
		t.Errorf("ongoing sessions = %d, want 0", count)
	}
}

// TestMultipartRejectsLockedBucket 测试锁定桶拒绝开启会话.
func TestMultipartRejectsLockedBucket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bucket := newBucket(t, env, 0, 0)

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		return bucketLock(tx, bucket.ID)
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := env.buckets.InitiateMultipart(ctx, bucket.ID, "big.bin", ""); !errors.Is(err, types.ErrBucketLocked) {
		t.Errorf("expected ErrBucketLocked, got %v", err)
	}
}
