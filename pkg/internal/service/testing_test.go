package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/depovault/pkg/configs"
	"github.com/yeisme/depovault/pkg/internal/model"
	dbc "github.com/yeisme/depovault/pkg/internal/storage/db"
	kvc "github.com/yeisme/depovault/pkg/internal/storage/kv"
	"github.com/yeisme/depovault/pkg/internal/types"
)

var configOnce sync.Once

// initTestConfig 加载默认配置（无配置文件，只取 setDefaults 的值）.
func initTestConfig(t *testing.T) {
	t.Helper()
	configOnce.Do(func() {
		if err := configs.InitConfig(t.TempDir()); err != nil {
			t.Fatalf("init config: %v", err)
		}
	})
}

// testDB 打开独立的内存 sqlite 并迁移全部模型.
func testDB(t *testing.T) *dbc.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	// cache=shared 下仍限制为单连接，避免内存库在连接间分裂
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	return &dbc.Client{DB: gdb}
}

func testKV(t *testing.T) *kvc.Client {
	t.Helper()

	store, err := kvc.NewKVStore(context.Background(), kvc.KVTypeMemory, nil)
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return &kvc.Client{KVStore: store}
}

// fakeBlobStore 内存实现的 BlobStore，测试不触碰对象存储.
type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, fileID string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[fileID] = data

	return nil
}

func (f *fakeBlobStore) PresignGet(_ context.Context, fileID, filename string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + fileID + "?filename=" + filename, nil
}

func (f *fakeBlobStore) PresignPut(_ context.Context, fileID string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + fileID + "?method=put", nil
}

func (f *fakeBlobStore) Stat(_ context.Context, fileID string) (int64, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.blobs[fileID]
	if !ok {
		return 0, "", fmt.Errorf("blob %s not found", fileID)
	}

	return int64(len(data)), fmt.Sprintf("md5:%x", md5.Sum(data)), nil
}

func (f *fakeBlobStore) Remove(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, fileID)

	return nil
}

// testEnv 聚合一套互相共享同一数据库的服务实例.
type testEnv struct {
	dbc         *dbc.Client
	kvc         *kvc.Client
	blobs       *fakeBlobStore
	deposits    *DepositService
	buckets     *BucketService
	records     *RecordService
	pids        *PIDService
	versions    *VersioningService
	communities *CommunityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	initTestConfig(t)

	db := testDB(t)
	blobs := newFakeBlobStore()

	return &testEnv{
		dbc:         db,
		kvc:         testKV(t),
		blobs:       blobs,
		deposits:    &DepositService{dbc: db},
		buckets:     &BucketService{dbc: db, blobs: blobs},
		records:     &RecordService{dbc: db},
		pids:        &PIDService{dbc: db},
		versions:    &VersioningService{dbc: db},
		communities: &CommunityService{dbc: db},
	}
}

// createDraft 建一条可发布的草稿并上传一个文件.
func (e *testEnv) createDraft(t *testing.T, owner string, files map[string]string) *types.DepositResponse {
	t.Helper()

	dep, err := e.deposits.Create(context.Background(), owner, &types.CreateDepositRequest{
		Metadata: validMetadata(),
	})
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}

	for key, content := range files {
		e.upload(t, dep.BucketID, key, content)
	}

	return dep
}

func (e *testEnv) upload(t *testing.T, bucketID, key, content string) *types.UploadFileResponse {
	t.Helper()

	resp, err := e.buckets.UploadFile(context.Background(), bucketID, key,
		strings.NewReader(content), int64(len(content)), "text/plain")
	if err != nil {
		t.Fatalf("upload %s: %v", key, err)
	}

	return resp
}

func (e *testEnv) resolvePID(t *testing.T, pidType, value string) *model.PersistentIdentifier {
	t.Helper()

	pid, err := e.pids.Resolve(context.Background(), pidType, value)
	if err != nil {
		t.Fatalf("resolve pid %s:%s: %v", pidType, value, err)
	}

	return pid
}

// validMetadata 满足发布契约的最小元数据.
func validMetadata() types.DepositMetadata {
	return types.DepositMetadata{
		Title:           "Measurements of atmospheric methane",
		Creators:        []types.Creator{{Name: "Doe, John"}},
		Description:     "Monthly methane concentration series.",
		PublicationDate: "2026-01-15",
		ResourceType:    types.ResourceType{Type: "dataset"},
		AccessRight:     types.AccessRightOpen,
		License:         "CC0-1.0",
	}
}
