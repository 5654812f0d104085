package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yeisme/depovault/pkg/cache"
)

// recordSummary 测试用的记录摘要结构体.
type recordSummary struct {
	Recid int64  `json:"recid"`
	Title string `json:"title"`
	DOI   string `json:"doi"`
}

// mockKVStore 模拟KV存储实现.
type mockKVStore struct {
	data map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{
		data: make(map[string][]byte),
	}
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if value, exists := m.data[key]; exists {
		return value, nil
	}

	return nil, fmt.Errorf("key not found")
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockKVStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Exists(ctx context.Context, key string) (bool, error) {
	_, exists := m.data[key]
	return exists, nil
}

func (m *mockKVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}

	return keys, nil
}

func (m *mockKVStore) Close() error {
	return nil
}

// TestNewCache 测试 NewCache 函数.
func TestNewCache(t *testing.T) {
	mockStore := newMockKVStore()
	cache := cache.NewCache(mockStore)

	if cache == nil {
		t.Fatal("NewCache returned nil")
	}
}

// TestCache_Get 测试 Get 方法.
func TestCache_Get(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	// 测试获取不存在的键
	_, err := cache.Get[recordSummary](ctx, c, "record:999")
	if err == nil {
		t.Error("Expected error for nonexistent key")
	}

	// 设置测试数据
	rec := recordSummary{Recid: 1, Title: "Solar flare dataset", DOI: "10.5072/depovault.1"}

	err = cache.Set(ctx, c, "record:1", rec, 0)
	if err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	// 获取存在的键
	got, err := cache.Get[recordSummary](ctx, c, "record:1")
	if err != nil {
		t.Fatalf("Failed to get cache: %v", err)
	}

	if got.Recid != rec.Recid || got.Title != rec.Title || got.DOI != rec.DOI {
		t.Errorf("Retrieved record %+v does not match original %+v", got, rec)
	}
}

// TestCache_Set 测试 Set 方法.
func TestCache_Set(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	rec := recordSummary{Recid: 2, Title: "Sequencing run", DOI: "10.5072/depovault.2"}

	err := cache.Set(ctx, c, "record:2", rec, 0)
	if err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	// 验证数据是否正确存储
	data, exists := mockStore.data["record:2"]
	if !exists {
		t.Fatal("Data not stored in mock store")
	}

	if len(data) == 0 {
		t.Error("Stored data is empty")
	}
}

// TestCache_Delete 测试 Delete 方法.
func TestCache_Delete(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	rec := recordSummary{Recid: 3, Title: "Survey images"}

	err := cache.Set(ctx, c, "record:3", rec, 0)
	if err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	exists, err := c.Exists(ctx, "record:3")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}

	if !exists {
		t.Error("Key should exist before deletion")
	}

	err = c.Delete(ctx, "record:3")
	if err != nil {
		t.Fatalf("Failed to delete cache: %v", err)
	}

	exists, err = c.Exists(ctx, "record:3")
	if err != nil {
		t.Fatalf("Failed to check existence after deletion: %v", err)
	}

	if exists {
		t.Error("Key should not exist after deletion")
	}
}

// TestCache_Exists 测试 Exists 方法.
func TestCache_Exists(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	exists, err := c.Exists(ctx, "record:999")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}

	if exists {
		t.Error("Nonexistent key should not exist")
	}

	rec := recordSummary{Recid: 4, Title: "Climate model output"}

	err = cache.Set(ctx, c, "record:4", rec, 0)
	if err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	exists, err = c.Exists(ctx, "record:4")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}

	if !exists {
		t.Error("Existing key should exist")
	}
}

// TestGetOrSet 测试 GetOrSet 方法.
func TestGetOrSet(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	callCount := 0
	getter := func() (recordSummary, error) {
		callCount++
		return recordSummary{Recid: 5, Title: "Proteomics raw files", DOI: "10.5072/depovault.5"}, nil
	}

	// 第一次调用，应该调用getter
	rec1, err := cache.GetOrSet(ctx, c, "record:5", getter, 0)
	if err != nil {
		t.Fatalf("Failed to get or set: %v", err)
	}

	if callCount != 1 {
		t.Errorf("Expected getter to be called once, got %d", callCount)
	}

	// 第二次调用，应该从缓存获取
	rec2, err := cache.GetOrSet(ctx, c, "record:5", getter, 0)
	if err != nil {
		t.Fatalf("Failed to get or set: %v", err)
	}

	if callCount != 1 {
		t.Errorf("Expected getter to be called only once, got %d", callCount)
	}

	if rec1.Recid != rec2.Recid || rec1.Title != rec2.Title || rec1.DOI != rec2.DOI {
		t.Errorf("Results don't match: %+v vs %+v", rec1, rec2)
	}
}

// TestGetOrSet_GetterError 测试 GetOrSet 方法中 getter 返回错误的情况.
func TestGetOrSet_GetterError(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	getter := func() (recordSummary, error) {
		return recordSummary{}, errors.New("getter error")
	}

	_, err := cache.GetOrSet(ctx, c, "record:error", getter, 0)
	if err == nil {
		t.Error("Expected error from getter")
	}

	if err.Error() != "getter error" {
		t.Errorf("Expected 'getter error', got '%s'", err.Error())
	}
}

// TestCache_Clear 测试 Clear 方法.
func TestCache_Clear(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	recs := []recordSummary{
		{Recid: 6, Title: "Telescope pointing logs"},
		{Recid: 7, Title: "Ocean buoy series"},
		{Recid: 8, Title: "Annotated corpus"},
	}

	for i, rec := range recs {
		key := fmt.Sprintf("record:%d", rec.Recid)

		err := cache.Set(ctx, c, key, rec, 0)
		if err != nil {
			t.Fatalf("Failed to set cache for record %d: %v", i, err)
		}
	}

	if len(mockStore.data) != len(recs) {
		t.Errorf("Expected %d items, got %d", len(recs), len(mockStore.data))
	}

	err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("Failed to clear cache: %v", err)
	}

	if len(mockStore.data) != 0 {
		t.Errorf("Expected 0 items after clear, got %d", len(mockStore.data))
	}
}

// TestCache_GenericTypes 测试缓存对不同数据类型的支持.
func TestCache_GenericTypes(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	// 字符串类型（DOI）
	err := cache.Set(ctx, c, "doi:latest", "10.5072/depovault.42", 0)
	if err != nil {
		t.Fatalf("Failed to set string: %v", err)
	}

	str, err := cache.Get[string](ctx, c, "doi:latest")
	if err != nil {
		t.Fatalf("Failed to get string: %v", err)
	}

	if str != "10.5072/depovault.42" {
		t.Errorf("Expected DOI string, got '%s'", str)
	}

	// 整数类型（修订号）
	err = cache.Set(ctx, c, "revision:latest", 3, 0)
	if err != nil {
		t.Fatalf("Failed to set int: %v", err)
	}

	num, err := cache.Get[int](ctx, c, "revision:latest")
	if err != nil {
		t.Fatalf("Failed to get int: %v", err)
	}

	if num != 3 {
		t.Errorf("Expected 3, got %d", num)
	}

	// 切片类型（社区列表）
	slice := []string{"astro", "bio", "climate"}

	err = cache.Set(ctx, c, "communities:record:42", slice, 0)
	if err != nil {
		t.Fatalf("Failed to set slice: %v", err)
	}

	got, err := cache.Get[[]string](ctx, c, "communities:record:42")
	if err != nil {
		t.Fatalf("Failed to get slice: %v", err)
	}

	if len(got) != len(slice) {
		t.Errorf("Slice length mismatch: expected %d, got %d", len(slice), len(got))
	}

	for i, v := range slice {
		if got[i] != v {
			t.Errorf("Slice element %d mismatch: expected %s, got %s", i, v, got[i])
		}
	}
}
