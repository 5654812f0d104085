package service

import (
	"context"
	"testing"
)

// TestStatsSummary 测试仓库统计的各项计数.
func TestStatsSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats := &StatsService{dbc: env.dbc}

	empty, err := stats.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if empty.Deposits != 0 || empty.Records != 0 || empty.TotalFileBytes != 0 {
		t.Errorf("empty repository summary = %+v", empty)
	}

	published := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})
	if _, err := env.deposits.Publish(ctx, published.Depid); err != nil {
		t.Fatalf("publish: %v", err)
	}

	env.createDraft(t, "bob@example.org", map[string]string{"notes.txt": "wip"})

	got, err := stats.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if got.Deposits != 2 {
		t.Errorf("deposits = %d, want 2", got.Deposits)
	}

	if got.Drafts != 1 {
		t.Errorf("drafts = %d, want 1", got.Drafts)
	}

	if got.Records != 1 {
		t.Errorf("records = %d, want 1", got.Records)
	}

	if got.Concepts != 2 {
		t.Errorf("concepts = %d, want 2", got.Concepts)
	}

	// 发布预留了版本 DOI 与概念 DOI，worker 尚未注册
	if got.PendingDOIs != 2 {
		t.Errorf("pending dois = %d, want 2", got.PendingDOIs)
	}

	if got.RegisteredDOIs != 0 {
		t.Errorf("registered dois = %d, want 0", got.RegisteredDOIs)
	}

	// 草稿桶 + 已发布快照桶 + 第二条草稿桶
	wantBytes := int64(4 + 4 + 3)
	if got.TotalFileBytes != wantBytes {
		t.Errorf("total bytes = %d, want %d", got.TotalFileBytes, wantBytes)
	}
}
