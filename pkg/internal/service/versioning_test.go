package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/internal/types"
)

// seedConcept 建概念头并依次晋升给定的子版本.
func seedConcept(t *testing.T, env *testEnv, conceptRecid int64, children ...int64) {
	t.Helper()

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		if err := createConcept(tx, conceptRecid, children[0]); err != nil {
			return err
		}

		head, err := lockConcept(tx, conceptRecid)
		if err != nil {
			return err
		}

		for _, child := range children {
			if err := promoteDraft(tx, head, child); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("seed concept: %v", err)
	}
}

// TestVersioningChildrenOrder 测试子版本按插入顺序全序排列.
func TestVersioningChildrenOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedConcept(t, env, 1, 2, 3, 4)

	children, err := env.versions.Children(ctx, 1)
	if err != nil {
		t.Fatalf("children: %v", err)
	}

	want := []int64{2, 3, 4}
	if len(children) != len(want) {
		t.Fatalf("expected %d children, got %d", len(want), len(children))
	}

	for i, c := range children {
		if c != want[i] {
			t.Errorf("children[%d] = %d, want %d", i, c, want[i])
		}
	}

	last, err := env.versions.LastChild(ctx, 1)
	if err != nil {
		t.Fatalf("last child: %v", err)
	}

	if last != 4 {
		t.Errorf("last child = %d, want 4", last)
	}
}

// TestVersioningSiblings 测试前驱/后继查询.
func TestVersioningSiblings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedConcept(t, env, 1, 2, 3, 4)

	prev, next, err := env.versions.Siblings(ctx, 3)
	if err != nil {
		t.Fatalf("siblings: %v", err)
	}

	if prev != 2 || next != 4 {
		t.Errorf("siblings(3) = (%d, %d), want (2, 4)", prev, next)
	}

	prev, next, err = env.versions.Siblings(ctx, 2)
	if err != nil {
		t.Fatalf("siblings: %v", err)
	}

	if prev != 0 || next != 3 {
		t.Errorf("siblings(2) = (%d, %d), want (0, 3)", prev, next)
	}

	if _, _, err := env.versions.Siblings(ctx, 99); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown recid, got %v", err)
	}
}

// TestInsertDraftChildConflict 测试概念上至多一个草稿子节点.
func TestInsertDraftChildConflict(t *testing.T) {
	env := newTestEnv(t)

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		return createConcept(tx, 10, 11)
	})
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}

	err = env.dbc.Transaction(func(tx *gorm.DB) error {
		head, err := lockConcept(tx, 10)
		if err != nil {
			return err
		}

		return insertDraftChild(tx, head, 12)
	})
	if !errors.Is(err, types.ErrConcurrentVersion) {
		t.Errorf("expected ErrConcurrentVersion, got %v", err)
	}
}

// TestPromoteDraftClearsSlot 测试晋升后草稿位清空、可再次登记.
func TestPromoteDraftClearsSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		if err := createConcept(tx, 20, 21); err != nil {
			return err
		}

		head, err := lockConcept(tx, 20)
		if err != nil {
			return err
		}

		if err := promoteDraft(tx, head, 21); err != nil {
			return err
		}

		if head.DraftDepid != nil {
			t.Errorf("draft slot not cleared after promote")
		}

		return insertDraftChild(tx, head, 22)
	})
	if err != nil {
		t.Fatalf("promote then insert: %v", err)
	}

	concept, err := env.versions.ConceptOf(ctx, 21)
	if err != nil {
		t.Fatalf("concept of: %v", err)
	}

	if concept != 20 {
		t.Errorf("concept of 21 = %d, want 20", concept)
	}
}
