package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// VersioningService 维护概念 recid 与版本 recid 的父子图：
// 子节点按插入顺序全序排列，至多一个草稿子节点.
type VersioningService struct {
	dbc *db.Client
}

// NewVersioningService 从 context 获取依赖实例.
func NewVersioningService(c context.Context) *VersioningService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	return &VersioningService{dbc: dbc}
}

// Children 返回概念下全部已发布版本 recid（插入顺序）.
func (vs *VersioningService) Children(ctx context.Context, conceptRecid int64) ([]int64, error) {
	return versioningChildren(vs.dbc.WithContext(ctx), conceptRecid)
}

// LastChild 返回概念的最新已发布版本 recid，没有时返回 0.
func (vs *VersioningService) LastChild(ctx context.Context, conceptRecid int64) (int64, error) {
	children, err := versioningChildren(vs.dbc.WithContext(ctx), conceptRecid)
	if err != nil {
		return 0, err
	}

	if len(children) == 0 {
		return 0, nil
	}

	return children[len(children)-1], nil
}

// Siblings 返回某版本在概念链中的前驱与后继（0 表示不存在）.
func (vs *VersioningService) Siblings(ctx context.Context, recid int64) (prev, next int64, err error) {
	tx := vs.dbc.WithContext(ctx)

	var child model.VersioningChild
	if err := tx.Where("child_recid = ?", recid).First(&child).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, fmt.Errorf("%w: recid %d not in any concept", types.ErrNotFound, recid)
		}

		return 0, 0, err
	}

	children, err := versioningChildren(tx, child.ConceptRecid)
	if err != nil {
		return 0, 0, err
	}

	for i, c := range children {
		if c != recid {
			continue
		}

		if i > 0 {
			prev = children[i-1]
		}

		if i < len(children)-1 {
			next = children[i+1]
		}

		break
	}

	return prev, next, nil
}

// ConceptOf 返回某版本 recid 的概念 recid.
func (vs *VersioningService) ConceptOf(ctx context.Context, recid int64) (int64, error) {
	var child model.VersioningChild

	err := vs.dbc.WithContext(ctx).Where("child_recid = ?", recid).First(&child).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: recid %d not in any concept", types.ErrNotFound, recid)
		}

		return 0, err
	}

	return child.ConceptRecid, nil
}

// ---- 事务内工具 ----

// lockConcept 对概念头行加写锁并返回该行；发布与 new_version 都从这里入手，
// 第二个并发调用会阻塞到第一个提交后才拿到最新状态.
func lockConcept(tx *gorm.DB, conceptRecid int64) (*model.VersioningHead, error) {
	var head model.VersioningHead

	err := forUpdate(tx).Where("concept_recid = ?", conceptRecid).First(&head).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: concept %d", types.ErrNotFound, conceptRecid)
		}

		return nil, err
	}

	return &head, nil
}

// createConcept 创建概念头行，并把首个草稿登记为草稿子节点.
func createConcept(tx *gorm.DB, conceptRecid, draftDepid int64) error {
	head := model.VersioningHead{ConceptRecid: conceptRecid, DraftDepid: &draftDepid}

	return tx.Create(&head).Error
}

// insertDraftChild 把 depid 登记为概念的草稿子节点；
// 已有草稿时返回 ErrConcurrentVersion（调用方持有概念锁，读到的即最终状态）.
func insertDraftChild(tx *gorm.DB, head *model.VersioningHead, depid int64) error {
	if head.DraftDepid != nil {
		return fmt.Errorf("%w: concept %d already has draft deposit %d",
			types.ErrConcurrentVersion, head.ConceptRecid, *head.DraftDepid)
	}

	head.DraftDepid = &depid

	return tx.Model(head).Update("draft_depid", depid).Error
}

// removeDraftChild 清除草稿子节点（草稿被删除或已晋升）.
func removeDraftChild(tx *gorm.DB, head *model.VersioningHead) error {
	head.DraftDepid = nil

	return tx.Model(head).Update("draft_depid", nil).Error
}

// promoteDraft 将草稿晋升为正式子节点：追加到 children 末尾并清除草稿位.
func promoteDraft(tx *gorm.DB, head *model.VersioningHead, recid int64) error {
	children, err := versioningChildren(tx, head.ConceptRecid)
	if err != nil {
		return err
	}

	child := model.VersioningChild{
		ConceptRecid: head.ConceptRecid,
		ChildRecid:   recid,
		ChildOrder:   len(children),
	}
	if err := tx.Create(&child).Error; err != nil {
		return fmt.Errorf("promote draft recid %d: %w", recid, err)
	}

	return removeDraftChild(tx, head)
}

// versioningChildren 返回概念下全部子节点 recid（按插入顺序）.
func versioningChildren(tx *gorm.DB, conceptRecid int64) ([]int64, error) {
	var rows []model.VersioningChild

	err := tx.Where("concept_recid = ?", conceptRecid).
		Order("child_order ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ChildRecid)
	}

	return out, nil
}
