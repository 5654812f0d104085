package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// CommunityService 负责社区与策展：收录请求队列、概念级接受/拒绝.
type CommunityService struct {
	dbc *db.Client
}

// NewCommunityService 从 context 获取依赖实例.
func NewCommunityService(c context.Context) *CommunityService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	return &CommunityService{dbc: dbc}
}

// Create 创建社区.
func (cs *CommunityService) Create(ctx context.Context, id, title, owner, description string) (*types.CommunityResponse, error) {
	community := model.Community{ID: id, Title: title, Owner: owner, Description: description}

	if err := cs.dbc.WithContext(ctx).Create(&community).Error; err != nil {
		return nil, fmt.Errorf("create community %s: %w", id, err)
	}

	return &types.CommunityResponse{
		ID: community.ID, Title: community.Title,
		Owner: community.Owner, Description: community.Description,
		Created: community.CreatedAt,
	}, nil
}

// Get 返回社区信息.
func (cs *CommunityService) Get(ctx context.Context, id string) (*types.CommunityResponse, error) {
	var community model.Community

	err := cs.dbc.WithContext(ctx).Where("id = ?", id).First(&community).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: community %s", types.ErrNotFound, id)
		}

		return nil, err
	}

	return &types.CommunityResponse{
		ID: community.ID, Title: community.Title,
		Owner: community.Owner, Description: community.Description,
		Created: community.CreatedAt,
	}, nil
}

// ListRequests 返回社区待处理的收录请求.
func (cs *CommunityService) ListRequests(ctx context.Context, communityID string) (*types.ListInclusionRequestsResponse, error) {
	var rows []model.InclusionRequest

	err := cs.dbc.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	requests := make([]types.InclusionRequestInfo, 0, len(rows))
	for _, r := range rows {
		requests = append(requests, types.InclusionRequestInfo{
			CommunityID: r.CommunityID,
			Recid:       r.Recid,
			Created:     r.CreatedAt,
		})
	}

	return &types.ListInclusionRequestsResponse{Requests: requests, Total: len(requests)}, nil
}

// AcceptRecord 接受记录进入社区.
// 成员关系是概念级属性：对概念下所有已发布版本同时生效，待处理请求一并清除.
func (cs *CommunityService) AcceptRecord(ctx context.Context, communityID string, recid int64) error {
	return cs.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCommunitiesExist(tx, []string{communityID}); err != nil {
			return err
		}

		rec, err := recordByRecid(tx, recid)
		if err != nil {
			return err
		}

		if _, err := lockConcept(tx, rec.ConceptRecid); err != nil {
			return err
		}

		children, err := versioningChildren(tx, rec.ConceptRecid)
		if err != nil {
			return err
		}

		for _, child := range children {
			if err := ensureMembership(tx, communityID, child); err != nil {
				return err
			}

			if err := tx.Where("community_id = ? AND recid = ?", communityID, child).
				Delete(&model.InclusionRequest{}).Error; err != nil {
				return err
			}
		}

		return refreshRecordCommunities(tx, rec.ConceptRecid, children)
	})
}

// RejectRecord 拒绝/移除记录：删除概念下所有版本的成员关系与待处理请求.
func (cs *CommunityService) RejectRecord(ctx context.Context, communityID string, recid int64) error {
	return cs.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := recordByRecid(tx, recid)
		if err != nil {
			return err
		}

		if _, err := lockConcept(tx, rec.ConceptRecid); err != nil {
			return err
		}

		children, err := versioningChildren(tx, rec.ConceptRecid)
		if err != nil {
			return err
		}

		for _, child := range children {
			if err := tx.Where("community_id = ? AND recid = ?", communityID, child).
				Delete(&model.CommunityMembership{}).Error; err != nil {
				return err
			}

			if err := tx.Where("community_id = ? AND recid = ?", communityID, child).
				Delete(&model.InclusionRequest{}).Error; err != nil {
				return err
			}
		}

		return refreshRecordCommunities(tx, rec.ConceptRecid, children)
	})
}

// ---- 发布时的策展调和 ----

// curationPlan 计算发布时的社区调和结果（纯函数，便于测试）：
//
//	owned       = D 中属主属于存缴属主的社区
//	auto_added  = auto_enabled 且有资助时的 add_if_grants
//	record      = (D ∩ R) ∪ owned ∪ auto_added
//	requested   = ((D − record) ∪ auto_request ∪ 有资助时的 request_if_grants) − record
//	deposit     = record ∪ requested
func curationPlan(declared, accepted, owned []string, hasGrants bool, cfg *configs.CurationConfig) types.CurationResult {
	d := toStringSet(declared)
	r := toStringSet(accepted)

	record := intersect(d, r)

	if cfg.OwnedAutoAccept {
		for _, c := range owned {
			record[c] = struct{}{}
		}
	}

	if cfg.AutoEnabled && hasGrants {
		for _, c := range cfg.AddIfGrants {
			record[c] = struct{}{}
		}
	}

	requested := make(map[string]struct{})

	for c := range d {
		if _, ok := record[c]; !ok {
			requested[c] = struct{}{}
		}
	}

	if cfg.AutoEnabled {
		for _, c := range cfg.AutoRequest {
			requested[c] = struct{}{}
		}

		if hasGrants {
			for _, c := range cfg.RequestIfGrants {
				requested[c] = struct{}{}
			}
		}
	}

	// record 与 requested 保持互斥，已接受的社区不再排队
	for c := range record {
		delete(requested, c)
	}

	deposit := make(map[string]struct{}, len(record)+len(requested))
	for c := range record {
		deposit[c] = struct{}{}
	}

	for c := range requested {
		deposit[c] = struct{}{}
	}

	return types.CurationResult{
		RecordCommunities:  sortedKeys(record),
		DepositCommunities: sortedKeys(deposit),
		NewRequests:        sortedKeys(requested),
	}
}

// applyCuration 在发布事务内落实调和结果：
// 成员关系与请求表按 plan 重算，记录/存缴的社区列表随之刷新（概念级写入）.
func applyCuration(tx *gorm.DB, conceptRecid, recid int64, plan *types.CurationResult) error {
	children, err := versioningChildren(tx, conceptRecid)
	if err != nil {
		return err
	}

	if !containsInt64(children, recid) {
		children = append(children, recid)
	}

	// 成员关系 = plan.RecordCommunities × 概念下所有版本
	for _, child := range children {
		var existing []model.CommunityMembership
		if err := tx.Where("recid = ?", child).Find(&existing).Error; err != nil {
			return err
		}

		want := toStringSet(plan.RecordCommunities)

		for _, m := range existing {
			if _, ok := want[m.CommunityID]; ok {
				delete(want, m.CommunityID)
				continue
			}

			if err := tx.Delete(&m).Error; err != nil {
				return err
			}
		}

		for c := range want {
			if err := ensureMembership(tx, c, child); err != nil {
				return err
			}
		}
	}

	// 请求表：plan 之外的请求删除，缺失的请求补建（挂在本次发布的 recid 上）
	wantReq := toStringSet(plan.NewRequests)

	var pending []model.InclusionRequest
	if err := tx.Where("recid IN ?", children).Find(&pending).Error; err != nil {
		return err
	}

	removed := make([]string, 0)

	for _, req := range pending {
		if _, ok := wantReq[req.CommunityID]; ok {
			delete(wantReq, req.CommunityID)
			continue
		}

		removed = append(removed, req.CommunityID)

		if err := tx.Delete(&req).Error; err != nil {
			return err
		}
	}

	for c := range wantReq {
		req := model.InclusionRequest{CommunityID: c, Recid: recid}
		if err := tx.Create(&req).Error; err != nil {
			return fmt.Errorf("create inclusion request (%s, %d): %w", c, recid, err)
		}
	}

	plan.RemovedRequests = removed

	// 社区是作品属性：写回概念下所有已发布记录.
	// 存缴侧的社区列表（plan.DepositCommunities）由发布路径写进每个存缴的 metadata，
	// 见 syncDepositCommunities.
	return refreshRecordCommunities(tx, conceptRecid, children)
}

// syncDepositCommunities 把调和后的社区列表写回概念链上每个存缴的元数据.
func syncDepositCommunities(tx *gorm.DB, conceptRecid int64, communities []string) error {
	var deposits []model.Deposit

	if err := tx.Where("concept_recid = ?", conceptRecid).Find(&deposits).Error; err != nil {
		return err
	}

	for _, dep := range deposits {
		md := unmarshalMetadata(dep.MetadataJSON)
		md.Communities = append([]string(nil), communities...)

		err := tx.Model(&model.Deposit{}).Where("depid = ?", dep.Depid).
			Update("metadata_json", marshalJSON(&md)).Error
		if err != nil {
			return err
		}
	}

	return nil
}

// ensureCommunitiesExist 校验引用的社区都存在，未知社区返回 MissingCommunityError.
func ensureCommunitiesExist(tx *gorm.DB, ids []string) error {
	for _, id := range ids {
		var count int64
		if err := tx.Model(&model.Community{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			return &types.MissingCommunityError{Community: id}
		}
	}

	return nil
}

// ensureMembership 建立 (community, recid) 成员关系，已存在时跳过.
func ensureMembership(tx *gorm.DB, communityID string, recid int64) error {
	var count int64

	err := tx.Model(&model.CommunityMembership{}).
		Where("community_id = ? AND recid = ?", communityID, recid).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	m := model.CommunityMembership{CommunityID: communityID, Recid: recid}

	return tx.Create(&m).Error
}

// refreshRecordCommunities 按成员关系表重算概念下每条记录的社区列表.
func refreshRecordCommunities(tx *gorm.DB, conceptRecid int64, children []int64) error {
	for _, child := range children {
		comms, err := acceptedCommunities(tx, child)
		if err != nil {
			return err
		}

		err = tx.Model(&model.Record{}).Where("recid = ?", child).
			Update("communities_json", marshalJSON(comms)).Error
		if err != nil {
			return err
		}
	}

	return nil
}

// acceptedCommunities 返回某 recid 已接受的社区（排序后）.
func acceptedCommunities(tx *gorm.DB, recid int64) ([]string, error) {
	var rows []model.CommunityMembership

	if err := tx.Where("recid = ?", recid).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.CommunityID)
	}

	sort.Strings(out)

	return out, nil
}

// ---- 集合工具 ----

func toStringSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}

	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})

	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}

	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func containsInt64(xs []int64, x int64) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}

	return false
}
