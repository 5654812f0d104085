package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/metadata"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/storage/mq"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/queue"
)

// DepositService 实现存缴状态机：create / update / edit / discard /
// delete / publish / new_version / register_concept_doi.
// 写路径都在单个事务内完成，MQ/索引副作用收集后在提交成功后派发.
type DepositService struct {
	dbc *db.Client
	mqc *mq.Client
}

// NewDepositService 从 context 获取依赖实例.
func NewDepositService(c context.Context) *DepositService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	return &DepositService{
		dbc: dbc,
		mqc: ctxPkg.GetMQClient(c),
	}
}

// effects 收集事务内产生的副作用，提交成功后统一派发；回滚时整组丢弃.
type effects struct {
	fns []func()
}

func (e *effects) add(f func()) { e.fns = append(e.fns, f) }

func (e *effects) dispatch() {
	for _, f := range e.fns {
		f()
	}
}

// Create 新建存缴草稿：铸造 concept recid、recid（RESERVED）与 depid，
// 创建文件桶，并把草稿登记为概念的草稿子节点.
func (ds *DepositService) Create(ctx context.Context, owner string, req *types.CreateDepositRequest) (*types.DepositResponse, error) {
	md := req.Metadata
	if err := metadata.Validate(&md, false); err != nil {
		return nil, err
	}

	cfg := configs.GetConfig()

	var dep model.Deposit

	eff := &effects{}

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conceptRecid, _, err := reserveRecid(tx)
		if err != nil {
			return err
		}

		recid, recidPID, err := reserveRecid(tx)
		if err != nil {
			return err
		}

		depUUID := uuid.NewString()

		if _, err := pidCreate(tx, model.PIDTypeDepid, strconv.FormatInt(recid, 10),
			model.PIDStatusRegistered, model.ObjectTypeDeposit, depUUID, "local"); err != nil {
			return err
		}

		if err := pidAssign(tx, recidPID, model.ObjectTypeDeposit, depUUID, false); err != nil {
			return err
		}

		bucket, err := bucketCreate(tx, cfg.Deposit.BucketQuotaBytes, cfg.Deposit.MaxFileSizeBytes)
		if err != nil {
			return err
		}

		dep = model.Deposit{
			Depid:        recid,
			UUID:         depUUID,
			Status:       model.DepositStatusDraft,
			Recid:        recid,
			ConceptRecid: conceptRecid,
			MetadataJSON: marshalJSON(&md),
			OwnersJSON:   marshalJSON([]string{owner}),
			BucketID:     bucket.ID,
		}

		if cfg.Deposit.ExtraFormats {
			extra, err := bucketCreate(tx, cfg.Deposit.BucketQuotaBytes, cfg.Deposit.MaxFileSizeBytes)
			if err != nil {
				return err
			}

			dep.ExtraFormatsBucketID = extra.ID
		}

		if err := tx.Create(&dep).Error; err != nil {
			return fmt.Errorf("create deposit: %w", err)
		}

		return createConcept(tx, conceptRecid, dep.Depid)
	})
	if err != nil {
		return nil, err
	}

	eff.add(func() { ds.publishDepositCreated(&dep, false) })
	eff.add(func() { ds.publishIndexDeposit(&dep) })
	eff.dispatch()

	resp := ds.depositResponse(ctx, &dep)

	return &resp, nil
}

// Get 返回存缴详情.
func (ds *DepositService) Get(ctx context.Context, depid int64) (*types.DepositResponse, error) {
	dep, err := depositByID(ds.dbc.WithContext(ctx), depid)
	if err != nil {
		return nil, err
	}

	resp := ds.depositResponse(ctx, dep)

	return &resp, nil
}

// List 按属主分页列出存缴.
func (ds *DepositService) List(ctx context.Context, owner string, req *types.ListDepositsRequest) (*types.ListDepositsResponse, error) {
	const defaultPageSize = 20

	page := req.Page
	if page < 1 {
		page = 1
	}

	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	// 属主以 JSON 数组存储，用包含匹配筛选
	pattern := "%" + marshalJSON(owner) + "%"
	base := ds.dbc.WithContext(ctx).Model(&model.Deposit{}).
		Where("owners_json LIKE ?", pattern)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var deposits []model.Deposit

	err := base.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&deposits).Error
	if err != nil {
		return nil, err
	}

	out := make([]types.DepositResponse, 0, len(deposits))
	for i := range deposits {
		out = append(out, ds.depositResponse(ctx, &deposits[i]))
	}

	return &types.ListDepositsResponse{
		Deposits: out,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Update 更新草稿元数据：整体替换并重新规范化，不触碰任何 PID.
func (ds *DepositService) Update(ctx context.Context, depid int64, req *types.UpdateDepositRequest) (*types.DepositResponse, error) {
	md := req.Metadata
	if err := metadata.Validate(&md, false); err != nil {
		return nil, err
	}

	var dep *model.Deposit

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		dep, err = depositByID(tx, depid)
		if err != nil {
			return err
		}

		if dep.Status != model.DepositStatusDraft {
			return fmt.Errorf("%w: deposit %d", types.ErrDepositNotDraft, depid)
		}

		// 用户提交的 DOI 仅做语法规范化，本地前缀规则在 publish 时裁决
		dep.MetadataJSON = marshalJSON(&md)

		return tx.Model(&model.Deposit{}).Where("depid = ?", depid).
			Update("metadata_json", dep.MetadataJSON).Error
	})
	if err != nil {
		return nil, err
	}

	ds.publishDepositUpdated(dep)
	ds.publishIndexDeposit(dep)

	resp := ds.depositResponse(ctx, dep)

	return &resp, nil
}

// Edit 重新打开已发布存缴进行元数据与文件编辑；记录保持头修订直到下一次 publish.
// 工作桶在发布时被锁定，这里解锁，草稿期间文件可改；再发布时同步进记录桶并重新上锁.
func (ds *DepositService) Edit(ctx context.Context, depid int64) (*types.DepositResponse, error) {
	var dep *model.Deposit

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		dep, err = depositByID(tx, depid)
		if err != nil {
			return err
		}

		if dep.Status != model.DepositStatusPublished {
			return fmt.Errorf("%w: deposit %d", types.ErrDepositNotPublished, depid)
		}

		if err := bucketUnlock(tx, dep.BucketID); err != nil {
			return err
		}

		dep.Status = model.DepositStatusDraft

		return tx.Model(&model.Deposit{}).Where("depid = ?", depid).
			Update("status", model.DepositStatusDraft).Error
	})
	if err != nil {
		return nil, err
	}

	resp := ds.depositResponse(ctx, dep)

	return &resp, nil
}

// Discard 放弃草稿修改：元数据与文件回滚到记录头修订，草稿保持打开.
func (ds *DepositService) Discard(ctx context.Context, depid int64) (*types.DepositResponse, error) {
	var dep *model.Deposit

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		dep, err = depositByID(tx, depid)
		if err != nil {
			return err
		}

		if dep.Status != model.DepositStatusDraft {
			return fmt.Errorf("%w: deposit %d", types.ErrDepositNotDraft, depid)
		}

		if dep.RecordUUID == "" {
			return fmt.Errorf("%w: deposit %d has no published record to discard to", types.ErrNotFound, depid)
		}

		var rec model.Record
		if err := tx.Where("uuid = ?", dep.RecordUUID).First(&rec).Error; err != nil {
			return err
		}

		// 文件改动同样回滚：以记录桶为准同步工作桶
		if err := bucketSync(tx, rec.BucketID, dep.BucketID, true); err != nil {
			return err
		}

		dep.MetadataJSON = rec.MetadataJSON

		return tx.Model(&model.Deposit{}).Where("depid = ?", depid).
			Update("metadata_json", rec.MetadataJSON).Error
	})
	if err != nil {
		return nil, err
	}

	ds.publishDepositUpdated(dep)

	resp := ds.depositResponse(ctx, dep)

	return &resp, nil
}

// Delete 删除从未发布过的草稿：recid 转 DELETED、depid 移除、桶移除、
// 草稿子节点清空；概念下没有其他版本时概念 recid 一并作废.
func (ds *DepositService) Delete(ctx context.Context, depid int64) error {
	var dep *model.Deposit

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		dep, err = depositByID(tx, depid)
		if err != nil {
			return err
		}

		if dep.Status != model.DepositStatusDraft || dep.RecordUUID != "" {
			return fmt.Errorf("%w: deposit %d has been published", types.ErrCannotDelete, depid)
		}

		head, err := lockConcept(tx, dep.ConceptRecid)
		if err != nil {
			return err
		}

		recidPID, err := pidResolve(tx, model.PIDTypeRecid, strconv.FormatInt(dep.Recid, 10))
		if err != nil {
			return err
		}

		if err := pidTransition(tx, recidPID, model.PIDStatusDeleted); err != nil {
			return err
		}

		if err := tx.Where("pid_type = ? AND pid_value = ?",
			model.PIDTypeDepid, strconv.FormatInt(dep.Depid, 10)).
			Delete(&model.PersistentIdentifier{}).Error; err != nil {
			return err
		}

		if err := bucketRemove(tx, dep.BucketID); err != nil {
			return err
		}

		if dep.ExtraFormatsBucketID != "" {
			if err := bucketRemove(tx, dep.ExtraFormatsBucketID); err != nil {
				return err
			}
		}

		if err := removeDraftChild(tx, head); err != nil {
			return err
		}

		// 概念下没有任何已发布版本时，概念 recid 一并作废
		children, err := versioningChildren(tx, dep.ConceptRecid)
		if err != nil {
			return err
		}

		if len(children) == 0 {
			conceptPID, err := pidResolve(tx, model.PIDTypeRecid, strconv.FormatInt(dep.ConceptRecid, 10))
			if err != nil {
				return err
			}

			if err := pidTransition(tx, conceptPID, model.PIDStatusDeleted); err != nil {
				return err
			}

			if err := tx.Where("concept_recid = ?", dep.ConceptRecid).
				Delete(&model.VersioningHead{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&model.Deposit{}, "depid = ?", depid).Error
	})
	if err != nil {
		return err
	}

	ds.publishDepositDeleted(dep)
	ds.publishIndexRemove(dep.Depid)

	return nil
}

// NewVersion 在同一概念下创建新版本草稿：复制元数据并重置 DOI，
// 文件桶从最新已发布版本快照而来（解锁状态）.
// 要求存缴已发布且 DOI 为本地托管；概念上已有草稿时返回 ErrConcurrentVersion.
func (ds *DepositService) NewVersion(ctx context.Context, depid int64) (*types.NewVersionResponse, error) {
	cfg := configs.GetConfig()

	var (
		parent *model.Deposit
		child  model.Deposit
	)

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		parent, err = depositByID(tx, depid)
		if err != nil {
			return err
		}

		if parent.Status != model.DepositStatusPublished {
			return fmt.Errorf("%w: deposit %d", types.ErrDepositNotPublished, depid)
		}

		rec, err := recordByRecid(tx, parent.Recid)
		if err != nil {
			return err
		}

		if !cfg.PID.IsLocalDOI(rec.DOI) {
			return fmt.Errorf("%w: record %d carries %s", types.ErrExternalDOI, parent.Recid, rec.DOI)
		}

		head, err := lockConcept(tx, parent.ConceptRecid)
		if err != nil {
			return err
		}

		recid, recidPID, err := reserveRecid(tx)
		if err != nil {
			return err
		}

		if err := insertDraftChild(tx, head, recid); err != nil {
			return err
		}

		depUUID := uuid.NewString()

		if _, err := pidCreate(tx, model.PIDTypeDepid, strconv.FormatInt(recid, 10),
			model.PIDStatusRegistered, model.ObjectTypeDeposit, depUUID, "local"); err != nil {
			return err
		}

		if err := pidAssign(tx, recidPID, model.ObjectTypeDeposit, depUUID, false); err != nil {
			return err
		}

		// 新版本从最新已发布版本的文件出发，桶快照保持解锁供继续编辑
		snap, err := bucketSnapshot(tx, rec.BucketID, false)
		if err != nil {
			return err
		}

		md := unmarshalMetadata(parent.MetadataJSON)
		md.DOI = ""
		md.Version = ""

		child = model.Deposit{
			Depid:        recid,
			UUID:         depUUID,
			Status:       model.DepositStatusDraft,
			Recid:        recid,
			ConceptRecid: parent.ConceptRecid,
			MetadataJSON: marshalJSON(&md),
			OwnersJSON:   parent.OwnersJSON,
			BucketID:     snap.ID,
		}

		return tx.Create(&child).Error
	})
	if err != nil {
		return nil, err
	}

	ds.publishDepositCreated(&child, true)
	ds.publishRecordNewVersion(parent, &child)

	return &types.NewVersionResponse{NewDepid: child.Depid, NewRecid: child.Recid}, nil
}

// RegisterConceptDOI 为整条版本链预留/注册概念 DOI.
// 要求存缴已发布且版本 DOI 为本地托管；已存在时幂等返回.
func (ds *DepositService) RegisterConceptDOI(ctx context.Context, depid int64) (*types.ConceptDOIResponse, error) {
	cfg := configs.GetConfig()

	var (
		conceptDOI string
		rec        *model.Record
	)

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dep, err := depositByID(tx, depid)
		if err != nil {
			return err
		}

		if dep.Status != model.DepositStatusPublished {
			return fmt.Errorf("%w: deposit %d", types.ErrDepositNotPublished, depid)
		}

		rec, err = recordByRecid(tx, dep.Recid)
		if err != nil {
			return err
		}

		if !cfg.PID.IsLocalDOI(rec.DOI) {
			return fmt.Errorf("%w: record %d carries %s", types.ErrExternalDOI, dep.Recid, rec.DOI)
		}

		if rec.ConceptDOI != "" {
			conceptDOI = rec.ConceptDOI
			return nil
		}

		if _, err := lockConcept(tx, dep.ConceptRecid); err != nil {
			return err
		}

		conceptDOI = localDOIValue(dep.ConceptRecid)

		if _, err := pidCreate(tx, model.PIDTypeDOI, conceptDOI,
			model.PIDStatusReserved, model.ObjectTypeConcept, strconv.FormatInt(dep.ConceptRecid, 10),
			"local"); err != nil && !errors.Is(err, types.ErrPIDAlreadyExists) {
			return err
		}

		// 概念 DOI 写回概念下所有已发布记录
		return tx.Model(&model.Record{}).
			Where("concept_recid = ?", dep.ConceptRecid).
			Update("concept_doi", conceptDOI).Error
	})
	if err != nil {
		return nil, err
	}

	if rec != nil && rec.ConceptDOI == "" {
		ds.enqueueDOIRegistration(rec, conceptDOI)
	}

	return &types.ConceptDOIResponse{ConceptDOI: conceptDOI}, nil
}

// ---- 内部工具 ----

// depositByID 取存缴，不存在返回 ErrNotFound.
func depositByID(tx *gorm.DB, depid int64) (*model.Deposit, error) {
	var dep model.Deposit

	err := tx.Where("depid = ?", depid).First(&dep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: deposit %d", types.ErrNotFound, depid)
		}

		return nil, err
	}

	return &dep, nil
}

// depositResponse 将模型转换为对外表示，补充已发布记录携带的 DOI 信息.
func (ds *DepositService) depositResponse(ctx context.Context, dep *model.Deposit) types.DepositResponse {
	md := unmarshalMetadata(dep.MetadataJSON)

	resp := types.DepositResponse{
		Depid:        dep.Depid,
		Recid:        dep.Recid,
		ConceptRecid: dep.ConceptRecid,
		Status:       string(dep.Status),
		DOI:          md.DOI,
		BucketID:     dep.BucketID,
		Owners:       unmarshalStrings(dep.OwnersJSON),
		Metadata:     md,
		Created:      dep.CreatedAt,
		Updated:      dep.UpdatedAt,
	}

	if dep.RecordUUID != "" {
		var rec model.Record
		if err := ds.dbc.WithContext(ctx).
			Where("uuid = ?", dep.RecordUUID).First(&rec).Error; err == nil {
			resp.DOI = rec.DOI
			resp.ConceptDOI = rec.ConceptDOI
		}
	}

	return resp
}

// ---- MQ 副作用 ----

func depositRef(dep *model.Deposit) queue.DepositRef {
	owners := unmarshalStrings(dep.OwnersJSON)

	owner := ""
	if len(owners) > 0 {
		owner = owners[0]
	}

	return queue.DepositRef{
		Depid:        dep.Depid,
		Recid:        dep.Recid,
		ConceptRecid: dep.ConceptRecid,
		UUID:         dep.UUID,
		Owner:        owner,
	}
}

func (ds *DepositService) events() *configs.EventsConfig {
	cfg := configs.GetConfig().Events
	return &cfg
}

func (ds *DepositService) publishDepositCreated(dep *model.Deposit, isNewVersion bool) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Deposit.Created {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicDepositCreated, queue.DepositCreatedPayload{
		Deposit:      depositRef(dep),
		IsNewVersion: isNewVersion,
	}, queue.WithProducer("depovault"))
	if err == nil {
		err = ds.mqc.Publish(context.Background(), queue.TopicDepositCreated, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", dep.Depid).Msg("publish deposit created event")
	}
}

func (ds *DepositService) publishDepositUpdated(dep *model.Deposit) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Deposit.Updated {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicDepositUpdated, queue.DepositUpdatedPayload{
		Deposit: depositRef(dep),
	}, queue.WithProducer("depovault"))
	if err == nil {
		err = ds.mqc.Publish(context.Background(), queue.TopicDepositUpdated, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", dep.Depid).Msg("publish deposit updated event")
	}
}

func (ds *DepositService) publishDepositDeleted(dep *model.Deposit) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Deposit.Deleted {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicDepositDeleted, queue.DepositDeletedPayload{
		Deposit: depositRef(dep),
	}, queue.WithProducer("depovault"))
	if err == nil {
		err = ds.mqc.Publish(context.Background(), queue.TopicDepositDeleted, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", dep.Depid).Msg("publish deposit deleted event")
	}
}

func (ds *DepositService) publishRecordNewVersion(parent *model.Deposit, child *model.Deposit) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Record.NewVersion {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicRecordNewVersion, queue.RecordNewVersionPayload{
		ConceptRecid: parent.ConceptRecid,
		Parent: queue.RecordRef{
			Recid:        parent.Recid,
			ConceptRecid: parent.ConceptRecid,
			RecordUUID:   parent.RecordUUID,
		},
		Child: depositRef(child),
	}, queue.WithProducer("depovault"))
	if err == nil {
		err = ds.mqc.Publish(context.Background(), queue.TopicRecordNewVersion, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", child.Depid).Msg("publish record new version event")
	}
}

func (ds *DepositService) publishIndexDeposit(dep *model.Deposit) {
	if ds.mqc == nil || !ds.events().Enabled {
		return
	}

	err := queue.PublishIndexDeposit(ds.mqc.RawPublisher(), queue.IndexDepositPayload{
		Deposit: depositRef(dep),
	}, queue.WithProducer("depovault"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", dep.Depid).Msg("publish index deposit event")
	}
}

func (ds *DepositService) publishIndexRemove(depid int64) {
	if ds.mqc == nil || !ds.events().Enabled {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicIndexRemove, queue.IndexRemovePayload{Depid: depid},
		queue.WithProducer("depovault"))
	if err == nil {
		err = ds.mqc.Publish(context.Background(), queue.TopicIndexRemove, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", depid).Msg("publish index remove event")
	}
}

// enqueueDOIRegistration 把 (记录, DOI) 交给 DOI 注册 worker.
// 消息 ID 为 (doi, revision) 的确定性哈希，重复投递在 worker 端幂等.
func (ds *DepositService) enqueueDOIRegistration(rec *model.Record, doi string) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Record.DOIRequested {
		return
	}

	// 概念 DOI 的落地页指向概念 recid，解析时重定向到最新版本
	landingRecid := rec.Recid
	if doi == rec.ConceptDOI {
		landingRecid = rec.ConceptRecid
	}

	err := queue.PublishDOIRegisterRequested(ds.mqc.RawPublisher(), queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{
			Recid:        rec.Recid,
			ConceptRecid: rec.ConceptRecid,
			RecordUUID:   rec.UUID,
			Revision:     rec.Revision,
			DOI:          rec.DOI,
			ConceptDOI:   rec.ConceptDOI,
		},
		DOI:        doi,
		LandingURL: configs.GetConfig().DOI.LandingURL(landingRecid),
	}, queue.WithProducer("depovault"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("doi", doi).Msg("enqueue doi registration")
	}
}
