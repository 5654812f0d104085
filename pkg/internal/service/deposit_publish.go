package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	"github.com/yeisme/depovault/pkg/internal/metadata"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/metrics"
	"github.com/yeisme/depovault/pkg/queue"
)

// publishKind 区分三种发布路径.
type publishKind int

const (
	publishFirst      publishKind = iota // 首次发布
	publishEdit                          // 编辑再发布（记录已存在）
	publishNewVersion                    // 概念下的新版本发布
)

func (k publishKind) String() string {
	switch k {
	case publishEdit:
		return "edit"
	case publishNewVersion:
		return "new_version"
	default:
		return "first"
	}
}

// Publish 将草稿存缴发布为不可变记录修订.
//
// 算法（全部在单个事务内，副作用提交后派发）：
//  1. 严格校验元数据；检查社区引用、文件存在性与分片上传状态
//  2. 对概念头行加锁，判定首次发布 / 编辑再发布 / 新版本发布
//  3. 新版本发布时比较校验和集合，与任何既有版本完全相同则拒绝
//  4. 锁定并快照文件桶（编辑再发布走同步路径）
//  5. 铸造或校验 DOI；本地 DOI 同时铸造概念 DOI
//  6. 社区策展调和
//  7. 提交记录修订、更新版本图、迁移 PID 状态、标记存缴已发布
//  8. 投递 DOI 注册与索引事件
func (ds *DepositService) Publish(ctx context.Context, depid int64) (*types.PublishResponse, error) {
	cfg := configs.GetConfig()

	var (
		dep   *model.Deposit
		rec   *model.Record
		kind  publishKind
		local bool
	)

	err := ds.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		dep, err = depositByID(tx, depid)
		if err != nil {
			return err
		}

		if dep.Status != model.DepositStatusDraft {
			return fmt.Errorf("%w: deposit %d", types.ErrDepositNotDraft, depid)
		}

		md := unmarshalMetadata(dep.MetadataJSON)
		if err := metadata.Validate(&md, true); err != nil {
			return err
		}

		if err := ensureCommunitiesExist(tx, md.Communities); err != nil {
			return err
		}

		draftManifest, err := bucketManifest(tx, dep.BucketID)
		if err != nil {
			return err
		}

		if len(draftManifest) == 0 {
			return fmt.Errorf("%w: deposit %d", types.ErrMissingFiles, depid)
		}

		ongoing, err := bucketHasOngoingMultipart(tx, dep.BucketID)
		if err != nil {
			return err
		}

		if ongoing {
			return fmt.Errorf("%w: deposit %d", types.ErrOngoingMultipartUpload, depid)
		}

		head, err := lockConcept(tx, dep.ConceptRecid)
		if err != nil {
			return err
		}

		children, err := versioningChildren(tx, dep.ConceptRecid)
		if err != nil {
			return err
		}

		kind, rec, err = classifyPublish(tx, dep, children)
		if err != nil {
			return err
		}

		if kind == publishNewVersion {
			if err := checkVersionFiles(tx, children, draftManifest); err != nil {
				return err
			}
		}

		// 记录 UUID 预先生成，DOI PID 在记录落库前就绑定到它
		recUUID := uuid.NewString()
		if kind == publishEdit {
			recUUID = rec.UUID
		}

		doi, conceptDOI, isLocal, err := resolvePublishDOI(tx, dep, recUUID, kind, rec, &md)
		if err != nil {
			return err
		}

		local = isLocal

		recordBucketID, err := publishBuckets(tx, dep, rec, kind)
		if err != nil {
			return err
		}

		manifest, err := bucketManifest(tx, recordBucketID)
		if err != nil {
			return err
		}

		plan, err := reconcilePublishCommunities(tx, dep, children, &md)
		if err != nil {
			return err
		}

		md.Communities = plan.DepositCommunities
		md.DOI = doi

		// 记录修订：首发/新版本创建 revision 0，编辑再发布追加修订
		recMD := md
		recMD.Communities = plan.RecordCommunities

		if kind == publishEdit {
			rec.DOI = doi
			rec.ConceptDOI = conceptDOI
			rec.BucketID = recordBucketID

			if err := recordCommit(tx, rec, &recMD, manifest, plan.RecordCommunities); err != nil {
				return err
			}
		} else {
			rec = &model.Record{
				UUID:         recUUID,
				Recid:        dep.Recid,
				ConceptRecid: dep.ConceptRecid,
				DOI:          doi,
				ConceptDOI:   conceptDOI,
				OAIID:        oaiValue(dep.Recid),
				SchemaURI:    cfg.Deposit.RecordSchemaURI,
				OwnersJSON:   dep.OwnersJSON,
				BucketID:     recordBucketID,
			}
			if err := recordCreate(tx, rec, &recMD, manifest, plan.RecordCommunities); err != nil {
				return err
			}
		}

		if err := applyCuration(tx, dep.ConceptRecid, dep.Recid, &plan); err != nil {
			return err
		}

		if err := syncDepositCommunities(tx, dep.ConceptRecid, plan.DepositCommunities); err != nil {
			return err
		}

		if kind != publishEdit {
			if err := promotePublish(tx, head, dep, rec, len(children) == 0); err != nil {
				return err
			}
		}

		dep.Status = model.DepositStatusPublished
		dep.RecordUUID = rec.UUID
		dep.MetadataJSON = marshalJSON(&md)

		return tx.Model(&model.Deposit{}).Where("depid = ?", dep.Depid).
			Updates(map[string]any{
				"status":        model.DepositStatusPublished,
				"record_uuid":   rec.UUID,
				"metadata_json": dep.MetadataJSON,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.PublishCounter.WithLabelValues(kind.String()).Inc()

	// 提交成功后的副作用：索引、生命周期事件与 DOI 注册
	ds.publishDepositPublished(dep, rec, kind == publishFirst)
	ds.publishRecordCommitted(rec)
	ds.publishIndexDeposit(dep)

	if local {
		ds.enqueueDOIRegistration(rec, rec.DOI)

		if rec.ConceptDOI != "" {
			ds.enqueueDOIRegistration(rec, rec.ConceptDOI)
		}
	}

	return &types.PublishResponse{
		Recid:      rec.Recid,
		DOI:        rec.DOI,
		ConceptDOI: rec.ConceptDOI,
		Revision:   rec.Revision,
		RecordUUID: rec.UUID,
	}, nil
}

// classifyPublish 判定发布路径：已有记录为编辑再发布；
// 否则概念已有子版本时为新版本发布，全新概念为首次发布.
func classifyPublish(tx *gorm.DB, dep *model.Deposit, children []int64) (publishKind, *model.Record, error) {
	rec, err := recordByRecid(tx, dep.Recid)

	switch {
	case err == nil:
		return publishEdit, rec, nil
	case errors.Is(err, types.ErrNotFound):
		if len(children) > 0 {
			return publishNewVersion, nil, nil
		}

		return publishFirst, nil, nil
	default:
		return publishFirst, nil, err
	}
}

// checkVersionFiles 新版本的校验和集合不得与任何既有版本完全相同.
func checkVersionFiles(tx *gorm.DB, children []int64, manifest types.FilesManifest) error {
	for _, child := range children {
		prior, err := recordByRecid(tx, child)
		if err != nil {
			return err
		}

		priorManifest := unmarshalManifest(prior.FilesJSON)
		if manifest.EqualChecksums(priorManifest) {
			return fmt.Errorf("%w: identical to version %d", types.ErrVersioningFiles, child)
		}
	}

	return nil
}

// resolvePublishDOI 铸造或校验 DOI，返回 (doi, conceptDOI, 是否本地托管).
//
//   - 编辑再发布：DOI 随记录不变
//   - 未携带 DOI：铸造本地 DOI depovault.<recid>
//   - 用户提供的 DOI：本地前缀必须匹配保留模板，外部前缀原样接受且永不注册
//   - 本地 DOI 同时铸造概念 DOI；外部 DOI 没有概念 DOI
func resolvePublishDOI(tx *gorm.DB, dep *model.Deposit, recUUID string,
	kind publishKind, rec *model.Record, md *types.DepositMetadata,
) (doi, conceptDOI string, local bool, err error) {
	cfg := configs.GetConfig().PID

	if kind == publishEdit {
		return rec.DOI, rec.ConceptDOI, cfg.IsLocalDOI(rec.DOI), nil
	}

	doi = md.DOI
	if doi == "" {
		doi = localDOIValue(dep.Recid)
	} else if err := validateUserDOI(doi, dep.Recid); err != nil {
		return "", "", false, err
	}

	local = cfg.IsLocalDOI(doi)

	provider := "external"
	if local {
		provider = "local"
	}

	if _, err := pidCreate(tx, model.PIDTypeDOI, doi,
		model.PIDStatusReserved, model.ObjectTypeRecord, recUUID, provider); err != nil {
		return "", "", false, err
	}

	if !local {
		return doi, "", false, nil
	}

	conceptDOI = localDOIValue(dep.ConceptRecid)

	_, err = pidCreate(tx, model.PIDTypeDOI, conceptDOI,
		model.PIDStatusReserved, model.ObjectTypeConcept,
		strconv.FormatInt(dep.ConceptRecid, 10), "local")
	if err != nil && !errors.Is(err, types.ErrPIDAlreadyExists) {
		return "", "", false, err
	}

	return doi, conceptDOI, true, nil
}

// publishBuckets 处理发布时的桶归属：
//   - 首发/新版本：草稿桶锁定，快照成为记录的不可变桶
//   - 编辑再发布：记录保留既有桶，把草稿桶的头状态同步进去后重新锁定
func publishBuckets(tx *gorm.DB, dep *model.Deposit, rec *model.Record, kind publishKind) (string, error) {
	if kind == publishEdit {
		if err := bucketUnlock(tx, rec.BucketID); err != nil {
			return "", err
		}

		if err := bucketSync(tx, dep.BucketID, rec.BucketID, true); err != nil {
			return "", err
		}

		if err := bucketLock(tx, rec.BucketID); err != nil {
			return "", err
		}

		if err := bucketLock(tx, dep.BucketID); err != nil {
			return "", err
		}

		return rec.BucketID, nil
	}

	if err := bucketLock(tx, dep.BucketID); err != nil {
		return "", err
	}

	snap, err := bucketSnapshot(tx, dep.BucketID, true)
	if err != nil {
		return "", err
	}

	return snap.ID, nil
}

// reconcilePublishCommunities 汇总策展输入并计算调和结果.
// 资助信息看整条版本链：本草稿或任一既有版本带资助即视为有资助.
func reconcilePublishCommunities(tx *gorm.DB, dep *model.Deposit, children []int64,
	md *types.DepositMetadata,
) (types.CurationResult, error) {
	cfg := configs.GetConfig().Curation

	accepted, err := acceptedCommunities(tx, dep.Recid)
	if err != nil {
		return types.CurationResult{}, err
	}

	if len(accepted) == 0 && len(children) > 0 {
		// 新版本发布：继承最新已发布版本的成员关系
		accepted, err = acceptedCommunities(tx, children[len(children)-1])
		if err != nil {
			return types.CurationResult{}, err
		}
	}

	owners := toStringSet(unmarshalStrings(dep.OwnersJSON))

	owned := make([]string, 0)

	for _, c := range md.Communities {
		var community model.Community
		if err := tx.Where("id = ?", c).First(&community).Error; err != nil {
			continue
		}

		if _, ok := owners[community.Owner]; ok {
			owned = append(owned, c)
		}
	}

	hasGrants := md.HasGrants()

	for _, child := range children {
		if hasGrants {
			break
		}

		prior, err := recordByRecid(tx, child)
		if err != nil {
			continue
		}

		priorMD := unmarshalMetadata(prior.MetadataJSON)
		hasGrants = priorMD.HasGrants()
	}

	return curationPlan(md.Communities, accepted, owned, hasGrants, &cfg), nil
}

// promotePublish 首发/新版本发布的版本图与 PID 状态落账：
// 草稿晋升为子节点，版本 recid 转 REGISTERED 并指向记录，
// 首次发布时概念 recid 一并注册，概念重定向刷新到最新子节点，
// 同时铸造 OAI 收割标识.
func promotePublish(tx *gorm.DB, head *model.VersioningHead, dep *model.Deposit,
	rec *model.Record, firstChild bool,
) error {
	if err := promoteDraft(tx, head, dep.Recid); err != nil {
		return err
	}

	recidPID, err := pidResolve(tx, model.PIDTypeRecid, strconv.FormatInt(dep.Recid, 10))
	if err != nil {
		return err
	}

	if err := pidTransition(tx, recidPID, model.PIDStatusRegistered); err != nil {
		return err
	}

	if err := pidAssign(tx, recidPID, model.ObjectTypeRecord, rec.UUID, true); err != nil {
		return err
	}

	conceptPID, err := pidResolve(tx, model.PIDTypeRecid, strconv.FormatInt(dep.ConceptRecid, 10))
	if err != nil {
		return err
	}

	if firstChild {
		if err := pidTransition(tx, conceptPID, model.PIDStatusRegistered); err != nil {
			return err
		}

		if err := pidAssign(tx, conceptPID, model.ObjectTypeConcept, rec.UUID, true); err != nil {
			return err
		}
	}

	// 概念 recid 始终指向最新已发布版本
	if err := pidRedirect(tx, conceptPID, recidPID); err != nil {
		return err
	}

	_, err = pidCreate(tx, model.PIDTypeOAI, rec.OAIID,
		model.PIDStatusRegistered, model.ObjectTypeRecord, rec.UUID, "oai")
	if err != nil && !errors.Is(err, types.ErrPIDAlreadyExists) {
		return err
	}

	return nil
}

// ---- 发布事件 ----

func (ds *DepositService) publishDepositPublished(dep *model.Deposit, rec *model.Record, first bool) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Deposit.Published {
		return
	}

	err := queue.PublishDepositPublished(ds.mqc.RawPublisher(), queue.DepositPublishedPayload{
		Deposit:      depositRef(dep),
		Record:       recordRef(rec),
		FirstPublish: first,
	}, queue.WithProducer("depovault"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("depid", dep.Depid).Msg("publish deposit published event")
	}
}

func (ds *DepositService) publishRecordCommitted(rec *model.Record) {
	if ds.mqc == nil || !ds.events().Enabled || !ds.events().Record.Committed {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicRecordCommitted, queue.RecordCommittedPayload{
		Record: recordRef(rec),
	}, queue.WithProducer("depovault"))
	if err == nil {
		err = ds.mqc.Publish(context.Background(), queue.TopicRecordCommitted, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Int64("recid", rec.Recid).Msg("publish record committed event")
	}
}

func recordRef(rec *model.Record) queue.RecordRef {
	return queue.RecordRef{
		Recid:        rec.Recid,
		ConceptRecid: rec.ConceptRecid,
		RecordUUID:   rec.UUID,
		Revision:     rec.Revision,
		DOI:          rec.DOI,
		ConceptDOI:   rec.ConceptDOI,
	}
}
