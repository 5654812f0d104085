package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/metadata"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// RecordService 负责已发布记录的读取：头修订、历史修订与概念版本列表.
// 记录只能通过存缴发布产生，写路径见 DepositService.Publish.
type RecordService struct {
	dbc *db.Client
}

// NewRecordService 从 context 获取依赖实例.
func NewRecordService(c context.Context) *RecordService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	return &RecordService{dbc: dbc}
}

// Get 返回记录的头修订.
func (rs *RecordService) Get(ctx context.Context, recid int64) (*types.RecordResponse, error) {
	rec, err := recordByRecid(rs.dbc.WithContext(ctx), recid)
	if err != nil {
		return nil, err
	}

	resp := recordResponse(rec)

	return &resp, nil
}

// GetRevision 返回记录的某个历史修订；修订号越界返回 ErrNotFound.
func (rs *RecordService) GetRevision(ctx context.Context, recid int64, revision int) (*types.RecordResponse, error) {
	tx := rs.dbc.WithContext(ctx)

	rec, err := recordByRecid(tx, recid)
	if err != nil {
		return nil, err
	}

	if revision == rec.Revision {
		resp := recordResponse(rec)
		return &resp, nil
	}

	var rev model.RecordRevision

	err = tx.Where("record_uuid = ? AND revision = ?", rec.UUID, revision).First(&rev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: record %d revision %d", types.ErrNotFound, recid, revision)
		}

		return nil, err
	}

	resp := recordResponse(rec)
	resp.Revision = rev.Revision
	resp.Metadata = unmarshalMetadata(rev.MetadataJSON)
	resp.Files = unmarshalManifest(rev.FilesJSON)
	resp.Communities = unmarshalStrings(rev.CommunitiesJSON)
	resp.Created = rev.CreatedAt

	return &resp, nil
}

// ListVersions 返回概念下全部已发布版本.
func (rs *RecordService) ListVersions(ctx context.Context, conceptRecid int64) (*types.ListRecordVersionsResponse, error) {
	tx := rs.dbc.WithContext(ctx)

	children, err := versioningChildren(tx, conceptRecid)
	if err != nil {
		return nil, err
	}

	versions := make([]types.RecordVersionInfo, 0, len(children))

	for i, recid := range children {
		rec, err := recordByRecid(tx, recid)
		if err != nil {
			return nil, err
		}

		versions = append(versions, types.RecordVersionInfo{
			Recid:    recid,
			Index:    i,
			IsLatest: i == len(children)-1,
			Created:  rec.CreatedAt,
		})
	}

	return &types.ListRecordVersionsResponse{
		ConceptRecid: conceptRecid,
		Versions:     versions,
		Total:        len(versions),
	}, nil
}

// ---- 事务内工具 ----

// recordByRecid 按 recid 取记录头.
func recordByRecid(tx *gorm.DB, recid int64) (*model.Record, error) {
	var rec model.Record

	err := tx.Where("recid = ?", recid).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: record %d", types.ErrNotFound, recid)
		}

		return nil, err
	}

	return &rec, nil
}

// recordCreate 创建记录（revision 0）并写入首个修订行.
// 元数据在入库前按契约做最后一道严格校验，失败即回滚.
func recordCreate(tx *gorm.DB, rec *model.Record, md *types.DepositMetadata,
	files types.FilesManifest, communities []string,
) error {
	if err := metadata.Validate(md, true); err != nil {
		return err
	}

	rec.Revision = 0
	rec.MetadataJSON = marshalJSON(md)
	rec.FilesJSON = marshalJSON(files)
	rec.CommunitiesJSON = marshalJSON(communities)

	if err := tx.Create(rec).Error; err != nil {
		return fmt.Errorf("create record %d: %w", rec.Recid, err)
	}

	link := model.RecordsBuckets{RecordUUID: rec.UUID, BucketID: rec.BucketID}
	if err := tx.Create(&link).Error; err != nil {
		return fmt.Errorf("link record bucket: %w", err)
	}

	return recordWriteRevision(tx, rec)
}

// recordCommit 追加一个新修订：头行就地更新，历史修订行保留.
func recordCommit(tx *gorm.DB, rec *model.Record, md *types.DepositMetadata,
	files types.FilesManifest, communities []string,
) error {
	if err := metadata.Validate(md, true); err != nil {
		return err
	}

	rec.Revision++
	rec.MetadataJSON = marshalJSON(md)
	rec.FilesJSON = marshalJSON(files)
	rec.CommunitiesJSON = marshalJSON(communities)

	err := tx.Model(rec).Updates(map[string]any{
		"revision":         rec.Revision,
		"metadata_json":    rec.MetadataJSON,
		"files_json":       rec.FilesJSON,
		"communities_json": rec.CommunitiesJSON,
		"doi":              rec.DOI,
		"concept_doi":      rec.ConceptDOI,
		"bucket_id":        rec.BucketID,
	}).Error
	if err != nil {
		return fmt.Errorf("commit record %d revision %d: %w", rec.Recid, rec.Revision, err)
	}

	return recordWriteRevision(tx, rec)
}

// recordWriteRevision 把头行内容固化为一条历史修订.
func recordWriteRevision(tx *gorm.DB, rec *model.Record) error {
	rev := model.RecordRevision{
		RecordUUID:      rec.UUID,
		Revision:        rec.Revision,
		MetadataJSON:    rec.MetadataJSON,
		FilesJSON:       rec.FilesJSON,
		CommunitiesJSON: rec.CommunitiesJSON,
	}

	return tx.Create(&rev).Error
}

// recordResponse 将模型转换为对外表示.
func recordResponse(rec *model.Record) types.RecordResponse {
	return types.RecordResponse{
		UUID:         rec.UUID,
		Recid:        rec.Recid,
		ConceptRecid: rec.ConceptRecid,
		DOI:          rec.DOI,
		ConceptDOI:   rec.ConceptDOI,
		OAIID:        rec.OAIID,
		SchemaURI:    rec.SchemaURI,
		Revision:     rec.Revision,
		Metadata:     unmarshalMetadata(rec.MetadataJSON),
		Files:        unmarshalManifest(rec.FilesJSON),
		Communities:  unmarshalStrings(rec.CommunitiesJSON),
		Owners:       unmarshalStrings(rec.OwnersJSON),
		BucketID:     rec.BucketID,
		Created:      rec.CreatedAt,
		Updated:      rec.UpdatedAt,
	}
}
