package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/datacite"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/storage/kv"
	"github.com/yeisme/depovault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/metrics"
	"github.com/yeisme/depovault/pkg/queue"
)

// DOIService DOI 注册 worker 的业务逻辑：消费注册请求，向 DataCite
// 提交元数据与落地页指向，并迁移 DOI PID 状态.
// 幂等键为 (DOI, revision)，已完成的请求直接跳过.
type DOIService struct {
	dbc       *db.Client
	kvc       *kv.Client
	mqc       *mq.Client
	registrar datacite.Registrar
}

// NewDOIService 从 context 获取依赖实例.
// doi.enabled 关闭时 registrar 为 nil，所有请求按跳过处理.
func NewDOIService(c context.Context) *DOIService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	cfg := configs.GetConfig().DOI

	var registrar datacite.Registrar
	if cfg.Enabled {
		registrar = datacite.NewClient(&cfg)
	}

	return &DOIService{
		dbc:       dbc,
		kvc:       ctxPkg.GetKVClient(c),
		mqc:       ctxPkg.GetMQClient(c),
		registrar: registrar,
	}
}

// WithRegistrar 替换出站客户端，测试用.
func (s *DOIService) WithRegistrar(r datacite.Registrar) *DOIService {
	s.registrar = r

	return s
}

func doiDoneKey(doi string, revision int) string {
	return fmt.Sprintf("doi:done:%s:%d", doi, revision)
}

// Register 处理一条 DOI 注册请求.
// 返回 error 表示本次尝试失败，是否重试由调用方按 datacite.IsTemporary 判定.
func (s *DOIService) Register(ctx context.Context, payload queue.DOIRegisterRequestedPayload) error {
	if s.registrar == nil {
		nlog.Logger().Debug().Str("doi", payload.DOI).Msg("doi registration disabled, skip")

		return nil
	}

	cfg := configs.GetConfig()

	// 提交前重读记录，以库内最新修订为准
	rec, err := s.recordOf(ctx, payload.Record.Recid)
	if err != nil {
		return err
	}

	doneKey := doiDoneKey(payload.DOI, rec.Revision)
	if s.done(ctx, doneKey) {
		return nil
	}

	isConcept := payload.DOI == rec.ConceptDOI && payload.DOI != rec.DOI

	relations, err := s.versionRelations(ctx, rec, isConcept)
	if err != nil {
		return err
	}

	md := unmarshalMetadata(rec.MetadataJSON)

	body, err := datacite.Serialize(payload.DOI, cfg.DOI.Publisher, &md, relations)
	if err != nil {
		return err
	}

	landing := payload.LandingURL
	if landing == "" {
		landingRecid := rec.Recid
		if isConcept {
			landingRecid = rec.ConceptRecid
		}

		landing = cfg.DOI.LandingURL(landingRecid)
	}

	if err := s.registrar.MetadataPost(ctx, body); err != nil {
		metrics.DOIRegistrationCounter.WithLabelValues("error").Inc()

		return fmt.Errorf("post metadata for %s: %w", payload.DOI, err)
	}

	if err := s.registrar.DOIPost(ctx, payload.DOI, landing); err != nil {
		metrics.DOIRegistrationCounter.WithLabelValues("error").Inc()

		return fmt.Errorf("mint %s: %w", payload.DOI, err)
	}

	if err := s.markRegistered(ctx, payload.DOI); err != nil {
		return err
	}

	s.markDone(ctx, doneKey)
	s.publishRegistered(rec, payload.DOI)
	metrics.DOIRegistrationCounter.WithLabelValues("ok").Inc()

	nlog.Logger().Info().Str("doi", payload.DOI).Int64("recid", rec.Recid).
		Int("revision", rec.Revision).Msg("doi registered")

	return nil
}

// ReportFailure 重试耗尽后投递失败事件，供运维侧告警.
func (s *DOIService) ReportFailure(payload queue.DOIRegisterRequestedPayload, attempts int, cause error) {
	nlog.Logger().Error().Err(cause).Str("doi", payload.DOI).
		Int("attempts", attempts).Msg("doi registration failed permanently")

	if s.mqc == nil || !configs.GetConfig().Events.Enabled {
		return
	}

	err := queue.PublishDOIRegisterFailed(s.mqc.RawPublisher(), queue.DOIRegisterFailedPayload{
		Record:   payload.Record,
		DOI:      payload.DOI,
		Attempts: attempts,
		Error:    cause.Error(),
	}, queue.WithProducer("depovault-worker"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("doi", payload.DOI).Msg("publish doi failed event")
	}
}

// sweepBookmark 补发任务的进度书签，保存在 KV 中.
type sweepBookmark struct {
	JobID      string    `json:"job_id"`
	From       time.Time `json:"from"`
	Until      time.Time `json:"until"`
	LastUpdate time.Time `json:"last_update"`
}

const sweepBookmarkKey = "doi:sweep:bookmark"

// Sweep 周期性补发窗口内有更新的本地 DOI 元数据.
// 每分钟限流 rate_per_minute 个 DOI，书签记录扫描进度以便中断续跑.
func (s *DOIService) Sweep(ctx context.Context, jobID string) error {
	if s.registrar == nil {
		return nil
	}

	metrics.DOISweepCounter.Inc()

	cfg := configs.GetConfig()
	now := time.Now().UTC()

	mark := sweepBookmark{
		JobID: jobID,
		From:  now.Add(-time.Duration(cfg.DOI.Sweep.WindowHours) * time.Hour),
		Until: now,
	}

	if prev, ok := s.loadBookmark(ctx); ok && prev.LastUpdate.After(mark.From) {
		// 接着上次进度扫，避免重复补发
		mark.From = prev.LastUpdate
	}

	var records []model.Record

	err := s.dbc.WithContext(ctx).
		Where("updated_at > ? AND updated_at <= ? AND doi <> ''", mark.From, mark.Until).
		Order("updated_at").
		Find(&records).Error
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.DOI.Sweep.RatePerMinute)/60.0), 1)

	var swept int

	for i := range records {
		rec := &records[i]

		if !cfg.PID.IsLocalDOI(rec.DOI) {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		err := s.Register(ctx, queue.DOIRegisterRequestedPayload{
			Record: queue.RecordRef{Recid: rec.Recid},
			DOI:    rec.DOI,
		})
		if err != nil {
			nlog.Logger().Warn().Err(err).Str("doi", rec.DOI).Msg("sweep: doi refresh failed")

			continue
		}

		swept++
		mark.LastUpdate = rec.UpdatedAt
		s.saveBookmark(ctx, &mark)
	}

	nlog.Logger().Info().Str("job", jobID).Int("records", len(records)).
		Int("swept", swept).Msg("doi metadata sweep done")

	return nil
}

// recordOf 按 recid 读取记录.
func (s *DOIService) recordOf(ctx context.Context, recid int64) (rec *model.Record, err error) {
	err = s.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err = recordByRecid(tx, recid)

		return err
	})

	return rec, err
}

// versionRelations 构造版本链关系：版本 DOI 指向概念 DOI（IsVersionOf），
// 概念 DOI 列出各版本 DOI（HasVersion）.
func (s *DOIService) versionRelations(ctx context.Context, rec *model.Record, isConcept bool) ([]datacite.Relation, error) {
	if !isConcept {
		if rec.ConceptDOI == "" {
			return nil, nil
		}

		return []datacite.Relation{{Relation: "IsVersionOf", DOI: rec.ConceptDOI}}, nil
	}

	var relations []datacite.Relation

	err := s.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		children, err := versioningChildren(tx, rec.ConceptRecid)
		if err != nil {
			return err
		}

		for _, child := range children {
			sibling, err := recordByRecid(tx, child)
			if err != nil || sibling.DOI == "" {
				continue
			}

			relations = append(relations, datacite.Relation{Relation: "HasVersion", DOI: sibling.DOI})
		}

		return nil
	})

	return relations, err
}

// markRegistered 把 DOI PID 从 RESERVED 迁移到 REGISTERED.
func (s *DOIService) markRegistered(ctx context.Context, doi string) error {
	return s.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pid, err := pidResolve(tx, model.PIDTypeDOI, doi)
		if err != nil {
			return err
		}

		return pidTransition(tx, pid, model.PIDStatusRegistered)
	})
}

func (s *DOIService) done(ctx context.Context, key string) bool {
	if s.kvc == nil {
		return false
	}

	ok, err := s.kvc.Exists(ctx, key)

	return err == nil && ok
}

func (s *DOIService) markDone(ctx context.Context, key string) {
	if s.kvc == nil {
		return
	}

	ttl := time.Duration(configs.GetConfig().DOI.Sweep.BookmarkTTLHours) * time.Hour
	if err := s.kvc.Set(ctx, key, []byte("1"), ttl); err != nil {
		nlog.Logger().Warn().Err(err).Str("key", key).Msg("save doi idempotency key")
	}
}

func (s *DOIService) loadBookmark(ctx context.Context) (*sweepBookmark, bool) {
	if s.kvc == nil {
		return nil, false
	}

	raw, err := s.kvc.Get(ctx, sweepBookmarkKey)
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	var mark sweepBookmark
	if err := decodeJSON(raw, &mark); err != nil {
		return nil, false
	}

	return &mark, true
}

func (s *DOIService) saveBookmark(ctx context.Context, mark *sweepBookmark) {
	if s.kvc == nil {
		return
	}

	ttl := time.Duration(configs.GetConfig().DOI.Sweep.BookmarkTTLHours) * time.Hour
	if err := s.kvc.Set(ctx, sweepBookmarkKey, []byte(marshalJSON(mark)), ttl); err != nil {
		nlog.Logger().Warn().Err(err).Msg("save doi sweep bookmark")
	}
}

func (s *DOIService) publishRegistered(rec *model.Record, doi string) {
	if s.mqc == nil || !configs.GetConfig().Events.Enabled || !configs.GetConfig().Events.Record.DOIRegistered {
		return
	}

	err := queue.PublishDOIRegistered(s.mqc.RawPublisher(), queue.DOIRegisteredPayload{
		Record: queue.RecordRef{
			Recid:        rec.Recid,
			ConceptRecid: rec.ConceptRecid,
			RecordUUID:   rec.UUID,
			Revision:     rec.Revision,
			DOI:          rec.DOI,
			ConceptDOI:   rec.ConceptDOI,
		},
		DOI: doi,
	}, queue.WithProducer("depovault-worker"))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("doi", doi).Msg("publish doi registered event")
	}
}
