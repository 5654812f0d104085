package service

import (
	"context"

	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// StatsService 仓库整体计数：存缴、记录、概念与 DOI 注册进度.
type StatsService struct {
	dbc *db.Client
}

// NewStatsService 从 context 获取依赖实例.
func NewStatsService(c context.Context) *StatsService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	return &StatsService{dbc: dbc}
}

// Summary 汇总仓库统计，单次请求多条 COUNT，读路径无事务.
func (s *StatsService) Summary(ctx context.Context) (*types.StatsSummary, error) {
	dbx := s.dbc.WithContext(ctx)

	var out types.StatsSummary

	if err := dbx.Model(&model.Deposit{}).Count(&out.Deposits).Error; err != nil {
		return nil, err
	}

	if err := dbx.Model(&model.Deposit{}).
		Where("status = ?", model.DepositStatusDraft).
		Count(&out.Drafts).Error; err != nil {
		return nil, err
	}

	if err := dbx.Model(&model.Record{}).Count(&out.Records).Error; err != nil {
		return nil, err
	}

	if err := dbx.Model(&model.VersioningHead{}).Count(&out.Concepts).Error; err != nil {
		return nil, err
	}

	if err := dbx.Model(&model.PersistentIdentifier{}).
		Where("pid_type = ? AND status = ?", model.PIDTypeDOI, model.PIDStatusRegistered).
		Count(&out.RegisteredDOIs).Error; err != nil {
		return nil, err
	}

	if err := dbx.Model(&model.PersistentIdentifier{}).
		Where("pid_type = ? AND status = ?", model.PIDTypeDOI, model.PIDStatusReserved).
		Count(&out.PendingDOIs).Error; err != nil {
		return nil, err
	}

	var size struct{ Sum int64 }
	if err := dbx.Model(&model.Bucket{}).
		Select("COALESCE(SUM(size),0) as sum").
		Scan(&size).Error; err != nil {
		return nil, err
	}

	out.TotalFileBytes = size.Sum

	return &out, nil
}
