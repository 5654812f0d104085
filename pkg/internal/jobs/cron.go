// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/service"
	"github.com/yeisme/depovault/pkg/internal/storage"
	"github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/queue"
	"github.com/yeisme/depovault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 按 doi.sweep.cron 周期补发窗口内有更新的本地 DOI 元数据
//   - 每 15 分钟清理已删除存缴残留的索引条目
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	cfg := configs.GetConfig().DOI.Sweep
	if cfg.Enabled {
		_ = sched.AddCron(JobDOISweep, cfg.Cron, func(ctx context.Context) {
			runDOISweep(ctx)
		}, baseCtx)
	}

	_ = sched.AddCron(JobCleanupIndexedDeleted, CronCleanupIndexedDeleted, func(ctx context.Context) {
		runCleanupIndexedDeleted(ctx, mgr)
	}, baseCtx)

	return nil
}

// runDOISweep 补发最近有更新的本地 DOI 元数据.
func runDOISweep(ctx context.Context) {
	l := log.Logger().With().Str("job", JobDOISweep).Logger()

	svc := service.NewDOIService(ctx)
	if err := svc.Sweep(ctx, JobDOISweep); err != nil {
		l.Error().Err(err).Msg("doi sweep failed")

		return
	}
}

// runCleanupIndexedDeleted 对最近软删除的存缴补发索引移除事件.
// 发布流程乐观投递索引消息，删除与索引消费之间可能交错，
// 这里兜底保证已删除的存缴最终从索引消失.
func runCleanupIndexedDeleted(ctx context.Context, mgr *storage.Manager) {
	l := log.Logger().With().Str("job", JobCleanupIndexedDeleted).Logger()

	dbc := mgr.GetDBClient()
	if dbc == nil || dbc.GetDB() == nil {
		l.Error().Msg("db not initialized")

		return
	}

	mqc := mgr.GetMQClient()
	if mqc == nil {
		return
	}

	since := time.Now().Add(-24 * time.Hour)

	var depids []int64

	err := dbc.GetDB().WithContext(ctx).Unscoped().Model(&model.Deposit{}).
		Where("deleted_at IS NOT NULL AND deleted_at > ?", since).
		Pluck("depid", &depids).Error
	if err != nil {
		l.Error().Err(err).Msg("list deleted deposits failed")

		return
	}

	for _, depid := range depids {
		err := queue.PublishIndexRemove(mqc.RawPublisher(), queue.IndexRemovePayload{Depid: depid},
			queue.WithProducer("depovault-jobs"))
		if err != nil {
			l.Warn().Err(err).Int64("depid", depid).Msg("publish index remove failed")
		}
	}

	if len(depids) > 0 {
		l.Info().Int("deposits", len(depids)).Msg("republished index removals for deleted deposits")
	}
}
