package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/storage/db"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// doiSyntax 用户提交的 DOI 必须满足的语法.
var doiSyntax = regexp.MustCompile(`^10\.\d+/.+$`)

// pidNext 合法的状态迁移边：NEW → RESERVED → REGISTERED → REDIRECTED，任意 → DELETED.
var pidNext = map[model.PIDStatus][]model.PIDStatus{
	model.PIDStatusNew:        {model.PIDStatusReserved, model.PIDStatusRegistered, model.PIDStatusDeleted},
	model.PIDStatusReserved:   {model.PIDStatusRegistered, model.PIDStatusDeleted},
	model.PIDStatusRegistered: {model.PIDStatusRedirected, model.PIDStatusDeleted},
	model.PIDStatusRedirected: {model.PIDStatusDeleted},
	model.PIDStatusDeleted:    {},
}

// canTransition 判断状态迁移是否合法；同状态视为幂等 no-op.
func canTransition(from, to model.PIDStatus) bool {
	if from == to {
		return true
	}

	for _, s := range pidNext[from] {
		if s == to {
			return true
		}
	}

	return false
}

// PIDService 负责持久标识符的分配、解析与状态迁移.
type PIDService struct {
	dbc *db.Client
}

// NewPIDService 从 context 获取依赖实例.
func NewPIDService(c context.Context) *PIDService {
	dbc := ctxPkg.GetDBClient(c)
	if dbc == nil || dbc.DB == nil {
		nlog.Logger().Fatal().Msg("db client not initialized")
	}

	return &PIDService{dbc: dbc}
}

// Reserve 分配下一个单调递增的整数值并以 RESERVED 状态落库.
// 目前只有 recid 按序列分配，其余类型需调用方提供值（用 Create）.
func (ps *PIDService) Reserve(ctx context.Context, pidType string) (*model.PersistentIdentifier, error) {
	if pidType != model.PIDTypeRecid {
		return nil, fmt.Errorf("%w: reserve unsupported for type %s", types.ErrPIDInvalidAction, pidType)
	}

	var pid *model.PersistentIdentifier

	err := ps.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		_, pid, err = reserveRecid(tx)

		return err
	})

	return pid, err
}

// Create 以指定 (type, value) 创建 PID；重复创建返回 ErrPIDAlreadyExists.
func (ps *PIDService) Create(ctx context.Context, pidType, value string, status model.PIDStatus,
	objectType, objectUUID, provider string,
) (*model.PersistentIdentifier, error) {
	var pid *model.PersistentIdentifier

	err := ps.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pid, err = pidCreate(tx, pidType, value, status, objectType, objectUUID, provider)

		return err
	})

	return pid, err
}

// Resolve 按 (type, value) 查找 PID.
func (ps *PIDService) Resolve(ctx context.Context, pidType, value string) (*model.PersistentIdentifier, error) {
	return pidResolve(ps.dbc.WithContext(ctx), pidType, value)
}

// Assign 绑定 PID 的目标对象；已绑定且未允许覆盖时返回 ErrPIDAlreadyAssigned.
func (ps *PIDService) Assign(ctx context.Context, pidType, value, objectType, objectUUID string, overwrite bool) error {
	return ps.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pid, err := pidResolve(tx, pidType, value)
		if err != nil {
			return err
		}

		return pidAssign(tx, pid, objectType, objectUUID, overwrite)
	})
}

// Register 将 PID 迁移到 REGISTERED.
func (ps *PIDService) Register(ctx context.Context, pidType, value string) error {
	return ps.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pid, err := pidResolve(tx, pidType, value)
		if err != nil {
			return err
		}

		return pidTransition(tx, pid, model.PIDStatusRegistered)
	})
}

// Delete 将 PID 迁移到 DELETED（任意状态均可达）.
func (ps *PIDService) Delete(ctx context.Context, pidType, value string) error {
	return ps.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pid, err := pidResolve(tx, pidType, value)
		if err != nil {
			return err
		}

		return pidTransition(tx, pid, model.PIDStatusDeleted)
	})
}

// Redirect 将 source 重定向到 target（概念 recid 指向最新版本）.
func (ps *PIDService) Redirect(ctx context.Context, pidType, sourceValue, targetValue string) error {
	return ps.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := pidResolve(tx, pidType, sourceValue)
		if err != nil {
			return err
		}

		dst, err := pidResolve(tx, pidType, targetValue)
		if err != nil {
			return err
		}

		return pidRedirect(tx, src, dst)
	})
}

// ResolveRedirect 返回 source 当前指向的目标 PID，未设置重定向时返回 ErrNotFound.
func (ps *PIDService) ResolveRedirect(ctx context.Context, pidType, sourceValue string) (*model.PersistentIdentifier, error) {
	tx := ps.dbc.WithContext(ctx)

	src, err := pidResolve(tx, pidType, sourceValue)
	if err != nil {
		return nil, err
	}

	var redir model.PIDRedirect
	if err := tx.Where("source_pid_id = ?", src.ID).First(&redir).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}

		return nil, err
	}

	var target model.PersistentIdentifier
	if err := tx.First(&target, redir.TargetPIDID).Error; err != nil {
		return nil, err
	}

	return &target, nil
}

// ---- 事务内工具：供发布路径在同一事务中复用 ----

// nextSequenceValue 从 PIDSequence 取下一个值：先 UPDATE 占住行锁再读回，
// 这样在 PostgreSQL/MySQL 上并发分配不会重号；首次分配时惰性建行.
func nextSequenceValue(tx *gorm.DB, pidType string) (int64, error) {
	start := configs.GetConfig().PID.RecidStart

	res := tx.Model(&model.PIDSequence{}).
		Where("pid_type = ?", pidType).
		Update("next_value", gorm.Expr("next_value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		seq := model.PIDSequence{PIDType: pidType, NextValue: start + 1}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, fmt.Errorf("init pid sequence %s: %w", pidType, err)
		}

		return start, nil
	}

	var seq model.PIDSequence
	if err := tx.Where("pid_type = ?", pidType).First(&seq).Error; err != nil {
		return 0, err
	}

	return seq.NextValue - 1, nil
}

// reserveRecid 分配一个新的 recid 并创建 RESERVED 状态的 PID.
func reserveRecid(tx *gorm.DB) (int64, *model.PersistentIdentifier, error) {
	value, err := nextSequenceValue(tx, model.PIDTypeRecid)
	if err != nil {
		return 0, nil, err
	}

	pid, err := pidCreate(tx, model.PIDTypeRecid, strconv.FormatInt(value, 10),
		model.PIDStatusReserved, "", "", "local")
	if err != nil {
		return 0, nil, err
	}

	return value, pid, nil
}

// pidCreate 创建 PID，(type, value) 冲突时返回 ErrPIDAlreadyExists.
func pidCreate(tx *gorm.DB, pidType, value string, status model.PIDStatus,
	objectType, objectUUID, provider string,
) (*model.PersistentIdentifier, error) {
	var existing model.PersistentIdentifier

	err := tx.Where("pid_type = ? AND pid_value = ?", pidType, value).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: %s:%s", types.ErrPIDAlreadyExists, pidType, value)
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pid := model.PersistentIdentifier{
		PIDType:    pidType,
		PIDValue:   value,
		Status:     status,
		ObjectType: objectType,
		ObjectUUID: objectUUID,
		Provider:   provider,
	}
	if err := tx.Create(&pid).Error; err != nil {
		return nil, fmt.Errorf("create pid %s:%s: %w", pidType, value, err)
	}

	return &pid, nil
}

// pidResolve 按 (type, value) 查找 PID.
func pidResolve(tx *gorm.DB, pidType, value string) (*model.PersistentIdentifier, error) {
	var pid model.PersistentIdentifier

	err := tx.Where("pid_type = ? AND pid_value = ?", pidType, value).First(&pid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: pid %s:%s", types.ErrNotFound, pidType, value)
		}

		return nil, err
	}

	return &pid, nil
}

// pidAssign 绑定目标对象.
func pidAssign(tx *gorm.DB, pid *model.PersistentIdentifier, objectType, objectUUID string, overwrite bool) error {
	if pid.HasObject() && !overwrite {
		return fmt.Errorf("%w: %s:%s", types.ErrPIDAlreadyAssigned, pid.PIDType, pid.PIDValue)
	}

	pid.ObjectType = objectType
	pid.ObjectUUID = objectUUID

	return tx.Model(pid).Updates(map[string]any{
		"object_type": objectType,
		"object_uuid": objectUUID,
	}).Error
}

// pidTransition 执行状态迁移，非法迁移返回 ErrPIDInvalidAction.
func pidTransition(tx *gorm.DB, pid *model.PersistentIdentifier, to model.PIDStatus) error {
	if !canTransition(pid.Status, to) {
		return fmt.Errorf("%w: %s -> %s on %s:%s",
			types.ErrPIDInvalidAction, pid.Status, to, pid.PIDType, pid.PIDValue)
	}

	if pid.Status == to {
		return nil
	}

	pid.Status = to

	return tx.Model(pid).Update("status", to).Error
}

// pidRedirect 建立/更新 source → target 的重定向.
// 概念 recid 保持 REGISTERED 状态，重定向目标单独存在 PIDRedirect 表里，
// 概念随新版本发布反复改指向时无需改动状态.
func pidRedirect(tx *gorm.DB, source, target *model.PersistentIdentifier) error {
	if source.Status == model.PIDStatusDeleted || target.Status == model.PIDStatusDeleted {
		return fmt.Errorf("%w: redirect involving deleted pid", types.ErrPIDInvalidAction)
	}

	var redir model.PIDRedirect

	err := tx.Where("source_pid_id = ?", source.ID).First(&redir).Error

	switch {
	case err == nil:
		return tx.Model(&redir).Update("target_pid_id", target.ID).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		redir = model.PIDRedirect{SourcePIDID: source.ID, TargetPIDID: target.ID}
		return tx.Create(&redir).Error
	default:
		return err
	}
}

// validateUserDOI 校验用户提交的 DOI：
//   - 语法必须满足 ^10\.\d+/.+$
//   - 前缀在本地托管集合内时，后缀必须等于保留模板 depovault.<recid>
//
// 外部前缀的 DOI 原样接受.
func validateUserDOI(doi string, recid int64) error {
	if !doiSyntax.MatchString(doi) {
		return fmt.Errorf("%w: %s", types.ErrInvalidDOI, doi)
	}

	cfg := configs.GetConfig().PID

	prefix, suffix, _ := strings.Cut(doi, "/")
	if cfg.IsLocalDOIPrefix(prefix) {
		want := strings.Replace(configs.DefaultDOISuffixPattern, "<recid>", strconv.FormatInt(recid, 10), 1)
		if suffix != want {
			return fmt.Errorf("%w: %s", types.ErrInvalidLocalDOI, doi)
		}
	}

	return nil
}
