package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/types"
)

// TestCanTransition 校验 PID 状态机的全部合法/非法迁移边.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.PIDStatus
		want     bool
	}{
		{model.PIDStatusNew, model.PIDStatusReserved, true},
		{model.PIDStatusNew, model.PIDStatusRegistered, true},
		{model.PIDStatusReserved, model.PIDStatusRegistered, true},
		{model.PIDStatusRegistered, model.PIDStatusRedirected, true},
		{model.PIDStatusNew, model.PIDStatusDeleted, true},
		{model.PIDStatusReserved, model.PIDStatusDeleted, true},
		{model.PIDStatusRegistered, model.PIDStatusDeleted, true},
		{model.PIDStatusRedirected, model.PIDStatusDeleted, true},
		// 同状态为幂等 no-op
		{model.PIDStatusReserved, model.PIDStatusReserved, true},
		{model.PIDStatusDeleted, model.PIDStatusDeleted, true},
		// 禁止逆向迁移
		{model.PIDStatusRegistered, model.PIDStatusReserved, false},
		{model.PIDStatusReserved, model.PIDStatusNew, false},
		{model.PIDStatusRedirected, model.PIDStatusRegistered, false},
		{model.PIDStatusDeleted, model.PIDStatusRegistered, false},
		{model.PIDStatusNew, model.PIDStatusRedirected, false},
	}

	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

// TestReserveRecidSequence 测试 recid 序列的单调分配.
func TestReserveRecidSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.pids.Reserve(ctx, model.PIDTypeRecid)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if first.Status != model.PIDStatusReserved {
		t.Errorf("expected RESERVED, got %s", first.Status)
	}

	second, err := env.pids.Reserve(ctx, model.PIDTypeRecid)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if first.PIDValue == second.PIDValue {
		t.Errorf("expected distinct recid values, both %s", first.PIDValue)
	}

	// 仅 recid 支持序列分配
	if _, err := env.pids.Reserve(ctx, model.PIDTypeDOI); !errors.Is(err, types.ErrPIDInvalidAction) {
		t.Errorf("expected ErrPIDInvalidAction for doi reserve, got %v", err)
	}
}

// TestPIDCreateDuplicate 测试 (type, value) 冲突.
func TestPIDCreateDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.pids.Create(ctx, model.PIDTypeDOI, "10.5072/depovault.7",
		model.PIDStatusReserved, model.ObjectTypeRecord, "uuid-1", "local"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := env.pids.Create(ctx, model.PIDTypeDOI, "10.5072/depovault.7",
		model.PIDStatusReserved, model.ObjectTypeRecord, "uuid-2", "local")
	if !errors.Is(err, types.ErrPIDAlreadyExists) {
		t.Errorf("expected ErrPIDAlreadyExists, got %v", err)
	}
}

// TestPIDAssign 测试目标绑定与覆盖保护.
func TestPIDAssign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.pids.Create(ctx, model.PIDTypeDOI, "10.5072/depovault.9",
		model.PIDStatusReserved, "", "", "local"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.pids.Assign(ctx, model.PIDTypeDOI, "10.5072/depovault.9",
		model.ObjectTypeRecord, "uuid-1", false); err != nil {
		t.Fatalf("assign: %v", err)
	}

	err := env.pids.Assign(ctx, model.PIDTypeDOI, "10.5072/depovault.9",
		model.ObjectTypeRecord, "uuid-2", false)
	if !errors.Is(err, types.ErrPIDAlreadyAssigned) {
		t.Errorf("expected ErrPIDAlreadyAssigned, got %v", err)
	}

	if err := env.pids.Assign(ctx, model.PIDTypeDOI, "10.5072/depovault.9",
		model.ObjectTypeRecord, "uuid-2", true); err != nil {
		t.Errorf("overwrite assign: %v", err)
	}

	pid := env.resolvePID(t, model.PIDTypeDOI, "10.5072/depovault.9")
	if pid.ObjectUUID != "uuid-2" {
		t.Errorf("expected object uuid-2, got %s", pid.ObjectUUID)
	}
}

// TestPIDRedirect 测试重定向建立、更新与解析.
// 源 PID 保持 REGISTERED 状态，重定向目标单独记账.
func TestPIDRedirect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, v := range []string{"100", "101", "102"} {
		if _, err := env.pids.Create(ctx, model.PIDTypeRecid, v,
			model.PIDStatusRegistered, "", "", "local"); err != nil {
			t.Fatalf("create %s: %v", v, err)
		}
	}

	if err := env.pids.Redirect(ctx, model.PIDTypeRecid, "100", "101"); err != nil {
		t.Fatalf("redirect: %v", err)
	}

	target, err := env.pids.ResolveRedirect(ctx, model.PIDTypeRecid, "100")
	if err != nil {
		t.Fatalf("resolve redirect: %v", err)
	}

	if target.PIDValue != "101" {
		t.Errorf("expected target 101, got %s", target.PIDValue)
	}

	// 重定向更新：概念随新版本发布改指向
	if err := env.pids.Redirect(ctx, model.PIDTypeRecid, "100", "102"); err != nil {
		t.Fatalf("redirect update: %v", err)
	}

	target, err = env.pids.ResolveRedirect(ctx, model.PIDTypeRecid, "100")
	if err != nil {
		t.Fatalf("resolve redirect: %v", err)
	}

	if target.PIDValue != "102" {
		t.Errorf("expected target 102, got %s", target.PIDValue)
	}

	src := env.resolvePID(t, model.PIDTypeRecid, "100")
	if src.Status != model.PIDStatusRegistered {
		t.Errorf("source status should stay REGISTERED, got %s", src.Status)
	}

	// 未设置重定向的 PID
	if _, err := env.pids.ResolveRedirect(ctx, model.PIDTypeRecid, "101"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestPIDInvalidTransition 测试非法迁移被拒绝且状态不变.
func TestPIDInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.pids.Create(ctx, model.PIDTypeRecid, "200",
		model.PIDStatusRegistered, "", "", "local"); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		pid, err := pidResolve(tx, model.PIDTypeRecid, "200")
		if err != nil {
			return err
		}

		return pidTransition(tx, pid, model.PIDStatusReserved)
	})
	if !errors.Is(err, types.ErrPIDInvalidAction) {
		t.Errorf("expected ErrPIDInvalidAction, got %v", err)
	}

	pid := env.resolvePID(t, model.PIDTypeRecid, "200")
	if pid.Status != model.PIDStatusRegistered {
		t.Errorf("status changed to %s after rejected transition", pid.Status)
	}
}

// TestValidateUserDOI 测试用户提交 DOI 的裁决规则.
func TestValidateUserDOI(t *testing.T) {
	initTestConfig(t)

	cases := []struct {
		doi     string
		recid   int64
		wantErr error
	}{
		{"10.5072/depovault.42", 42, nil},
		{"10.1234/external-thing", 42, nil},
		{"10.5072/wrong-suffix", 42, types.ErrInvalidLocalDOI},
		{"10.5072/depovault.43", 42, types.ErrInvalidLocalDOI},
		{"not-a-doi", 42, types.ErrInvalidDOI},
		{"10.x/bad", 42, types.ErrInvalidDOI},
	}

	for _, c := range cases {
		err := validateUserDOI(c.doi, c.recid)
		if c.wantErr == nil && err != nil {
			t.Errorf("validateUserDOI(%q) = %v, want nil", c.doi, err)
		}

		if c.wantErr != nil && !errors.Is(err, c.wantErr) {
			t.Errorf("validateUserDOI(%q) = %v, want %v", c.doi, err, c.wantErr)
		}
	}
}

// TestPIDPhysicalColumns 按模型标签选出物理列，防止默认命名策略把
// PIDType/SourcePIDID 蛇形化成 p_id_type/source_p_id_id.
func TestPIDPhysicalColumns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reserved, err := env.pids.Reserve(ctx, model.PIDTypeRecid)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := env.pids.Register(ctx, model.PIDTypeRecid, reserved.PIDValue); err != nil {
		t.Fatalf("register source: %v", err)
	}

	target, err := env.pids.Reserve(ctx, model.PIDTypeRecid)
	if err != nil {
		t.Fatalf("reserve target: %v", err)
	}

	if err := env.pids.Register(ctx, model.PIDTypeRecid, target.PIDValue); err != nil {
		t.Fatalf("register target: %v", err)
	}

	if err := env.pids.Redirect(ctx, model.PIDTypeRecid, reserved.PIDValue, target.PIDValue); err != nil {
		t.Fatalf("redirect: %v", err)
	}

	var pidType, pidValue string

	row := env.dbc.Raw(
		"SELECT pid_type, pid_value FROM persistent_identifiers WHERE pid_value = ?",
		reserved.PIDValue).Row()
	if err := row.Scan(&pidType, &pidValue); err != nil {
		t.Fatalf("select pid columns: %v", err)
	}

	if pidType != model.PIDTypeRecid || pidValue != reserved.PIDValue {
		t.Errorf("unexpected row (%s, %s)", pidType, pidValue)
	}

	var redirects int64

	row = env.dbc.Raw(
		"SELECT COUNT(*) FROM p_id_redirects WHERE source_pid_id = ? AND target_pid_id = ?",
		reserved.ID, target.ID).Row()
	if err := row.Scan(&redirects); err != nil {
		t.Fatalf("select redirect columns: %v", err)
	}

	if redirects != 1 {
		t.Errorf("expected 1 redirect row, got %d", redirects)
	}

	var sequences int64

	row = env.dbc.Raw("SELECT COUNT(*) FROM p_id_sequences WHERE pid_type = ?", model.PIDTypeRecid).Row()
	if err := row.Scan(&sequences); err != nil {
		t.Fatalf("select sequence columns: %v", err)
	}

	if sequences != 1 {
		t.Errorf("expected 1 recid sequence row, got %d", sequences)
	}
}
