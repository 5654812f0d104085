package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/queue"
)

// fakeRegistrar 捕获出站 DataCite 调用的测试替身.
type fakeRegistrar struct {
	metadata [][]byte
	dois     []string
	landings []string
	fail     error
}

func (f *fakeRegistrar) MetadataPost(_ context.Context, metadata []byte) error {
	if f.fail != nil {
		return f.fail
	}

	f.metadata = append(f.metadata, metadata)

	return nil
}

func (f *fakeRegistrar) DOIPost(_ context.Context, doi, landingURL string) error {
	if f.fail != nil {
		return f.fail
	}

	f.dois = append(f.dois, doi)
	f.landings = append(f.landings, landingURL)

	return nil
}

func newDOIWorker(env *testEnv, reg *fakeRegistrar) *DOIService {
	return &DOIService{dbc: env.dbc, kvc: env.kvc, registrar: reg}
}

// TestDOIRegister 测试版本 DOI 注册：提交元数据、铸造指向、PID 转 REGISTERED.
func TestDOIRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reg := &fakeRegistrar{}
	worker := newDOIWorker(env, reg)

	payload := queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{Recid: dep.Recid},
		DOI:    resp.DOI,
	}

	if err := worker.Register(ctx, payload); err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(reg.metadata) != 1 || len(reg.dois) != 1 {
		t.Fatalf("calls = %d metadata, %d doi, want 1 each", len(reg.metadata), len(reg.dois))
	}

	xmlBody := string(reg.metadata[0])
	if !strings.Contains(xmlBody, resp.DOI) {
		t.Error("metadata XML must carry the DOI identifier")
	}

	// 版本 DOI 指向概念 DOI
	if !strings.Contains(xmlBody, "IsVersionOf") || !strings.Contains(xmlBody, resp.ConceptDOI) {
		t.Error("metadata XML must relate version to concept DOI")
	}

	wantLanding := fmt.Sprintf("https://localhost/record/%d", dep.Recid)
	if reg.landings[0] != wantLanding {
		t.Errorf("landing = %s, want %s", reg.landings[0], wantLanding)
	}

	pid := env.resolvePID(t, model.PIDTypeDOI, resp.DOI)
	if pid.Status != model.PIDStatusRegistered {
		t.Errorf("doi status = %s, want REGISTERED", pid.Status)
	}

	// 幂等键已落 KV，二次处理不再出站
	done, err := env.kvc.Exists(ctx, doiDoneKey(resp.DOI, resp.Revision))
	if err != nil || !done {
		t.Errorf("idempotency key missing: done=%v err=%v", done, err)
	}

	if err := worker.Register(ctx, payload); err != nil {
		t.Fatalf("second register: %v", err)
	}

	if len(reg.metadata) != 1 || len(reg.dois) != 1 {
		t.Errorf("duplicate request must be skipped, got %d metadata calls", len(reg.metadata))
	}
}

// TestDOIRegisterConcept 测试概念 DOI：HasVersion 关系与概念落地页.
func TestDOIRegisterConcept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reg := &fakeRegistrar{}
	worker := newDOIWorker(env, reg)

	err = worker.Register(ctx, queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{Recid: dep.Recid},
		DOI:    resp.ConceptDOI,
	})
	if err != nil {
		t.Fatalf("register concept: %v", err)
	}

	xmlBody := string(reg.metadata[0])
	if !strings.Contains(xmlBody, "HasVersion") || !strings.Contains(xmlBody, resp.DOI) {
		t.Error("concept metadata must list version DOIs as HasVersion")
	}

	wantLanding := fmt.Sprintf("https://localhost/record/%d", dep.ConceptRecid)
	if reg.landings[0] != wantLanding {
		t.Errorf("landing = %s, want concept page %s", reg.landings[0], wantLanding)
	}

	pid := env.resolvePID(t, model.PIDTypeDOI, resp.ConceptDOI)
	if pid.Status != model.PIDStatusRegistered {
		t.Errorf("concept doi status = %s, want REGISTERED", pid.Status)
	}
}

// TestDOIRegisterDisabled 测试注册关闭时请求按跳过处理.
func TestDOIRegisterDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	worker := &DOIService{dbc: env.dbc, kvc: env.kvc}

	err = worker.Register(ctx, queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{Recid: dep.Recid},
		DOI:    resp.DOI,
	})
	if err != nil {
		t.Fatalf("register with nil registrar: %v", err)
	}

	pid := env.resolvePID(t, model.PIDTypeDOI, resp.DOI)
	if pid.Status != model.PIDStatusReserved {
		t.Errorf("doi status = %s, must stay RESERVED when disabled", pid.Status)
	}
}

// TestDOIRegisterFailure 测试出站失败时不落幂等键、PID 不迁移.
func TestDOIRegisterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reg := &fakeRegistrar{fail: fmt.Errorf("datacite unavailable")}
	worker := newDOIWorker(env, reg)

	payload := queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{Recid: dep.Recid},
		DOI:    resp.DOI,
	}

	if err := worker.Register(ctx, payload); err == nil {
		t.Fatal("expected error from failing registrar")
	}

	pid := env.resolvePID(t, model.PIDTypeDOI, resp.DOI)
	if pid.Status != model.PIDStatusReserved {
		t.Errorf("doi status = %s, must stay RESERVED on failure", pid.Status)
	}

	done, _ := env.kvc.Exists(ctx, doiDoneKey(resp.DOI, resp.Revision))
	if done {
		t.Error("idempotency key must not be written on failure")
	}

	// 恢复后重试成功
	reg.fail = nil

	if err := worker.Register(ctx, payload); err != nil {
		t.Fatalf("retry: %v", err)
	}

	pid = env.resolvePID(t, model.PIDTypeDOI, resp.DOI)
	if pid.Status != model.PIDStatusRegistered {
		t.Errorf("doi status = %s after retry, want REGISTERED", pid.Status)
	}
}

// TestDOISweep 测试补发任务：窗口内的本地 DOI 重新提交，书签记录进度.
func TestDOISweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	reg := &fakeRegistrar{}
	worker := newDOIWorker(env, reg)

	if err := worker.Sweep(ctx, "job-1"); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(reg.dois) != 1 || reg.dois[0] != resp.DOI {
		t.Errorf("swept dois = %v, want [%s]", reg.dois, resp.DOI)
	}

	mark, ok := worker.loadBookmark(ctx)
	if !ok {
		t.Fatal("sweep bookmark not saved")
	}

	if mark.JobID != "job-1" || mark.LastUpdate.IsZero() {
		t.Errorf("bookmark = %+v, want job-1 with progress", mark)
	}

	// 已注册的 DOI 二次扫描命中幂等键，不再出站
	if err := worker.Sweep(ctx, "job-2"); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if len(reg.dois) != 1 {
		t.Errorf("second sweep must skip done dois, got %v", reg.dois)
	}
}
