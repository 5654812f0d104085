package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/yeisme/depovault/pkg/internal/model"
	"github.com/yeisme/depovault/pkg/internal/types"
)

// TestPublishFirst 测试首次发布：本地 DOI、概念 DOI、OAI 标识与 PID 状态落账.
func TestPublishFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	wantDOI := fmt.Sprintf("10.5072/depovault.%d", dep.Recid)
	if resp.DOI != wantDOI {
		t.Errorf("doi = %s, want %s", resp.DOI, wantDOI)
	}

	wantConcept := fmt.Sprintf("10.5072/depovault.%d", dep.ConceptRecid)
	if resp.ConceptDOI != wantConcept {
		t.Errorf("concept doi = %s, want %s", resp.ConceptDOI, wantConcept)
	}

	if resp.Revision != 0 {
		t.Errorf("revision = %d, want 0", resp.Revision)
	}

	// PID 状态：recid/概念 recid REGISTERED，DOI RESERVED 等待 worker
	recidPID := env.resolvePID(t, model.PIDTypeRecid, strconv.FormatInt(dep.Recid, 10))
	if recidPID.Status != model.PIDStatusRegistered {
		t.Errorf("recid status = %s, want REGISTERED", recidPID.Status)
	}

	if recidPID.ObjectUUID != resp.RecordUUID {
		t.Errorf("recid bound to %s, want record %s", recidPID.ObjectUUID, resp.RecordUUID)
	}

	conceptPID := env.resolvePID(t, model.PIDTypeRecid, strconv.FormatInt(dep.ConceptRecid, 10))
	if conceptPID.Status != model.PIDStatusRegistered {
		t.Errorf("concept status = %s, want REGISTERED", conceptPID.Status)
	}

	doiPID := env.resolvePID(t, model.PIDTypeDOI, wantDOI)
	if doiPID.Status != model.PIDStatusReserved {
		t.Errorf("doi status = %s, want RESERVED", doiPID.Status)
	}

	if doiPID.Provider != "local" {
		t.Errorf("doi provider = %s, want local", doiPID.Provider)
	}

	oaiPID := env.resolvePID(t, model.PIDTypeOAI, fmt.Sprintf("oai:depovault:%d", dep.Recid))
	if oaiPID.Status != model.PIDStatusRegistered {
		t.Errorf("oai status = %s, want REGISTERED", oaiPID.Status)
	}

	// 概念 recid 重定向到最新版本
	target, err := env.pids.ResolveRedirect(ctx, model.PIDTypeRecid, strconv.FormatInt(dep.ConceptRecid, 10))
	if err != nil {
		t.Fatalf("resolve redirect: %v", err)
	}

	if target.PIDValue != strconv.FormatInt(dep.Recid, 10) {
		t.Errorf("concept redirect = %s, want %d", target.PIDValue, dep.Recid)
	}

	// 记录与桶：快照锁定，草稿桶同样锁定
	rec, err := env.records.Get(ctx, dep.Recid)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}

	if rec.BucketID == dep.BucketID {
		t.Error("record must own a snapshot bucket, not the draft bucket")
	}

	for _, id := range []string{rec.BucketID, dep.BucketID} {
		bucket, err := bucketByID(env.dbc.DB, id)
		if err != nil {
			t.Fatalf("bucket %s: %v", id, err)
		}

		if !bucket.Locked {
			t.Errorf("bucket %s must be locked after publish", id)
		}
	}

	if len(rec.Files) != 1 || rec.Files[0].Key != "data.csv" {
		t.Errorf("record files = %+v, want single data.csv", rec.Files)
	}

	got, err := env.deposits.Get(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}

	if got.Status != string(model.DepositStatusPublished) {
		t.Errorf("deposit status = %s, want published", got.Status)
	}
}

// TestPublishRequiresFiles 测试空桶发布被拒绝.
func TestPublishRequiresFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", nil)

	if _, err := env.deposits.Publish(ctx, dep.Depid); !errors.Is(err, types.ErrMissingFiles) {
		t.Errorf("expected ErrMissingFiles, got %v", err)
	}
}

// TestPublishRejectsOngoingMultipart 测试未完成的分片上传阻断发布.
func TestPublishRejectsOngoingMultipart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	init, err := env.buckets.InitiateMultipart(ctx, dep.BucketID, "big.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("initiate multipart: %v", err)
	}

	if _, err := env.deposits.Publish(ctx, dep.Depid); !errors.Is(err, types.ErrOngoingMultipartUpload) {
		t.Errorf("expected ErrOngoingMultipartUpload, got %v", err)
	}

	// 直传字节并完成会话后发布恢复
	var mp model.MultipartUpload
	if err := env.dbc.First(&mp, "id = ?", init.UploadID).Error; err != nil {
		t.Fatalf("load multipart row: %v", err)
	}

	payload := "large payload bytes"
	if err := env.blobs.Put(ctx, mp.FileID, strings.NewReader(payload), int64(len(payload)), "application/octet-stream"); err != nil {
		t.Fatalf("direct put: %v", err)
	}

	if _, err := env.buckets.CompleteMultipart(ctx, dep.BucketID, init.UploadID); err != nil {
		t.Fatalf("complete multipart: %v", err)
	}

	if _, err := env.deposits.Publish(ctx, dep.Depid); err != nil {
		t.Fatalf("publish after complete: %v", err)
	}
}

// TestPublishUnknownCommunity 测试引用不存在社区的发布失败.
func TestPublishUnknownCommunity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	md := validMetadata()
	md.Communities = []string{"nonexistent"}

	if _, err := env.deposits.Update(ctx, dep.Depid, &types.UpdateDepositRequest{Metadata: md}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var cErr *types.MissingCommunityError

	_, err := env.deposits.Publish(ctx, dep.Depid)
	if !errors.As(err, &cErr) {
		t.Fatalf("expected MissingCommunityError, got %v", err)
	}

	if cErr.Community != "nonexistent" {
		t.Errorf("community = %s, want nonexistent", cErr.Community)
	}
}

// TestPublishExternalDOI 测试外部 DOI：原样接受、无概念 DOI、永不注册.
func TestPublishExternalDOI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	md := validMetadata()
	md.DOI = "10.1234/external.2026.001"

	if _, err := env.deposits.Update(ctx, dep.Depid, &types.UpdateDepositRequest{Metadata: md}); err != nil {
		t.Fatalf("update: %v", err)
	}

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if resp.DOI != md.DOI {
		t.Errorf("doi = %s, want %s", resp.DOI, md.DOI)
	}

	if resp.ConceptDOI != "" {
		t.Errorf("external doi must not mint a concept doi, got %s", resp.ConceptDOI)
	}

	doiPID := env.resolvePID(t, model.PIDTypeDOI, md.DOI)
	if doiPID.Provider != "external" {
		t.Errorf("provider = %s, want external", doiPID.Provider)
	}

	if doiPID.Status != model.PIDStatusReserved {
		t.Errorf("status = %s, external doi stays RESERVED", doiPID.Status)
	}

	// 外部 DOI 的记录禁止 new_version 与 register_concept_doi
	if _, err := env.deposits.NewVersion(ctx, dep.Depid); !errors.Is(err, types.ErrExternalDOI) {
		t.Errorf("new version: expected ErrExternalDOI, got %v", err)
	}

	if _, err := env.deposits.RegisterConceptDOI(ctx, dep.Depid); !errors.Is(err, types.ErrExternalDOI) {
		t.Errorf("register concept doi: expected ErrExternalDOI, got %v", err)
	}
}

// TestPublishRejectsBadLocalDOI 测试本地前缀下不合保留模板的 DOI.
func TestPublishRejectsBadLocalDOI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	md := validMetadata()
	md.DOI = "10.5072/custom-suffix"

	if _, err := env.deposits.Update(ctx, dep.Depid, &types.UpdateDepositRequest{Metadata: md}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := env.deposits.Publish(ctx, dep.Depid); !errors.Is(err, types.ErrInvalidLocalDOI) {
		t.Errorf("expected ErrInvalidLocalDOI, got %v", err)
	}
}

// TestEditRepublish 测试编辑再发布：修订号递增、历史修订可读、DOI 不变.
func TestEditRepublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	first, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := env.deposits.Edit(ctx, dep.Depid); err != nil {
		t.Fatalf("edit: %v", err)
	}

	md := validMetadata()
	md.Title = "Measurements of atmospheric methane, corrected"

	if _, err := env.deposits.Update(ctx, dep.Depid, &types.UpdateDepositRequest{Metadata: md}); err != nil {
		t.Fatalf("update: %v", err)
	}

	second, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}

	if second.Revision != first.Revision+1 {
		t.Errorf("revision = %d, want %d", second.Revision, first.Revision+1)
	}

	if second.DOI != first.DOI || second.RecordUUID != first.RecordUUID {
		t.Errorf("edit republish must keep doi/uuid: %+v vs %+v", second, first)
	}

	head, err := env.records.Get(ctx, dep.Recid)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}

	if head.Metadata.Title != md.Title {
		t.Errorf("head title = %q, want updated", head.Metadata.Title)
	}

	old, err := env.records.GetRevision(ctx, dep.Recid, 0)
	if err != nil {
		t.Fatalf("get revision 0: %v", err)
	}

	if old.Metadata.Title != validMetadata().Title {
		t.Errorf("revision 0 title = %q, want original", old.Metadata.Title)
	}

	if _, err := env.records.GetRevision(ctx, dep.Recid, 9); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("out of range revision: got %v", err)
	}

	// 版本图不变：仍然只有一个子版本
	children, err := env.versions.Children(ctx, dep.ConceptRecid)
	if err != nil {
		t.Fatalf("children: %v", err)
	}

	if len(children) != 1 {
		t.Errorf("children = %v, want single version", children)
	}
}

// TestNewVersionPublish 测试新版本发布：文件判等、版本链追加与概念重定向刷新.
func TestNewVersionPublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	if _, err := env.deposits.Publish(ctx, parent.Depid); err != nil {
		t.Fatalf("publish parent: %v", err)
	}

	nv, err := env.deposits.NewVersion(ctx, parent.Depid)
	if err != nil {
		t.Fatalf("new version: %v", err)
	}

	if nv.NewRecid == parent.Recid {
		t.Error("new version must get a fresh recid")
	}

	// 概念上已有草稿时再开新版本被拒绝
	if _, err := env.deposits.NewVersion(ctx, parent.Depid); !errors.Is(err, types.ErrConcurrentVersion) {
		t.Errorf("expected ErrConcurrentVersion, got %v", err)
	}

	child, err := env.deposits.Get(ctx, nv.NewDepid)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}

	if child.ConceptRecid != parent.ConceptRecid {
		t.Errorf("child concept = %d, want %d", child.ConceptRecid, parent.ConceptRecid)
	}

	if child.Metadata.DOI != "" {
		t.Errorf("child doi must be reset, got %s", child.Metadata.DOI)
	}

	// 文件原样快照、未做任何修改：与父版本校验和集合相同，发布被拒
	if _, err := env.deposits.Publish(ctx, nv.NewDepid); !errors.Is(err, types.ErrVersioningFiles) {
		t.Errorf("expected ErrVersioningFiles, got %v", err)
	}

	env.upload(t, child.BucketID, "data.csv", "1,2\n3,4\n")

	resp, err := env.deposits.Publish(ctx, nv.NewDepid)
	if err != nil {
		t.Fatalf("publish child: %v", err)
	}

	wantDOI := fmt.Sprintf("10.5072/depovault.%d", nv.NewRecid)
	if resp.DOI != wantDOI {
		t.Errorf("child doi = %s, want %s", resp.DOI, wantDOI)
	}

	// 概念 DOI 为整条版本链共享
	parentResp, err := env.deposits.Get(ctx, parent.Depid)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}

	if resp.ConceptDOI != parentResp.ConceptDOI {
		t.Errorf("concept doi differs across versions: %s vs %s", resp.ConceptDOI, parentResp.ConceptDOI)
	}

	children, err := env.versions.Children(ctx, parent.ConceptRecid)
	if err != nil {
		t.Fatalf("children: %v", err)
	}

	if len(children) != 2 || children[0] != parent.Recid || children[1] != nv.NewRecid {
		t.Errorf("children = %v, want [%d %d]", children, parent.Recid, nv.NewRecid)
	}

	// 概念重定向刷新到最新版本
	target, err := env.pids.ResolveRedirect(ctx, model.PIDTypeRecid, strconv.FormatInt(parent.ConceptRecid, 10))
	if err != nil {
		t.Fatalf("resolve redirect: %v", err)
	}

	if target.PIDValue != strconv.FormatInt(nv.NewRecid, 10) {
		t.Errorf("concept redirect = %s, want %d", target.PIDValue, nv.NewRecid)
	}

	versions, err := env.records.ListVersions(ctx, parent.ConceptRecid)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}

	if versions.Total != 2 || !versions.Versions[1].IsLatest {
		t.Errorf("unexpected version listing: %+v", versions)
	}
}

// TestNewVersionRequiresPublished 测试 new_version 的前置条件.
func TestNewVersionRequiresPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	if _, err := env.deposits.NewVersion(ctx, dep.Depid); !errors.Is(err, types.ErrDepositNotPublished) {
		t.Errorf("expected ErrDepositNotPublished, got %v", err)
	}
}

// TestRegisterConceptDOIIdempotent 测试概念 DOI 注册的幂等返回.
func TestRegisterConceptDOIIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	resp, err := env.deposits.Publish(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	// 首次发布已铸造概念 DOI，register_concept_doi 幂等返回同一值
	got, err := env.deposits.RegisterConceptDOI(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("register concept doi: %v", err)
	}

	if got.ConceptDOI != resp.ConceptDOI {
		t.Errorf("concept doi = %s, want %s", got.ConceptDOI, resp.ConceptDOI)
	}

	again, err := env.deposits.RegisterConceptDOI(ctx, dep.Depid)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}

	if again.ConceptDOI != got.ConceptDOI {
		t.Errorf("concept doi not stable: %s vs %s", again.ConceptDOI, got.ConceptDOI)
	}
}

// TestPublishCurationQueuesRequests 测试发布时的社区调和落账.
func TestPublishCurationQueuesRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.communities.Create(ctx, "astro", "Astrophysics", "curator@example.org", ""); err != nil {
		t.Fatalf("create community: %v", err)
	}

	if _, err := env.communities.Create(ctx, "mine", "My Lab", "alice@example.org", ""); err != nil {
		t.Fatalf("create community: %v", err)
	}

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	md := validMetadata()
	md.Communities = []string{"astro", "mine"}

	if _, err := env.deposits.Update(ctx, dep.Depid, &types.UpdateDepositRequest{Metadata: md}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := env.deposits.Publish(ctx, dep.Depid); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// 属主自有社区直接接受，其余排队等待策展
	rec, err := env.records.Get(ctx, dep.Recid)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}

	if len(rec.Communities) != 1 || rec.Communities[0] != "mine" {
		t.Errorf("record communities = %v, want [mine]", rec.Communities)
	}

	reqs, err := env.communities.ListRequests(ctx, "astro")
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}

	if reqs.Total != 1 || reqs.Requests[0].Recid != dep.Recid {
		t.Errorf("requests = %+v, want single request for recid %d", reqs, dep.Recid)
	}
}

// TestEditDraftFilesMutable 编辑草稿期间工作桶必须重新可写：
// discard 把文件回滚到记录头，再发布把改动同步进记录桶.
func TestEditDraftFilesMutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dep := env.createDraft(t, "alice@example.org", map[string]string{"data.csv": "1,2\n"})

	if _, err := env.deposits.Publish(ctx, dep.Depid); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// 发布后工作桶上锁
	locked, err := bucketByID(env.dbc.DB, dep.BucketID)
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}

	if !locked.Locked {
		t.Fatal("working bucket must be locked after publish")
	}

	if _, err := env.deposits.Edit(ctx, dep.Depid); err != nil {
		t.Fatalf("edit: %v", err)
	}

	reopened, err := bucketByID(env.dbc.DB, dep.BucketID)
	if err != nil {
		t.Fatalf("bucket after edit: %v", err)
	}

	if reopened.Locked {
		t.Fatal("working bucket must be unlocked while editing")
	}

	env.upload(t, dep.BucketID, "notes.txt", "supplementary")

	// discard 撤销文件改动
	if _, err := env.deposits.Discard(ctx, dep.Depid); err != nil {
		t.Fatalf("discard: %v", err)
	}

	files, err := env.buckets.ListFiles(ctx, dep.BucketID)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}

	if len(files.Files) != 1 || files.Files[0].Key != "data.csv" {
		t.Errorf("discard must roll files back, got %+v", files.Files)
	}

	// 再次修改并 republish，改动进入记录
	env.upload(t, dep.BucketID, "notes.txt", "supplementary")

	if _, err := env.deposits.Publish(ctx, dep.Depid); err != nil {
		t.Fatalf("republish: %v", err)
	}

	head, err := env.records.Get(ctx, dep.Recid)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}

	keys := make(map[string]struct{}, len(head.Files))
	for _, f := range head.Files {
		keys[f.Key] = struct{}{}
	}

	if _, ok := keys["notes.txt"]; !ok || len(keys) != 2 {
		t.Errorf("record files = %+v, want data.csv and notes.txt", head.Files)
	}

	// republish 后两个桶重新上锁
	for _, id := range []string{dep.BucketID, head.BucketID} {
		b, err := bucketByID(env.dbc.DB, id)
		if err != nil {
			t.Fatalf("bucket %s: %v", id, err)
		}

		if !b.Locked {
			t.Errorf("bucket %s must be locked after republish", id)
		}
	}
}
