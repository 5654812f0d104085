package service

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"gorm.io/gorm"

	"github.com/yeisme/depovault/pkg/configs"
	"github.com/yeisme/depovault/pkg/internal/model"
)

// TestCurationPlan 测试发布时社区调和的纯函数部分.
func TestCurationPlan(t *testing.T) {
	base := configs.CurationConfig{AutoEnabled: true, OwnedAutoAccept: true}

	cases := []struct {
		name      string
		declared  []string
		accepted  []string
		owned     []string
		hasGrants bool
		cfg       configs.CurationConfig

		wantRecord    []string
		wantDeposit   []string
		wantRequested []string
	}{
		{
			name:          "declared but not accepted goes to requested",
			declared:      []string{"astro"},
			wantRecord:    []string{},
			wantDeposit:   []string{"astro"},
			wantRequested: []string{"astro"},
			cfg:           base,
		},
		{
			name:          "accepted communities stay on record",
			declared:      []string{"astro", "bio"},
			accepted:      []string{"astro"},
			wantRecord:    []string{"astro"},
			wantDeposit:   []string{"astro", "bio"},
			wantRequested: []string{"bio"},
			cfg:           base,
		},
		{
			name:          "owned community auto accepted",
			declared:      []string{"astro"},
			owned:         []string{"astro"},
			wantRecord:    []string{"astro"},
			wantDeposit:   []string{"astro"},
			wantRequested: []string{},
			cfg:           base,
		},
		{
			name:      "grants drive auto add and auto request",
			declared:  []string{},
			hasGrants: true,
			cfg: configs.CurationConfig{
				AutoEnabled:     true,
				AddIfGrants:     []string{"ecfunded"},
				RequestIfGrants: []string{"grants-review"},
			},
			wantRecord:    []string{"ecfunded"},
			wantDeposit:   []string{"ecfunded", "grants-review"},
			wantRequested: []string{"grants-review"},
		},
		{
			name:      "auto disabled ignores grant rules",
			declared:  []string{},
			hasGrants: true,
			cfg: configs.CurationConfig{
				AddIfGrants:     []string{"ecfunded"},
				RequestIfGrants: []string{"grants-review"},
			},
			wantRecord:    []string{},
			wantDeposit:   []string{},
			wantRequested: []string{},
		},
		{
			name:      "record and requested stay disjoint",
			declared:  []string{"astro"},
			accepted:  []string{"astro"},
			hasGrants: true,
			cfg: configs.CurationConfig{
				AutoEnabled:     true,
				RequestIfGrants: []string{"astro"},
			},
			wantRecord:    []string{"astro"},
			wantDeposit:   []string{"astro"},
			wantRequested: []string{},
		},
		{
			name:          "auto request always queues",
			declared:      []string{},
			cfg:           configs.CurationConfig{AutoEnabled: true, AutoRequest: []string{"zenodo"}},
			wantRecord:    []string{},
			wantDeposit:   []string{"zenodo"},
			wantRequested: []string{"zenodo"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := curationPlan(c.declared, c.accepted, c.owned, c.hasGrants, &c.cfg)

			if !reflect.DeepEqual(got.RecordCommunities, c.wantRecord) {
				t.Errorf("record = %v, want %v", got.RecordCommunities, c.wantRecord)
			}

			if !reflect.DeepEqual(got.DepositCommunities, c.wantDeposit) {
				t.Errorf("deposit = %v, want %v", got.DepositCommunities, c.wantDeposit)
			}

			if !reflect.DeepEqual(got.NewRequests, c.wantRequested) {
				t.Errorf("requested = %v, want %v", got.NewRequests, c.wantRequested)
			}
		})
	}
}

// TestCommunityAcceptRejectConceptWide 测试接受/拒绝对概念下所有版本同时生效.
func TestCommunityAcceptRejectConceptWide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.communities.Create(ctx, "astro", "Astrophysics", "curator@example.org", ""); err != nil {
		t.Fatalf("create community: %v", err)
	}

	// 概念 1 下两个已发布版本 2、3
	seedConcept(t, env, 1, 2, 3)

	err := env.dbc.Transaction(func(tx *gorm.DB) error {
		for _, recid := range []int64{2, 3} {
			rec := model.Record{
				UUID: fmt.Sprintf("uuid-%d", recid), Recid: recid, ConceptRecid: 1,
				MetadataJSON: "{}", CommunitiesJSON: "[]",
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}

		req := model.InclusionRequest{CommunityID: "astro", Recid: 3}

		return tx.Create(&req).Error
	})
	if err != nil {
		t.Fatalf("seed records: %v", err)
	}

	if err := env.communities.AcceptRecord(ctx, "astro", 3); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, recid := range []int64{2, 3} {
		var count int64
		env.dbc.Model(&model.CommunityMembership{}).
			Where("community_id = ? AND recid = ?", "astro", recid).Count(&count)

		if count != 1 {
			t.Errorf("expected membership for recid %d after accept", recid)
		}
	}

	var pending int64
	env.dbc.Model(&model.InclusionRequest{}).Where("community_id = ?", "astro").Count(&pending)

	if pending != 0 {
		t.Errorf("expected pending requests cleared, got %d", pending)
	}

	// 记录侧的社区列表同步刷新
	rec, err := env.records.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}

	if len(rec.Communities) != 1 || rec.Communities[0] != "astro" {
		t.Errorf("record communities = %v, want [astro]", rec.Communities)
	}

	if err := env.communities.RejectRecord(ctx, "astro", 2); err != nil {
		t.Fatalf("reject: %v", err)
	}

	var remaining int64
	env.dbc.Model(&model.CommunityMembership{}).Where("community_id = ?", "astro").Count(&remaining)

	if remaining != 0 {
		t.Errorf("expected memberships removed concept-wide, got %d", remaining)
	}
}

// TestListRequests 测试收录请求队列按时间排序返回.
func TestListRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.communities.Create(ctx, "bio", "Biology", "owner@example.org", ""); err != nil {
		t.Fatalf("create community: %v", err)
	}

	for _, recid := range []int64{5, 6} {
		req := model.InclusionRequest{CommunityID: "bio", Recid: recid}
		if err := env.dbc.Create(&req).Error; err != nil {
			t.Fatalf("seed request: %v", err)
		}
	}

	resp, err := env.communities.ListRequests(ctx, "bio")
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}

	if resp.Total != 2 {
		t.Errorf("expected 2 requests, got %d", resp.Total)
	}
}
