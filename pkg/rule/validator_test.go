package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/depovault/pkg/rule"
)

// pageQuery 用于测试 ValidateStruct.
type pageQuery struct {
	Owner    string `rule:"required,email"`
	PageSize int    `rule:"min=0,max=200"`
}

// TestEngine 测试 Engine 函数返回非 nil 实例.
func TestEngine(t *testing.T) {
	engine := rule.Engine()
	if engine == nil {
		t.Error("Engine() returned nil")
	}
}

// TestValidateStruct 测试 ValidateStruct 对有效和无效结构体的验证.
func TestValidateStruct(t *testing.T) {
	valid := pageQuery{Owner: "alice@example.org", PageSize: 25}
	if err := rule.ValidateStruct(valid); err != nil {
		t.Errorf("Expected no error for valid struct, got %v", err)
	}

	// 缺少 Owner
	if err := rule.ValidateStruct(pageQuery{PageSize: 25}); err == nil {
		t.Error("Expected error for missing owner, got nil")
	}

	// PageSize 超上限
	if err := rule.ValidateStruct(pageQuery{Owner: "alice@example.org", PageSize: 500}); err == nil {
		t.Error("Expected error for oversized page, got nil")
	}
}

// TestValidateVar 测试 ValidateVar 对变量的验证.
func TestValidateVar(t *testing.T) {
	if err := rule.ValidateVar("curator@example.org", "required,email"); err != nil {
		t.Errorf("Expected no error for valid email, got %v", err)
	}

	if err := rule.ValidateVar("invalid-email", "required,email"); err == nil {
		t.Error("Expected error for invalid email, got nil")
	}
}

// TestCommunityIDRule 测试内置的 community_id 规则.
func TestCommunityIDRule(t *testing.T) {
	for _, id := range []string{"astro", "astro-ph", "bio_2024", "a.b"} {
		if err := rule.ValidateVar(id, "community_id"); err != nil {
			t.Errorf("Expected %q to be a valid community id, got %v", id, err)
		}
	}

	for _, id := range []string{"", "Astro", "-astro", "astro ph", "astro/ph"} {
		if err := rule.ValidateVar(id, "community_id"); err == nil {
			t.Errorf("Expected %q to be rejected as community id", id)
		}
	}
}

// TestRecidAlias 测试内置的 recid 别名.
func TestRecidAlias(t *testing.T) {
	if err := rule.ValidateVar("42", "recid"); err != nil {
		t.Errorf("Expected no error for numeric recid, got %v", err)
	}

	if err := rule.ValidateVar("abc", "recid"); err == nil {
		t.Error("Expected error for non-numeric recid, got nil")
	}
}

// TestRegisterValidation 测试注册自定义验证.
func TestRegisterValidation(t *testing.T) {
	err := rule.RegisterValidation("md5_checksum", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}

		return len(s) == 36 && s[:4] == "md5:"
	})
	if err != nil {
		t.Fatalf("Failed to register validation: %v", err)
	}

	if err := rule.ValidateVar("md5:9e107d9d372bb6826bd81d3542a419d6", "md5_checksum"); err != nil {
		t.Errorf("Expected no error for checksum string, got %v", err)
	}

	if err := rule.ValidateVar("sha1:deadbeef", "md5_checksum"); err == nil {
		t.Error("Expected error for non-md5 checksum, got nil")
	}
}

// TestRegisterAlias 测试注册别名.
func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("doi_prefix", "required,startswith=10.")

	if err := rule.ValidateVar("10.5072", "doi_prefix"); err != nil {
		t.Errorf("Expected no error for valid prefix with alias, got %v", err)
	}

	if err := rule.ValidateVar("11.5072", "doi_prefix"); err == nil {
		t.Error("Expected error for invalid prefix with alias, got nil")
	}
}
