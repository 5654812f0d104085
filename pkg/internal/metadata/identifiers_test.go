package metadata_test

import (
	"testing"

	"github.com/yeisme/depovault/pkg/internal/metadata"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10.5281/zenodo.1234", "10.5281/zenodo.1234", false},
		{" doi:10.5281/zenodo.1234 ", "10.5281/zenodo.1234", false},
		{"https://doi.org/10.5281/zenodo.1234", "10.5281/zenodo.1234", false},
		{"http://dx.doi.org/10.5281/zenodo.1234", "10.5281/zenodo.1234", false},
		{"", "", false},
		{"11.5281/zenodo.1234", "", true},
		{"10.5281", "", true},
		{"not a doi", "", true},
	}

	for _, tt := range tests {
		got, err := metadata.NormalizeDOI(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeDOI(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}

		if got != tt.want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDOIPrefix(t *testing.T) {
	if got := metadata.DOIPrefix("10.5072/depovault.7"); got != "10.5072" {
		t.Errorf("prefix = %q, want 10.5072", got)
	}

	if got := metadata.DOIPrefix("no-slash"); got != "" {
		t.Errorf("prefix = %q, want empty", got)
	}
}

func TestNormalizeORCID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0000-0002-1825-0097", "0000-0002-1825-0097", false},
		{"https://orcid.org/0000-0002-1825-0097", "0000-0002-1825-0097", false},
		{"0000-0002-1694-233x", "0000-0002-1694-233X", false},
		{"", "", false},
		// 校验位错误
		{"0000-0002-1825-0098", "", true},
		{"1825-0097", "", true},
	}

	for _, tt := range tests {
		got, err := metadata.NormalizeORCID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeORCID(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}

		if got != tt.want {
			t.Errorf("NormalizeORCID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"978-3-16-148410-0", "9783161484100", false},
		{"0-306-40615-2", "0306406152", false},
		{"0 8044 2957 X", "080442957X", false},
		{"", "", false},
		{"978-3-16-148410-1", "", true},
		{"12345", "", true},
	}

	for _, tt := range tests {
		got, err := metadata.NormalizeISBN(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeISBN(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}

		if got != tt.want {
			t.Errorf("NormalizeISBN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeGND(t *testing.T) {
	got, err := metadata.NormalizeGND("https://d-nb.info/gnd/118540238")
	if err != nil {
		t.Fatalf("NormalizeGND: %v", err)
	}

	if got != "118540238" {
		t.Errorf("gnd = %q, want 118540238", got)
	}

	if _, err := metadata.NormalizeGND("not-a-gnd!"); err == nil {
		t.Error("malformed GND must be rejected")
	}
}

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.5281/zenodo.1234", "doi"},
		{"0000-0002-1825-0097", "orcid"},
		{"arXiv:2103.01234", "arxiv"},
		{"978-3-16-148410-0", "isbn"},
		{"https://example.org/dataset", "url"},
		{"???", ""},
	}

	for _, tt := range tests {
		if got := metadata.DetectScheme(tt.in); got != tt.want {
			t.Errorf("DetectScheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeByScheme(t *testing.T) {
	got, err := metadata.NormalizeByScheme("doi:10.5281/zenodo.1", "doi")
	if err != nil || got != "10.5281/zenodo.1" {
		t.Errorf("doi: got %q err %v", got, err)
	}

	// 未知 scheme 原样返回（只去空白）
	got, err = metadata.NormalizeByScheme("  urn:nbn:de:101-2023  ", "urn")
	if err != nil || got != "urn:nbn:de:101-2023" {
		t.Errorf("urn: got %q err %v", got, err)
	}
}
