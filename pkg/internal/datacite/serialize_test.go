package datacite

import (
	"strings"
	"testing"

	"github.com/yeisme/depovault/pkg/internal/types"
)

func sampleMetadata() *types.DepositMetadata {
	return &types.DepositMetadata{
		Title: "Atmospheric methane series",
		Creators: []types.Creator{
			{Name: "Doe, John", ORCID: "0000-0002-1825-0097", Affiliation: "Example University"},
		},
		Description:     "Monthly methane concentrations.",
		PublicationDate: "2026-01-15",
		ResourceType:    types.ResourceType{Type: "dataset"},
		License:         "CC0-1.0",
		Keywords:        []string{"methane", "atmosphere"},
		Language:        "eng",
	}
}

func TestSerializeKernel4(t *testing.T) {
	out, err := Serialize("10.5072/depovault.2", "DepoVault", sampleMetadata(), nil)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	body := string(out)

	if !strings.HasPrefix(body, "<?xml") {
		t.Error("output must start with an XML declaration")
	}

	for _, want := range []string{
		`xmlns="http://datacite.org/schema/kernel-4"`,
		`identifierType="DOI"`,
		"10.5072/depovault.2",
		"<creatorName>Doe, John</creatorName>",
		`nameIdentifierScheme="ORCID"`,
		"0000-0002-1825-0097",
		"<publisher>DepoVault</publisher>",
		"<publicationYear>2026</publicationYear>",
		`resourceTypeGeneral="Dataset"`,
		"<subject>methane</subject>",
		"<rights>CC0-1.0</rights>",
		`descriptionType="Abstract"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("serialized XML missing %q", want)
		}
	}
}

func TestSerializeResourceTypes(t *testing.T) {
	tests := []struct {
		rt          types.ResourceType
		wantGeneral string
		wantValue   string
	}{
		{types.ResourceType{Type: "dataset"}, "Dataset", "dataset"},
		{types.ResourceType{Type: "publication", Subtype: "article"}, "Text", "article"},
		{types.ResourceType{Type: "software"}, "Software", "software"},
		{types.ResourceType{Type: "image", Subtype: "photo"}, "Image", "photo"},
		{types.ResourceType{Type: "lesson"}, "Other", "lesson"},
	}

	for _, tt := range tests {
		got := serializeResourceType(tt.rt)
		if got.General != tt.wantGeneral || got.Value != tt.wantValue {
			t.Errorf("serializeResourceType(%+v) = %+v, want %s/%s",
				tt.rt, got, tt.wantGeneral, tt.wantValue)
		}
	}
}

func TestSerializeRelations(t *testing.T) {
	md := sampleMetadata()
	md.RelatedIdentifiers = []types.RelatedIdentifier{
		{Identifier: "10.5281/zenodo.9", Scheme: "doi", Relation: "cites"},
		{Identifier: "https://example.org/data", Scheme: "url", Relation: "isSupplementTo"},
	}

	out, err := Serialize("10.5072/depovault.2", "DepoVault", md, []Relation{
		{Relation: "IsVersionOf", DOI: "10.5072/depovault.1"},
	})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	body := string(out)

	for _, want := range []string{
		`relatedIdentifierType="DOI"`,
		`relationType="cites"`,
		`relatedIdentifierType="URL"`,
		`relationType="IsVersionOf"`,
		"10.5072/depovault.1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("serialized XML missing %q", want)
		}
	}
}

func TestPublicationYearFallback(t *testing.T) {
	if got := publicationYear("2024-06-01"); got != "2024" {
		t.Errorf("year = %s, want 2024", got)
	}

	if got := publicationYear(""); len(got) != 4 {
		t.Errorf("fallback year = %q, want current year", got)
	}
}
