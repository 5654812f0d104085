// Package datacite 提供 DataCite MDS 客户端与 kernel-4 元数据序列化.
package datacite

import (
	"encoding/xml"
	"time"

	"github.com/yeisme/depovault/pkg/internal/types"
)

// kernel-4 命名空间与 schema 位置.
const (
	kernelNS       = "http://datacite.org/schema/kernel-4"
	xsiNS          = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "http://datacite.org/schema/kernel-4 http://schema.datacite.org/meta/kernel-4.1/metadata.xsd"
)

// resourceTypeGeneral 内部资源类型到 DataCite resourceTypeGeneral 的映射.
var resourceTypeGeneral = map[string]string{
	"publication":  "Text",
	"poster":       "Text",
	"presentation": "Text",
	"dataset":      "Dataset",
	"image":        "Image",
	"video":        "Audiovisual",
	"software":     "Software",
}

type resource struct {
	XMLName         xml.Name            `xml:"resource"`
	XMLNS           string              `xml:"xmlns,attr"`
	XMLNSXSI        string              `xml:"xmlns:xsi,attr"`
	SchemaLocation  string              `xml:"xsi:schemaLocation,attr"`
	Identifier      identifier          `xml:"identifier"`
	Creators        []creator           `xml:"creators>creator"`
	Titles          []string            `xml:"titles>title"`
	Publisher       string              `xml:"publisher"`
	PublicationYear string              `xml:"publicationYear"`
	ResourceType    resourceType        `xml:"resourceType"`
	Subjects        []string            `xml:"subjects>subject,omitempty"`
	Language        string              `xml:"language,omitempty"`
	Version         string              `xml:"version,omitempty"`
	Rights          []rights            `xml:"rightsList>rights,omitempty"`
	Descriptions    []description       `xml:"descriptions>description,omitempty"`
	RelatedIDs      []relatedIdentifier `xml:"relatedIdentifiers>relatedIdentifier,omitempty"`
}

type identifier struct {
	Type  string `xml:"identifierType,attr"`
	Value string `xml:",chardata"`
}

type creator struct {
	Name        string           `xml:"creatorName"`
	Identifiers []nameIdentifier `xml:"nameIdentifier,omitempty"`
	Affiliation string           `xml:"affiliation,omitempty"`
}

type nameIdentifier struct {
	Scheme string `xml:"nameIdentifierScheme,attr"`
	Value  string `xml:",chardata"`
}

type resourceType struct {
	General string `xml:"resourceTypeGeneral,attr"`
	Value   string `xml:",chardata"`
}

type rights struct {
	Value string `xml:",chardata"`
}

type description struct {
	Type  string `xml:"descriptionType,attr"`
	Value string `xml:",chardata"`
}

type relatedIdentifier struct {
	Type     string `xml:"relatedIdentifierType,attr"`
	Relation string `xml:"relationType,attr"`
	Value    string `xml:",chardata"`
}

// Serialize 把规范化元数据导出为 DataCite kernel-4 XML.
// relations 追加版本链关系（IsVersionOf 指向概念 DOI、HasVersion 指向各版本 DOI）.
func Serialize(doi, publisher string, md *types.DepositMetadata, relations []Relation) ([]byte, error) {
	res := resource{
		XMLNS:           kernelNS,
		XMLNSXSI:        xsiNS,
		SchemaLocation:  schemaLocation,
		Identifier:      identifier{Type: "DOI", Value: doi},
		Titles:          []string{md.Title},
		Publisher:       publisher,
		PublicationYear: publicationYear(md.PublicationDate),
		ResourceType:    serializeResourceType(md.ResourceType),
		Subjects:        md.Keywords,
		Language:        md.Language,
		Version:         md.Version,
	}

	for _, c := range md.Creators {
		res.Creators = append(res.Creators, serializeCreator(c))
	}

	if md.License != "" {
		res.Rights = append(res.Rights, rights{Value: md.License})
	}

	if md.Description != "" {
		res.Descriptions = append(res.Descriptions, description{Type: "Abstract", Value: md.Description})
	}

	if md.Notes != "" {
		res.Descriptions = append(res.Descriptions, description{Type: "Other", Value: md.Notes})
	}

	for _, rel := range md.RelatedIdentifiers {
		res.RelatedIDs = append(res.RelatedIDs, relatedIdentifier{
			Type:     relatedIdentifierType(rel.Scheme),
			Relation: rel.Relation,
			Value:    rel.Identifier,
		})
	}

	for _, rel := range relations {
		res.RelatedIDs = append(res.RelatedIDs, relatedIdentifier{
			Type:     "DOI",
			Relation: rel.Relation,
			Value:    rel.DOI,
		})
	}

	out, err := xml.MarshalIndent(&res, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), out...), nil
}

// Relation 版本链关系项.
type Relation struct {
	Relation string // IsVersionOf / HasVersion
	DOI      string
}

func serializeCreator(c types.Creator) creator {
	out := creator{Name: c.Name, Affiliation: c.Affiliation}

	if c.ORCID != "" {
		out.Identifiers = append(out.Identifiers, nameIdentifier{Scheme: "ORCID", Value: c.ORCID})
	}

	if c.GND != "" {
		out.Identifiers = append(out.Identifiers, nameIdentifier{Scheme: "GND", Value: c.GND})
	}

	return out
}

func serializeResourceType(rt types.ResourceType) resourceType {
	general, ok := resourceTypeGeneral[rt.Type]
	if !ok {
		general = "Other"
	}

	value := rt.Type
	if rt.Subtype != "" {
		value = rt.Subtype
	}

	return resourceType{General: general, Value: value}
}

// publicationYear 取发布日期的年份，缺省为当前年.
func publicationYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}

	return time.Now().UTC().Format("2006")
}

// relatedIdentifierType scheme 到 DataCite relatedIdentifierType 的映射.
func relatedIdentifierType(scheme string) string {
	switch scheme {
	case "doi", "":
		return "DOI"
	case "url":
		return "URL"
	case "isbn":
		return "ISBN"
	case "arxiv":
		return "arXiv"
	case "handle":
		return "Handle"
	default:
		return "URL"
	}
}
