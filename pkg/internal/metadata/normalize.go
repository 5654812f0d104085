package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/depovault/pkg/internal/types"
)

// strictJSON 拒绝未知字段的解码配置：遗留字段名（如 thesis_supervisors）在入口处即被拒绝.
var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// UnmarshalStrict 严格解码元数据 JSON，未知/遗留字段直接报错.
func UnmarshalStrict(data []byte, md *types.DepositMetadata) error {
	if err := strictJSON.Unmarshal(data, md); err != nil {
		return fmt.Errorf("unknown or malformed metadata field: %w", err)
	}

	return nil
}

// Validate 规范化并校验元数据.
// strict=false（create/update）：只做规范化与形态校验，允许字段缺失；
// strict=true（publish）：同时要求完整契约（标题、作者、资源类型、访问权限约束）.
//
// 校验器从不在首错停止：所有 (field, message) 错误被累积，一次性返回.
func Validate(md *types.DepositMetadata, strict bool) error {
	verr := &types.ValidationError{}

	normalizeDOI(md, verr)
	normalizeTitle(md, verr, strict)
	normalizeCreators(md, verr, strict)
	normalizePublicationDate(md, verr)
	normalizeResourceType(md, verr, strict)
	normalizeAccessRight(md, verr, strict)
	normalizeLanguage(md, verr)
	normalizeRelatedIdentifiers(md, verr)
	normalizeLists(md)

	md.Description = SanitizeDescription(md.Description)

	if verr.HasErrors() {
		return verr
	}

	return nil
}

func normalizeDOI(md *types.DepositMetadata, verr *types.ValidationError) {
	if md.DOI == "" {
		return
	}

	doi, err := NormalizeDOI(md.DOI)
	if err != nil {
		verr.Add("metadata.doi", err.Error())
		return
	}

	md.DOI = doi
}

func normalizeTitle(md *types.DepositMetadata, verr *types.ValidationError, strict bool) {
	md.Title = strings.TrimSpace(md.Title)
	if strict && md.Title == "" {
		verr.Add("metadata.title", "title is required")
	}
}

func normalizeCreators(md *types.DepositMetadata, verr *types.ValidationError, strict bool) {
	if strict && len(md.Creators) == 0 {
		verr.Add("metadata.creators", "at least one creator is required")
	}

	for i := range md.Creators {
		c := &md.Creators[i]

		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			verr.Add(fmt.Sprintf("metadata.creators.%d.name", i), "creator name is required")
		}

		c.Affiliation = strings.TrimSpace(c.Affiliation)

		if c.ORCID != "" {
			orcid, err := NormalizeORCID(c.ORCID)
			if err != nil {
				verr.Add(fmt.Sprintf("metadata.creators.%d.orcid", i), err.Error())
			} else {
				c.ORCID = orcid
			}
		}

		if c.GND != "" {
			gnd, err := NormalizeGND(c.GND)
			if err != nil {
				verr.Add(fmt.Sprintf("metadata.creators.%d.gnd", i), err.Error())
			} else {
				c.GND = gnd
			}
		}
	}
}

func normalizePublicationDate(md *types.DepositMetadata, verr *types.ValidationError) {
	if md.PublicationDate == "" {
		// 缺省为当天（UTC 日期）
		md.PublicationDate = time.Now().UTC().Format("2006-01-02")
		return
	}

	md.PublicationDate = strings.TrimSpace(md.PublicationDate)
	if _, err := time.Parse("2006-01-02", md.PublicationDate); err != nil {
		verr.Add("metadata.publication_date", fmt.Sprintf("invalid ISO-8601 date: %q", md.PublicationDate))
	}
}

func normalizeResourceType(md *types.DepositMetadata, verr *types.ValidationError, strict bool) {
	rt := &md.ResourceType
	rt.Type = strings.ToLower(strings.TrimSpace(rt.Type))
	rt.Subtype = strings.ToLower(strings.TrimSpace(rt.Subtype))

	if rt.Type == "" {
		if strict {
			verr.Add("metadata.resource_type.type", "resource type is required")
		}

		return
	}

	if subtypes, ok := resourceSubtypes[rt.Type]; ok {
		if rt.Subtype == "" {
			verr.Add("metadata.resource_type.subtype",
				fmt.Sprintf("subtype is required for type %q", rt.Type))
			return
		}

		if _, valid := subtypes[rt.Subtype]; !valid {
			verr.Add("metadata.resource_type.subtype",
				fmt.Sprintf("unknown subtype %q for type %q", rt.Subtype, rt.Type))
		}

		return
	}

	if _, ok := resourceTypes[rt.Type]; !ok {
		verr.Add("metadata.resource_type.type", fmt.Sprintf("unknown resource type %q", rt.Type))
		return
	}

	// 无子类型的类型禁止携带子类型
	if rt.Subtype != "" {
		verr.Add("metadata.resource_type.subtype",
			fmt.Sprintf("type %q does not take a subtype", rt.Type))
	}
}

func normalizeAccessRight(md *types.DepositMetadata, verr *types.ValidationError, strict bool) {
	if md.AccessRight == "" {
		md.AccessRight = types.AccessRightOpen
	}

	md.AccessRight = strings.ToLower(strings.TrimSpace(md.AccessRight))

	switch md.AccessRight {
	case types.AccessRightOpen:
		// 冲突字段丢弃
		md.EmbargoDate = ""
		md.AccessConditions = ""

		if strict && md.License == "" {
			verr.Add("metadata.license", "license is required for open access")
		}
	case types.AccessRightEmbargoed:
		md.AccessConditions = ""

		if md.EmbargoDate == "" {
			verr.Add("metadata.embargo_date", "embargo date is required for embargoed access")
		} else if d, err := time.Parse("2006-01-02", md.EmbargoDate); err != nil {
			verr.Add("metadata.embargo_date", fmt.Sprintf("invalid ISO-8601 date: %q", md.EmbargoDate))
		} else if !d.After(time.Now().UTC()) {
			verr.Add("metadata.embargo_date", "embargo date must be in the future")
		}

		if strict && md.License == "" {
			verr.Add("metadata.license", "license is required for embargoed access")
		}
	case types.AccessRightRestricted:
		md.EmbargoDate = ""

		if md.AccessConditions == "" {
			verr.Add("metadata.access_conditions", "access conditions are required for restricted access")
		}
	case types.AccessRightClosed:
		md.EmbargoDate = ""
		md.AccessConditions = ""
	default:
		verr.Add("metadata.access_right", fmt.Sprintf("unknown access right %q", md.AccessRight))
	}

	if md.License != "" && !ValidLicense(md.License) {
		verr.Add("metadata.license", fmt.Sprintf("unknown license %q", md.License))
	}
}

func normalizeLanguage(md *types.DepositMetadata, verr *types.ValidationError) {
	if md.Language == "" {
		return
	}

	md.Language = strings.ToLower(strings.TrimSpace(md.Language))
	if !ValidLanguage(md.Language) {
		verr.Add("metadata.language", fmt.Sprintf("not an ISO 639-3 code: %q", md.Language))
	}
}

func normalizeRelatedIdentifiers(md *types.DepositMetadata, verr *types.ValidationError) {
	for i := range md.RelatedIdentifiers {
		ri := &md.RelatedIdentifiers[i]
		field := fmt.Sprintf("metadata.related_identifiers.%d", i)

		ri.Identifier = strings.TrimSpace(ri.Identifier)
		if ri.Identifier == "" {
			verr.Add(field+".identifier", "identifier is required")
			continue
		}

		// scheme 缺省时按形态探测
		if ri.Scheme == "" {
			ri.Scheme = DetectScheme(ri.Identifier)
			if ri.Scheme == "" {
				verr.Add(field+".scheme", fmt.Sprintf("cannot detect scheme for %q", ri.Identifier))
				continue
			}
		}

		ri.Scheme = strings.ToLower(ri.Scheme)

		normalized, err := NormalizeByScheme(ri.Identifier, ri.Scheme)
		if err != nil {
			verr.Add(field+".identifier",
				fmt.Sprintf("identifier does not match scheme %q: %v", ri.Scheme, err))
		} else {
			ri.Identifier = normalized
		}

		if ri.Relation == "" {
			verr.Add(field+".relation", "relation is required")
		} else if !ValidRelation(ri.Relation) {
			verr.Add(field+".relation", fmt.Sprintf("unknown relation %q", ri.Relation))
		}
	}
}

// normalizeLists 修剪关键词/参考文献/社区列表，去掉空白项.
func normalizeLists(md *types.DepositMetadata) {
	md.Keywords = trimList(md.Keywords)
	md.References = trimList(md.References)

	comms := trimList(md.Communities)
	seen := make(map[string]struct{}, len(comms))
	out := comms[:0]

	for _, c := range comms {
		c = strings.ToLower(c)
		if _, dup := seen[c]; dup {
			continue
		}

		seen[c] = struct{}{}
		out = append(out, c)
	}

	md.Communities = out
}

func trimList(in []string) []string {
	out := in[:0]

	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}

	return out
}
