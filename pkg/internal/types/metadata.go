package types

// 访问权限取值.
const (
	AccessRightOpen       = "open"
	AccessRightEmbargoed  = "embargoed"
	AccessRightRestricted = "restricted"
	AccessRightClosed     = "closed"
)

// 资源类型取值（带子类型的两类见 ResourceSubtypes）.
const (
	ResourceTypePublication = "publication"
	ResourceTypeImage       = "image"
)

// DepositMetadata 规范化的存缴元数据，是整个系统唯一的内部表示；
// 各种对外格式（DataCite XML 等）由纯转换函数从它导出.
// 字段语义与校验/规范化规则见 pkg/internal/metadata.
type DepositMetadata struct {
	DOI             string       `json:"doi,omitempty"`
	Title           string       `json:"title"`
	Creators        []Creator    `json:"creators"`
	Description     string       `json:"description,omitempty"`
	PublicationDate string       `json:"publication_date,omitempty"` // ISO-8601 日期
	ResourceType    ResourceType `json:"resource_type"`
	// AccessRight 缺省 open；embargoed 要求未来的 EmbargoDate 且有 License；
	// restricted 要求 AccessConditions
	AccessRight      string `json:"access_right,omitempty"`
	License          string `json:"license,omitempty"`
	EmbargoDate      string `json:"embargo_date,omitempty"`
	AccessConditions string `json:"access_conditions,omitempty"`
	// Language ISO 639-3 三字母码
	Language           string              `json:"language,omitempty"`
	Keywords           []string            `json:"keywords,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers,omitempty"`
	References         []string            `json:"references,omitempty"`
	Grants             []Grant             `json:"grants,omitempty"`
	Communities        []string            `json:"communities,omitempty"`
	Version            string              `json:"version,omitempty"`
}

// Creator 作者，标识符规范化后保存（ORCID 裸值、GND 裸值）.
type Creator struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
	GND         string `json:"gnd,omitempty"`
}

// ResourceType 资源类型；publication 与 image 要求合法 Subtype，其余类型禁止 Subtype.
type ResourceType struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
}

// RelatedIdentifier 相关标识符；Scheme 缺省时由标识符形态探测.
type RelatedIdentifier struct {
	Identifier string `json:"identifier"`
	Relation   string `json:"relation"`
	Scheme     string `json:"scheme,omitempty"`
}

// Grant 资助信息；记录带资助时会触发 add_if_grants / request_if_grants 策展规则.
type Grant struct {
	ID     string `json:"id"`
	Funder string `json:"funder,omitempty"`
	Title  string `json:"title,omitempty"`
}

// HasGrants 判断是否带资助信息.
func (m *DepositMetadata) HasGrants() bool {
	return len(m.Grants) > 0
}
