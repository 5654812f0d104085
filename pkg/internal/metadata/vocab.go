// Package metadata 实现存缴元数据的校验与规范化：
// 标识符（DOI/ORCID/GND/ISBN）归一、日期与访问权限规则、
// 受限 HTML 白名单清洗，以及字段级错误的累积上报.
package metadata

// 词表在进程启动时定义一次，作为不可变表传入校验器；
// 不在请求路径上做任何动态加载.

// resourceSubtypes 带子类型的资源类型及其合法子类型.
var resourceSubtypes = map[string]map[string]struct{}{
	"publication": toSet(
		"annotationcollection", "article", "book", "conferencepaper",
		"datamanagementplan", "deliverable", "milestone", "patent",
		"preprint", "proposal", "report", "section", "softwaredocumentation",
		"taxonomictreatment", "technicalnote", "thesis", "workingpaper", "other",
	),
	"image": toSet(
		"diagram", "drawing", "figure", "photo", "plot", "other",
	),
}

// resourceTypes 不带子类型的资源类型.
var resourceTypes = toSet(
	"dataset", "software", "poster", "presentation", "video",
	"lesson", "physicalobject", "workflow", "other",
)

// relations 相关标识符允许的关系类型（DataCite relationType 子集）.
var relations = toSet(
	"isCitedBy", "cites", "isSupplementTo", "isSupplementedBy",
	"isContinuedBy", "continues", "isDescribedBy", "describes",
	"hasMetadata", "isMetadataFor", "isNewVersionOf", "isPreviousVersionOf",
	"isPartOf", "hasPart", "isReferencedBy", "references",
	"isDocumentedBy", "documents", "isCompiledBy", "compiles",
	"isVariantFormOf", "isOriginalFormof", "isIdenticalTo",
	"isAlternateIdentifier", "isReviewedBy", "reviews",
	"isDerivedFrom", "isSourceOf", "requires", "isRequiredBy",
	"isObsoletedBy", "obsoletes", "isVersionOf", "hasVersion",
)

// licenses 允许的许可证标识（SPDX 子集；开放/禁运访问时必填）.
var licenses = toSet(
	"CC0-1.0", "CC-BY-1.0", "CC-BY-2.0", "CC-BY-2.5", "CC-BY-3.0", "CC-BY-4.0",
	"CC-BY-SA-4.0", "CC-BY-NC-4.0", "CC-BY-ND-4.0", "CC-BY-NC-SA-4.0",
	"MIT", "Apache-2.0", "BSD-2-Clause", "BSD-3-Clause", "GPL-2.0-only",
	"GPL-3.0-only", "LGPL-3.0-only", "AGPL-3.0-only", "MPL-2.0", "EPL-2.0",
	"EUPL-1.2", "ODbL-1.0", "ODC-By-1.0", "other-open", "other-closed",
)

// iso6393 ISO 639-3 语言码表（常用子集，按注册表收录）.
var iso6393 = toSet(
	"aar", "abk", "afr", "aka", "amh", "ara", "arg", "asm", "ava", "ave",
	"aym", "aze", "bak", "bam", "bel", "ben", "bis", "bod", "bos", "bre",
	"bul", "cat", "ces", "cha", "che", "chu", "chv", "cor", "cos", "cre",
	"cym", "dan", "deu", "div", "dzo", "ell", "eng", "epo", "est", "eus",
	"ewe", "fao", "fas", "fij", "fin", "fra", "fry", "ful", "gla", "gle",
	"glg", "glv", "grn", "guj", "hat", "hau", "haw", "heb", "her", "hin",
	"hmo", "hrv", "hun", "hye", "ibo", "ido", "iii", "iku", "ile", "ina",
	"ind", "ipk", "isl", "ita", "jav", "jpn", "kal", "kan", "kas", "kat",
	"kau", "kaz", "khm", "kik", "kin", "kir", "kom", "kon", "kor", "kua",
	"kur", "lao", "lat", "lav", "lim", "lin", "lit", "ltz", "lub", "lug",
	"mah", "mal", "mar", "mkd", "mlg", "mlt", "mon", "mri", "msa", "mya",
	"nau", "nav", "nbl", "nde", "ndo", "nep", "nld", "nno", "nob", "nor",
	"nya", "oci", "oji", "ori", "orm", "oss", "pan", "pli", "pol", "por",
	"pus", "que", "roh", "ron", "run", "rus", "sag", "san", "sin", "slk",
	"slv", "sme", "smo", "sna", "snd", "som", "sot", "spa", "sqi", "srd",
	"srp", "ssw", "sun", "swa", "swe", "tah", "tam", "tat", "tel", "tgk",
	"tgl", "tha", "tir", "ton", "tsn", "tso", "tuk", "tur", "twi", "uig",
	"ukr", "urd", "uzb", "ven", "vie", "vol", "wln", "wol", "xho", "yid",
	"yor", "zha", "zho", "zul",
)

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}

	return set
}

// ValidRelation 判断关系类型是否合法.
func ValidRelation(rel string) bool {
	_, ok := relations[rel]
	return ok
}

// ValidLicense 判断许可证标识是否合法.
func ValidLicense(id string) bool {
	_, ok := licenses[id]
	return ok
}

// ValidLanguage 判断 ISO 639-3 语言码是否合法.
func ValidLanguage(code string) bool {
	_, ok := iso6393[code]
	return ok
}
