package metadata

import (
	"fmt"
	"regexp"
	"strings"
)

// 标识符归一：全部剥掉 URL/scheme 前缀，保留裸值入库.

var (
	doiPattern   = regexp.MustCompile(`^10\.\d+/.+$`)
	orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
	gndPattern   = regexp.MustCompile(`^1[0-3]?\d{7}[0-9X]|[47]\d{6}-\d|[1-9]\d{0,7}-[0-9X]|3\d{7}[0-9X]$`)
	isbnDigits   = regexp.MustCompile(`^\d{9}[\dX]$|^\d{13}$`)
	arxivPattern = regexp.MustCompile(`^(arXiv:)?\d{4}\.\d{4,5}(v\d+)?$`)
	urlPattern   = regexp.MustCompile(`^https?://`)
)

// doiPrefixes 需要剥除的 DOI 书写前缀.
var doiPrefixes = []string{
	"doi:", "DOI:",
	"http://doi.org/", "https://doi.org/",
	"http://dx.doi.org/", "https://dx.doi.org/",
}

// NormalizeDOI 清洗 DOI：去空白、剥 doi:/URL 前缀；语法非法时返回错误.
func NormalizeDOI(raw string) (string, error) {
	doi := strings.TrimSpace(raw)
	if doi == "" {
		return "", nil
	}

	for _, p := range doiPrefixes {
		if strings.HasPrefix(doi, p) {
			doi = doi[len(p):]
			break
		}
	}

	if !doiPattern.MatchString(doi) {
		return "", fmt.Errorf("malformed DOI: %q", raw)
	}

	return doi, nil
}

// DOIPrefix 返回 DOI 的前缀部分（"10.xxxx"），非法时为空串.
func DOIPrefix(doi string) string {
	prefix, _, ok := strings.Cut(doi, "/")
	if !ok {
		return ""
	}

	return prefix
}

// NormalizeORCID 清洗 ORCID：剥 URL 前缀、统一大写校验位，并验证 ISO 7064 (11,2) 校验和.
func NormalizeORCID(raw string) (string, error) {
	orcid := strings.TrimSpace(raw)
	if orcid == "" {
		return "", nil
	}

	for _, p := range []string{"https://orcid.org/", "http://orcid.org/", "orcid:"} {
		if strings.HasPrefix(strings.ToLower(orcid), p) {
			orcid = orcid[len(p):]
			break
		}
	}

	orcid = strings.ToUpper(orcid)
	if !orcidPattern.MatchString(orcid) {
		return "", fmt.Errorf("malformed ORCID: %q", raw)
	}

	if !orcidChecksumOK(orcid) {
		return "", fmt.Errorf("ORCID checksum mismatch: %q", raw)
	}

	return orcid, nil
}

// orcidChecksumOK 按 ISO 7064 mod 11-2 验证 ORCID 校验位.
func orcidChecksumOK(orcid string) bool {
	digits := strings.ReplaceAll(orcid, "-", "")

	total := 0
	for _, c := range digits[:len(digits)-1] {
		total = (total + int(c-'0')) * 2
	}

	remainder := total % 11
	result := (12 - remainder) % 11

	check := digits[len(digits)-1]
	if result == 10 {
		return check == 'X'
	}

	return int(check-'0') == result
}

// NormalizeGND 清洗 GND：剥 d-nb.info URL 或 gnd: 前缀.
func NormalizeGND(raw string) (string, error) {
	gnd := strings.TrimSpace(raw)
	if gnd == "" {
		return "", nil
	}

	for _, p := range []string{"https://d-nb.info/gnd/", "http://d-nb.info/gnd/", "gnd:"} {
		if strings.HasPrefix(strings.ToLower(gnd), p) {
			gnd = gnd[len(p):]
			break
		}
	}

	if !gndPattern.MatchString(gnd) {
		return "", fmt.Errorf("malformed GND: %q", raw)
	}

	return gnd, nil
}

// NormalizeISBN 清洗 ISBN：去掉连字符与空格并验证长度/校验和.
func NormalizeISBN(raw string) (string, error) {
	isbn := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(raw)))
	if isbn == "" {
		return "", nil
	}

	if !isbnDigits.MatchString(isbn) {
		return "", fmt.Errorf("malformed ISBN: %q", raw)
	}

	if !isbnChecksumOK(isbn) {
		return "", fmt.Errorf("ISBN checksum mismatch: %q", raw)
	}

	return isbn, nil
}

func isbnChecksumOK(isbn string) bool {
	if len(isbn) == 10 {
		sum := 0
		for i, c := range isbn {
			v := int(c - '0')
			if c == 'X' {
				v = 10
			}

			sum += (10 - i) * v
		}

		return sum%11 == 0
	}

	sum := 0
	for i, c := range isbn {
		v := int(c - '0')
		if i%2 == 1 {
			v *= 3
		}

		sum += v
	}

	return sum%10 == 0
}

// DetectScheme 根据标识符形态探测 scheme，探测不到时返回空串.
func DetectScheme(identifier string) string {
	id := strings.TrimSpace(identifier)

	switch {
	case func() bool { _, err := NormalizeDOI(id); return err == nil && id != "" }():
		return "doi"
	case orcidPattern.MatchString(strings.ToUpper(id)):
		return "orcid"
	case arxivPattern.MatchString(id):
		return "arxiv"
	case func() bool { _, err := NormalizeISBN(id); return err == nil && id != "" }():
		return "isbn"
	case urlPattern.MatchString(id):
		return "url"
	default:
		return ""
	}
}

// NormalizeByScheme 按 scheme 归一标识符；未知 scheme 原样返回.
func NormalizeByScheme(identifier, scheme string) (string, error) {
	switch scheme {
	case "doi":
		return NormalizeDOI(identifier)
	case "orcid":
		return NormalizeORCID(identifier)
	case "gnd":
		return NormalizeGND(identifier)
	case "isbn":
		return NormalizeISBN(identifier)
	default:
		return strings.TrimSpace(identifier), nil
	}
}
