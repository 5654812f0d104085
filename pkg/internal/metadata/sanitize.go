package metadata

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// descriptionPolicy 描述字段的受限 HTML 白名单：固定的标签/属性集合，其余全部剥除.
// 进程内初始化一次，策略本身并发安全.
var descriptionPolicy = newDescriptionPolicy()

func newDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"a", "abbr", "acronym", "b", "blockquote", "br", "code", "div",
		"em", "i", "li", "ol", "p", "pre", "span", "strike", "strong",
		"sub", "sup", "u", "ul",
	)
	p.AllowAttrs("href", "title", "rel").OnElements("a")
	p.AllowStandardURLs()

	return p
}

// SanitizeDescription 按白名单清洗描述 HTML，并裁剪首尾空白.
func SanitizeDescription(html string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(html))
}
