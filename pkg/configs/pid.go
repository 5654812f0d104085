package configs

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultDOIPrefix 本地管理的 DOI 前缀（DataCite 测试前缀）.
	DefaultDOIPrefix = "10.5072"
	// DefaultDOISuffixPattern 本地 DOI 的保留后缀模板，<recid> 会被替换为记录号.
	DefaultDOISuffixPattern = "depovault.<recid>"
	// DefaultOAIPrefix OAI 标识符前缀.
	DefaultOAIPrefix = "oai:depovault:"
	// DefaultRecidStart recid 序列起始值.
	DefaultRecidStart = 1
)

// PIDConfig 持久标识符（PID）相关配置.
type PIDConfig struct {
	// LocalDOIPrefixes 本仓库托管的 DOI 前缀集合，命中的 DOI 后缀必须符合保留模板
	LocalDOIPrefixes []string `mapstructure:"local_doi_prefixes"`
	// DefaultDOIPrefix 铸造新 DOI 时使用的前缀
	DefaultDOIPrefix string `mapstructure:"default_doi_prefix" rule:"required"`
	// OAIPrefix OAI 标识符前缀，发布时铸造 oai PID 使用
	OAIPrefix string `mapstructure:"oai_prefix"`
	// RecidStart recid 序列的起始值，仅首次建表时生效
	RecidStart int64 `mapstructure:"recid_start" rule:"min=1"`
}

// IsLocalDOIPrefix 判断 DOI 前缀是否由本仓库托管.
func (c *PIDConfig) IsLocalDOIPrefix(prefix string) bool {
	for _, p := range c.LocalDOIPrefixes {
		if p == prefix {
			return true
		}
	}

	return prefix == c.DefaultDOIPrefix
}

// IsLocalDOI 判断完整 DOI 是否落在本仓库托管的前缀之下.
func (c *PIDConfig) IsLocalDOI(doi string) bool {
	prefix, _, ok := strings.Cut(doi, "/")
	if !ok {
		return false
	}

	return c.IsLocalDOIPrefix(prefix)
}

// setDefaults 设置 PID 配置的默认值.
func (c *PIDConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("pid.local_doi_prefixes", []string{DefaultDOIPrefix})
	v.SetDefault("pid.default_doi_prefix", DefaultDOIPrefix)
	v.SetDefault("pid.oai_prefix", DefaultOAIPrefix)
	v.SetDefault("pid.recid_start", DefaultRecidStart)
}
