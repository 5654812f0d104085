package configs

import "github.com/spf13/viper"

// CurationConfig 社区策展（community curation）规则配置.
//
// 发布时的调和算法读取这四组规则：
//   - auto_enabled 关闭时不做任何自动添加/自动请求
//   - auto_request 始终自动发起收录请求的社区
//   - add_if_grants 记录带有资助信息时直接加入（无需策展人审核）的社区
//   - request_if_grants 记录带有资助信息时自动发起收录请求的社区
type CurationConfig struct {
	AutoEnabled     bool     `mapstructure:"auto_enabled"`
	AutoRequest     []string `mapstructure:"auto_request"`
	AddIfGrants     []string `mapstructure:"add_if_grants"`
	RequestIfGrants []string `mapstructure:"request_if_grants"`
	// OwnedAutoAccept 社区属主即为存缴属主时直接接受
	OwnedAutoAccept bool `mapstructure:"owned_auto_accept"`
}

func (c *CurationConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("curation.auto_enabled", true)
	v.SetDefault("curation.auto_request", []string{})
	v.SetDefault("curation.add_if_grants", []string{})
	v.SetDefault("curation.request_if_grants", []string{})
	v.SetDefault("curation.owned_auto_accept", true)
}
