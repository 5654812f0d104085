package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分领域）。
type EventsConfig struct {
	Enabled bool                `mapstructure:"enabled"` // 总开关
	Deposit DepositEventsConfig `mapstructure:"deposit"`
	Record  RecordEventsConfig  `mapstructure:"record"`
}

// DepositEventsConfig 存缴生命周期事件开关。
type DepositEventsConfig struct {
	Created   bool `mapstructure:"created"`
	Updated   bool `mapstructure:"updated"`
	Published bool `mapstructure:"published"`
	Deleted   bool `mapstructure:"deleted"`
}

// RecordEventsConfig 记录/DOI 事件开关。
type RecordEventsConfig struct {
	Committed     bool `mapstructure:"committed"`
	NewVersion    bool `mapstructure:"new_version"`
	DOIRequested  bool `mapstructure:"doi_requested"`
	DOIRegistered bool `mapstructure:"doi_registered"`
	Community     bool `mapstructure:"community"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	// 存缴领域：默认开启生命周期关键事件
	v.SetDefault("events.deposit.created", true)
	v.SetDefault("events.deposit.updated", false)
	v.SetDefault("events.deposit.published", true)
	v.SetDefault("events.deposit.deleted", true)

	// 记录领域：DOI 注册请求必须开启，否则 worker 不会收到任务
	v.SetDefault("events.record.committed", true)
	v.SetDefault("events.record.new_version", true)
	v.SetDefault("events.record.doi_requested", true)
	v.SetDefault("events.record.doi_registered", true)
	v.SetDefault("events.record.community", false)
}
