package configs

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultDataCiteURL     = "https://mds.test.datacite.org" // 默认 DataCite MDS 端点
	DefaultDOITimeout      = 10                              // DataCite 请求超时（秒）
	DefaultDOIMaxRetries   = 6                               // 注册任务最大重试次数
	DefaultDOIRetryBackoff = 10                              // 重试间隔（分钟）

	// 定期元数据补发（sweep）相关默认值.

	DefaultDOISweepWindowHours = 24                 // 扫描最近修改记录的时间窗口（小时）
	DefaultDOISweepRatePerMin  = 100                // 每分钟最多补发的 DOI 数
	DefaultDOISweepBookmarkTTL = 72                 // 书签缓存 TTL（小时）
	DefaultDOISweepCron        = "*/30 * * * *"     // 扫描周期
	DefaultDOIRecordURLFormat  = "/record/<recid>"  // 落地页路径模板
	DefaultDOIBaseURL          = "https://localhost" // 落地页基地址
)

// DOIConfig DOI 注册（DataCite）相关配置.
type DOIConfig struct {
	// Enabled 关闭时发布流程仍预留 DOI，但不向 DataCite 提交
	Enabled bool `mapstructure:"enabled"`
	// DataCiteURL DataCite MDS API 端点
	DataCiteURL string `mapstructure:"datacite_url" rule:"url"`
	// User/Password DataCite 账号
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// Publisher DataCite 元数据的 publisher 字段
	Publisher string `mapstructure:"publisher"`
	// BaseURL 记录落地页基地址，注册 DOI 时指向该地址
	BaseURL string `mapstructure:"base_url" rule:"url"`
	// RecordURLFormat 落地页路径模板，<recid> 占位符替换为记录号
	RecordURLFormat string `mapstructure:"record_url_format"`
	// TimeoutSeconds 单次出站请求超时
	TimeoutSeconds int `mapstructure:"timeout_seconds" rule:"min=1,max=60"`
	// MaxRetries 传输错误/5xx 的最大重试次数
	MaxRetries int `mapstructure:"max_retries" rule:"min=0,max=20"`
	// RetryBackoffMinutes 固定重试间隔（分钟）
	RetryBackoffMinutes int `mapstructure:"retry_backoff_minutes" rule:"min=1"`
	// Sweep 定期补发已注册 DOI 元数据的任务配置
	Sweep DOISweepConfig `mapstructure:"sweep"`
}

// DOISweepConfig 定期补发任务配置.
type DOISweepConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Cron          string `mapstructure:"cron"`
	WindowHours   int    `mapstructure:"window_hours"    rule:"min=1"`
	RatePerMinute int    `mapstructure:"rate_per_minute" rule:"min=1"`
	// BookmarkTTLHours 书签 (job_id, from, until, last_update) 在 KV 中的保留时长
	BookmarkTTLHours int `mapstructure:"bookmark_ttl_hours" rule:"min=1"`
}

// LandingURL 返回记录的落地页地址.
func (c *DOIConfig) LandingURL(recid int64) string {
	path := strings.Replace(c.RecordURLFormat, "<recid>", strconv.FormatInt(recid, 10), 1)

	return strings.TrimRight(c.BaseURL, "/") + path
}

// GetTimeout 返回出站请求超时时间.
func (c *DOIConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRetryBackoff 返回固定重试间隔.
func (c *DOIConfig) GetRetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMinutes) * time.Minute
}

// setDefaults 设置 DOI 配置的默认值.
func (c *DOIConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("doi.enabled", true)
	v.SetDefault("doi.datacite_url", DefaultDataCiteURL)
	v.SetDefault("doi.user", "")
	v.SetDefault("doi.password", "")
	v.SetDefault("doi.publisher", "DepoVault")
	v.SetDefault("doi.base_url", DefaultDOIBaseURL)
	v.SetDefault("doi.record_url_format", DefaultDOIRecordURLFormat)
	v.SetDefault("doi.timeout_seconds", DefaultDOITimeout)
	v.SetDefault("doi.max_retries", DefaultDOIMaxRetries)
	v.SetDefault("doi.retry_backoff_minutes", DefaultDOIRetryBackoff)

	v.SetDefault("doi.sweep.enabled", true)
	v.SetDefault("doi.sweep.cron", DefaultDOISweepCron)
	v.SetDefault("doi.sweep.window_hours", DefaultDOISweepWindowHours)
	v.SetDefault("doi.sweep.rate_per_minute", DefaultDOISweepRatePerMin)
	v.SetDefault("doi.sweep.bookmark_ttl_hours", DefaultDOISweepBookmarkTTL)
}
