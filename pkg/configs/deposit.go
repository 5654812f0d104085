package configs

import "github.com/spf13/viper"

const (
	DefaultBucketQuotaBytes = 50 * 1024 * 1024 * 1024 // 默认桶配额 50GB
	DefaultMaxFileSizeBytes = 50 * 1024 * 1024 * 1024 // 默认单文件上限 50GB
	// DefaultRecordSchemaURI 记录元数据契约的 $schema URI.
	DefaultRecordSchemaURI = "https://depovault.org/schemas/records/record-v1.0.0.json"
	// DefaultDepositSchemaURI 存缴元数据契约的 $schema URI.
	DefaultDepositSchemaURI = "https://depovault.org/schemas/deposits/deposit-v1.0.0.json"
)

// DepositConfig 存缴（deposit）相关配置：桶配额与元数据契约.
type DepositConfig struct {
	// BucketQuotaBytes 新建桶的配额（字节），0 表示不限制
	BucketQuotaBytes int64 `mapstructure:"bucket_quota_bytes" rule:"min=0"`
	// MaxFileSizeBytes 单个文件大小上限（字节），0 表示不限制
	MaxFileSizeBytes int64 `mapstructure:"max_file_size_bytes" rule:"min=0"`
	// RecordSchemaURI 发布记录携带的 $schema
	RecordSchemaURI string `mapstructure:"record_schema_uri" rule:"url"`
	// DepositSchemaURI 存缴草稿携带的 $schema
	DepositSchemaURI string `mapstructure:"deposit_schema_uri" rule:"url"`
	// ExtraFormats 是否启用额外格式桶（extra-formats bucket）
	ExtraFormats bool `mapstructure:"extra_formats"`
}

func (c *DepositConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("deposit.bucket_quota_bytes", DefaultBucketQuotaBytes)
	v.SetDefault("deposit.max_file_size_bytes", DefaultMaxFileSizeBytes)
	v.SetDefault("deposit.record_schema_uri", DefaultRecordSchemaURI)
	v.SetDefault("deposit.deposit_schema_uri", DefaultDepositSchemaURI)
	v.SetDefault("deposit.extra_formats", false)
}
