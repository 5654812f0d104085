package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// S3Config MinIO S3存储配置.
// 文件字节统一存放在 ObjectBucket 一个物理桶内，按 (bucket_id, file_id) 寻址；
// 逻辑桶（deposit/record bucket）只存在于数据库中.
type S3Config struct {
	Endpoint        string   `mapstructure:"endpoint"`
	AccessKeyID     string   `mapstructure:"access_key_id"`
	SecretAccessKey string   `mapstructure:"secret_access_key"`
	UseSSL          bool     `mapstructure:"use_ssl"`
	Buckets         []string `mapstructure:"buckets"`
	Region          string   `mapstructure:"region"`
}

const (
	DefaultS3Endpoint        = "localhost:9000"   // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"       // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"       // 默认秘密访问密钥
	DefaultS3UseSSL          = false              // 默认是否使用SSL
	DefaultS3ObjectBucket    = "depovault-files"  // 默认文件字节桶
	DefaultS3ExtraBucket     = "depovault-extra"  // 默认额外格式桶
	DefaultS3Region          = "us-east-1"        // 默认区域
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// ObjectBucket 返回文件字节所在的物理桶（Buckets 的第一个元素）.
func (c *S3Config) ObjectBucket() string {
	if len(c.Buckets) == 0 {
		return DefaultS3ObjectBucket
	}

	return c.Buckets[0]
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.buckets", []string{DefaultS3ObjectBucket, DefaultS3ExtraBucket})
	v.SetDefault("s3.region", DefaultS3Region)
}
