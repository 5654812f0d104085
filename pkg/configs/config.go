// Package configs 管理应用程序配置，包括数据库、对象存储、消息队列、PID 与 DOI 注册的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "path/to/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing DB config:
//
//	config := configs.GetConfig()
//	dbConfig := config.DB
//	dsn := dbConfig.GetDSN()
//	fmt.Println("DSN:", dsn)
//
// Example accessing PID config:
//
//	config := configs.GetConfig()
//	pidConfig := config.PID
//	fmt.Println("local DOI prefix:", pidConfig.DefaultDOIPrefix)
//
// Example accessing DOI registration config:
//
//	config := configs.GetConfig()
//	doiConfig := config.DOI
//	fmt.Println("DataCite endpoint:", doiConfig.DataCiteURL)
package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion 应用版本号，编译时可通过 ldflags 覆盖.
var AppVersion = "dev"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		DB             DBConfig             `mapstructure:"db"`              // DBConfig 数据库配置
		S3             S3Config             `mapstructure:"s3"`              // S3Config 对象存储配置
		MQ             MQConfig             `mapstructure:"mq"`              // MQConfig 消息队列配置
		KV             KVConfig             `mapstructure:"kv"`              // KVConfig 键值存储配置
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 服务器端口、超时等
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 指标配置
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 追踪配置
		Auth           AuthConfig           `mapstructure:"auth"`            // AuthConfig 认证配置
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig 入站限流配置
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig HTTP 熔断配置
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 事件开关
		PID            PIDConfig            `mapstructure:"pid"`             // PIDConfig 持久标识符配置
		DOI            DOIConfig            `mapstructure:"doi"`             // DOIConfig DOI 注册配置
		Curation       CurationConfig       `mapstructure:"curation"`        // CurationConfig 社区策展规则
		Deposit        DepositConfig        `mapstructure:"deposit"`         // DepositConfig 存储配额与元数据契约
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(path + "/configs")

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				appViper.SetConfigFile(cfg)

				break
			}
		}
	}

	appViper.AutomaticEnv()
	appViper.SetEnvPrefix("DEPOVAULT")

	// 读取配置，缺少配置文件时退回默认值与环境变量
	if err := appViper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(appViper.ConfigFileUsed()); statErr == nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// 解析到全局配置
	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	reloadConfigs(appViper, globalConfig.Server.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	sections := []interface{ setDefaults(*viper.Viper) }{
		&ServerConfig{},
		&DBConfig{},
		&S3Config{},
		&MQConfig{},
		&KVConfig{},
		&LogConfig{},
		&MetricsConfig{},
		&TracingConfig{},
		&AuthConfig{},
		&RateLimitConfig{},
		&CircuitBreakerConfig{},
		&EventsConfig{},
		&PIDConfig{},
		&DOIConfig{},
		&CurationConfig{},
		&DepositConfig{},
	}
	for _, s := range sections {
		s.setDefaults(v)
	}
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		if err := v.Unmarshal(&globalConfig); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
		}
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

func GetViper() *viper.Viper {
	return appViper
}
