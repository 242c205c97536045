package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// 通用配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// CacheConfig 缓存配置
type CacheConfig struct {
	KeyPrefix  string `mapstructure:"key_prefix"`  // 键前缀，默认 apollo
	DefaultTTL string `mapstructure:"default_ttl"` // 默认 TTL（如 "15m"）
}

// GetDefaultTTL 解析默认 TTL，解析失败时回退到 15 分钟
func (c *CacheConfig) GetDefaultTTL() time.Duration {
	if d, err := time.ParseDuration(c.DefaultTTL); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// 默认限流规则（未在 endpoints 中列出的端点使用）
	DefaultMax    int `mapstructure:"default_max"`    // 窗口内最大请求数
	DefaultWindow int `mapstructure:"default_window"` // 窗口长度（秒）

	// 按端点覆盖: 端点标识 -> "max/window_seconds"，如 "10/60"
	Endpoints map[string]string `mapstructure:"endpoints"`
}

// AuditConfig 审计日志配置
type AuditConfig struct {
	Enabled       bool   `mapstructure:"enabled"`        // 总开关，关闭后写入路径完全旁路
	IPHashSalt    string `mapstructure:"ip_hash_salt"`   // IP 单向哈希盐值
	RetentionDays int    `mapstructure:"retention_days"` // 保留天数，清理任务使用
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	// 默认值
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("cache.key_prefix", "apollo")
	v.SetDefault("cache.default_ttl", "15m")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default_max", 60)
	v.SetDefault("ratelimit.default_window", 60)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.retention_days", 90)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
