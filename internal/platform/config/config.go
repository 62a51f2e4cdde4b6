package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Log      LogConfig      `mapstructure:"log"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode      string          `mapstructure:"mode"`
	Address   string          `mapstructure:"address"`
	Cors      CorsConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Metrics   bool            `mapstructure:"metrics"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// RateLimitConfig 定义了提交对决结果时按IP的限流参数
// PerSecond <= 0 表示关闭限流
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"perSecond"`
	Burst     int     `mapstructure:"burst"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Driver   string      `mapstructure:"driver"`
	DSN      string      `mapstructure:"dsn"`
	LogLevel string      `mapstructure:"logLevel"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig 定义了Redis的配置，Address为空时不启用排行榜缓存
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled 报告是否配置了Redis
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// BattleConfig 定义了对决提交流程的配置
type BattleConfig struct {
	RequirePairToken bool   `mapstructure:"requirePairToken"`
	PairTokenSecret  string `mapstructure:"pairTokenSecret"`
	MaxRetries       int    `mapstructure:"maxRetries"`
}

// LogConfig 定义了日志输出
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SeedConfig 控制初始化时是否写入默认meme
type SeedConfig struct {
	Defaults bool `mapstructure:"defaults"`
}

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.rateLimit.perSecond", 5.0)
	v.SetDefault("server.rateLimit.burst", 10)
	v.SetDefault("server.metrics", true)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "postgresql://localhost:5432/memearena")
	v.SetDefault("database.logLevel", "silent")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("battle.requirePairToken", false)
	v.SetDefault("battle.pairTokenSecret", "")
	v.SetDefault("battle.maxRetries", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("seed.defaults", true)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在给定的路径中查找名为 config.yaml 的文件，未给出路径时使用 ./config 和 .
// 配置文件是可选的，所有配置项都有默认值，并且可以被环境变量覆盖
func LoadConfig(paths ...string) (*Config, error) {
	// .env 不存在是正常情况
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("无法加载 .env 文件: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 与原有部署保持一致
	if err := v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 检查配置中互相依赖的取值
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSqlite:
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn 不能为空")
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("不支持的 server.mode: %q", c.Server.Mode)
	}
	if c.Battle.MaxRetries < 1 {
		return fmt.Errorf("battle.maxRetries 必须至少为1，当前为 %d", c.Battle.MaxRetries)
	}
	return nil
}
