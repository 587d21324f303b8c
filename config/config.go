package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Social   SocialConfig   `mapstructure:"social"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"` // empty disables /api/admin
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	KeyPrefix       string        `mapstructure:"key_prefix"` // Redis only
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type SecurityConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTTTLH   time.Duration `mapstructure:"jwt_ttl_h"`
	// LoginMaxFailures wrong passwords within LoginLockout lock the username
	// until the window ends. 0 disables the lockout.
	LoginMaxFailures int           `mapstructure:"login_max_failures"`
	LoginLockout     time.Duration `mapstructure:"login_lockout"`
}

// SocialConfig tunes the relationship engine and notification housekeeping.
type SocialConfig struct {
	MessageMaxLen         int           `mapstructure:"message_max_len"`
	DescriptionMaxLen     int           `mapstructure:"description_max_len"`
	NotificationTTL       time.Duration `mapstructure:"notification_ttl"`
	NotificationPurgeCron string        `mapstructure:"notification_purge_cron"`
	UnreadCacheTTL        time.Duration `mapstructure:"unread_cache_ttl"`
	PageSize              int           `mapstructure:"page_size"`
	StatsLogInterval      time.Duration `mapstructure:"stats_log_interval"` // 0 disables
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/fitcircle.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.key_prefix", "fitcircle:")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.login_max_failures", 5)
	v.SetDefault("security.login_lockout", "15m")
	v.SetDefault("social.message_max_len", 500)
	v.SetDefault("social.description_max_len", 1000)
	v.SetDefault("social.notification_ttl", "720h")
	v.SetDefault("social.notification_purge_cron", "@daily")
	v.SetDefault("social.unread_cache_ttl", "5m")
	v.SetDefault("social.page_size", 10)
	v.SetDefault("social.stats_log_interval", "1h")
}
