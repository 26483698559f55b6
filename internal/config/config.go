package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "portal.cfg.json"

const mib = 1 << 20

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host            string
	Port            int
	PublicDir       string
	AllowedOrigins  []string
	MaxUploadBytes  int64
	RateLimit       int
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AssetsConfig holds asset store settings
type AssetsConfig struct {
	Dir           string
	URLPrefix     string
	PruneOnDelete bool
}

// PatternConfig holds descriptor generation tuning
type PatternConfig struct {
	GridSize     int
	MinVariance  float64
	MinImageSize int
	MaxImageSize int
}

// ContentConfig holds per content type size ceilings in bytes
type ContentConfig struct {
	MaxBytes map[string]int64
}

// MemoryConfig holds in-memory/JSON snapshot storage backend settings
type MemoryConfig struct {
	SnapshotPath string `json:"snapshotPath" mapstructure:"snapshotPath"`
	Compress     bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps the
// database in memory, optionally dumped to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string
	DumpPath     string
	DumpInterval time.Duration
}

// PostgresConfig holds connection settings for the postgres backend
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN renders the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// StorageConfig selects and configures the registry storage backend
type StorageConfig struct {
	Type     string
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// InfluxConfig holds the analytics time-series sink settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string

	// BackupPath receives gzipped line protocol while the server is unreachable.
	BackupPath string
}

// URL returns the server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// AnalyticsConfig holds usage tracking settings
type AnalyticsConfig struct {
	MaxErrors int
	Influx    InfluxConfig
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level          string
	Dir            string
	GraylogEnabled bool
	GraylogAddress string
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.publicDir", "./public")
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:8080", "http://localhost:3000"})
	viper.SetDefault("server.maxUploadMB", 10)
	viper.SetDefault("server.rateLimit", 120)
	viper.SetDefault("server.shutdownTimeout", "10s")

	viper.SetDefault("assets.dir", "./public/assets")
	viper.SetDefault("assets.urlPrefix", "/assets/")
	viper.SetDefault("assets.pruneOnDelete", true)

	viper.SetDefault("pattern.gridSize", 16)
	viper.SetDefault("pattern.minVariance", 100.0)
	viper.SetDefault("pattern.minImageSize", 256)
	viper.SetDefault("pattern.maxImageSize", 4096)

	viper.SetDefault("content.maxBytes.image", 10*mib)
	viper.SetDefault("content.maxBytes.video", 10*mib)
	viper.SetDefault("content.maxBytes.model", 5*mib)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.snapshotPath", "./data/registry.json")
	viper.SetDefault("storage.memory.compress", false)
	viper.SetDefault("storage.sqlite.path", "./data/portal.db")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "0s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "portal")

	viper.SetDefault("analytics.maxErrors", 1000)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "portal")
	viper.SetDefault("influx.bucket", "portal-analytics")
	viper.SetDefault("influx.backupPath", "./data/analytics.lp.gz")
}

// Load sets default values, binds environment overrides and reads the JSON
// config file from configDir. Defaults stay active when the file is missing.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("PORTAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("server.port", "PORT", "PORTAL_SERVER_PORT"); err != nil {
		return fmt.Errorf("error binding env: %v", err)
	}

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Watch re-reads the config file on change and calls onChange with its path.
func Watch(onChange func(path string)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		onChange(e.Name)
	})
	viper.WatchConfig()
}

// GetServerConfig returns the HTTP listener settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Host:            viper.GetString("server.host"),
		Port:            viper.GetInt("server.port"),
		PublicDir:       viper.GetString("server.publicDir"),
		AllowedOrigins:  viper.GetStringSlice("server.allowedOrigins"),
		MaxUploadBytes:  viper.GetInt64("server.maxUploadMB") * mib,
		RateLimit:       viper.GetInt("server.rateLimit"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
	}
}

// GetAssetsConfig returns the asset store settings.
func GetAssetsConfig() AssetsConfig {
	return AssetsConfig{
		Dir:           viper.GetString("assets.dir"),
		URLPrefix:     viper.GetString("assets.urlPrefix"),
		PruneOnDelete: viper.GetBool("assets.pruneOnDelete"),
	}
}

// GetPatternConfig returns descriptor generation tuning.
func GetPatternConfig() PatternConfig {
	return PatternConfig{
		GridSize:     viper.GetInt("pattern.gridSize"),
		MinVariance:  viper.GetFloat64("pattern.minVariance"),
		MinImageSize: viper.GetInt("pattern.minImageSize"),
		MaxImageSize: viper.GetInt("pattern.maxImageSize"),
	}
}

// GetContentConfig returns the per content type size ceilings.
func GetContentConfig() ContentConfig {
	return ContentConfig{
		MaxBytes: map[string]int64{
			"image": viper.GetInt64("content.maxBytes.image"),
			"video": viper.GetInt64("content.maxBytes.video"),
			"model": viper.GetInt64("content.maxBytes.model"),
		},
	}
}

// GetStorageConfig returns the storage backend selection.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			SnapshotPath: viper.GetString("storage.memory.snapshotPath"),
			Compress:     viper.GetBool("storage.memory.compress"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetAnalyticsConfig returns usage tracking settings.
func GetAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		MaxErrors: viper.GetInt("analytics.maxErrors"),
		Influx: InfluxConfig{
			Enabled:    viper.GetBool("influx.enabled"),
			Host:       viper.GetString("influx.host"),
			Port:       viper.GetString("influx.port"),
			Protocol:   viper.GetString("influx.protocol"),
			Token:      viper.GetString("influx.token"),
			Org:        viper.GetString("influx.org"),
			Bucket:     viper.GetString("influx.bucket"),
			BackupPath: viper.GetString("influx.backupPath"),
		},
	}
}

// GetLoggingConfig returns log output settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
