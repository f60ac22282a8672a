package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"link-watcher/internal/logging"
	"link-watcher/internal/version"
)

// Storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Inventory sources.
const (
	InventoryFile   = "file"
	InventoryNetBox = "netbox"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Influx    InfluxConfig    `mapstructure:"influx"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// WatchConfig drives daily report building.
type WatchConfig struct {
	WorkHourBegin             int           `mapstructure:"work_hour_begin"`
	WorkHourEnd               int           `mapstructure:"work_hour_end"`
	Percentile                int           `mapstructure:"percentile"`
	Workers                   int           `mapstructure:"workers"`
	Cadence                   time.Duration `mapstructure:"cadence"`
	SpikeFactor               float64       `mapstructure:"spike_factor"`
	DefaultMaxTrafficFraction float64       `mapstructure:"default_max_traffic_fraction"`
	DefaultHysteresisFraction float64       `mapstructure:"default_hysteresis_fraction"`
	Ignore                    []string      `mapstructure:"ignore"`
}

// AlertConfig drives the alert aggregation.
type AlertConfig struct {
	TimeThresholdMinutes int     `mapstructure:"time_threshold_minutes"`
	Days                 int     `mapstructure:"days"`
	TopN                 int     `mapstructure:"top_n"`
	PercentileFloorBPS   float64 `mapstructure:"percentile_floor_bps"`
	Severity             string  `mapstructure:"severity"`
}

// InfluxConfig 描述 InfluxDB 1.x 查询参数。
type InfluxConfig struct {
	URL           string        `mapstructure:"url"`
	Database      string        `mapstructure:"database"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Measurement   string        `mapstructure:"measurement"`
	HostTag       string        `mapstructure:"host_tag"`
	MetricTag     string        `mapstructure:"metric_tag"`
	MetricPrefix  string        `mapstructure:"metric_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// InventoryConfig selects where links come from.
type InventoryConfig struct {
	Source       string       `mapstructure:"source"`
	HostsFile    string       `mapstructure:"hosts_file"`
	SnapshotPath string       `mapstructure:"snapshot_path"`
	NetBox       NetBoxConfig `mapstructure:"netbox"`
}

// NetBoxConfig covers the NetBox REST API.
type NetBoxConfig struct {
	URL         string        `mapstructure:"url"`
	Token       string        `mapstructure:"token"`
	CircuitType string        `mapstructure:"circuit_type"`
	IgnoreSites []string      `mapstructure:"ignore_sites"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the report store.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Dir           string `mapstructure:"dir"`
	Indent        int    `mapstructure:"indent"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Alerta   AlertaConfig   `mapstructure:"alerta"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// AlertaConfig describes the Alerta channel.
type AlertaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	URL         string   `mapstructure:"url"`
	APIKey      string   `mapstructure:"api_key"`
	Environment string   `mapstructure:"environment"`
	Resource    string   `mapstructure:"resource"`
	Emails      []string `mapstructure:"emails"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	BotToken string   `mapstructure:"bot_token"`
	ChatIDs  []string `mapstructure:"chat_ids"`
	APIBase  string   `mapstructure:"api_base"`
}

// SchedulerConfig governs the run daemon.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Offset          time.Duration `mapstructure:"offset"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	AlertWeekday    string        `mapstructure:"alert_weekday"`
}

// MetricsConfig enables the Prometheus textfile.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// setDefaults also registers secret keys with empty values so AutomaticEnv can
// supply them during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "linkwatcher")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.file.max_size_mb", 10)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 30)

	v.SetDefault("watch.work_hour_begin", 8)
	v.SetDefault("watch.work_hour_end", 18)
	v.SetDefault("watch.percentile", 95)
	v.SetDefault("watch.workers", 4)
	v.SetDefault("watch.cadence", "5m")
	v.SetDefault("watch.spike_factor", 6.0)
	v.SetDefault("watch.default_max_traffic_fraction", 0.9)
	v.SetDefault("watch.default_hysteresis_fraction", 0.1)
	v.SetDefault("watch.ignore", []string{})

	v.SetDefault("alert.time_threshold_minutes", 60)
	v.SetDefault("alert.days", 7)
	v.SetDefault("alert.top_n", 10)
	v.SetDefault("alert.percentile_floor_bps", 1_000_000.0)
	v.SetDefault("alert.severity", "informational")

	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.username", "")
	v.SetDefault("influx.password", "")
	v.SetDefault("influx.database", "telegraf")
	v.SetDefault("influx.measurement", "check_iface_traffic")
	v.SetDefault("influx.host_tag", "hostname")
	v.SetDefault("influx.metric_tag", "metric")
	v.SetDefault("influx.metric_prefix", "iface-traffic")
	v.SetDefault("influx.timeout", "30s")
	v.SetDefault("influx.rate_per_second", 0.0)
	v.SetDefault("influx.burst", 1)
	v.SetDefault("influx.user_agent", version.UserAgent())

	v.SetDefault("inventory.source", InventoryFile)
	v.SetDefault("inventory.hosts_file", "hosts.yaml")
	v.SetDefault("inventory.snapshot_path", "/tmp/watcher/hosts.json")
	v.SetDefault("inventory.netbox.url", "")
	v.SetDefault("inventory.netbox.token", "")
	v.SetDefault("inventory.netbox.circuit_type", "RNP")
	v.SetDefault("inventory.netbox.timeout", "30s")

	v.SetDefault("storage.backend", StorageFile)
	v.SetDefault("storage.dir", "reports")
	v.SetDefault("storage.indent", 2)
	v.SetDefault("storage.retention_days", 0)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.alerta.url", "")
	v.SetDefault("alerting.alerta.api_key", "")
	v.SetDefault("alerting.alerta.environment", "Default")
	v.SetDefault("alerting.alerta.emails", []string{})
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_ids", []string{})
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.offset", "1h")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6c6e6b77))
	v.SetDefault("scheduler.alert_weekday", "monday")

	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Watch.WorkHourBegin < 0 || c.Watch.WorkHourEnd > 24 {
		return fmt.Errorf("watch.work_hour_begin and watch.work_hour_end must be within [0,24]")
	}
	if c.Watch.WorkHourBegin > c.Watch.WorkHourEnd {
		return fmt.Errorf("watch.work_hour_begin (%d) cannot be greater than watch.work_hour_end (%d)", c.Watch.WorkHourBegin, c.Watch.WorkHourEnd)
	}
	if c.Watch.Percentile <= 0 || c.Watch.Percentile > 100 {
		return fmt.Errorf("watch.percentile must be within (0,100]")
	}
	if c.Watch.Workers <= 0 {
		return fmt.Errorf("watch.workers must be greater than zero")
	}
	if c.Watch.Cadence <= 0 {
		return fmt.Errorf("watch.cadence must be greater than zero")
	}
	if c.Watch.SpikeFactor <= 0 {
		return fmt.Errorf("watch.spike_factor must be greater than zero")
	}
	if !isFraction(c.Watch.DefaultMaxTrafficFraction) || !isFraction(c.Watch.DefaultHysteresisFraction) {
		return fmt.Errorf("watch default fractions must be within [0,1]")
	}

	if c.Alert.TimeThresholdMinutes < 0 {
		return fmt.Errorf("alert.time_threshold_minutes cannot be negative")
	}
	if c.Alert.Days <= 0 {
		return fmt.Errorf("alert.days must be greater than zero")
	}
	if c.Alert.TopN <= 0 {
		return fmt.Errorf("alert.top_n must be greater than zero")
	}

	switch c.Inventory.Source {
	case InventoryFile:
		if c.Inventory.HostsFile == "" {
			return fmt.Errorf("inventory.hosts_file is required for the file inventory")
		}
	case InventoryNetBox:
		if c.Inventory.NetBox.URL == "" || c.Inventory.NetBox.Token == "" {
			return fmt.Errorf("inventory.netbox.url and inventory.netbox.token are required")
		}
	default:
		return fmt.Errorf("inventory.source must be %q or %q, got %q", InventoryFile, InventoryNetBox, c.Inventory.Source)
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case StoragePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageFile, StoragePostgres, c.Storage.Backend)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days cannot be negative")
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if _, err := c.AlertWeekday(); err != nil {
		return err
	}

	if c.Alerting.Alerta.Enabled && c.Alerting.Alerta.URL == "" {
		return fmt.Errorf("alerting.alerta.url 必须配置")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if len(c.Alerting.Telegram.ChatIDs) == 0 {
			return fmt.Errorf("alerting.telegram.chat_ids 必须配置")
		}
	}
	return nil
}

// Location resolves app.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

// AlertWeekday resolves scheduler.alert_weekday. An empty value disables weekly alerts
// in the run daemon and returns -1.
func (c *Config) AlertWeekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.Scheduler.AlertWeekday))
	if name == "" {
		return -1, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return -1, fmt.Errorf("scheduler.alert_weekday %q is not a weekday", c.Scheduler.AlertWeekday)
}

func isFraction(f float64) bool {
	return f >= 0 && f <= 1
}
