package model

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// Config 进程级配置，运行期策略放在 Settings 表里
type Config struct {
	Debug      bool   `mapstructure:"debug"`
	Listen     string `mapstructure:"listen"`
	AdminToken string `mapstructure:"admin_token"`
	Database   struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Scheduler struct {
		TickSeconds         int `mapstructure:"tick_seconds"`
		MaxConcurrentChecks int `mapstructure:"max_concurrent_checks"`
		RetentionDays       int `mapstructure:"retention_days"`
	} `mapstructure:"scheduler"`
	Ping struct {
		Privileged bool `mapstructure:"privileged"`
	} `mapstructure:"ping"`
	Agent struct {
		IntervalSeconds int `mapstructure:"interval_seconds"`
	} `mapstructure:"agent"`

	v *viper.Viper
}

func (c *Config) setDefaults() {
	c.v.SetDefault("debug", false)
	c.v.SetDefault("listen", ":8000")
	c.v.SetDefault("admin_token", "")
	c.v.SetDefault("database.driver", DatabaseDriverSQLite)
	c.v.SetDefault("database.dsn", "data/onlinetracker.db")
	c.v.SetDefault("scheduler.tick_seconds", 5)
	c.v.SetDefault("scheduler.max_concurrent_checks", 10)
	c.v.SetDefault("scheduler.retention_days", 365)
	c.v.SetDefault("ping.privileged", true)
	c.v.SetDefault("agent.interval_seconds", 30)
}

// Read loads path when it exists; ONLINETRACKER_* environment variables override it.
// The file is read once at startup; runtime policy lives in Settings.
func (c *Config) Read(path string) error {
	c.v = viper.New()
	c.setDefaults()
	c.v.SetEnvPrefix("ONLINETRACKER")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	if path != "" && utils.IsFileExists(path) {
		c.v.SetConfigFile(path)
		if err := c.v.ReadInConfig(); err != nil {
			return err
		}
	}

	if err := c.v.Unmarshal(c); err != nil {
		return err
	}
	c.normalize()
	return nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

func (c *Config) normalize() {
	if c.Scheduler.TickSeconds <= 0 {
		c.Scheduler.TickSeconds = 5
	}
	if c.Scheduler.MaxConcurrentChecks <= 0 {
		c.Scheduler.MaxConcurrentChecks = 10
	}
	if c.Scheduler.RetentionDays <= 0 {
		c.Scheduler.RetentionDays = 365
	}
	if c.Agent.IntervalSeconds <= 0 {
		c.Agent.IntervalSeconds = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DatabaseDriverSQLite
	}
}
