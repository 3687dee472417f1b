// Package config loads server configuration from an optional YAML file,
// a .env file and INVENTORY_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/warp/inventory-engine/inventory"
)

type Config struct {
	HTTP struct {
		Addr        string
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"http"`

	Database struct {
		Path string
	} `mapstructure:"database"`

	Log struct {
		Level    string
		Encoding string
	} `mapstructure:"log"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	App struct {
		Timezone      string
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
	} `mapstructure:"app"`

	Limits struct {
		Name        int
		Partner     int
		Detail      int
		QuantityMin int `mapstructure:"quantity_min"`
		QuantityMax int `mapstructure:"quantity_max"`
		PageDefault int `mapstructure:"page_default"`
		PageMax     int `mapstructure:"page_max"`
		RecordsMax  int `mapstructure:"records_max"`
	} `mapstructure:"limits"`
}

// Load reads path (skipped when empty or missing) and overlays the
// environment. envFile, if present on disk, is loaded into the environment
// first.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		_ = gotenv.Load(envFile) // optional
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return c, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return c, fmt.Errorf("stat config: %w", err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	d := inventory.DefaultLimits()
	v.SetDefault("http.addr", ":5274")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("database.path", "inventory.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("app.timezone", "Asia/Shanghai")
	v.SetDefault("app.admin_username", "admin")
	v.SetDefault("app.admin_password", "")
	v.SetDefault("limits.name", d.NameMax)
	v.SetDefault("limits.partner", d.PartnerMax)
	v.SetDefault("limits.detail", d.DetailMax)
	v.SetDefault("limits.quantity_min", d.QuantityMin)
	v.SetDefault("limits.quantity_max", d.QuantityMax)
	v.SetDefault("limits.page_default", d.PageDefault)
	v.SetDefault("limits.page_max", d.PageMax)
	v.SetDefault("limits.records_max", d.RecordsMax)
}

// Location resolves app.timezone.
func (c Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

// InventoryLimits maps the limits section onto inventory.Limits.
func (c Config) InventoryLimits() inventory.Limits {
	l := inventory.DefaultLimits()
	l.NameMax = c.Limits.Name
	l.PartnerMax = c.Limits.Partner
	l.DetailMax = c.Limits.Detail
	l.QuantityMin = c.Limits.QuantityMin
	l.QuantityMax = c.Limits.QuantityMax
	l.PageDefault = c.Limits.PageDefault
	l.PageMax = c.Limits.PageMax
	l.RecordsMax = c.Limits.RecordsMax
	return l
}
