package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BusMQTT  = "mqtt"
	BusNSQ   = "nsq"
	BusNATS  = "nats"
	BusRedis = "redis"
)

// ConfigFileEnv names the environment variable holding an optional YAML config path.
const ConfigFileEnv = "ISPINDEL_CONFIG"

type Config struct {
	ServiceName  string `mapstructure:"service_name"`
	HistoryTopic string `mapstructure:"history_topic"`
	HTTPAddr     string `mapstructure:"http_addr"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`

	Bus           string `mapstructure:"bus"`
	MQTTBroker    string `mapstructure:"mqtt_broker"`
	MQTTClientID  string `mapstructure:"mqtt_client_id"`
	MQTTUsername  string `mapstructure:"mqtt_username"`
	MQTTPassword  string `mapstructure:"mqtt_password"`
	NSQDAddress   string `mapstructure:"nsqd_address"`
	NATSURL       string `mapstructure:"nats_url"`
	NATSStream    string `mapstructure:"nats_stream"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LogLevel             string `mapstructure:"log_level"`
	EnableMetrics        bool   `mapstructure:"enable_metrics"`
	MetricsMaxDevices    int    `mapstructure:"metrics_max_devices"`
	EnableDebugEndpoints bool   `mapstructure:"enable_debug_endpoints"`
	MaintenanceMode      bool   `mapstructure:"maintenance_mode"`

	// RejectZeroTemperature treats a reported temperature of 0 as missing.
	RejectZeroTemperature bool `mapstructure:"reject_zero_temperature"`
}

var defaults = map[string]any{
	"service_name":            "ispindel",
	"history_topic":           "brewcast/history",
	"http_addr":               ":5000",
	"max_body_bytes":          int64(1 << 20),
	"bus":                     BusMQTT,
	"mqtt_broker":             "tcp://eventbus:1883",
	"mqtt_client_id":          "",
	"mqtt_username":           "",
	"mqtt_password":           "",
	"nsqd_address":            "127.0.0.1:4150",
	"nats_url":                "nats://127.0.0.1:4222",
	"nats_stream":             "BREWCAST",
	"redis_addr":              "",
	"redis_password":          "",
	"redis_db":                0,
	"log_level":               "info",
	"enable_metrics":          true,
	"metrics_max_devices":     64,
	"enable_debug_endpoints":  false,
	"maintenance_mode":        false,
	"reject_zero_temperature": false,
}

// Flags returns the command line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file (overrides $"+ConfigFileEnv+")")
	fs.String("name", "", "service name, used as publish key and route prefix")
	fs.String("http-addr", "", "HTTP listen address")
	fs.String("bus", "", "message bus: mqtt, nsq, nats or redis")
	return fs
}

// FromEnv loads the configuration from the environment and the optional
// file named by $ISPINDEL_CONFIG.
func FromEnv() (Config, error) {
	return Load(nil)
}

// Load merges defaults, the YAML config file, environment variables and
// flags, in increasing order of precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	path := strings.TrimSpace(v.GetString(ConfigFileEnv))
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			path = strings.TrimSpace(f.Value.String())
		}
		for key, flag := range map[string]string{
			"service_name": "name",
			"http_addr":    "http-addr",
			"bus":          "bus",
		} {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	c.HistoryTopic = strings.TrimSpace(c.HistoryTopic)
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.Bus = strings.ToLower(strings.TrimSpace(c.Bus))
	c.MQTTBroker = strings.TrimSpace(c.MQTTBroker)
	c.NSQDAddress = strings.TrimSpace(c.NSQDAddress)
	c.NATSURL = strings.TrimSpace(c.NATSURL)
	c.NATSStream = strings.TrimSpace(c.NATSStream)
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaults["max_body_bytes"].(int64)
	}
}

func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if strings.ContainsAny(c.ServiceName, "/ ") {
		return fmt.Errorf("service_name %q must not contain '/' or spaces", c.ServiceName)
	}
	if c.HistoryTopic == "" {
		return errors.New("history_topic is required")
	}
	switch c.Bus {
	case BusMQTT:
		if c.MQTTBroker == "" {
			return errors.New("mqtt_broker is required when bus=mqtt")
		}
	case BusNSQ:
		if c.NSQDAddress == "" {
			return errors.New("nsqd_address is required when bus=nsq")
		}
	case BusNATS:
		if c.NATSStream == "" {
			return errors.New("nats_stream is required when bus=nats")
		}
	case BusRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required when bus=redis")
		}
	default:
		return fmt.Errorf("unknown bus %q (expected mqtt, nsq, nats or redis)", c.Bus)
	}
	if c.MetricsMaxDevices <= 0 {
		return fmt.Errorf("metrics_max_devices must be positive, got %d", c.MetricsMaxDevices)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf(
		"name=%s topic=%s http=%s bus=%s broker=%s metrics=%v debug=%v maintenance=%v reject_zero_temperature=%v",
		c.ServiceName,
		c.HistoryTopic,
		c.HTTPAddr,
		c.Bus,
		c.brokerAddr(),
		c.EnableMetrics,
		c.EnableDebugEndpoints,
		c.MaintenanceMode,
		c.RejectZeroTemperature,
	)
}

func (c Config) brokerAddr() string {
	switch c.Bus {
	case BusMQTT:
		return redactURL(c.MQTTBroker)
	case BusNSQ:
		return c.NSQDAddress
	case BusNATS:
		return redactURL(c.NATSURL) + "/" + c.NATSStream
	case BusRedis:
		return fmt.Sprintf("%s/%d", c.RedisAddr, c.RedisDB)
	default:
		return "<none>"
	}
}

func redactURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "<none>"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<set>"
	}
	if u.User != nil {
		return fmt.Sprintf("%s://%s@%s", u.Scheme, u.User.Username(), u.Host)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}
