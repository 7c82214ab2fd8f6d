package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/qaboard/dashboard/internal/qaapi"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	RunTests RunTestsConfig `mapstructure:"run_tests"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BackendConfig struct {
	URL             string          `mapstructure:"url"`
	Timeout         time.Duration   `mapstructure:"timeout"`
	UseMock         bool            `mapstructure:"use_mock"`
	ExecutionsLimit int             `mapstructure:"executions_limit"`
	Endpoints       qaapi.Endpoints `mapstructure:"endpoints"`
}

type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	FollowUpDelay   time.Duration `mapstructure:"follow_up_delay"`
	PeriodicSources []string      `mapstructure:"periodic_sources"`
}

type NotifyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RunTestsConfig struct {
	Kind        string `mapstructure:"kind"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var validSources = map[string]bool{"metrics": true, "executions": true, "pipelines": true, "system": true}

func setDefaults(v *viper.Viper) {
	endpoints := qaapi.DefaultEndpoints()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("backend.url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", 5*time.Second)
	v.SetDefault("backend.use_mock", false)
	v.SetDefault("backend.executions_limit", 10)
	v.SetDefault("backend.endpoints.metrics", endpoints.Metrics)
	v.SetDefault("backend.endpoints.executions", endpoints.Executions)
	v.SetDefault("backend.endpoints.pipelines", endpoints.Pipelines)
	v.SetDefault("backend.endpoints.system", endpoints.System)
	v.SetDefault("backend.endpoints.run_tests", endpoints.RunTests)
	v.SetDefault("refresh.interval", 30*time.Second)
	v.SetDefault("refresh.follow_up_delay", time.Second)
	v.SetDefault("refresh.periodic_sources", []string{"metrics", "executions", "pipelines", "system"})
	v.SetDefault("notify.ttl", 5*time.Second)
	v.SetDefault("run_tests.kind", "completo")
	v.SetDefault("run_tests.environment", "desenvolvimento")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate fixes values that cannot be used and returns a warning for each.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Refresh.Interval <= 0 {
		warnings = append(warnings, fmt.Sprintf("refresh.interval %s is not positive, using 30s", c.Refresh.Interval))
		c.Refresh.Interval = 30 * time.Second
	}
	if c.Refresh.FollowUpDelay < 0 {
		warnings = append(warnings, fmt.Sprintf("refresh.follow_up_delay %s is negative, using 1s", c.Refresh.FollowUpDelay))
		c.Refresh.FollowUpDelay = time.Second
	}
	if c.Backend.Timeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("backend.timeout %s is not positive, using 5s", c.Backend.Timeout))
		c.Backend.Timeout = 5 * time.Second
	}
	if c.Notify.TTL <= 0 {
		warnings = append(warnings, fmt.Sprintf("notify.ttl %s is not positive, using 5s", c.Notify.TTL))
		c.Notify.TTL = 5 * time.Second
	}

	sources := c.Refresh.PeriodicSources[:0]
	for _, s := range c.Refresh.PeriodicSources {
		s = strings.ToLower(strings.TrimSpace(s))
		if !validSources[s] {
			warnings = append(warnings, fmt.Sprintf("refresh.periodic_sources: unknown source %q ignored", s))
			continue
		}
		sources = append(sources, s)
	}
	c.Refresh.PeriodicSources = sources
	if len(c.Refresh.PeriodicSources) == 0 {
		warnings = append(warnings, "refresh.periodic_sources is empty, refreshing every source")
		c.Refresh.PeriodicSources = []string{"metrics", "executions", "pipelines", "system"}
	}

	if !c.Backend.UseMock && c.Backend.URL == "" {
		warnings = append(warnings, "backend.url is empty and backend.use_mock is false")
	}
	return warnings
}

// Load reads configuration from the optional file at path and from
// QADASH_-prefixed environment variables.
func Load(path string) (*Config, []string, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("QADASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	warnings := cfg.Validate()
	return &cfg, warnings, nil
}
