package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskboard/internal/domain"
)

// Config models taskboard.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		PageSize int    `yaml:"page_size"`
		Locale   string `yaml:"locale"`
	} `yaml:"server"`
	Source struct {
		BaseURL string        `yaml:"base_url"`
		Limit   int           `yaml:"limit"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"source"`
	Cache struct {
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Events  []string      `yaml:"events"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled *bool         `yaml:"enabled"`
}

// Active reports whether deliveries should be attempted.
func (w WebhookConfig) Active() bool {
	return strings.TrimSpace(w.URL) != "" && (w.Enabled == nil || *w.Enabled)
}

// Load reads and validates config from workspace. A missing file yields the
// default config.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Server.PageSize <= 0 {
		return fmt.Errorf("config.server.page_size must be positive")
	}
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.source.base_url must be an absolute url")
	}
	if c.Source.Limit < 0 {
		return fmt.Errorf("config.source.limit must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("config.cache.ttl must not be negative")
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return fmt.Errorf("config.journal.path is required when the journal is enabled")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	for roleID, role := range c.RBAC.Roles {
		if !domain.Role(roleID).Valid() {
			return fmt.Errorf("config.rbac.roles contains unknown role %s", roleID)
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.Timeout < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout must not be negative", i)
		}
	}
	return nil
}

// RoleOverrides returns the permission lists configured per role.
func (c *Config) RoleOverrides() map[string][]string {
	if len(c.RBAC.Roles) == 0 {
		return nil
	}
	out := make(map[string][]string, len(c.RBAC.Roles))
	for id, role := range c.RBAC.Roles {
		out[id] = append([]string(nil), role.Permissions...)
	}
	return out
}

// JournalPath resolves the journal location against the workspace.
func (c *Config) JournalPath(workspace string) string {
	if filepath.IsAbs(c.Journal.Path) {
		return c.Journal.Path
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, c.Journal.Path)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("config: default template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0
  page_size: 5
  locale: en

source:
  base_url: https://dummyjson.com
  limit: 0
  timeout: 10s

cache:
  # redis://localhost:6379/0 enables the read-through cache for the remote source
  redis_url: ""
  ttl: 5m

journal:
  enabled: true
  path: .taskboard/journal.db

log:
  level: info
  format: text

rbac:
  roles:
    admin:
      description: "Full control over projects, tasks and the activity log"
      permissions: [project.read, project.create, project.update, project.delete, task.read, task.create, task.update, task.delete, task.assign, activity.read, activity.clear, user.read]
    manager:
      description: "Edits projects and manages tasks"
      permissions: [project.read, project.update, task.read, task.create, task.update, task.delete, task.assign, activity.read, user.read]
    employee:
      description: "Works tasks and comments on them"
      permissions: [project.read, task.read, task.status, comment.create, comment.update, comment.delete, activity.read]

webhooks: []
`
