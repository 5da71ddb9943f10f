// Package config loads the codebridge YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"gopkg.in/yaml.v3"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
)

// Transport names accepted by serve.
const (
	TransportTelegram = "telegram"
	TransportConsole  = "console"
)

// ClaudeConfig controls how the coding agent is invoked.
type ClaudeConfig struct {
	Command      string        `yaml:"command"`
	Model        string        `yaml:"model"`
	MaxTurns     int           `yaml:"max_turns"`
	Timeout      time.Duration `yaml:"timeout"`
	GracePeriod  time.Duration `yaml:"grace_period"`
	AllowedTools []string      `yaml:"allowed_tools"`
}

// TelegramConfig holds the bot credentials and polling behaviour.
type TelegramConfig struct {
	Token        string        `yaml:"token"`
	AllowedUsers []int64       `yaml:"allowed_users"` // empty allows everyone
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	SendRate     float64       `yaml:"send_rate"` // messages per second
}

// ProxyConfig is applied to the agent child process and the telegram client.
type ProxyConfig struct {
	URL string `yaml:"url"`
}

// OutputConfig sizes replies.
type OutputConfig struct {
	MaxMessageLength int `yaml:"max_message_length"`
	CompressLength   int `yaml:"compress_length"`
}

// ProjectsConfig locates the registry and new projects.
type ProjectsConfig struct {
	File             string `yaml:"file"`
	WorkspaceRoot    string `yaml:"workspace_root"`
	InitGitOnCreate  bool   `yaml:"init_git_on_create"`
	CreateGitHubRepo bool   `yaml:"create_github_repo"`
	GitHubPrivate    bool   `yaml:"github_private"`
}

// GitConfig holds commit identity and branch policy.
type GitConfig struct {
	CommitPrefix      string   `yaml:"commit_prefix"`
	ProtectedBranches []string `yaml:"protected_branches"`
	UserName          string   `yaml:"user_name"`
	UserEmail         string   `yaml:"user_email"`
}

// FilesConfig bounds /cat and /tree.
type FilesConfig struct {
	MaxCatLines   int      `yaml:"max_cat_lines"`
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	TreeMaxLines  int      `yaml:"tree_max_lines"`
	TreeIgnore    []string `yaml:"tree_ignore"` // doublestar patterns
}

// MemoryConfig controls context injection.
type MemoryConfig struct {
	RecentEntries    int `yaml:"recent_entries"`
	MaxContextTokens int `yaml:"max_context_tokens"`
	TokensPerChar    int `yaml:"tokens_per_char"`
}

// LogConfig overrides the CODEBRIDGE_LOG_* environment.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Config holds the application configuration
type Config struct {
	Claude   ClaudeConfig   `yaml:"claude"`
	Telegram TelegramConfig `yaml:"telegram"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Output   OutputConfig   `yaml:"output"`
	Projects ProjectsConfig `yaml:"projects"`
	Git      GitConfig      `yaml:"git"`
	Files    FilesConfig    `yaml:"files"`
	Memory   MemoryConfig   `yaml:"memory"`
	Log      LogConfig      `yaml:"log"`

	// Internal: where config was loaded from
	configPath string
}

// LoadOptions selects the config file. An empty Path searches the default
// locations.
type LoadOptions struct {
	Path string
	// NoCreate skips writing a default file when none is found.
	NoCreate bool
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Claude: ClaudeConfig{
			Command:     "claude",
			Model:       string(anthropic.ModelClaudeSonnet4_5_20250929),
			MaxTurns:    50,
			Timeout:     300 * time.Second,
			GracePeriod: 5 * time.Second,
		},
		Telegram: TelegramConfig{
			PollTimeout: 30 * time.Second,
			SendRate:    1,
		},
		Output: OutputConfig{
			MaxMessageLength: 4000,
			CompressLength:   3500,
		},
		Projects: ProjectsConfig{
			File:            "projects.yaml",
			WorkspaceRoot:   "~/codebridge-projects",
			InitGitOnCreate: true,
			GitHubPrivate:   true,
		},
		Git: GitConfig{
			CommitPrefix:      "[bot]",
			ProtectedBranches: []string{"main", "production"},
		},
		Files: FilesConfig{
			MaxCatLines:   200,
			MaxFileSizeMB: 10,
			TreeMaxLines:  80,
			TreeIgnore: []string{
				".git", "node_modules", "__pycache__", ".next", "venv", ".venv",
				"dist", ".mypy_cache", ".pytest_cache",
			},
		},
		Memory: MemoryConfig{
			RecentEntries:    15,
			MaxContextTokens: 4000,
			TokensPerChar:    2,
		},
	}
}

// Load loads configuration from files and environment
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	if opts.Path != "" {
		if err := cfg.loadFromFile(opts.Path); err != nil {
			return nil, cberr.ConfigLoadFailed(opts.Path, err)
		}
		cfg.configPath = opts.Path
	} else {
		for _, path := range getConfigPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := cfg.loadFromFile(path); err != nil {
					return nil, cberr.ConfigLoadFailed(path, err)
				}
				cfg.configPath = path
				break
			}
		}
	}

	// If no config found, create default
	if cfg.configPath == "" && !opts.NoCreate {
		if err := cfg.createDefault(); err != nil {
			// Non-fatal: just use defaults
			fmt.Fprintf(os.Stderr, "Warning: could not create default config: %v\n", err)
		}
	}

	cfg.applyEnv()
	cfg.resolvePaths()
	return cfg, nil
}

// getConfigPaths returns config file paths in priority order
func getConfigPaths() []string {
	paths := []string{
		"codebridge.yaml",
		".codebridge/config.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "codebridge", "config.yaml"))
	}

	return paths
}

// loadFromFile loads config from a YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// createDefault creates a default config file
func (c *Config) createDefault() error {
	dir := ".codebridge"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, "config.yaml")
	c.configPath = path

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	content := "# codebridge configuration\n# Set telegram.token (or CODEBRIDGE_TELEGRAM_TOKEN) before running serve.\n\n" + string(data)
	return os.WriteFile(path, []byte(content), 0600)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CODEBRIDGE_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("CODEBRIDGE_PROXY_URL"); v != "" {
		c.Proxy.URL = v
	}
	if v := os.Getenv("CODEBRIDGE_CLAUDE_MODEL"); v != "" {
		c.Claude.Model = v
	}
}

// resolvePaths expands ~ and anchors a relative registry file to the config
// file's directory.
func (c *Config) resolvePaths() {
	c.Projects.WorkspaceRoot = expandHome(c.Projects.WorkspaceRoot)
	c.Projects.File = expandHome(c.Projects.File)

	if c.Projects.File != "" && !filepath.IsAbs(c.Projects.File) && c.configPath != "" {
		c.Projects.File = filepath.Join(filepath.Dir(c.configPath), c.Projects.File)
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Claude.Command) == "" {
		return fmt.Errorf("claude.command must not be empty")
	}
	if c.Claude.MaxTurns <= 0 {
		return fmt.Errorf("claude.max_turns must be > 0, got %d", c.Claude.MaxTurns)
	}
	if c.Claude.Timeout <= 0 {
		return fmt.Errorf("claude.timeout must be > 0, got %s", c.Claude.Timeout)
	}
	if c.Claude.GracePeriod < 0 {
		return fmt.Errorf("claude.grace_period must not be negative, got %s", c.Claude.GracePeriod)
	}
	if c.Output.MaxMessageLength <= 0 || c.Output.CompressLength <= 0 {
		return fmt.Errorf("output lengths must be > 0")
	}
	return nil
}

// ValidateFor runs Validate plus the checks of the given transport.
func (c *Config) ValidateFor(transport string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if transport == TransportTelegram {
		token := strings.TrimSpace(c.Telegram.Token)
		if token == "" || strings.Contains(token, "YOUR_") {
			return fmt.Errorf("telegram.token is not set (config file or CODEBRIDGE_TELEGRAM_TOKEN)")
		}
		if c.Telegram.PollTimeout <= 0 {
			return fmt.Errorf("telegram.poll_timeout must be > 0, got %s", c.Telegram.PollTimeout)
		}
	}
	return nil
}

// MaxFileSize returns the /cat size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Files.MaxFileSizeMB) << 20
}

// ConfigPath returns where the config was loaded from
func (c *Config) ConfigPath() string {
	return c.configPath
}
