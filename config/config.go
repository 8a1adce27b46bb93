package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Drafting DraftingConfig `yaml:"drafting"`
	Agency   AgencyConfig   `yaml:"agency"`
	Company  CompanyConfig  `yaml:"company"`
	Auth     AuthConfig     `yaml:"auth"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// DraftingConfig bounds LLM output per operation and sets the default number
// of critique-refine cycles per section.
type DraftingConfig struct {
	GenerateMaxTokens int `yaml:"generate_max_tokens"`
	CritiqueMaxTokens int `yaml:"critique_max_tokens"`
	RefineMaxTokens   int `yaml:"refine_max_tokens"`
	DefaultIterations int `yaml:"default_iterations"`
}

// AgencyConfig points at an optional directory of requirement templates
// overriding the embedded ones, keyed <code>.json.
type AgencyConfig struct {
	TemplatesDir string `yaml:"templates_dir"`
}

type CompanyConfig struct {
	ProfilePath string `yaml:"profile_path"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Salt    string `yaml:"salt"`
}

type WorkerConfig struct {
	PoolSize   int `yaml:"pool_size"`
	QueueSize  int `yaml:"queue_size"`
	MaxRetries int `yaml:"max_retries"`
}

// Load builds the configuration from defaults, an optional yaml file, and
// environment overrides. The result is passed explicitly into constructors;
// nothing reads ambient config at runtime.
func Load() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			APIURL:  "https://api.openai.com/v1",
			Model:   "claude-sonnet-4-5",
			Timeout: 5 * time.Minute,
		},
		Drafting: DraftingConfig{
			GenerateMaxTokens: 6000,
			CritiqueMaxTokens: 2000,
			RefineMaxTokens:   6000,
			DefaultIterations: 1,
		},
		Company: CompanyConfig{
			ProfilePath: "./data/company_profile.yaml",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Worker: WorkerConfig{
			PoolSize:   2,
			QueueSize:  64,
			MaxRetries: 1,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// Environment variables take precedence over the config file.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if dir := os.Getenv("AGENCY_TEMPLATES"); dir != "" {
		config.Agency.TemplatesDir = dir
	}
	if profile := os.Getenv("COMPANY_PROFILE"); profile != "" {
		config.Company.ProfilePath = profile
	}
	if salt := os.Getenv("AUTH_SALT"); salt != "" {
		config.Auth.Salt = salt
		config.Auth.Enabled = true
	}

	return config
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
