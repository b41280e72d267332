package config

type Config struct {
	Server  ServerConfig
	Tracker TrackerConfig
	Export  ExportConfig
	Quality QualityConfig
	Storage StorageConfig
	Auth    AuthConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

// TrackerConfig points at the issue tracker the reports are built from.
type TrackerConfig struct {
	BaseURL string
	Token   string
	BoardID int
}

type ExportConfig struct {
	MaxAttempts       int
	BaseDelayMS       int
	AttemptTimeoutSec int
	CacheTTLHours     int
	CacheMaxMB        int
	CacheMaxEntries   int
	CacheStrategy     string
}

type QualityConfig struct {
	PassThreshold float64
}

type StorageConfig struct {
	DataDir string
}

type AuthConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Export: ExportConfig{
			MaxAttempts:       3,
			BaseDelayMS:       500,
			AttemptTimeoutSec: 30,
			CacheTTLHours:     24,
			CacheMaxMB:        100,
			CacheMaxEntries:   50,
			CacheStrategy:     "lru",
		},
		Quality: QualityConfig{
			PassThreshold: 80,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/sprintdeck/config.json, then applies SPRINTDECK_*
// environment overrides. Secrets (tracker token, API auth token) are
// never stored in the file and come from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
