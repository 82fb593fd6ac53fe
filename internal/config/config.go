package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Geo       GeoConfig       `yaml:"geo" mapstructure:"geo"`
	Valuation ValuationConfig `yaml:"valuation" mapstructure:"valuation"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LLMConfig holds the language-model oracle settings. An empty Key means
// no client is constructed and every engine runs heuristic-only.
type LLMConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxTokens     int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Strict        bool    `yaml:"strict" mapstructure:"strict"`
	Debug         bool    `yaml:"debug" mapstructure:"debug"`
}

// OverpassConfig configures the map-data (POI) client.
type OverpassConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	POIRadiusM    int    `yaml:"poi_radius_m" mapstructure:"poi_radius_m"`
	LinearRadiusM int    `yaml:"linear_radius_m" mapstructure:"linear_radius_m"`
}

// GeoConfig holds thresholds for the geographic context resolver.
type GeoConfig struct {
	CoastalThresholdKm float64 `yaml:"coastal_threshold_km" mapstructure:"coastal_threshold_km"`
	TourismThresholdKm float64 `yaml:"tourism_threshold_km" mapstructure:"tourism_threshold_km"`
}

// ValuationConfig tunes the heuristic engines.
type ValuationConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"` // "fallback" or "strict"
	BaseRatePerSqft float64 `yaml:"base_rate_per_sqft" mapstructure:"base_rate_per_sqft"`
	AgeHorizonYears int     `yaml:"age_horizon_years" mapstructure:"age_horizon_years"`
	CityTablePath   string  `yaml:"city_table_path" mapstructure:"city_table_path"`
}

// SecurityConfig configures output filtering.
type SecurityConfig struct {
	AllowedDomains []string `yaml:"allowed_domains" mapstructure:"allowed_domains"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VALUATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "valuation.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.rate_per_second", 2.0)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 20)
	v.SetDefault("overpass.poi_radius_m", 2000)
	v.SetDefault("overpass.linear_radius_m", 3000)
	v.SetDefault("geo.coastal_threshold_km", 15.0)
	v.SetDefault("geo.tourism_threshold_km", 30.0)
	v.SetDefault("valuation.mode", "fallback")
	v.SetDefault("valuation.base_rate_per_sqft", 18000.0)
	v.SetDefault("valuation.age_horizon_years", 20)
	v.SetDefault("security.allowed_domains", []string{
		"wikipedia.org",
		"openstreetmap.org",
		"google.com",
		"gov.lk",
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
