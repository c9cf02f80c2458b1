package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/snap"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Measure MeasureConfig `yaml:"measure" mapstructure:"measure"`
	Snap    SnapConfig    `yaml:"snap" mapstructure:"snap"`
	Units   UnitsConfig   `yaml:"units" mapstructure:"units"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MeasureConfig holds the initial measurement settings.
type MeasureConfig struct {
	PreferredUnit string `yaml:"preferred_unit" mapstructure:"preferred_unit"`
	Locale        string `yaml:"locale" mapstructure:"locale"`
}

// SnapConfig configures snap-to-field.
type SnapConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	ToleranceM     float64 `yaml:"tolerance_m" mapstructure:"tolerance_m"`
	SnapToVertices bool    `yaml:"snap_to_vertices" mapstructure:"snap_to_vertices"`
	SnapToEdges    bool    `yaml:"snap_to_edges" mapstructure:"snap_to_edges"`
	BoundariesFile string  `yaml:"boundaries_file" mapstructure:"boundaries_file"`
}

// UnitsConfig overrides the alqueire conversion factors (m² per unit).
type UnitsConfig struct {
	AlqueirePaulistaM2 float64 `yaml:"alqueire_paulista_m2" mapstructure:"alqueire_paulista_m2"`
	AlqueireMineiroM2  float64 `yaml:"alqueire_mineiro_m2" mapstructure:"alqueire_mineiro_m2"`
}

// ExportConfig configures export file naming.
type ExportConfig struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
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
	v.SetEnvPrefix("FIELDMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fieldmap.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("measure.preferred_unit", string(units.Hectare))
	v.SetDefault("measure.locale", "en")
	v.SetDefault("snap.enabled", false)
	v.SetDefault("snap.tolerance_m", 10.0)
	v.SetDefault("snap.snap_to_vertices", true)
	v.SetDefault("snap.snap_to_edges", true)
	v.SetDefault("snap.boundaries_file", "")
	v.SetDefault("units.alqueire_paulista_m2", units.SquareMetersPerAlqueirePaulista)
	v.SetDefault("units.alqueire_mineiro_m2", units.SquareMetersPerAlqueireMineiro)
	v.SetDefault("export.prefix", measure.DefaultExportPrefix)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.format", "json")

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

// Validate checks the settings every command relies on, plus the server
// settings when mode is "serve". Problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "cli", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" {
		problems = append(problems, "store.driver must be sqlite")
	}
	if strings.TrimSpace(c.Store.DatabaseURL) == "" {
		problems = append(problems, "store.database_url is required")
	}
	if _, err := units.ParseUnit(c.Measure.PreferredUnit); err != nil {
		problems = append(problems, "measure.preferred_unit is not a known unit")
	}
	if _, err := language.Parse(c.Measure.Locale); err != nil {
		problems = append(problems, "measure.locale is not a valid language tag")
	}
	if !snap.ValidTolerance(c.Snap.ToleranceM) {
		problems = append(problems, "snap.tolerance_m must be a finite number >= 0")
	}
	if !(c.Units.AlqueirePaulistaM2 > 0) {
		problems = append(problems, "units.alqueire_paulista_m2 must be > 0")
	}
	if !(c.Units.AlqueireMineiroM2 > 0) {
		problems = append(problems, "units.alqueire_mineiro_m2 must be > 0")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			problems = append(problems, "server.rate_limit_rps must be >= 0")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
			problems = append(problems, "server.rate_limit_burst must be > 0 when rate limiting")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Table builds the unit conversion table from the units and measure sections.
func (c *Config) Table() (*units.Table, error) {
	tag, err := language.Parse(c.Measure.Locale)
	if err != nil {
		return nil, eris.Wrapf(err, "config: parse locale %q", c.Measure.Locale)
	}
	t, err := units.NewTable(
		units.WithAlqueirePaulista(c.Units.AlqueirePaulistaM2),
		units.WithAlqueireMineiro(c.Units.AlqueireMineiroM2),
		units.WithLocale(tag),
	)
	if err != nil {
		return nil, eris.Wrap(err, "config: build unit table")
	}
	return t, nil
}

// MeasureSettings returns the controller settings described by the config.
func (c *Config) MeasureSettings() (measure.Settings, error) {
	u, err := units.ParseUnit(c.Measure.PreferredUnit)
	if err != nil {
		return measure.Settings{}, eris.Wrap(err, "config: preferred unit")
	}
	return measure.Settings{
		PreferredUnit: u,
		Snap: snap.Settings{
			Enabled:        c.Snap.Enabled,
			Tolerance:      c.Snap.ToleranceM,
			SnapToVertices: c.Snap.SnapToVertices,
			SnapToEdges:    c.Snap.SnapToEdges,
		},
	}, nil
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
