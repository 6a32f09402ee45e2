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
	Layers     LayersConfig     `yaml:"layers" mapstructure:"layers"`
	Projection ProjectionConfig `yaml:"projection" mapstructure:"projection"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Styles     StylesConfig     `yaml:"styles" mapstructure:"styles"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// LayersConfig locates the five input layers.
type LayersConfig struct {
	Frame            string       `yaml:"frame" mapstructure:"frame"`
	KeyField         string       `yaml:"key_field" mapstructure:"key_field"`
	Concurrency      int          `yaml:"concurrency" mapstructure:"concurrency"`
	Properties       SourceConfig `yaml:"area_imovel" mapstructure:"area_imovel"`
	LegalReserve     SourceConfig `yaml:"reserva_legal" mapstructure:"reserva_legal"`
	NativeVegetation SourceConfig `yaml:"vegetacao_nativa" mapstructure:"vegetacao_nativa"`
	Deforestation    SourceConfig `yaml:"desmatamento" mapstructure:"desmatamento"`
	Municipality     SourceConfig `yaml:"municipio" mapstructure:"municipio"`
}

// SourceConfig points at one layer. Path selects a file source by
// extension (.geojson, .json, .shp, .gpkg); Table reads from the PostGIS
// store instead. Layer names the table inside a GeoPackage. Frame
// overrides layers.frame for this source.
type SourceConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Table string `yaml:"table" mapstructure:"table"`
	Layer string `yaml:"layer" mapstructure:"layer"`
	Frame string `yaml:"frame" mapstructure:"frame"`
}

// IsSet reports whether the source names a file or table.
func (s SourceConfig) IsSet() bool {
	return s.Path != "" || s.Table != ""
}

// Source returns the source configured for a layer name.
func (l LayersConfig) Source(name string) (SourceConfig, bool) {
	switch name {
	case "area_imovel":
		return l.Properties, true
	case "reserva_legal":
		return l.LegalReserve, true
	case "vegetacao_nativa":
		return l.NativeVegetation, true
	case "desmatamento":
		return l.Deforestation, true
	case "municipio":
		return l.Municipality, true
	default:
		return SourceConfig{}, false
	}
}

// ProjectionConfig names the display and computation frames.
type ProjectionConfig struct {
	Geographic string `yaml:"geographic" mapstructure:"geographic"`
	Projected  string `yaml:"projected" mapstructure:"projected"`
}

// EventsConfig configures the deforestation catalog.
type EventsConfig struct {
	Categories        []string `yaml:"categories" mapstructure:"categories"`
	DateField         string   `yaml:"date_field" mapstructure:"date_field"`
	AreaField         string   `yaml:"area_field" mapstructure:"area_field"`
	ClassField        string   `yaml:"class_field" mapstructure:"class_field"`
	MunicipalityField string   `yaml:"municipality_field" mapstructure:"municipality_field"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RateLimit          float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst              int      `yaml:"burst" mapstructure:"burst"`
	ComputeTimeoutSecs int      `yaml:"compute_timeout_secs" mapstructure:"compute_timeout_secs"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// CacheEntries > 0 turns on the rendered-response cache. Off by default.
	CacheEntries       int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSecs       int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// StoreConfig configures the optional PostGIS layer store.
type StoreConfig struct {
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	ConnectAttempts int    `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// StylesConfig points at an optional map style file.
type StylesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("REDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("layers.frame", "EPSG:4674")
	v.SetDefault("layers.key_field", "cod_imovel")
	v.SetDefault("layers.concurrency", 5)
	for name, path := range map[string]string{
		"area_imovel":      "fontes/areaImovel_amostra.geojson",
		"reserva_legal":    "fontes/reservaLegal_amostra.geojson",
		"vegetacao_nativa": "fontes/vegetacaoNativa_amostra.geojson",
		"desmatamento":     "fontes/desmatamento_Ruropolis.geojson",
		"municipio":        "fontes/municipio_Ruropolis.geojson",
	} {
		v.SetDefault("layers."+name+".path", path)
		v.SetDefault("layers."+name+".table", "")
		v.SetDefault("layers."+name+".layer", "")
		v.SetDefault("layers."+name+".frame", "")
	}
	v.SetDefault("projection.geographic", "EPSG:4674")
	v.SetDefault("projection.projected", "EPSG:32722")
	v.SetDefault("events.categories", []string{
		"desmatamento por degradação progressiva",
		"corte raso com vegetação",
		"corte raso com solo exposto",
	})
	v.SetDefault("events.date_field", "image_date")
	v.SetDefault("events.area_field", "area_km")
	v.SetDefault("events.class_field", "sub_class")
	v.SetDefault("events.municipality_field", "municipio")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("server.compute_timeout_secs", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.cache_entries", 0)
	v.SetDefault("server.cache_ttl_secs", 600)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("styles.path", "")

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
