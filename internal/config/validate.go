package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// LayerNames lists the configured layers in load order.
var LayerNames = []string{"area_imovel", "reserva_legal", "vegetacao_nativa", "desmatamento", "municipio"}

// Validate checks the settings a command needs. mode is "query" for the
// one-shot CLI commands and "serve" for the HTTP API.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "query":
		errs = append(errs, c.validateQuery()...)
	case "serve":
		errs = append(errs, c.validateQuery()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 {
			errs = append(errs, "server.rate_limit must be > 0")
		}
		if c.Server.Burst < 1 {
			errs = append(errs, "server.burst must be >= 1")
		}
		if c.Server.ComputeTimeoutSecs <= 0 {
			errs = append(errs, "server.compute_timeout_secs must be > 0")
		}
		if c.Server.CacheEntries > 0 && c.Server.CacheTTLSecs <= 0 {
			errs = append(errs, "server.cache_ttl_secs must be > 0 when the cache is enabled")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateQuery() []string {
	var errs []string
	if c.Projection.Geographic == "" {
		errs = append(errs, "projection.geographic is required")
	}
	if c.Projection.Projected == "" {
		errs = append(errs, "projection.projected is required")
	}
	if c.Layers.KeyField == "" {
		errs = append(errs, "layers.key_field is required")
	}
	if c.Layers.Concurrency < 1 || c.Layers.Concurrency > 5 {
		errs = append(errs, "layers.concurrency must be between 1 and 5")
	}

	needsStore := false
	for _, name := range LayerNames {
		src, _ := c.Layers.Source(name)
		switch {
		case src.Path != "" && src.Table != "":
			errs = append(errs, "layers."+name+": set either path or table, not both")
		case src.Table != "":
			needsStore = true
		case src.Path == "" && name != "municipio":
			errs = append(errs, "layers."+name+".path or table is required")
		}
	}
	if needsStore && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for table sources")
	}
	return errs
}
