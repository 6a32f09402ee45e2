// Package loader reads the five input layers from GeoJSON, shapefile,
// GeoPackage or PostGIS sources into an immutable layer set.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/laurakrama/DAG2024/internal/config"
	"github.com/laurakrama/DAG2024/internal/db"
	"github.com/laurakrama/DAG2024/internal/events"
	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
)

// Options carries the optional PostGIS pool for table sources.
type Options struct {
	Pool db.Pool
}

// Load reads every configured layer concurrently. Unset sources yield nil
// layers; the first read error cancels the rest.
func Load(ctx context.Context, cfg config.LayersConfig, opts Options) (*layer.Set, error) {
	log := zap.L().With(zap.String("component", "loader"))
	start := time.Now()

	loaded := make([]*layer.Layer, len(config.LayerNames))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}
	for i, name := range config.LayerNames {
		src, _ := cfg.Source(name)
		if !src.IsSet() {
			log.Debug("layer not configured", zap.String("layer", name))
			continue
		}
		g.Go(func() error {
			l, err := readSource(gctx, name, src, cfg, opts)
			if err != nil {
				return eris.Wrapf(err, "loader: layer %s", name)
			}
			loaded[i] = l
			log.Info("layer loaded",
				zap.String("layer", name),
				zap.String("frame", l.Frame.String()),
				zap.Int("features", l.Len()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &layer.Set{}
	for i, name := range config.LayerNames {
		switch name {
		case layer.PropertyBoundary:
			set.Properties = loaded[i]
		case layer.LegalReserve:
			set.LegalReserve = loaded[i]
		case layer.NativeVegetation:
			set.NativeVegetation = loaded[i]
		case layer.Deforestation:
			set.Deforestation = loaded[i]
		case layer.Municipality:
			set.Municipality = loaded[i]
		}
	}
	log.Info("layer set loaded", zap.Duration("elapsed", time.Since(start)))
	return set, nil
}

// LoadLayer reads one configured layer by name.
func LoadLayer(ctx context.Context, name string, cfg config.LayersConfig, opts Options) (*layer.Layer, error) {
	src, ok := cfg.Source(name)
	if !ok {
		return nil, eris.Errorf("loader: unknown layer %q", name)
	}
	if !src.IsSet() {
		return nil, eris.Errorf("loader: layer %s has no source", name)
	}
	l, err := readSource(ctx, name, src, cfg, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: layer %s", name)
	}
	return l, nil
}

func readSource(ctx context.Context, name string, src config.SourceConfig, cfg config.LayersConfig, opts Options) (*layer.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		l   *layer.Layer
		err error
	)
	if src.Table != "" {
		if opts.Pool == nil {
			return nil, eris.Errorf("loader: table source %q needs a database pool", src.Table)
		}
		l, err = ReadTable(ctx, opts.Pool, src.Table, cfg.KeyField)
	} else {
		switch ext := strings.ToLower(filepath.Ext(src.Path)); ext {
		case ".geojson", ".json":
			l, err = ReadGeoJSON(src.Path, cfg.KeyField)
		case ".shp":
			l, err = ReadShapefile(ctx, src.Path, cfg.KeyField)
		case ".gpkg":
			l, err = ReadGeoPackage(ctx, src.Path, src.Layer, cfg.KeyField)
		default:
			return nil, eris.Errorf("loader: unsupported source %q", src.Path)
		}
	}
	if err != nil {
		return nil, err
	}

	l.Name = name
	switch {
	case src.Frame != "":
		l.Frame = geometry.Frame(src.Frame)
	case l.Frame == "":
		l.Frame = geometry.Frame(cfg.Frame)
	}
	return l, nil
}

// keyOf renders the key attribute as a string; numeric codes keep their
// shortest form.
func keyOf(props map[string]any, field string) string {
	if field == "" {
		return ""
	}
	switch v := props[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Workspace is the loaded layer set plus the normalized event catalog.
type Workspace struct {
	Layers *layer.Set
	Events *events.Catalog
}

// Open loads the layers and builds the event catalog from the
// deforestation layer.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Workspace, error) {
	set, err := Load(ctx, cfg.Layers, opts)
	if err != nil {
		return nil, err
	}

	evs, skipped := events.FromLayer(set.Deforestation, events.Fields{
		Date:         cfg.Events.DateField,
		Area:         cfg.Events.AreaField,
		Class:        cfg.Events.ClassField,
		Municipality: cfg.Events.MunicipalityField,
	})
	if skipped > 0 {
		zap.L().Warn("loader: events skipped", zap.Int("skipped", skipped), zap.Int("kept", len(evs)))
	}
	categories := cfg.Events.Categories
	if len(categories) == 0 {
		categories = events.DefaultCategories
	}
	return &Workspace{Layers: set, Events: events.NewCatalog(evs, categories)}, nil
}

// Lazy defers opening the workspace until first use. A failed open is not
// cached, so the next call retries.
type Lazy struct {
	mu   sync.Mutex
	open func(context.Context) (*Workspace, error)
	ws   *Workspace
}

// NewLazy wraps open.
func NewLazy(open func(context.Context) (*Workspace, error)) *Lazy {
	return &Lazy{open: open}
}

// Get returns the workspace, opening it on the first successful call.
func (l *Lazy) Get(ctx context.Context) (*Workspace, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ws != nil {
		return l.ws, nil
	}
	ws, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.ws = ws
	return ws, nil
}
