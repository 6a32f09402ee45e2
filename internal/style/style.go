// Package style holds the map styling of each rendered layer, with built-in
// defaults that a YAML file may override per layer.
package style

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Layer keys.
const (
	Limite       = "limite"
	Reserva      = "reserva"
	Vegetacao    = "vegetacao"
	APD          = "apd"
	AUD          = "aud"
	Desmatamento = "desmatamento"
	Municipio    = "municipio"
	Selecionado  = "selecionado"
)

// Style is a Leaflet path style.
type Style struct {
	Label       string  `yaml:"label" json:"label"`
	Color       string  `yaml:"color" json:"color"`
	FillColor   string  `yaml:"fill_color" json:"fillColor,omitempty"`
	FillOpacity float64 `yaml:"fill_opacity" json:"fillOpacity"`
	Weight      float64 `yaml:"weight" json:"weight,omitempty"`
}

// MapView is the initial map position.
type MapView struct {
	CenterLat    float64 `yaml:"center_lat" json:"center_lat"`
	CenterLon    float64 `yaml:"center_lon" json:"center_lon"`
	Zoom         int     `yaml:"zoom" json:"zoom"`
	PropertyZoom int     `yaml:"property_zoom" json:"property_zoom"`
}

// Config is the full style set.
type Config struct {
	Map    MapView          `yaml:"map" json:"map"`
	Layers map[string]Style `yaml:"layers" json:"layers"`
}

// Default returns the built-in styles.
func Default() *Config {
	return &Config{
		Map: MapView{CenterLat: -4.099316770129531, CenterLon: -54.911051766333834, Zoom: 9, PropertyZoom: 12},
		Layers: map[string]Style{
			Limite:       {Label: "Limite do Imóvel", Color: "black", FillOpacity: 0, Weight: 2},
			Reserva:      {Label: "Reserva Legal", Color: "#FFA500", FillColor: "#FFA500", FillOpacity: 0.5},
			Vegetacao:    {Label: "Vegetação Nativa", Color: "green", FillColor: "green", FillOpacity: 0.5},
			APD:          {Label: "APD", Color: "#FF69B4", FillOpacity: 0.5},
			AUD:          {Label: "AUD", Color: "#800080", FillOpacity: 0.5},
			Desmatamento: {Label: "Desmatamento", Color: "red", FillColor: "red", FillOpacity: 0.7, Weight: 1},
			Municipio:    {Label: "Município", Color: "black", FillOpacity: 0, Weight: 2},
			Selecionado:  {Label: "CAR Selecionado", Color: "purple", FillOpacity: 0, Weight: 2},
		},
	}
}

// override mirrors Config with optional fields so a file can change one
// attribute of a layer without restating the rest.
type override struct {
	Map struct {
		CenterLat    *float64 `yaml:"center_lat"`
		CenterLon    *float64 `yaml:"center_lon"`
		Zoom         *int     `yaml:"zoom"`
		PropertyZoom *int     `yaml:"property_zoom"`
	} `yaml:"map"`
	Layers map[string]struct {
		Label       *string  `yaml:"label"`
		Color       *string  `yaml:"color"`
		FillColor   *string  `yaml:"fill_color"`
		FillOpacity *float64 `yaml:"fill_opacity"`
		Weight      *float64 `yaml:"weight"`
	} `yaml:"layers"`
}

// Load returns the defaults overridden by the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "style: read config %s", path)
	}

	var wrapper struct {
		Styles override `yaml:"styles"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "style: parse config")
	}
	o := wrapper.Styles

	setIf(&cfg.Map.CenterLat, o.Map.CenterLat)
	setIf(&cfg.Map.CenterLon, o.Map.CenterLon)
	setIf(&cfg.Map.Zoom, o.Map.Zoom)
	setIf(&cfg.Map.PropertyZoom, o.Map.PropertyZoom)

	for key, lo := range o.Layers {
		s := cfg.Layers[key]
		setIf(&s.Label, lo.Label)
		setIf(&s.Color, lo.Color)
		setIf(&s.FillColor, lo.FillColor)
		setIf(&s.FillOpacity, lo.FillOpacity)
		setIf(&s.Weight, lo.Weight)
		if s.FillOpacity < 0 || s.FillOpacity > 1 {
			return nil, eris.Errorf("style: layer %s: fill_opacity must be between 0 and 1", key)
		}
		cfg.Layers[key] = s
	}
	return cfg, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// For returns the style of a layer, or a plain black outline for unknown keys.
func (c *Config) For(key string) Style {
	if s, ok := c.Layers[key]; ok {
		return s
	}
	return Style{Label: key, Color: "black", Weight: 1}
}

// Keys returns the configured layer keys in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.Layers))
	for k := range c.Layers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
