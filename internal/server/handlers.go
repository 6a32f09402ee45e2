package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/events"
	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
	"github.com/laurakrama/DAG2024/internal/loader"
	"github.com/laurakrama/DAG2024/internal/style"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Layer string `json:"layer,omitempty"`
	Op    string `json:"op,omitempty"`
}

// rangeBody is returned when event filter bounds are inverted. The map
// keeps its previous state.
type rangeBody struct {
	State string `json:"state"`
	Field string `json:"field"`
	Lower string `json:"lower"`
	Upper string `json:"upper"`
	Error string `json:"error"`
}

type mapCenter struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

type eligibilityResponse struct {
	*eligibility.Result
	Center *mapCenter `json:"center,omitempty"`
}

type summaryResponse struct {
	Count      int      `json:"count"`
	TotalKm2   float64  `json:"total_area_km2"`
	MinKm2     float64  `json:"min_area_km2"`
	MaxKm2     float64  `json:"max_area_km2"`
	FirstDate  string   `json:"first_date,omitempty"`
	LastDate   string   `json:"last_date,omitempty"`
	Categories []string `json:"categories"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeBody(w http.ResponseWriter, contentType, cacheState string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	if cacheState != "" {
		w.Header().Set("X-Cache", cacheState)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStyles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.styles)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Cache.Stats())
}

// loadWorkspace writes a 503 and returns false when the layers cannot be loaded.
func (s *Server) loadWorkspace(w http.ResponseWriter, r *http.Request) (*loader.Workspace, bool) {
	ws, err := s.workspace.Get(r.Context())
	if err != nil {
		zap.L().Error("server: load layers", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "layers unavailable", Kind: "load"})
		return nil, false
	}
	return ws, true
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.loadWorkspace(w, r)
	if !ok {
		return
	}
	keys := ws.Layers.PropertyKeys()
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(keys), "properties": keys})
}

func propertyKey(r *http.Request) (string, error) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		return "", eris.Wrap(err, "server: unescape property key")
	}
	return key, nil
}

// computeEligibility runs the query under the compute timeout. It writes
// the error response itself and returns false on failure.
func (s *Server) computeEligibility(w http.ResponseWriter, r *http.Request, ws *loader.Workspace, key string) (*eligibility.Result, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ComputeTimeout)
	defer cancel()

	res, err := s.service.ForProperty(ctx, ws.Layers, key)
	if err != nil {
		writeComputeError(w, err)
		return nil, false
	}
	return res, true
}

// writeComputeError maps projection and geometry failures to 422 with the
// offending layer and operation, and context expiry to 504.
func writeComputeError(w http.ResponseWriter, err error) {
	var pe *geometry.ProjectionError
	var ge *geometry.GeometryError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: "projection", Layer: pe.Layer, Op: pe.Op})
	case errors.As(err, &ge):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: "geometry", Layer: ge.Layer, Op: ge.Op})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "computation timed out", Kind: "timeout"})
	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "request cancelled", Kind: "cancelled"})
	default:
		zap.L().Error("server: eligibility", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	key, err := propertyKey(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if body, ct, ok := s.opts.Cache.Get(routeEligibility, key); ok {
		writeBody(w, ct, "hit", body)
		return
	}

	ws, ok := s.loadWorkspace(w, r)
	if !ok {
		return
	}
	res, ok := s.computeEligibility(w, r, ws, key)
	if !ok {
		return
	}

	resp := eligibilityResponse{Result: res}
	if !res.NoData {
		pt, found, err := s.service.Centroid(ws.Layers, key)
		if err != nil {
			zap.L().Warn("server: property centroid", zap.String("property", key), zap.Error(err))
		} else if found {
			resp.Center = &mapCenter{Lat: pt.Y, Lon: pt.X, Zoom: s.styles.Map.PropertyZoom}
		}
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode result"})
		return
	}
	if !res.NoData {
		s.opts.Cache.Put(routeEligibility, key, contentTypeJSON, body)
	}
	writeBody(w, contentTypeJSON, "miss", body)
}

func (s *Server) handleEligibilityGeoJSON(w http.ResponseWriter, r *http.Request) {
	key, err := propertyKey(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if body, ct, ok := s.opts.Cache.Get(routeGeoJSON, key); ok {
		writeBody(w, ct, "hit", body)
		return
	}

	ws, ok := s.loadWorkspace(w, r)
	if !ok {
		return
	}
	res, ok := s.computeEligibility(w, r, ws, key)
	if !ok {
		return
	}

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	if !res.NoData {
		sel, _ := ws.Layers.SelectProperty(key)
		for _, part := range []struct {
			layer    *layer.Layer
			styleKey string
		}{
			{sel.Limite, style.Limite},
			{sel.Reserva, style.Reserva},
			{sel.Vegetacao, style.Vegetacao},
		} {
			features, err := s.layerFeatures(part.layer, part.styleKey)
			if err != nil {
				writeComputeError(w, geometry.WithLayer(err, part.styleKey))
				return
			}
			fc.Features = append(fc.Features, features...)
		}
		for _, part := range []struct {
			styleKey string
			col      geometry.Collection
			areaKm2  float64
		}{
			{style.APD, res.APD, res.APDKm2},
			{style.AUD, res.AUD, res.AUDKm2},
		} {
			f, err := s.collectionFeature(key, part.styleKey, part.col, part.areaKm2)
			if err != nil {
				writeComputeError(w, geometry.WithLayer(err, part.styleKey))
				return
			}
			fc.Features = append(fc.Features, f)
		}
	}

	body, err := json.Marshal(fc)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode feature collection"})
		return
	}
	if !res.NoData {
		s.opts.Cache.Put(routeGeoJSON, key, contentTypeGeoJSON, body)
	}
	writeBody(w, contentTypeGeoJSON, "miss", body)
}

// layerFeatures converts every feature of l to the display frame, keeping
// its attributes and tagging it with its layer and style.
func (s *Server) layerFeatures(l *layer.Layer, styleKey string) ([]*geojson.Feature, error) {
	if l.Len() == 0 {
		return nil, nil
	}
	frame := l.Frame
	if frame == "" {
		frame = s.service.DisplayFrame()
	}
	st := s.styles.For(styleKey)

	out := make([]*geojson.Feature, 0, len(l.Features))
	for i, f := range l.Features {
		disp, err := s.service.Display(geometry.New(frame, layer.FromMultiPolygon(f.Geometry)...))
		if err != nil {
			return nil, err
		}
		mp, err := layer.ToMultiPolygon(disp)
		if err != nil {
			return nil, err
		}
		props := make(map[string]any, len(f.Properties)+3)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["layer"] = styleKey
		props["label"] = st.Label
		props["style"] = st
		out = append(out, &geojson.Feature{
			ID:         fmt.Sprintf("%s-%d", styleKey, i),
			Geometry:   mp,
			Properties: props,
		})
	}
	return out, nil
}

func (s *Server) collectionFeature(key, styleKey string, col geometry.Collection, areaKm2 float64) (*geojson.Feature, error) {
	disp, err := s.service.Display(col)
	if err != nil {
		return nil, err
	}
	mp, err := layer.ToMultiPolygon(disp)
	if err != nil {
		return nil, err
	}
	st := s.styles.For(styleKey)
	return &geojson.Feature{
		ID:       styleKey,
		Geometry: mp,
		Properties: map[string]any{
			"layer":      styleKey,
			"label":      st.Label,
			"style":      st,
			"cod_imovel": key,
			"area_km2":   areaKm2,
		},
	}, nil
}

// parseCriteria overlays the query parameters on base. A category
// parameter that is present replaces the category set, even when every
// value is empty.
func parseCriteria(q url.Values, base events.Criteria) (events.Criteria, error) {
	cr := base
	for _, d := range []struct {
		name string
		dst  *time.Time
	}{
		{"from", &cr.From},
		{"to", &cr.To},
	} {
		if v := q.Get(d.name); v != "" {
			t, err := time.Parse(events.ISODate, v)
			if err != nil {
				return cr, eris.Wrapf(err, "server: invalid %s date %q", d.name, v)
			}
			*d.dst = t
		}
	}
	for _, b := range []struct {
		name string
		dst  *float64
	}{
		{"min", &cr.SizeMin},
		{"max", &cr.SizeMax},
	} {
		if v := q.Get(b.name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return cr, eris.Wrapf(err, "server: invalid %s size %q", b.name, v)
			}
			*b.dst = f
		}
	}
	if values, ok := q["category"]; ok {
		cr.Categories = make([]string, 0, len(values))
		for _, v := range values {
			if v != "" {
				cr.Categories = append(cr.Categories, v)
			}
		}
	}
	return cr, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.loadWorkspace(w, r)
	if !ok {
		return
	}
	cr, err := parseCriteria(r.URL.Query(), ws.Events.DefaultCriteria())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}

	evs, err := ws.Events.Filter(cr)
	if err != nil {
		var re *events.FilterRangeError
		if errors.As(err, &re) {
			writeJSON(w, http.StatusBadRequest, rangeBody{
				State: "invalid_range",
				Field: re.Field,
				Lower: re.Lower,
				Upper: re.Upper,
				Error: re.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "filter events"})
		return
	}

	st := s.styles.For(style.Desmatamento)
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(evs))}
	for _, e := range evs {
		props := make(map[string]any, len(e.Properties)+5)
		for k, v := range e.Properties {
			props[k] = v
		}
		if e.Date.IsZero() {
			props["image_date"] = nil
		} else {
			props["image_date"] = e.DateISO()
		}
		props["sub_class"] = e.Category
		props["sub_class_raw"] = e.RawSubClass
		props["area_km"] = e.AreaKm2
		props["style"] = st
		fc.Features = append(fc.Features, &geojson.Feature{ID: e.ID, Geometry: e.Geometry, Properties: props})
	}

	body, err := json.Marshal(fc)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode feature collection"})
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(evs)))
	writeBody(w, contentTypeGeoJSON, "", body)
}

func (s *Server) handleEventsSummary(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.loadWorkspace(w, r)
	if !ok {
		return
	}
	sum := ws.Events.Summary()
	resp := summaryResponse{
		Count:      sum.Count,
		TotalKm2:   sum.TotalKm2,
		MinKm2:     sum.MinKm2,
		MaxKm2:     sum.MaxKm2,
		Categories: ws.Events.Categories(),
	}
	if !sum.FirstDate.IsZero() {
		resp.FirstDate = sum.FirstDate.Format(events.ISODate)
		resp.LastDate = sum.LastDate.Format(events.ISODate)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMunicipality(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.loadWorkspace(w, r)
	if !ok {
		return
	}
	features, err := s.layerFeatures(ws.Layers.Municipality, style.Municipio)
	if err != nil {
		writeComputeError(w, geometry.WithLayer(err, layer.Municipality))
		return
	}
	fc := &geojson.FeatureCollection{Features: features}
	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}
	body, err := json.Marshal(fc)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode feature collection"})
		return
	}
	writeBody(w, contentTypeGeoJSON, "", body)
}
