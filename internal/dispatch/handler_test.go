package dispatch

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/pipeline"
	"github.com/trickster-io/mapcache/internal/tile"
)

type stubCompositor struct {
	data []byte
	mime string
	err  error
}

func (s *stubCompositor) CompositeMap(ctx *mctx.Context, ts *tile.Tileset, query url.Values) ([]byte, string, error) {
	return s.data, s.mime, s.err
}

func TestServeMapDelegatesToCompositor(t *testing.T) {
	comp := &stubCompositor{data: []byte("composited"), mime: "image/png"}
	a := &Alias{
		Endpoint: "/mapcache",
		Tilesets: map[string]*tile.Tileset{"base": {Name: "base"}},
		Pipelines: map[string]*pipeline.Pipeline{
			"base": {Compositor: comp},
		},
	}
	h := NewHandler([]*Alias{a})

	req := httptest.NewRequest(http.MethodGet, "/mapcache/wms?REQUEST=GetMap&LAYERS=base", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "composited" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content-type: %q", rec.Header().Get("Content-Type"))
	}
}

func TestServeMapForwardsToSourceWhenNoCompositor(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("upstream-map"))
	}))
	defer upstream.Close()

	a := &Alias{
		Endpoint: "/mapcache",
		Tilesets: map[string]*tile.Tileset{"base": {Name: "base", Source: upstream.URL}},
		Pipelines: map[string]*pipeline.Pipeline{
			"base": {},
		},
	}
	h := NewHandler([]*Alias{a})

	req := httptest.NewRequest(http.MethodGet, "/mapcache/wms?REQUEST=GetMap&LAYERS=base", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "upstream-map" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestServeMapReturnsNotFoundForUnknownLayer(t *testing.T) {
	a := &Alias{
		Endpoint:  "/mapcache",
		Tilesets:  map[string]*tile.Tileset{},
		Pipelines: map[string]*pipeline.Pipeline{},
	}
	h := NewHandler([]*Alias{a})

	req := httptest.NewRequest(http.MethodGet, "/mapcache/wms?REQUEST=GetMap&LAYERS=missing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServeFeatureInfoForwardsToSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("feature-info"))
	}))
	defer upstream.Close()

	a := &Alias{
		Endpoint: "/mapcache",
		Tilesets: map[string]*tile.Tileset{"base": {Name: "base", Source: upstream.URL}},
		Pipelines: map[string]*pipeline.Pipeline{
			"base": {},
		},
	}
	h := NewHandler([]*Alias{a})

	req := httptest.NewRequest(http.MethodGet, "/mapcache/wms?REQUEST=GetFeatureInfo&QUERY_LAYERS=base", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "feature-info" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestServeMapWithoutSourceOrCompositorIsNotImplemented(t *testing.T) {
	a := &Alias{
		Endpoint:  "/mapcache",
		Tilesets:  map[string]*tile.Tileset{"base": {Name: "base"}},
		Pipelines: map[string]*pipeline.Pipeline{"base": {}},
	}
	h := NewHandler([]*Alias{a})

	req := httptest.NewRequest(http.MethodGet, "/mapcache/wms?REQUEST=GetMap&LAYERS=base", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}
