package dispatch

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/trickster-io/mapcache/internal/log"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/pipeline"
	"github.com/trickster-io/mapcache/internal/proxy"
	"github.com/trickster-io/mapcache/internal/tile"
	"github.com/trickster-io/mapcache/internal/tracing"
)

// Alias binds one registered endpoint to its tilesets, pipelines, and
// (optional) proxy target, per spec §4.H.
type Alias struct {
	Endpoint  string
	Tilesets  map[string]*tile.Tileset
	Pipelines map[string]*pipeline.Pipeline
	Proxy     *proxy.Handler
}

// Handler routes requests across every registered Alias, trying endpoints
// in registration order; the first matching prefix wins, per spec §4.H.
// Built on gorilla/mux
// the same way trickster's internal/routing/registration registers
// per-origin routes.
type Handler struct {
	Aliases []*Alias
	router  *mux.Router
}

// NewHandler builds the gorilla/mux router for the given aliases.
func NewHandler(aliases []*Alias) *Handler {
	h := &Handler{Aliases: aliases, router: mux.NewRouter()}
	for _, a := range aliases {
		alias := a
		h.router.PathPrefix(alias.Endpoint).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.serveAlias(alias, w, r)
		})
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) serveAlias(a *Alias, w http.ResponseWriter, r *http.Request) {
	r, span := tracing.PrepareRequest(r, "mapcache.request")
	defer span.End()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	pathInfo := r.URL.Path[len(a.Endpoint):]
	req := ParsePathInfo(pathInfo, r.URL.Query())

	ctx := mctx.New(r.Header)
	defer ctx.Release()

	switch req.Kind {
	case GetTile:
		h.serveTile(ctx, a, req, w, r)
	case GetMap:
		h.serveMap(ctx, a, req, w, r)
	case GetCapabilities:
		h.serveCapabilities(a, req, w, r)
	case GetFeatureInfo:
		h.serveFeatureInfo(ctx, a, req, w, r)
	case Proxy:
		if a.Proxy != nil {
			a.Proxy.ServeHTTP(ctx, w, r)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) serveTile(ctx *mctx.Context, a *Alias, req *Request, w http.ResponseWriter, r *http.Request) {
	ts, ok := a.Tilesets[req.Tile.Tileset]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, ok := a.Pipelines[req.Tile.Tileset]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	t, err := p.Fetch(ctx, ts, req.Tile)
	if err != nil {
		writeError(ctx, w)
		return
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if since, err := time.Parse(time.RFC1123, ims); err == nil && !t.Mtime.After(since) {
			w.Header().Set("Last-Modified", t.Mtime.UTC().Format(time.RFC1123))
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", t.MIME)
	w.Header().Set("Last-Modified", t.Mtime.UTC().Format(time.RFC1123))
	if ts.Expires > 0 {
		w.Header().Set("Cache-Control", "max-age="+ts.Expires.String())
	}
	w.WriteHeader(http.StatusOK)
	w.Write(t.EncodedData)
}

// mapLayerName extracts the requested layer (tileset) name from a GET_MAP
// or GET_FEATURE_INFO query, accepting both the WMS-KVP casing and its
// lowercase variant.
func mapLayerName(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
		if v := q.Get(strings.ToLower(k)); v != "" {
			return v
		}
	}
	return ""
}

// serveMap implements spec §4.G's GET_MAP branch: assemble the response
// either (a) by pulling tiles from cache and compositing — delegated to
// the tileset's pipeline.Compositor, an external collaborator per spec
// §1 — or (b) by forwarding to the tileset's configured upstream source.
func (h *Handler) serveMap(ctx *mctx.Context, a *Alias, req *Request, w http.ResponseWriter, r *http.Request) {
	layer := mapLayerName(req.Query, "LAYERS", "LAYER")
	ts, ok := a.Tilesets[layer]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, ok := a.Pipelines[layer]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if p.Compositor != nil {
		data, mime, err := p.Compositor.CompositeMap(ctx, ts, req.Query)
		if err != nil {
			writeError(ctx, w)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	forwardToSource(ctx, ts, w, r)
}

// serveFeatureInfo implements spec §4.G's GET_FEATURE_INFO branch:
// delegate to the tileset source.
func (h *Handler) serveFeatureInfo(ctx *mctx.Context, a *Alias, req *Request, w http.ResponseWriter, r *http.Request) {
	layer := mapLayerName(req.Query, "QUERY_LAYERS", "LAYERS")
	ts, ok := a.Tilesets[layer]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	forwardToSource(ctx, ts, w, r)
}

// forwardToSource proxies r to ts.Source, reusing the same X-Forwarded-*
// forwarding logic as the standalone proxy request handler (spec §4.I),
// rather than tileset-specific map/feature-info requests each growing
// their own copy of it.
func forwardToSource(ctx *mctx.Context, ts *tile.Tileset, w http.ResponseWriter, r *http.Request) {
	if ts.Source == "" {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	upstream, err := url.Parse(ts.Source)
	if err != nil {
		ctx.SetError(mctx.CodeInternal, "dispatch", "parse source %q for tileset %q: %v", ts.Source, ts.Name, err)
		writeError(ctx, w)
		return
	}
	proxy.NewHandler(upstream, 0, r.Host).ServeHTTP(ctx, w, r)
}

func (h *Handler) serveCapabilities(a *Alias, req *Request, w http.ResponseWriter, r *http.Request) {
	// Capabilities document generation is a named external collaborator
	// per spec §1 (WMS/WMTS/TMS service-format serializers are out of
	// scope); this handler only reconstructs the public base URL and
	// hands off.
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := scheme + "://" + r.Host + a.Endpoint
	w.Header().Set("X-Mapcache-Base-URL", baseURL)
	w.WriteHeader(http.StatusOK)
}

func writeError(ctx *mctx.Context, w http.ResponseWriter) {
	code, msg, source := ctx.Error()
	if code == mctx.CodeNone {
		code = mctx.CodeInternal
	}
	log.Error("request failed", log.Pairs{"code": code, "source": source, "msg": msg})
	w.WriteHeader(code)
}
