package proxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/trickster-io/mapcache/internal/mctx"
)

func TestServeHTTPForwardsAndStreamsResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Forwarded-For"); got == "" {
			t.Error("expected X-Forwarded-For to be set on the upstream request")
		}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("upstream-body"))
	}))
	defer upstream.Close()

	u, _ := url.Parse(upstream.URL)
	h := NewHandler(u, 0, "mapcache-test")

	req := httptest.NewRequest(http.MethodGet, "/proxy?x=1", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	ctx := mctx.New(req.Header)

	h.ServeHTTP(ctx, rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Fatal("expected upstream header to be copied through")
	}
	if rec.Body.String() != "upstream-body" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestServeHTTPRejectsOversizedPost(t *testing.T) {
	u, _ := url.Parse("http://example.invalid")
	h := NewHandler(u, 4, "mapcache-test")

	req := httptest.NewRequest(http.MethodPost, "/proxy", strings.NewReader("way too long"))
	req.ContentLength = int64(len("way too long"))
	rec := httptest.NewRecorder()
	ctx := mctx.New(req.Header)

	h.ServeHTTP(ctx, rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
