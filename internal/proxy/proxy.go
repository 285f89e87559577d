/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package proxy implements spec §4.I: forwarding a request to a
// configured upstream with X-Forwarded-* headers and an enforced
// max_post_len, adapted from trickster's httpproxy.go ProxyRequest/
// Fetch/Respond shape.
package proxy

import (
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/trickster-io/mapcache/internal/log"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/metrics"
)

// Handler forwards requests to a single configured upstream.
type Handler struct {
	Upstream    *url.URL
	MaxPostLen  int64
	ServerName  string
	Client      *http.Client
	RewriteHost bool
}

// NewHandler builds a proxy Handler for the given upstream base URL.
func NewHandler(upstream *url.URL, maxPostLen int64, serverName string) *Handler {
	return &Handler{
		Upstream:   upstream,
		MaxPostLen: maxPostLen,
		ServerName: serverName,
		Client:     &http.Client{},
	}
}

// ServeHTTP forwards r to the upstream, streaming the response back
// verbatim with its headers and status, per spec §4.I.
func (h *Handler) ServeHTTP(ctx *mctx.Context, w http.ResponseWriter, r *http.Request) {
	var body io.Reader
	if r.Method == http.MethodPost {
		if h.MaxPostLen > 0 && r.ContentLength > h.MaxPostLen {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		var limited io.Reader = r.Body
		if h.MaxPostLen > 0 {
			limited = io.LimitReader(r.Body, h.MaxPostLen+1)
		}
		b, err := ioutil.ReadAll(limited)
		if err != nil {
			ctx.SetError(mctx.CodeInternal, "proxy", "read body: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if h.MaxPostLen > 0 && int64(len(b)) > h.MaxPostLen {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		body = strings.NewReader(string(b))
	}

	target := *h.Upstream
	target.RawQuery = r.URL.RawQuery

	upstreamReq, err := http.NewRequest(r.Method, target.String(), body)
	if err != nil {
		ctx.SetError(mctx.CodeInternal, "proxy", "build upstream request: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	upstreamReq = upstreamReq.WithContext(r.Context())
	upstreamReq.Header = r.Header.Clone()

	h.setForwardedHeaders(upstreamReq, r)

	resp, err := h.Client.Do(upstreamReq)
	if err != nil {
		log.Warn("proxy upstream unavailable", log.Pairs{"upstream": h.Upstream.String(), "err": err.Error()})
		metrics.ProxyStatus.WithLabelValues("unavailable").Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	metrics.ProxyStatus.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (h *Handler) setForwardedHeaders(upstreamReq, r *http.Request) {
	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}
	if existing := r.Header.Get("X-Forwarded-For"); existing != "" {
		upstreamReq.Header.Set("X-Forwarded-For", existing+", "+clientIP)
	} else {
		upstreamReq.Header.Set("X-Forwarded-For", clientIP)
	}

	if existing := r.Header.Get("X-Forwarded-Host"); existing != "" {
		upstreamReq.Header.Set("X-Forwarded-Host", existing+", "+r.Host)
	} else {
		upstreamReq.Header.Set("X-Forwarded-Host", r.Host)
	}

	serverName := h.ServerName
	if serverName == "" {
		serverName = r.Host
	}
	if existing := r.Header.Get("X-Forwarded-Server"); existing != "" {
		upstreamReq.Header.Set("X-Forwarded-Server", existing+", "+serverName)
	} else {
		upstreamReq.Header.Set("X-Forwarded-Server", serverName)
	}
}
