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

// Package dispatch implements spec §4.G: parsing an inbound URI into a
// typed request and routing it to the tile pipeline or proxy handler.
package dispatch

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/trickster-io/mapcache/internal/tile"
)

// Kind is the typed request the path-info parser resolves to.
type Kind int

const (
	GetTile Kind = iota
	GetMap
	GetCapabilities
	GetFeatureInfo
	Proxy
	Decline
)

// Request is the parsed, typed inbound request of spec §4.G.
type Request struct {
	Kind    Kind
	Tile    *tile.Tile
	Service string
	Query   url.Values
}

// ParsePathInfo selects a service-specific parser by the leading path
// segment (wmts/tms/wms/kml/ve/demo/mapguide) and returns the typed
// request. Per spec §4.G, an unrecognized leading segment yields Decline
// so the host can serve the path itself.
func ParsePathInfo(pathInfo string, query url.Values) *Request {
	pathInfo = strings.TrimPrefix(pathInfo, "/")
	segments := strings.Split(pathInfo, "/")
	if len(segments) == 0 || segments[0] == "" {
		return &Request{Kind: Decline, Query: query}
	}
	service := segments[0]
	switch service {
	case "tms":
		return parseTMS(segments[1:], query, service)
	case "wmts":
		return parseWMTS(segments[1:], query, service)
	case "wms", "kml", "ve", "demo", "mapguide":
		return parseQueryService(query, service)
	default:
		return &Request{Kind: Decline, Query: query}
	}
}

// parseTMS parses /tms/1.0.0/{tileset}@{grid}/{z}/{x}/{y}.{format} style
// paths into a GET_TILE request.
func parseTMS(segments []string, query url.Values, service string) *Request {
	// Drop a leading version segment ("1.0.0") if present.
	if len(segments) > 0 && strings.Contains(segments[0], ".") && !strings.Contains(segments[0], "@") {
		segments = segments[1:]
	}
	if len(segments) < 4 {
		return &Request{Kind: Decline, Query: query, Service: service}
	}
	layerGrid := segments[0]
	tileset, grid := layerGrid, ""
	if i := strings.Index(layerGrid, "@"); i >= 0 {
		tileset, grid = layerGrid[:i], layerGrid[i+1:]
	}
	z, errZ := strconv.Atoi(segments[1])
	x, errX := strconv.Atoi(segments[2])
	yPart := segments[3]
	format := ""
	if i := strings.LastIndex(yPart, "."); i >= 0 {
		format = yPart[i+1:]
		yPart = yPart[:i]
	}
	y, errY := strconv.Atoi(yPart)
	if errZ != nil || errX != nil || errY != nil {
		return &Request{Kind: Decline, Query: query, Service: service}
	}
	return &Request{
		Kind:    GetTile,
		Service: service,
		Query:   query,
		Tile: &tile.Tile{
			Tileset: tileset,
			Grid:    grid,
			Z:       z,
			X:       x,
			Y:       y,
			MIME:    mimeForFormat(format),
		},
	}
}

// parseWMTS handles both RESTful WMTS paths and the KVP form (delegated
// to parseQueryService when no path segments remain).
func parseWMTS(segments []string, query url.Values, service string) *Request {
	if len(segments) == 0 {
		return parseQueryService(query, service)
	}
	if len(segments) > 0 && segments[len(segments)-1] == "WMTSCapabilities.xml" {
		return &Request{Kind: GetCapabilities, Service: service, Query: query}
	}
	// RESTful tile path: {tileset}/{style}/{matrixset}/{z}/{x}/{y}.{fmt}
	if len(segments) < 6 {
		return &Request{Kind: Decline, Query: query, Service: service}
	}
	tileset := segments[0]
	grid := segments[2]
	z, errZ := strconv.Atoi(segments[3])
	x, errX := strconv.Atoi(segments[4])
	yPart := segments[5]
	format := ""
	if i := strings.LastIndex(yPart, "."); i >= 0 {
		format = yPart[i+1:]
		yPart = yPart[:i]
	}
	y, errY := strconv.Atoi(yPart)
	if errZ != nil || errX != nil || errY != nil {
		return &Request{Kind: Decline, Query: query, Service: service}
	}
	return &Request{
		Kind:    GetTile,
		Service: service,
		Query:   query,
		Tile: &tile.Tile{
			Tileset: tileset,
			Grid:    grid,
			Z:       z,
			X:       x,
			Y:       y,
			MIME:    mimeForFormat(format),
		},
	}
}

// parseQueryService handles KVP-style services (WMS, KML, VE, demo,
// mapguide) where REQUEST= selects the operation.
func parseQueryService(query url.Values, service string) *Request {
	req := strings.ToUpper(query.Get("REQUEST"))
	switch req {
	case "GETCAPABILITIES":
		return &Request{Kind: GetCapabilities, Service: service, Query: query}
	case "GETFEATUREINFO":
		return &Request{Kind: GetFeatureInfo, Service: service, Query: query}
	case "GETMAP", "":
		return &Request{Kind: GetMap, Service: service, Query: query}
	default:
		return &Request{Kind: Decline, Service: service, Query: query}
	}
}

func mimeForFormat(format string) string {
	switch strings.ToLower(format) {
	case "png", "":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
