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

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trickster-io/mapcache/internal/config"
	"github.com/trickster-io/mapcache/internal/dispatch"
	"github.com/trickster-io/mapcache/internal/lock"
	"github.com/trickster-io/mapcache/internal/log"
	"github.com/trickster-io/mapcache/internal/metrics"
	"github.com/trickster-io/mapcache/internal/pipeline"
	"github.com/trickster-io/mapcache/internal/runtime"
	"github.com/trickster-io/mapcache/internal/tracing"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mapcache [serve|seed|clean] -config <host.toml>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve(os.Args[2:])
	case "seed":
		seed(os.Args[2:])
	case "clean":
		clean(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(1)
	}
}

func loadHost(args []string) *config.HostConfig {
	path := "mapcache.toml"
	for i, a := range args {
		if a == "-config" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	hc, err := config.LoadHostConfig(path)
	if err != nil {
		log.Error("failed to load host configuration", log.Pairs{"path": path, "err": err.Error()})
		os.Exit(1)
	}
	log.Configure(hc.LogFile, hc.LogLevel)
	return hc
}

func serve(args []string) {
	hc := loadHost(args)
	metrics.MustRegister()

	flush, err := tracing.SetTracer(tracing.Stdout, "")
	if err != nil {
		log.Warn("tracing disabled", log.Pairs{"err": err.Error()})
	} else {
		defer flush()
	}

	aliases := make([]*dispatch.Alias, 0, len(hc.Aliases))
	for _, ae := range hc.Aliases {
		alias, err := buildAlias(ae)
		if err != nil {
			log.Error("failed to build alias", log.Pairs{"endpoint": ae.Endpoint, "err": err.Error()})
			os.Exit(1)
		}
		aliases = append(aliases, alias)
	}

	mux := http.NewServeMux()
	mux.Handle("/", dispatch.NewHandler(aliases))
	mux.HandleFunc("/mapcache/ping", pingHandler)
	mux.HandleFunc("/mapcache/config", configHandler(hc))
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("mapcache starting", log.Pairs{"version": runtime.ApplicationVersion, "aliases": len(aliases)})
	if err := http.ListenAndServe(":8080", mux); err != nil {
		log.Error("server exited", log.Pairs{"err": err.Error()})
		os.Exit(1)
	}
}

func buildAlias(ae config.AliasEntry) (*dispatch.Alias, error) {
	caches, err := config.BuildCaches(ae.Alias)
	if err != nil {
		return nil, err
	}
	grids, err := config.BuildGrids(ae.Alias)
	if err != nil {
		return nil, err
	}
	// Projection math remains a named external collaborator (spec §1);
	// the only geometry in the repository is tile.Grid.CellExtent.
	// BuildGrids only resolves the declared
	// name/resolutions/tile-size registry a tileset's <grid> children
	// are matched against.
	tilesets, err := config.BuildTilesets(ae.Alias, grids)
	if err != nil {
		return nil, err
	}

	var lockerInst lock.Locker = &lock.DiskLocker{Dir: os.TempDir()}
	retryInterval, timeout := lock.DefaultRetryInterval, lock.DefaultTimeout
	if len(ae.Alias.Lockers) > 0 {
		lockerInst, retryInterval, timeout, err = config.BuildLocker(ae.Alias.Lockers[0])
		if err != nil {
			return nil, err
		}
	}

	pipelines := make(map[string]*pipeline.Pipeline, len(tilesets))
	for name, ts := range tilesets {
		c, ok := caches[name]
		if !ok && len(ae.Alias.Caches) > 0 {
			// Fall back to the alias's first declared cache when a
			// tileset doesn't name its own (single-cache aliases).
			c = caches[ae.Alias.Caches[0].Name]
		}
		// Renderer and Compositor are intentionally left unset here: the
		// metatile renderer and GET_MAP compositor are named external
		// collaborators (spec §1) supplied by the deployment, not this
		// package. A nil Compositor makes serveMap fall back to
		// forwarding GET_MAP requests to the tileset's upstream source.
		pipelines[name] = &pipeline.Pipeline{
			Cache:         c,
			Locker:        lockerInst,
			RetryInterval: retryInterval,
			Timeout:       timeout,
		}
		_ = ts
	}

	return &dispatch.Alias{
		Endpoint:  ae.Endpoint,
		Tilesets:  tilesets,
		Pipelines: pipelines,
	}, nil
}

func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func configHandler(hc *config.HostConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, hc.Copy().String())
	}
}
