package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// AliasConfig is the per-alias XML configuration surface of spec §6:
// cache, locker, tileset, and service declarations. encoding/xml is used
// directly (stdlib) rather than a third-party XML library: spec §1
// explicitly places "a particular XML dialect" out of scope, so there is
// no dialect this is grounded against in the retrieved corpus — see
// DESIGN.md.
type AliasConfig struct {
	XMLName  xml.Name        `xml:"mapcache"`
	Grids    []GridXML       `xml:"grid"`
	Caches   []CacheXML      `xml:"cache"`
	Lockers  []LockerXML     `xml:"locker"`
	Tilesets []TilesetXML    `xml:"tileset"`
	Services []ServiceXML    `xml:"service"`
}

// GridXML is a top-level <grid> declaration: the named registry entries
// that <tileset><grid> children reference by name. Projection transforms
// are a named external collaborator per spec §1 (the cell-extent formula
// is tile.Grid.CellExtent); this struct only carries the
// declared name, resolutions, tile pixel size, and origin a tileset needs
// to resolve its GridLinks against.
type GridXML struct {
	Name        string `xml:"name,attr"`
	SRS         string `xml:"srs"`
	TileWidth   int    `xml:"tile_size>width"`
	TileHeight  int    `xml:"tile_size>height"`
	OriginX     float64 `xml:"origin_x"`
	OriginY     float64 `xml:"origin_y"`
	Resolutions string `xml:"resolutions"`
}

// CacheXML is a single <cache> declaration. Type-specific children are
// all optional and interpreted by the backend named in Type.
type CacheXML struct {
	Type string `xml:"type,attr"`
	Name string `xml:"name,attr"`

	Server       []string `xml:"server"`
	Host         string   `xml:"host"`
	Port         int      `xml:"port"`
	Bucket       string   `xml:"bucket"`
	Key          string   `xml:"key"`
	BucketType   string   `xml:"bucket_type"`
	Path         string   `xml:"path"`
	DetectBlank  bool     `xml:"detect_blank"`

	// multitier children
	Members []MultiTierMemberXML `xml:"cache"`
}

// MultiTierMemberXML is a <cache write="true|false">name</cache> child of
// a type="multitier" cache, per spec §6.
type MultiTierMemberXML struct {
	Write bool   `xml:"write,attr"`
	Name  string `xml:",chardata"`
}

// LockerXML is a <locker> declaration.
type LockerXML struct {
	Type    string `xml:"type,attr"`
	Retry   float64 `xml:"retry"`
	Timeout float64 `xml:"timeout"`

	// disk
	Directory string `xml:"directory"`

	// memcache
	Server    []string `xml:"server"`
	KeyPrefix string   `xml:"key_prefix"`

	// fallback
	Lockers []LockerXML `xml:"locker"`
}

// TilesetXML is a <tileset> declaration.
type TilesetXML struct {
	Name           string        `xml:"name,attr"`
	Source         string        `xml:"source"`
	Grids          []GridLinkXML `xml:"grid"`
	Format         string        `xml:"format"`
	MetaTileWidth  int           `xml:"metatile_width"`
	MetaTileHeight int           `xml:"metatile_height"`
	MetaBuffer     int           `xml:"metabuffer"`
	Watermark      string        `xml:"watermark"`
	ExpiresSeconds int           `xml:"expires"`
	ReadOnly       bool          `xml:"read-only,attr"`
}

// GridLinkXML is a <grid> child of a tileset.
type GridLinkXML struct {
	Name     string  `xml:",chardata"`
	MinZoom  int     `xml:"minzoom,attr"`
	MaxZoom  int     `xml:"maxzoom,attr"`
	Restrict string  `xml:"restrict,attr"`
}

// ServiceXML is a <service> declaration.
type ServiceXML struct {
	Type    string `xml:"type,attr"`
	Enabled bool   `xml:"enabled,attr"`
}

// LoadAliasConfig reads and validates a per-alias XML configuration file.
func LoadAliasConfig(path string) (*AliasConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ac AliasConfig
	if err := xml.NewDecoder(f).Decode(&ac); err != nil {
		return nil, fmt.Errorf("alias config: parse %s: %w", path, err)
	}
	if err := ac.Validate(); err != nil {
		return nil, err
	}
	return &ac, nil
}

// Validate enforces spec §4.E's multi-tier configuration rules: child
// caches declared before the multi-tier cache that references them, at
// most one write="true" member, and a non-empty member list.
func (ac *AliasConfig) Validate() error {
	declared := make(map[string]bool)
	for _, c := range ac.Caches {
		if c.Type == "multitier" {
			if len(c.Members) == 0 {
				return fmt.Errorf("alias config: multitier cache %q has no member caches", c.Name)
			}
			writers := 0
			for _, m := range c.Members {
				if !declared[m.Name] {
					return fmt.Errorf("alias config: multitier cache %q references undeclared member %q", c.Name, m.Name)
				}
				if m.Write {
					writers++
				}
			}
			if writers > 1 {
				return fmt.Errorf("alias config: multitier cache %q has more than one write tier", c.Name)
			}
		}
		declared[c.Name] = true
	}
	return nil
}
