package places

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlaceMap resolves dashboard listing names to place ids. Lookups ignore
// case and whitespace runs.
type PlaceMap struct {
	byKey map[string]Place
}

type Place struct {
	Listing string `yaml:"listing"`
	PlaceID string `yaml:"placeId"`
}

type placeFile struct {
	Places []Place `yaml:"places"`
}

func normalizeListing(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// LoadPlaceMap reads a YAML mapping file. A missing path yields an empty map.
func LoadPlaceMap(path string) (PlaceMap, error) {
	if path == "" {
		return PlaceMap{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PlaceMap{}, nil
		}
		return PlaceMap{}, fmt.Errorf("read place map: %w", err)
	}
	return ParsePlaceMap(data)
}

func ParsePlaceMap(data []byte) (PlaceMap, error) {
	var f placeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return PlaceMap{}, fmt.Errorf("parse place map: %w", err)
	}
	pm := PlaceMap{byKey: make(map[string]Place, len(f.Places))}
	for i, p := range f.Places {
		p.Listing = strings.Join(strings.Fields(p.Listing), " ")
		p.PlaceID = strings.TrimSpace(p.PlaceID)
		if p.Listing == "" || p.PlaceID == "" {
			return PlaceMap{}, fmt.Errorf("place map entry %d: listing and placeId are required", i)
		}
		pm.byKey[normalizeListing(p.Listing)] = p
	}
	return pm, nil
}

func (m PlaceMap) Lookup(listing string) (Place, bool) {
	p, ok := m.byKey[normalizeListing(listing)]
	return p, ok
}

func (m PlaceMap) Len() int { return len(m.byKey) }

// All returns every mapped place ordered by listing name.
func (m PlaceMap) All() []Place {
	out := make([]Place, 0, len(m.byKey))
	for _, p := range m.byKey {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Listing < out[j].Listing })
	return out
}
