// Package fixture serves the bundled review sets used when a provider is
// unconfigured or unavailable. Each set is decoded once and shared
// read-only afterwards.
package fixture

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed data/*.json
var files embed.FS

var (
	Hostaway = sync.OnceValues(func() ([]map[string]any, error) { return load("data/hostaway_reviews.json") })
	Google   = sync.OnceValues(func() ([]map[string]any, error) { return load("data/google_reviews.json") })
)

// load accepts either {result: [...]} or a bare array, like the live API.
func load(name string) ([]map[string]any, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}
	if strings.HasPrefix(strings.TrimSpace(string(b)), "[") {
		var arr []map[string]any
		if err := json.Unmarshal(b, &arr); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", name, err)
		}
		return arr, nil
	}
	var env struct {
		Result []map[string]any `json:"result"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", name, err)
	}
	return env.Result, nil
}
