package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goonworks/goonbot/internal/domain"
)

//go:embed presets.json
var defaults embed.FS

// presetsFile is the on-disk format: category keys mapping to activity name
// lists, plus an optional activity -> image path map.
type presetsFile struct {
	Raids   []string          `json:"raids"`
	Dungeon []string          `json:"dungeons"`
	Exotics []string          `json:"exotic_activities"`
	Images  map[string]string `json:"images"`
}

// Catalog is the static activity lookup. Built once at startup, read-only
// afterwards.
type Catalog struct {
	byName map[string]domain.Activity
	names  []string // sorted, for stable board/choice ordering
}

// Load reads activity presets from path, or the embedded defaults when path
// is empty.
func Load(path string) (*Catalog, error) {
	var raw []byte
	var err error
	if path == "" {
		raw, err = defaults.ReadFile("presets.json")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read presets: %w", err)
	}

	var pf presetsFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("catalog: parse presets: %w", err)
	}

	c := &Catalog{byName: map[string]domain.Activity{}}
	add := func(names []string, cat domain.Category) {
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			c.byName[strings.ToLower(n)] = domain.Activity{
				Name:      n,
				Category:  cat,
				ImagePath: pf.Images[n],
			}
		}
	}
	add(pf.Raids, domain.CategoryRaid)
	add(pf.Dungeon, domain.CategoryDungeon)
	add(pf.Exotics, domain.CategoryExotic)

	if len(c.byName) == 0 {
		return nil, fmt.Errorf("catalog: presets define no activities")
	}
	for _, a := range c.byName {
		c.names = append(c.names, a.Name)
	}
	sort.Slice(c.names, func(i, j int) bool {
		return strings.ToLower(c.names[i]) < strings.ToLower(c.names[j])
	})
	return c, nil
}

// Lookup is case-insensitive on the activity name.
func (c *Catalog) Lookup(name string) (domain.Activity, bool) {
	a, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Names returns all activity names in case-insensitive alphabetical order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Len() int { return len(c.byName) }
