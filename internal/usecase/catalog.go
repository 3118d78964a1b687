package usecase

import "strings"

// indexCatalog is an insertion-ordered set of document index names.
type indexCatalog struct {
	names []string
}

// Refresh keeps surviving names in place, drops names the server no longer
// reports and appends new ones in server order.
func (c *indexCatalog) Refresh(latest []string) {
	incoming := make(map[string]struct{}, len(latest))
	for _, name := range latest {
		if name = strings.TrimSpace(name); name != "" {
			incoming[name] = struct{}{}
		}
	}

	kept := make([]string, 0, len(incoming))
	seen := make(map[string]struct{}, len(incoming))
	for _, name := range c.names {
		if _, ok := incoming[name]; ok {
			kept = append(kept, name)
			seen[name] = struct{}{}
		}
	}
	for _, name := range latest {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		kept = append(kept, name)
		seen[name] = struct{}{}
	}
	c.names = kept
}

func (c *indexCatalog) Contains(name string) bool {
	for _, existing := range c.names {
		if existing == name {
			return true
		}
	}
	return false
}

func (c *indexCatalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
