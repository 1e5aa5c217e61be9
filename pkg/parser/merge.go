package parser

import (
	"fmt"
	"sort"
)

// MergeSources scans every document and merges entries by id: attributes for
// the same object union across documents (a topology file and a geography
// file both contribute to the same id) and the object appears exactly once.
// The result is ordered by id for determinism; entry order carries no
// meaning since references resolve by id at the storage layer.
func MergeSources(paths []string) ([]*RawEntry, error) {
	merged := map[string]*RawEntry{}
	for _, path := range paths {
		err := ScanFile(path, func(entry *RawEntry) error {
			have, ok := merged[entry.ID]
			if !ok {
				merged[entry.ID] = entry
				return nil
			}
			if have.Type == "" {
				have.Type = entry.Type
			}
			for k, v := range entry.Attrs {
				if _, exists := have.Attrs[k]; !exists {
					have.Attrs[k] = v
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
	}
	entries := make([]*RawEntry, 0, len(merged))
	for _, entry := range merged {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}
