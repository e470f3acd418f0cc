package core

// groups.go holds the group directory: a point-in-time snapshot of all
// known groups, loaded once per operation from the group store. Reads from
// the snapshot can go stale if another session mutates groups concurrently;
// that is accepted, not guarded against.

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GroupDirectory is an id<->name snapshot of the group store.
type GroupDirectory struct {
	byID        map[int]string
	byLowerName map[string]int
	groups      []Group
}

// LoadGroupDirectory reads all groups from the store. Name lookup is
// case-insensitive; when two groups share a name, the first one listed
// wins.
func LoadGroupDirectory(ctx context.Context, store GroupStore) (*GroupDirectory, error) {
	groups, err := store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load group directory: %w", err)
	}

	dir := &GroupDirectory{
		byID:        make(map[int]string, len(groups)),
		byLowerName: make(map[string]int, len(groups)),
		groups:      groups,
	}
	for _, g := range groups {
		if _, exists := dir.byID[g.ID]; !exists {
			dir.byID[g.ID] = g.Name
		}
		lower := strings.ToLower(g.Name)
		if _, exists := dir.byLowerName[lower]; !exists {
			dir.byLowerName[lower] = g.ID
		}
	}
	return dir, nil
}

// ResolveToken resolves a group token to an id. A token of digits is a
// literal id and must exist in the directory; anything else is a
// case-insensitive name lookup. Unresolvable tokens are reported via the
// second return, never as an error.
func (d *GroupDirectory) ResolveToken(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}

	if isDigits(token) {
		id, err := strconv.Atoi(token)
		if err != nil {
			return 0, false
		}
		_, known := d.byID[id]
		return id, known
	}

	id, ok := d.byLowerName[strings.ToLower(token)]
	return id, ok
}

// Contains reports whether the directory knows the given id.
func (d *GroupDirectory) Contains(id int) bool {
	_, ok := d.byID[id]
	return ok
}

// Name returns the display name for an id.
func (d *GroupDirectory) Name(id int) (string, bool) {
	name, ok := d.byID[id]
	return name, ok
}

// Names returns display names for the given ids, skipping unknown ones.
func (d *GroupDirectory) Names(ids []int) map[int]string {
	result := make(map[int]string, len(ids))
	for _, id := range ids {
		if name, ok := d.byID[id]; ok {
			result[id] = name
		}
	}
	return result
}

// Options returns all groups sorted by name, case-insensitively, for
// review dropdowns.
func (d *GroupDirectory) Options() []Group {
	options := make([]Group, len(d.groups))
	copy(options, d.groups)
	sort.SliceStable(options, func(i, j int) bool {
		return strings.ToLower(options[i].Name) < strings.ToLower(options[j].Name)
	})
	return options
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
