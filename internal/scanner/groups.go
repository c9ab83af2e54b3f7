package scanner

import (
	"sort"

	"github.com/rjwaters/cineshelf/internal/models"
)

// BuildGroups consolidates a flat file list into logical movie groups keyed
// by (directory, base name). Parts sort ascending by part index with 0
// first; the group sidecar is the first non-empty sidecar path in part
// order and the primary file is the lowest part index.
func BuildGroups(files []models.VideoFile) []models.MovieGroup {
	byKey := make(map[models.GroupKey]*models.MovieGroup)
	var order []models.GroupKey

	for _, f := range files {
		key := f.Key()
		g, ok := byKey[key]
		if !ok {
			g = &models.MovieGroup{Dir: f.Dir, Base: f.Base}
			byKey[key] = g
			order = append(order, key)
		}
		g.Parts = append(g.Parts, f)
		g.TotalSize += f.Size
	}

	groups := make([]models.MovieGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		sort.SliceStable(g.Parts, func(i, j int) bool {
			return g.Parts[i].Part < g.Parts[j].Part
		})
		for _, p := range g.Parts {
			if p.NFOPath != "" {
				g.NFOPath = p.NFOPath
				break
			}
		}
		groups = append(groups, *g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Dir != groups[j].Dir {
			return groups[i].Dir < groups[j].Dir
		}
		return groups[i].Base < groups[j].Base
	})
	return groups
}
