package duplicates

import (
	"sort"
	"strings"

	"github.com/rjwaters/cineshelf/internal/models"
)

// Cluster is a set of files judged to be interchangeable copies of the same
// movie content. After Rank, Files is ordered best-first and everything
// past index 0 is a deletion candidate. Ephemeral; recomputed on demand.
type Cluster struct {
	Base  string             `json:"base"`
	Part  int                `json:"part"`
	Files []models.VideoFile `json:"files"`
}

// FindDuplicates partitions the file list into redundancy clusters.
// Files group by case-insensitive base name, then by part index, so the
// discs of a split release never cluster with each other. When a base-name
// group mixes part-indexed and non-indexed files, the non-indexed ones are
// folded into the lowest positive index cluster: a standalone file is a
// candidate duplicate of part 1 of a split release. Only clusters with
// more than one member are reported.
func FindDuplicates(files []models.VideoFile) []Cluster {
	byBase := make(map[string][]models.VideoFile)
	for _, f := range files {
		key := strings.ToLower(f.Base)
		byBase[key] = append(byBase[key], f)
	}

	bases := make([]string, 0, len(byBase))
	for base := range byBase {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	var clusters []Cluster
	for _, base := range bases {
		byPart := make(map[int][]models.VideoFile)
		for _, f := range byBase[base] {
			byPart[f.Part] = append(byPart[f.Part], f)
		}

		parts := make([]int, 0, len(byPart))
		for part := range byPart {
			parts = append(parts, part)
		}
		sort.Ints(parts)

		// Merge non-indexed files into the lowest positive part, if any.
		if len(byPart[0]) > 0 && parts[len(parts)-1] > 0 {
			lowest := parts[0]
			if lowest == 0 {
				lowest = parts[1]
			}
			byPart[lowest] = append(byPart[lowest], byPart[0]...)
			delete(byPart, 0)
			if parts[0] == 0 {
				parts = parts[1:]
			}
		}

		for _, part := range parts {
			members := byPart[part]
			if len(members) < 2 {
				continue
			}
			sort.Slice(members, func(i, j int) bool {
				return members[i].Path < members[j].Path
			})
			clusters = append(clusters, Cluster{
				Base:  byBase[base][0].Base,
				Part:  part,
				Files: members,
			})
		}
	}
	return clusters
}

// DeletionCandidates returns every non-best member of a ranked cluster.
func (c *Cluster) DeletionCandidates() []models.VideoFile {
	if len(c.Files) < 2 {
		return nil
	}
	return c.Files[1:]
}
