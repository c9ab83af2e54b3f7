package duplicates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rjwaters/cineshelf/internal/models"
)

// RankStrategy names a "best copy to keep" heuristic.
type RankStrategy string

const (
	PreferHigherResolution RankStrategy = "prefer-higher-resolution"
	PreferNewerCodec       RankStrategy = "prefer-newer-codec"
	PreferLargerFile       RankStrategy = "prefer-larger-file"
)

// ParseStrategy validates a strategy name, defaulting to
// prefer-higher-resolution for the empty string.
func ParseStrategy(name string) (RankStrategy, error) {
	switch RankStrategy(name) {
	case "":
		return PreferHigherResolution, nil
	case PreferHigherResolution, PreferNewerCodec, PreferLargerFile:
		return RankStrategy(name), nil
	default:
		return "", fmt.Errorf("unknown ranking strategy %q", name)
	}
}

// codecRank orders video codecs newest-first; codecs not listed rank at
// the h264 baseline.
var codecRank = map[string]int{
	"av1":        5,
	"hevc":       4,
	"h265":       4,
	"vp9":        3,
	"h264":       2,
	"avc":        2,
	"vc1":        1,
	"mpeg4":      1,
	"msmpeg4v3":  1,
	"mpeg2video": 0,
	"mpeg1video": 0,
}

const baselineCodecRank = 2

// Rank orders the cluster's files best-first under the given strategy,
// using probe data looked up by path. Files without probe data fall back
// to byte-size comparison. The order is deterministic for a given input.
func Rank(c *Cluster, strategy RankStrategy, probes map[string]models.ProbeInfo) {
	sort.SliceStable(c.Files, func(i, j int) bool {
		return better(c.Files[i], c.Files[j], strategy, probes)
	})
}

// better reports whether a is the copy to prefer over b.
func better(a, b models.VideoFile, strategy RankStrategy, probes map[string]models.ProbeInfo) bool {
	pa, pb := probes[a.Path], probes[b.Path]

	switch strategy {
	case PreferNewerCodec:
		ra, rb := rankCodec(pa.VideoCodec), rankCodec(pb.VideoCodec)
		if ra != rb {
			return ra > rb
		}
		return betterResolution(a, b, pa, pb)
	case PreferLargerFile:
		return a.Size > b.Size
	default: // PreferHigherResolution
		return betterResolution(a, b, pa, pb)
	}
}

// betterResolution compares pixel area, breaking ties on byte size.
func betterResolution(a, b models.VideoFile, pa, pb models.ProbeInfo) bool {
	areaA := pa.Width * pa.Height
	areaB := pb.Width * pb.Height
	if areaA != areaB {
		return areaA > areaB
	}
	return a.Size > b.Size
}

func rankCodec(codec string) int {
	if r, ok := codecRank[strings.ToLower(codec)]; ok {
		return r
	}
	return baselineCodecRank
}
