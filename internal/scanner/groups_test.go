package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjwaters/cineshelf/internal/models"
)

func TestBuildGroupsMultiPart(t *testing.T) {
	files := []models.VideoFile{
		{Path: "/m/Foo-cd2.mkv", Dir: "/m", Base: "Foo", Part: 2, Size: 200},
		{Path: "/m/Foo-cd1.mkv", Dir: "/m", Base: "Foo", Part: 1, Size: 100, NFOPath: "/m/Foo.nfo"},
	}

	groups := BuildGroups(files)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "Foo", g.Base)
	require.Len(t, g.Parts, 2)
	assert.Equal(t, 1, g.Parts[0].Part)
	assert.Equal(t, 2, g.Parts[1].Part)
	assert.Equal(t, int64(300), g.TotalSize)
	assert.Equal(t, "/m/Foo.nfo", g.NFOPath)
	assert.Equal(t, "/m/Foo-cd1.mkv", g.Primary().Path)
}

func TestBuildGroupsSeparatesDirectories(t *testing.T) {
	files := []models.VideoFile{
		{Path: "/a/Foo.mkv", Dir: "/a", Base: "Foo"},
		{Path: "/b/Foo.mkv", Dir: "/b", Base: "Foo"},
	}

	groups := BuildGroups(files)
	require.Len(t, groups, 2)
	assert.Equal(t, "/a", groups[0].Dir)
	assert.Equal(t, "/b", groups[1].Dir)
}

func TestBuildGroupsNonSplitSortsFirst(t *testing.T) {
	files := []models.VideoFile{
		{Path: "/m/Foo-cd1.mkv", Dir: "/m", Base: "Foo", Part: 1},
		{Path: "/m/Foo.mkv", Dir: "/m", Base: "Foo", Part: 0},
	}

	groups := BuildGroups(files)
	require.Len(t, groups, 1)
	assert.Equal(t, 0, groups[0].Parts[0].Part)
	assert.Equal(t, "/m/Foo.mkv", groups[0].Primary().Path)
}

func TestBuildGroupsSidecarFallsBackToLaterPart(t *testing.T) {
	files := []models.VideoFile{
		{Path: "/m/Foo-cd1.mkv", Dir: "/m", Base: "Foo", Part: 1},
		{Path: "/m/Foo-cd2.mkv", Dir: "/m", Base: "Foo", Part: 2, NFOPath: "/m/movie.nfo"},
	}

	groups := BuildGroups(files)
	require.Len(t, groups, 1)
	assert.Equal(t, "/m/movie.nfo", groups[0].NFOPath)
}

func TestBuildGroupsDeterministicOrder(t *testing.T) {
	files := []models.VideoFile{
		{Path: "/z/B.mkv", Dir: "/z", Base: "B"},
		{Path: "/a/C.mkv", Dir: "/a", Base: "C"},
		{Path: "/a/A.mkv", Dir: "/a", Base: "A"},
	}

	groups := BuildGroups(files)
	require.Len(t, groups, 3)
	assert.Equal(t, "A", groups[0].Base)
	assert.Equal(t, "C", groups[1].Base)
	assert.Equal(t, "B", groups[2].Base)
}
