package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNFO = `<?xml version="1.0" encoding="UTF-8"?>
<movie>
  <title>The Thing</title>
  <originaltitle>The Thing</originaltitle>
  <year>1982</year>
  <plot>Antarctic researchers find something in the ice.</plot>
  <runtime>109</runtime>
  <mpaa>R</mpaa>
  <userrating>8.5</userrating>
  <genre>Horror</genre>
  <genre>Sci-Fi</genre>
  <director>John Carpenter</director>
  <studio>Universal</studio>
  <country>USA</country>
  <actor>
    <name>Kurt Russell</name>
    <role>MacReady</role>
    <order>0</order>
  </actor>
  <actor>
    <name>Keith David</name>
    <role>Childs</role>
  </actor>
  <ratings>
    <rating name="imdb" max="10" default="true">
      <value>8.2</value>
      <votes>450000</votes>
    </rating>
  </ratings>
  <uniqueid type="imdb">tt0084787</uniqueid>
  <uniqueid>84787</uniqueid>
  <thumb aspect="poster">https://example.org/poster.jpg</thumb>
  <fanart>
    <thumb>https://example.org/fanart.jpg</thumb>
  </fanart>
  <dateadded>2020-01-15 10:30:00</dateadded>
  <customfield source="mytool"><nested>kept as-is</nested></customfield>
</movie>`

func TestParseMovieNFO(t *testing.T) {
	nfo, err := ParseMovieNFO([]byte(sampleNFO))
	require.NoError(t, err)

	assert.Equal(t, "The Thing", nfo.Title)
	assert.Equal(t, 1982, nfo.Year)
	assert.Equal(t, 109, nfo.Runtime)
	assert.Equal(t, "R", nfo.MPAA)
	assert.Equal(t, 8.5, nfo.UserRating)
	assert.Equal(t, []string{"Horror", "Sci-Fi"}, nfo.Genres)
	assert.Equal(t, []string{"John Carpenter"}, nfo.Directors)

	require.Len(t, nfo.Actors, 2)
	assert.Equal(t, "Kurt Russell", nfo.Actors[0].Name)
	assert.Equal(t, 0, nfo.Actors[0].Order)
	assert.Equal(t, -1, nfo.Actors[1].Order, "missing order tag stays -1")

	require.Len(t, nfo.Ratings, 1)
	assert.Equal(t, "imdb", nfo.Ratings[0].Source)
	assert.Equal(t, 8.2, nfo.Ratings[0].Value)
	assert.True(t, nfo.Ratings[0].Default)

	assert.Equal(t, "tt0084787", nfo.UniqueIDs["imdb"])
	assert.Equal(t, "84787", nfo.UniqueIDs[DefaultUniqueIDKey])

	assert.Equal(t, "https://example.org/poster.jpg", nfo.Poster)
	assert.Equal(t, "https://example.org/fanart.jpg", nfo.Fanart)
}

func TestParseSingletonNormalizedToList(t *testing.T) {
	nfo, err := ParseMovieNFO([]byte(`<movie><genre>Drama</genre></movie>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Drama"}, nfo.Genres)
}

func TestParseAbsentScalarsStayEmpty(t *testing.T) {
	nfo, err := ParseMovieNFO([]byte(`<movie><title>X</title></movie>`))
	require.NoError(t, err)
	assert.Equal(t, "", nfo.Plot)
	assert.Equal(t, "", nfo.MPAA)
	assert.Equal(t, 0, nfo.Year)
	assert.Empty(t, nfo.Genres)
}

func TestParseUnknownFieldsCaptured(t *testing.T) {
	nfo, err := ParseMovieNFO([]byte(sampleNFO))
	require.NoError(t, err)

	require.Len(t, nfo.Unknown, 2)
	assert.Equal(t, "dateadded", nfo.Unknown[0].Name)
	assert.Equal(t, "2020-01-15 10:30:00", nfo.Unknown[0].Inner)
	assert.Equal(t, "customfield", nfo.Unknown[1].Name)
	assert.Equal(t, "<nested>kept as-is</nested>", nfo.Unknown[1].Inner)
	require.Len(t, nfo.Unknown[1].Attrs, 1)
	assert.Equal(t, "source", nfo.Unknown[1].Attrs[0].Name.Local)
	assert.Equal(t, "mytool", nfo.Unknown[1].Attrs[0].Value)
}

func TestUnknownFieldsSurviveRoundTrip(t *testing.T) {
	nfo, err := ParseMovieNFO([]byte(sampleNFO))
	require.NoError(t, err)

	nfo.Title = "The Thing (1982)"

	data, err := nfo.Marshal()
	require.NoError(t, err)

	again, err := ParseMovieNFO(data)
	require.NoError(t, err)
	assert.Equal(t, "The Thing (1982)", again.Title)
	assert.Equal(t, nfo.Unknown, again.Unknown)
	assert.Equal(t, nfo.Genres, again.Genres)
	assert.Equal(t, nfo.UniqueIDs, again.UniqueIDs)
	assert.Equal(t, nfo.Actors, again.Actors)
	assert.Equal(t, nfo.Poster, again.Poster)
	assert.Equal(t, nfo.Fanart, again.Fanart)
}

func TestMarshalOmitsEmptyFields(t *testing.T) {
	nfo := &MovieNFO{Title: "X"}
	data, err := nfo.Marshal()
	require.NoError(t, err)

	assert.Contains(t, string(data), "<title>X</title>")
	assert.NotContains(t, string(data), "<plot>")
	assert.NotContains(t, string(data), "<year>")
	assert.NotContains(t, string(data), "<ratings>")
}

func TestParseRejectsWrongRoot(t *testing.T) {
	_, err := ParseMovieNFO([]byte(`<tvshow><title>X</title></tvshow>`))
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := ParseMovieNFO([]byte(`<movie><title>unclosed`))
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestPosterFallsBackToUntaggedThumb(t *testing.T) {
	nfo, err := ParseMovieNFO([]byte(`<movie><thumb>https://x/a.jpg</thumb></movie>`))
	require.NoError(t, err)
	assert.Equal(t, "https://x/a.jpg", nfo.Poster)
}

func TestSaveMovieNFOBacksUpExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.nfo")

	require.NoError(t, SaveMovieNFO(path, &MovieNFO{Title: "First"}))
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, SaveMovieNFO(path, &MovieNFO{Title: "Second"}))

	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	current, err := LoadMovieNFO(path)
	require.NoError(t, err)
	assert.Equal(t, "Second", current.Title)
}
