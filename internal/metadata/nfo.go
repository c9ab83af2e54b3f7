package metadata

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ──────────────────── Kodi-Compatible NFO Data Structures ────────────────────

// MovieNFO holds all metadata read from or written to a movie NFO sidecar.
// Compatible with the Kodi/Jellyfin/Emby NFO XML format. Any top-level tag
// the codec does not model is kept verbatim in Unknown and written back on
// serialization, so fields written by other tools survive edits made here.
type MovieNFO struct {
	Title         string
	OriginalTitle string
	SortTitle     string
	Year          int
	Premiered     string
	Plot          string
	Outline       string
	Tagline       string
	Runtime       int // minutes
	MPAA          string
	UserRating    float64
	TrailerURL    string

	Genres    []string
	Directors []string
	Credits   []string
	Studios   []string
	Countries []string
	Tags      []string

	Actors  []Actor
	Ratings []Rating

	// UniqueIDs maps a provider scheme ("imdb", "tmdb", ...) to its ID.
	// A uniqueid tag without a type attribute is keyed as "default".
	UniqueIDs map[string]string

	Poster string
	Fanart string

	// Unknown preserves unrecognized top-level elements in document order.
	Unknown []RawField
}

// Actor is a cast member entry. Order is -1 when the source had no
// order tag; role and thumb are optional.
type Actor struct {
	Name  string
	Role  string
	Order int
	Thumb string
}

// Rating is one named rating source.
type Rating struct {
	Source  string // e.g. "imdb", "tmdb", "default"
	Value   float64
	Votes   int
	Max     int // typically 10
	Default bool
}

// RawField is an unrecognized top-level element, captured verbatim.
type RawField struct {
	Name  string
	Attrs []xml.Attr
	Inner string // raw inner XML, byte-for-byte as parsed
}

// ParseError wraps XML decoding failures so callers can tell a malformed
// sidecar apart from I/O problems.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse NFO: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// DefaultUniqueIDKey is used for uniqueid tags without a type attribute.
const DefaultUniqueIDKey = "default"

// ──────────────────── XML Wire Structures ────────────────────

type xmlActor struct {
	Name  string `xml:"name"`
	Role  string `xml:"role,omitempty"`
	Order string `xml:"order,omitempty"`
	Thumb string `xml:"thumb,omitempty"`
}

type xmlUniqueID struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlRatings struct {
	Ratings []xmlRating `xml:"rating"`
}

type xmlRating struct {
	Name    string  `xml:"name,attr,omitempty"`
	Max     string  `xml:"max,attr,omitempty"`
	Default string  `xml:"default,attr,omitempty"`
	Value   float64 `xml:"value"`
	Votes   int     `xml:"votes,omitempty"`
}

type xmlThumb struct {
	Aspect string `xml:"aspect,attr,omitempty"`
	URL    string `xml:",chardata"`
}

type xmlFanart struct {
	Thumbs []xmlThumb `xml:"thumb"`
}

// rawElement captures an unrecognized element with its attributes and raw
// inner XML intact.
type rawElement struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Inner string     `xml:",innerxml"`
}

// ──────────────────── NFO Parser ────────────────────

// ParseMovieNFO decodes a Kodi-compatible movie NFO document. Repeatable
// tags are always normalized to lists, even when the source has exactly one
// occurrence; scalar fields absent from the source stay empty strings.
func ParseMovieNFO(data []byte) (*MovieNFO, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	root, err := findRootElement(dec)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "movie" {
		return nil, &ParseError{Err: fmt.Errorf("root element is <%s>, want <movie>", root.Name.Local)}
	}

	nfo := &MovieNFO{UniqueIDs: make(map[string]string)}
	var thumbs []xmlThumb

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			if ee, ok := tok.(xml.EndElement); ok && ee.Name.Local == "movie" {
				break
			}
			continue
		}

		if err := parseMovieElement(dec, se, nfo, &thumbs); err != nil {
			return nil, &ParseError{Err: err}
		}
	}

	nfo.Poster = selectPoster(thumbs)
	return nfo, nil
}

func parseMovieElement(dec *xml.Decoder, se xml.StartElement, nfo *MovieNFO, thumbs *[]xmlThumb) error {
	switch se.Name.Local {
	case "title":
		return decodeText(dec, &se, &nfo.Title)
	case "originaltitle":
		return decodeText(dec, &se, &nfo.OriginalTitle)
	case "sorttitle":
		return decodeText(dec, &se, &nfo.SortTitle)
	case "premiered":
		return decodeText(dec, &se, &nfo.Premiered)
	case "plot":
		return decodeText(dec, &se, &nfo.Plot)
	case "outline":
		return decodeText(dec, &se, &nfo.Outline)
	case "tagline":
		return decodeText(dec, &se, &nfo.Tagline)
	case "mpaa":
		return decodeText(dec, &se, &nfo.MPAA)
	case "trailer":
		return decodeText(dec, &se, &nfo.TrailerURL)
	case "year":
		return decodeInt(dec, &se, &nfo.Year)
	case "runtime":
		return decodeInt(dec, &se, &nfo.Runtime)
	case "userrating":
		var s string
		if err := decodeText(dec, &se, &s); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			nfo.UserRating = v
		}
		return nil
	case "genre":
		return decodeListItem(dec, &se, &nfo.Genres)
	case "director":
		return decodeListItem(dec, &se, &nfo.Directors)
	case "credits":
		return decodeListItem(dec, &se, &nfo.Credits)
	case "studio":
		return decodeListItem(dec, &se, &nfo.Studios)
	case "country":
		return decodeListItem(dec, &se, &nfo.Countries)
	case "tag":
		return decodeListItem(dec, &se, &nfo.Tags)
	case "actor":
		var a xmlActor
		if err := dec.DecodeElement(&a, &se); err != nil {
			return err
		}
		actor := Actor{Name: a.Name, Role: a.Role, Thumb: strings.TrimSpace(a.Thumb), Order: -1}
		if o, err := strconv.Atoi(strings.TrimSpace(a.Order)); err == nil {
			actor.Order = o
		}
		nfo.Actors = append(nfo.Actors, actor)
		return nil
	case "ratings":
		var r xmlRatings
		if err := dec.DecodeElement(&r, &se); err != nil {
			return err
		}
		for _, rating := range r.Ratings {
			nr := Rating{
				Source:  rating.Name,
				Value:   rating.Value,
				Votes:   rating.Votes,
				Default: strings.EqualFold(rating.Default, "true"),
			}
			if m, err := strconv.Atoi(rating.Max); err == nil {
				nr.Max = m
			} else {
				nr.Max = 10
			}
			nfo.Ratings = append(nfo.Ratings, nr)
		}
		return nil
	case "uniqueid":
		var uid xmlUniqueID
		if err := dec.DecodeElement(&uid, &se); err != nil {
			return err
		}
		key := uid.Type
		if key == "" {
			key = DefaultUniqueIDKey
		}
		nfo.UniqueIDs[key] = strings.TrimSpace(uid.Value)
		return nil
	case "thumb":
		var t xmlThumb
		if err := dec.DecodeElement(&t, &se); err != nil {
			return err
		}
		*thumbs = append(*thumbs, t)
		return nil
	case "fanart":
		var f xmlFanart
		if err := dec.DecodeElement(&f, &se); err != nil {
			return err
		}
		if nfo.Fanart == "" && len(f.Thumbs) > 0 {
			nfo.Fanart = strings.TrimSpace(f.Thumbs[0].URL)
		}
		return nil
	default:
		var raw rawElement
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return err
		}
		nfo.Unknown = append(nfo.Unknown, RawField{
			Name:  se.Name.Local,
			Attrs: raw.Attrs,
			Inner: raw.Inner,
		})
		return nil
	}
}

// selectPoster picks the thumb tagged aspect="poster", falling back to the
// first thumb when none carries an aspect.
func selectPoster(thumbs []xmlThumb) string {
	for _, t := range thumbs {
		if t.Aspect == "poster" {
			return strings.TrimSpace(t.URL)
		}
	}
	for _, t := range thumbs {
		if t.Aspect == "" {
			return strings.TrimSpace(t.URL)
		}
	}
	return ""
}

func findRootElement(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		if se, ok := tok.(xml.StartElement); ok {
			return &se, nil
		}
	}
}

func decodeText(dec *xml.Decoder, se *xml.StartElement, dst *string) error {
	var v string
	if err := dec.DecodeElement(&v, se); err != nil {
		return err
	}
	*dst = strings.TrimSpace(v)
	return nil
}

func decodeInt(dec *xml.Decoder, se *xml.StartElement, dst *int) error {
	var s string
	if err := decodeText(dec, se, &s); err != nil {
		return err
	}
	if v, err := strconv.Atoi(s); err == nil {
		*dst = v
	}
	return nil
}

func decodeListItem(dec *xml.Decoder, se *xml.StartElement, list *[]string) error {
	var v string
	if err := decodeText(dec, se, &v); err != nil {
		return err
	}
	if v != "" {
		*list = append(*list, v)
	}
	return nil
}

// ──────────────────── NFO Serializer ────────────────────

// xmlMovieOut is the wire shape for serialization. Empty optional fields
// and empty lists are omitted entirely, mirroring the "absent means empty"
// parse convention.
type xmlMovieOut struct {
	XMLName       xml.Name      `xml:"movie"`
	Title         string        `xml:"title,omitempty"`
	OriginalTitle string        `xml:"originaltitle,omitempty"`
	SortTitle     string        `xml:"sorttitle,omitempty"`
	Year          int           `xml:"year,omitempty"`
	Premiered     string        `xml:"premiered,omitempty"`
	Plot          string        `xml:"plot,omitempty"`
	Outline       string        `xml:"outline,omitempty"`
	Tagline       string        `xml:"tagline,omitempty"`
	Runtime       int           `xml:"runtime,omitempty"`
	MPAA          string        `xml:"mpaa,omitempty"`
	UserRating    string        `xml:"userrating,omitempty"`
	Genres        []string      `xml:"genre"`
	Directors     []string      `xml:"director"`
	Credits       []string      `xml:"credits"`
	Studios       []string      `xml:"studio"`
	Countries     []string      `xml:"country"`
	Tags          []string      `xml:"tag"`
	Actors        []xmlActor    `xml:"actor"`
	Ratings       *xmlRatings   `xml:"ratings,omitempty"`
	UniqueIDs     []xmlUniqueID `xml:"uniqueid"`
	Thumb         *xmlThumb     `xml:"thumb,omitempty"`
	Fanart        *xmlFanart    `xml:"fanart,omitempty"`
	Trailer       string        `xml:"trailer,omitempty"`
}

// Marshal serializes the record back to NFO XML, re-emitting preserved
// unknown fields verbatim and prefixing the UTF-8 XML declaration.
func (n *MovieNFO) Marshal() ([]byte, error) {
	out := xmlMovieOut{
		Title:         n.Title,
		OriginalTitle: n.OriginalTitle,
		SortTitle:     n.SortTitle,
		Year:          n.Year,
		Premiered:     n.Premiered,
		Plot:          n.Plot,
		Outline:       n.Outline,
		Tagline:       n.Tagline,
		Runtime:       n.Runtime,
		MPAA:          n.MPAA,
		Genres:        n.Genres,
		Directors:     n.Directors,
		Credits:       n.Credits,
		Studios:       n.Studios,
		Countries:     n.Countries,
		Tags:          n.Tags,
		Trailer:       n.TrailerURL,
	}

	if n.UserRating != 0 {
		out.UserRating = strconv.FormatFloat(n.UserRating, 'f', -1, 64)
	}

	for _, a := range n.Actors {
		xa := xmlActor{Name: a.Name, Role: a.Role, Thumb: a.Thumb}
		if a.Order >= 0 {
			xa.Order = strconv.Itoa(a.Order)
		}
		out.Actors = append(out.Actors, xa)
	}

	if len(n.Ratings) > 0 {
		ratings := &xmlRatings{}
		for _, r := range n.Ratings {
			xr := xmlRating{Name: r.Source, Value: r.Value, Votes: r.Votes}
			if r.Max > 0 {
				xr.Max = strconv.Itoa(r.Max)
			}
			if r.Default {
				xr.Default = "true"
			}
			ratings.Ratings = append(ratings.Ratings, xr)
		}
		out.Ratings = ratings
	}

	// Stable output order for the scheme→ID mapping.
	schemes := make([]string, 0, len(n.UniqueIDs))
	for scheme := range n.UniqueIDs {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	for _, scheme := range schemes {
		uid := xmlUniqueID{Type: scheme, Value: n.UniqueIDs[scheme]}
		if scheme == DefaultUniqueIDKey {
			uid.Type = ""
		}
		out.UniqueIDs = append(out.UniqueIDs, uid)
	}

	if n.Poster != "" {
		out.Thumb = &xmlThumb{Aspect: "poster", URL: n.Poster}
	}
	if n.Fanart != "" {
		out.Fanart = &xmlFanart{Thumbs: []xmlThumb{{URL: n.Fanart}}}
	}

	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal NFO: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(xml.Header)

	if len(n.Unknown) == 0 {
		b.Write(data)
		b.WriteByte('\n')
		return b.Bytes(), nil
	}

	// Splice preserved unknown elements in ahead of the closing tag.
	idx := bytes.LastIndex(data, []byte("</movie>"))
	if idx < 0 {
		return nil, fmt.Errorf("marshal NFO: missing closing element")
	}
	b.Write(data[:idx])
	for _, f := range n.Unknown {
		writeRawField(&b, f)
	}
	b.Write(data[idx:])
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeRawField(b *bytes.Buffer, f RawField) {
	b.WriteString("  <")
	b.WriteString(f.Name)
	for _, a := range f.Attrs {
		b.WriteString(" ")
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	b.WriteString(f.Inner)
	b.WriteString("</")
	b.WriteString(f.Name)
	b.WriteString(">\n")
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeAttr(v string) string {
	return attrEscaper.Replace(v)
}
