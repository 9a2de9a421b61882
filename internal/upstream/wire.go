package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Int accepts a JSON number, a numeric string or null. Anything unparsable reads as 0.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*i = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			*i = 0
			return nil
		}
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		*i = Int(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*i = Int(int(f))
		return nil
	}
	*i = 0
	return nil
}

// Text accepts a JSON string, a number (kept as its literal) or null.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = ""
			return nil
		}
		*t = Text(s)
	case b[0] == '{' || b[0] == '[':
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

type Taxon struct {
	ID   Text `json:"_id"`
	Name Text `json:"name"`
	Slug Text `json:"slug"`
}

// Modified is {"time": "..."} in most payloads and a bare timestamp string in some.
type Modified struct {
	Time Text `json:"time"`
}

func (m *Modified) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			Time Text `json:"time"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		m.Time = obj.Time
		return nil
	}
	return m.Time.UnmarshalJSON(b)
}

type RawMovie struct {
	ID             Text     `json:"_id"`
	Name           Text     `json:"name"`
	Slug           Text     `json:"slug"`
	OriginName     Text     `json:"origin_name"`
	PosterURL      Text     `json:"poster_url"`
	ThumbURL       Text     `json:"thumb_url"`
	Year           Int      `json:"year"`
	Type           Text     `json:"type"`
	Quality        Text     `json:"quality"`
	Lang           Text     `json:"lang"`
	EpisodeCurrent Text     `json:"episode_current"`
	Time           Text     `json:"time"`
	Modified       Modified `json:"modified"`
	Category       []Taxon  `json:"category"`
	Country        []Taxon  `json:"country"`

	// detail only
	Content      Text   `json:"content"`
	Status       Text   `json:"status"`
	Actor        []Text `json:"actor"`
	Director     []Text `json:"director"`
	EpisodeTotal Text   `json:"episode_total"`
	TrailerURL   Text   `json:"trailer_url"`
}

type RawEpisode struct {
	Name      Text `json:"name"`
	Slug      Text `json:"slug"`
	Filename  Text `json:"filename"`
	LinkEmbed Text `json:"link_embed"`
	LinkM3U8  Text `json:"link_m3u8"`
}

type RawServer struct {
	ServerName Text         `json:"server_name"`
	ServerData []RawEpisode `json:"server_data"`
}

type Pagination struct {
	TotalItems        Int `json:"totalItems"`
	TotalItemsPerPage Int `json:"totalItemsPerPage"`
	CurrentPage       Int `json:"currentPage"`
	TotalPages        Int `json:"totalPages"`
}

type DetailResponse struct {
	Movie    RawMovie    `json:"movie"`
	Episodes []RawServer `json:"episodes"`
}
