// Package model defines core domain types shared across the service.
package model

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Country struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Movie struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OriginName     string     `json:"origin_name"`
	Slug           string     `json:"slug"`
	Poster         string     `json:"poster"`
	Thumb          string     `json:"thumb"`
	Year           int        `json:"year"`
	Type           string     `json:"type"`
	Quality        string     `json:"quality"`
	Lang           string     `json:"lang"`
	EpisodeCurrent string     `json:"episode_current"`
	Time           string     `json:"time"`
	Modified       string     `json:"modified"`
	Categories     []Category `json:"categories"`
	Countries      []Country  `json:"countries"`
}

type Episode struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Filename  string `json:"filename"`
	LinkEmbed string `json:"link_embed"`
	LinkM3U8  string `json:"link_m3u8"`
}

// Server groups the episodes hosted by one upstream streaming server, in upstream order.
type Server struct {
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes"`
}

type MovieDetail struct {
	Movie
	Content      string   `json:"content"`
	Status       string   `json:"status"`
	Cast         []string `json:"cast"`
	Directors    []string `json:"directors"`
	EpisodeTotal string   `json:"episode_total"`
	Trailer      string   `json:"trailer"`
	Servers      []Server `json:"servers"`
}
