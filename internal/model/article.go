package model

import "time"

// Source is an immutable reference entity describing a feed origin.
type Source struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RawArticle is an already-fetched article record handed to the pipeline by
// the external fetcher. No network I/O happens inside the core.
type RawArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	SourceID    int64     `json:"source_id"`
}

// Article is a persisted, append-only news article. Hash is the content
// fingerprint over (title, url) and is unique across all articles.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	SourceID    int64     `json:"source_id"`
	Hash        string    `json:"hash"`
}

// Text returns the title and body joined for matching. Generators operate on
// this combined view so headline-only mentions are not missed.
func (a Article) Text() string {
	if a.Body == "" {
		return a.Title
	}
	return a.Title + "\n" + a.Body
}
