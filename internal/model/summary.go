package model

import "time"

// MentionFact is one confirmed mention joined to its article, as read back
// for summary aggregation.
type MentionFact struct {
	ArticleID   int64
	TickerID    int64
	SourceID    int64
	PublishedAt time.Time
}

// TopMention ranks one ticker by confirmed-mention count for a day.
type TopMention struct {
	Ticker int64 `json:"ticker"`
	Count  int   `json:"count"`
}

// Cluster reports source diversity for one ticker: how many distinct feed
// origins mentioned it that day.
type Cluster struct {
	Ticker       int64 `json:"ticker"`
	SourcesCount int   `json:"sources_count"`
}

// Summary is the daily mention report. Date is an ISO-8601 date string.
type Summary struct {
	Date        string       `json:"date"`
	GeneratedAt time.Time    `json:"generated_at"`
	TopMentions []TopMention `json:"top_mentions"`
	Clusters    []Cluster    `json:"clusters"`
}
