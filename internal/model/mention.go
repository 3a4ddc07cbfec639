package model

// Method identifies which detector produced a candidate signal.
type Method string

const (
	MethodSubstring Method = "substring"
	MethodFuzzy     Method = "fuzzy"
	MethodNER       Method = "ner"
	MethodSemantic  Method = "semantic"
)

// Methods lists the closed set of detectors in precedence order: when two
// weighted contributions tie, the earlier method supplies the representative
// mention.
var Methods = []Method{MethodSubstring, MethodNER, MethodFuzzy, MethodSemantic}

// MentionType classifies what kind of dictionary entry was matched.
type MentionType string

const (
	MentionTypeSymbol MentionType = "symbol"
	MentionTypeName   MentionType = "name"
	MentionTypeAlias  MentionType = "alias"
)

// CandidateSignal is one detector's raw, unmerged claim that an article
// mentions a ticker. Ephemeral: produced and consumed within one run.
type CandidateSignal struct {
	TickerID    int64
	MentionText string
	MentionType MentionType
	Method      Method
	RawScore    float64
}

// FusedResult is the per-ticker outcome of merging all contributing signals.
// MentionText and MentionType come from the signal that produced the maximum
// weighted contribution.
type FusedResult struct {
	TickerID    int64
	MentionText string
	MentionType MentionType
	Method      Method
	FusedScore  float64
}

// Mention is a persisted (article, ticker) association. At most one row
// exists per pair; the fuser merges per-method signals before persistence.
type Mention struct {
	ArticleID   int64       `json:"article_id"`
	TickerID    int64       `json:"ticker_id"`
	MentionText string      `json:"mention_text"`
	MentionType MentionType `json:"mention_type"`
	FusedScore  float64     `json:"fused_score"`
	Confirmed   bool        `json:"confirmed"`
}
