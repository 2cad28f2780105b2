// Package review scores formatted web search results against the user's
// question so the orchestration loop can fold only useful entries back into
// the conversation.
//
// Scoring is deterministic: token-overlap relevance combined with a recency
// ladder. No model call is involved.
package review

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weights and bounds of the scoring formula.
const (
	relevanceWeight = 0.7
	recencyWeight   = 0.3

	recencyFullDate  = 1.0
	recencyRelative  = 0.8
	recencySameYear  = 0.6
	recencyOtherYear = 0.2
	recencyUnknown   = 0.3

	// fallbackCount entries are recommended by score when nothing clears
	// the threshold.
	fallbackCount = 2
)

// Entry is one parsed search result.
type Entry struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Assessment is a scored entry.
type Assessment struct {
	Entry
	Relevance   float64  `json:"relevance"`
	Recency     float64  `json:"recency"`
	Score       float64  `json:"score"`
	Recommended bool     `json:"recommended"`
	Reasons     []string `json:"reasons"`
}

// Report is the outcome of reviewing one result block.
type Report struct {
	Question    string       `json:"question"`
	Assessments []Assessment `json:"assessments"`
	Recommended []Assessment `json:"recommended"`
	Summary     string       `json:"summary"`
}

// Config tunes the reviewer.
type Config struct {
	// Threshold is the minimum score for a recommendation. Default 0.4.
	Threshold float64

	// MaxRecommended caps the reformatted output. Default 10.
	MaxRecommended int

	// Now supplies the reference time for recency scoring.
	Now func() time.Time
}

// Reviewer scores search results. Safe for concurrent use.
type Reviewer struct {
	threshold float64
	maxOut    int
	now       func() time.Time
}

// New creates a reviewer, filling zero config fields with defaults.
func New(cfg Config) *Reviewer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.4
	}
	if cfg.MaxRecommended <= 0 {
		cfg.MaxRecommended = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reviewer{threshold: cfg.Threshold, maxOut: cfg.MaxRecommended, now: cfg.Now}
}

// entryPattern matches one formatted search entry. The link line is optional.
var entryPattern = regexp.MustCompile(`(?s)\[(\d+)\]\s*(.*?)\n📝\s*(.*?)(?:\n🔗\s*(.*?))?\n📍 Source:\s*(.*?)\n\n`)

// ParseResults extracts entries from a formatted search result block.
func ParseResults(formatted string) []Entry {
	matches := entryPattern.FindAllStringSubmatch(formatted, -1)
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Index:   idx,
			Title:   strings.TrimSpace(m[2]),
			Snippet: strings.TrimSpace(m[3]),
			URL:     strings.TrimSpace(m[4]),
			Source:  strings.TrimSpace(m[5]),
		})
	}
	return entries
}

// Review parses and scores a formatted result block against the question.
func (r *Reviewer) Review(question, formatted string) *Report {
	entries := ParseResults(formatted)
	now := r.now()

	assessments := make([]Assessment, 0, len(entries))
	for _, e := range entries {
		a := r.assess(question, e, now)
		assessments = append(assessments, a)
	}

	recommended := make([]Assessment, 0, len(assessments))
	for _, a := range assessments {
		if a.Recommended {
			recommended = append(recommended, a)
		}
	}

	// Nothing cleared the threshold: recommend the best few anyway so the
	// model has something to work with.
	if len(recommended) == 0 && len(assessments) > 0 {
		ranked := make([]Assessment, len(assessments))
		copy(ranked, assessments)
		sortByScore(ranked)
		n := fallbackCount
		if n > len(ranked) {
			n = len(ranked)
		}
		for i := 0; i < n; i++ {
			ranked[i].Recommended = true
			ranked[i].Reasons = append(ranked[i].Reasons, "best available match despite a low score")
			recommended = append(recommended, ranked[i])
		}
	}

	sortByScore(recommended)

	return &Report{
		Question:    question,
		Assessments: assessments,
		Recommended: recommended,
		Summary: fmt.Sprintf("Reviewed %d search results: %d recommended (threshold %.2f).",
			len(assessments), len(recommended), r.threshold),
	}
}

func (r *Reviewer) assess(question string, e Entry, now time.Time) Assessment {
	text := e.Title + " " + e.Snippet
	relevance := jaccard(tokenize(question), tokenize(text))
	recency := recencyScore(text, now)
	score := relevanceWeight*relevance + recencyWeight*recency

	a := Assessment{
		Entry:       e,
		Relevance:   relevance,
		Recency:     recency,
		Score:       score,
		Recommended: score >= r.threshold,
	}

	switch {
	case relevance >= 0.5:
		a.Reasons = append(a.Reasons, "strong keyword overlap with the question")
	case relevance >= 0.2:
		a.Reasons = append(a.Reasons, "partial keyword overlap with the question")
	default:
		a.Reasons = append(a.Reasons, "little keyword overlap with the question")
	}

	switch recency {
	case recencyFullDate:
		a.Reasons = append(a.Reasons, "mentions today's date")
	case recencyRelative:
		a.Reasons = append(a.Reasons, "mentions a relative recent time")
	case recencySameYear:
		a.Reasons = append(a.Reasons, "dated within the current year")
	case recencyOtherYear:
		a.Reasons = append(a.Reasons, "dated in another year")
	default:
		a.Reasons = append(a.Reasons, "no date information")
	}

	return a
}

func sortByScore(as []Assessment) {
	sort.SliceStable(as, func(i, j int) bool { return as[i].Score > as[j].Score })
}

// tokenPattern matches word runs including CJK characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// tokenize lowercases and splits text into tokens, dropping single runes.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) > 1 {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

// jaccard computes intersection-over-union of two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// relativePhrases signal recent content without a concrete date. Both the
// English and Chinese forms seen in mixed-language search results.
var relativePhrases = []string{
	"today", "yesterday", "just now", "this week", "this month",
	"hours ago", "minutes ago", "days ago", "recently",
	"今天", "昨天", "昨日", "最近", "刚刚", "剛剛", "本周", "本週", "本月", "小时前", "小時前", "日前",
}

var (
	westernYearPattern = regexp.MustCompile(`\b(20\d{2})\b`)
	cjkYearPattern     = regexp.MustCompile(`(\d{4})年`)
)

// recencyScore walks the recency ladder for one entry's text.
func recencyScore(text string, now time.Time) float64 {
	lower := strings.ToLower(text)

	fullDates := []string{
		now.Format("2006-01-02"),
		now.Format("2006/01/02"),
		fmt.Sprintf("%d年%d月%d日", now.Year(), int(now.Month()), now.Day()),
	}
	for _, d := range fullDates {
		if strings.Contains(text, d) {
			return recencyFullDate
		}
	}

	for _, phrase := range relativePhrases {
		if strings.Contains(lower, phrase) {
			return recencyRelative
		}
	}

	years := westernYearPattern.FindAllString(lower, -1)
	for _, m := range cjkYearPattern.FindAllStringSubmatch(text, -1) {
		years = append(years, m[1])
	}
	if len(years) > 0 {
		current := strconv.Itoa(now.Year())
		for _, y := range years {
			if y == current {
				return recencySameYear
			}
		}
		return recencyOtherYear
	}

	return recencyUnknown
}

// Select picks the entries worth keeping: recommended entries first, the
// remainder backfilled by descending score, capped at MaxRecommended. The
// returned order is also the numbering Reformat emits, so citation markers
// in the final answer resolve against it.
func (r *Reviewer) Select(report *Report) []Assessment {
	selected := make([]Assessment, 0, r.maxOut)
	seen := make(map[int]struct{})

	for _, a := range report.Recommended {
		if len(selected) >= r.maxOut {
			break
		}
		selected = append(selected, a)
		seen[a.Index] = struct{}{}
	}

	if len(selected) < r.maxOut {
		rest := make([]Assessment, 0, len(report.Assessments))
		for _, a := range report.Assessments {
			if _, ok := seen[a.Index]; !ok {
				rest = append(rest, a)
			}
		}
		sortByScore(rest)
		for _, a := range rest {
			if len(selected) >= r.maxOut {
				break
			}
			selected = append(selected, a)
		}
	}

	return selected
}

// Reformat renders the report back into the numbered block the model reads.
func (r *Reviewer) Reformat(report *Report) string {
	selected := r.Select(report)

	var b strings.Builder
	b.WriteString("🔍 Reviewed search results:\n\n")
	for i, a := range selected {
		fmt.Fprintf(&b, "[%d] %s\n📝 %s\n", i+1, a.Title, a.Snippet)
		if a.URL != "" {
			fmt.Fprintf(&b, "🔗 %s\n", a.URL)
		}
		fmt.Fprintf(&b, "📍 Source: %s\n", a.Source)
		fmt.Fprintf(&b, "💡 %s (score %.2f)\n\n", strings.Join(a.Reasons, "; "), a.Score)
	}
	b.WriteString(report.Summary)
	b.WriteString("\n")
	return b.String()
}
