package tools

import (
	"context"

	"github.com/atelier-ai/atelier/internal/review"
)

type reviewArgs struct {
	Question string `json:"question" jsonschema:"the user question the results should answer"`
	Results  string `json:"results" jsonschema:"formatted web search results to assess"`
}

// NewReviewResultsTool exposes the search result reviewer as a callable
// tool. Search results are reviewed automatically after every search; this
// lets the model re-review a result block it already holds, for example
// against a sharper question.
func NewReviewResultsTool(reviewer *review.Reviewer) (Tool, error) {
	return New("review_search_results",
		"Score formatted web search results for relevance and recency against a question and return the recommended subset.",
		KindGeneral,
		func(_ context.Context, args reviewArgs) (string, error) {
			report := reviewer.Review(args.Question, args.Results)
			return reviewer.Reformat(report), nil
		})
}
