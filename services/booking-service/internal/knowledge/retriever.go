// Package knowledge answers free-form questions from a business's published
// FAQ snippets.
package knowledge

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type Snippet struct {
	Title string
	Body  string
	Score float64
}

type Retriever interface {
	Retrieve(ctx context.Context, businessID, query string, k int) ([]Snippet, error)
}

// Static ranks an in-memory FAQ list by shared words with the query.
type Static struct {
	byBusiness map[string][]model.FAQ
}

func NewStatic() *Static {
	return &Static{byBusiness: map[string][]model.FAQ{}}
}

// Set replaces the snippets for a business. Not safe for use concurrently
// with Retrieve; populate before serving.
func (s *Static) Set(businessID string, entries []model.FAQ) {
	s.byBusiness[businessID] = append([]model.FAQ(nil), entries...)
}

func (s *Static) Retrieve(_ context.Context, businessID, query string, k int) ([]Snippet, error) {
	if k <= 0 {
		return nil, nil
	}
	want := terms(query)
	if len(want) == 0 {
		return nil, nil
	}

	var out []Snippet
	for _, e := range s.byBusiness[businessID] {
		doc := terms(e.Title + " " + e.Body)
		score := 0.0
		for t := range want {
			if doc[t] {
				score++
			}
		}
		if score > 0 {
			out = append(out, Snippet{Title: e.Title, Body: e.Body, Score: score / float64(len(want))})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true, "do": true, "does": true,
	"for": true, "how": true, "i": true, "in": true, "is": true, "it": true, "me": true,
	"my": true, "of": true, "on": true, "or": true, "the": true, "to": true, "what": true,
	"when": true, "where": true, "you": true, "your": true, "we": true, "with": true,
}

func terms(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range nonWord.Split(strings.ToLower(s), -1) {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		out[strings.TrimSuffix(w, "s")] = true
	}
	return out
}
