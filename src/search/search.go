// Package search implements the in-memory fuzzy ranked search engine:
// case-insensitive matching of each term against the title (exact, prefix of
// the whole title, or substring), tags (exact tag only), and folder_path,
// notes and non-sensitive field values (substring), a common-substring fuzzy
// tier for near-miss titles, a fixed ranking order, and a small query grammar
// (quoted phrases, tag:foo, type:login, free text). Titles are not split into
// words for prefix matching.
package search

import (
	"sort"
	"strings"

	"github.com/vaultcore/vaultcore/src/credential"
)

// Rank is the match-quality tier a result falls into; lowest value sorts
// first.
type Rank int

const (
	RankExactTitle Rank = iota
	RankTitlePrefix
	RankTitleSubstring
	RankTagMatch
	RankOther
	rankNoMatch
)

// Result pairs a matched record's id with its rank, for stable sorting.
type Result struct {
	ID        string
	Rank      Rank
	UpdatedAt int64
}

// Query is a parsed search expression: an optional tag filter, an optional
// type filter, and free-text terms (each either a quoted phrase or a bare
// token).
type Query struct {
	Tag      string
	Type     string
	Terms    []string
}

// ParseQuery splits raw into tag:/type: filters and free-text terms,
// honoring double-quoted phrases as single terms.
func ParseQuery(raw string) Query {
	var q Query
	var terms []string

	var buf strings.Builder
	inQuotes := false
	flush := func() {
		if buf.Len() > 0 {
			terms = append(terms, buf.String())
			buf.Reset()
		}
	}
	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			if !inQuotes {
				flush()
			}
		case r == ' ' && !inQuotes:
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()

	for _, term := range terms {
		switch {
		case strings.HasPrefix(term, "tag:"):
			q.Tag = strings.TrimPrefix(term, "tag:")
		case strings.HasPrefix(term, "type:"):
			q.Type = strings.TrimPrefix(term, "type:")
		case term != "":
			q.Terms = append(q.Terms, term)
		}
	}
	return q
}

// Search ranks records against query, excluding sensitive field values from
// consideration entirely.
func Search(records []credential.CredentialRecord, rawQuery string) []Result {
	q := ParseQuery(rawQuery)
	results := make([]Result, 0, len(records))

	for _, rec := range records {
		if q.Tag != "" && !hasTag(rec.Tags, q.Tag) {
			continue
		}
		if q.Type != "" && !strings.EqualFold(rec.CredentialType, q.Type) {
			continue
		}
		rank := matchRank(rec, q.Terms)
		if rank == rankNoMatch {
			continue
		}
		results = append(results, Result{ID: rec.ID, Rank: rank, UpdatedAt: rec.UpdatedAt})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		if results[i].UpdatedAt != results[j].UpdatedAt {
			return results[i].UpdatedAt > results[j].UpdatedAt
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func matchRank(rec credential.CredentialRecord, terms []string) Rank {
	if len(terms) == 0 {
		return RankOther
	}

	best := rankNoMatch
	title := strings.ToLower(rec.Title)
	for _, term := range terms {
		lower := strings.ToLower(term)
		rank := rankNoMatch
		switch {
		case title == lower:
			rank = RankExactTitle
		case strings.HasPrefix(title, lower):
			rank = RankTitlePrefix
		case strings.Contains(title, lower):
			rank = RankTitleSubstring
		case hasTag(rec.Tags, term):
			rank = RankTagMatch
		case strings.Contains(strings.ToLower(rec.FolderPath), lower),
			strings.Contains(strings.ToLower(rec.Notes), lower),
			matchesNonSensitiveField(rec, lower),
			fuzzyMatch(title, lower):
			rank = RankOther
		}
		if rank != rankNoMatch && rank < best {
			best = rank
		}
	}
	return best
}

// fuzzyMatch reports whether term is a near miss for text: the two share a
// common substring at least three characters long and at least half the
// term's length, so "gmail" still surfaces "Email archive" (via "mail")
// while short or unrelated terms don't match everything. Both inputs must
// already be lower-cased.
func fuzzyMatch(text, term string) bool {
	minLen := (len(term) + 1) / 2
	if minLen < 3 {
		minLen = 3
	}
	for l := len(term); l >= minLen; l-- {
		for i := 0; i+l <= len(term); i++ {
			if strings.Contains(text, term[i:i+l]) {
				return true
			}
		}
	}
	return false
}

func matchesNonSensitiveField(rec credential.CredentialRecord, lowerTerm string) bool {
	for _, f := range rec.Fields {
		if f.Sensitive {
			continue
		}
		if strings.Contains(strings.ToLower(f.Value), lowerTerm) {
			return true
		}
	}
	return false
}
