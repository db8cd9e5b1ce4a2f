package copyhash

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// HashComparisonResult maps catalog entry ids to the category of one candidate.
type HashComparisonResult map[string]Category

// comparisonSeparator joins serialized entries.
const comparisonSeparator = ", "

var comparisonEntryRe = regexp.MustCompile(`\[ (.*?): (identical|similar|different) \]`)

// String serializes r as "[ id1: category1 ], [ id2: category2 ]", ordered by id.
func (r HashComparisonResult) String() string {
	ids := lo.Keys(r)
	slices.Sort(ids)

	entries := make([]string, len(ids))
	for i, id := range ids {
		entries[i] = fmt.Sprintf("[ %s: %s ]", id, r[id])
	}
	return strings.Join(entries, comparisonSeparator)
}

// Count returns how many entries fall into category c.
func (r HashComparisonResult) Count(c Category) int {
	n := 0
	for _, v := range r {
		if v == c {
			n++
		}
	}
	return n
}

// ParseComparisons is the inverse of HashComparisonResult.String.
// The empty string parses to an empty result.
func ParseComparisons(text string) (HashComparisonResult, error) {
	result := HashComparisonResult{}
	if text == "" {
		return result, nil
	}

	prev := 0
	for i, loc := range comparisonEntryRe.FindAllStringSubmatchIndex(text, -1) {
		gap := text[prev:loc[0]]
		if (i == 0 && gap != "") || (i > 0 && gap != comparisonSeparator) {
			return nil, newError(ErrFormat, "unexpected %q in comparisons at offset %d", gap, prev)
		}
		result[text[loc[2]:loc[3]]] = Category(text[loc[4]:loc[5]])
		prev = loc[1]
	}
	if prev != len(text) {
		return nil, newError(ErrFormat, "unexpected %q at end of comparisons", text[prev:])
	}
	return result, nil
}
