package tui

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/reels-cli/reels/media"
	"github.com/samber/lo"
)

const maxMatches = 8

// rankItems orders the items a jump query could mean. An exact id comes first, then fuzzy
// matches against the playlist URLs, closest first.
func rankItems(query string, items []media.Item) []media.Item {
	query = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), "#"))
	if query == "" {
		return nil
	}

	var matches []media.Item
	exact, hasExact := lo.Find(items, func(item media.Item) bool {
		return item.ID == query
	})
	if hasExact {
		matches = append(matches, exact)
	}

	urls := lo.Map(items, func(item media.Item, _ int) string {
		return item.URL
	})
	ranks := fuzzy.RankFindFold(query, urls)
	sort.Stable(ranks)

	for _, rank := range ranks {
		item := items[rank.OriginalIndex]
		if hasExact && item.ID == exact.ID {
			continue
		}
		matches = append(matches, item)
	}

	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches
}
