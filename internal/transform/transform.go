// Package transform turns fetched thread nodes into display items.
package transform

import (
	"sort"

	"github.com/h0rv/gwitter/internal/domain"
)

// reactionOrder is the order GitHub renders reactions in.
var reactionOrder = []string{
	"THUMBS_UP",
	"THUMBS_DOWN",
	"LAUGH",
	"HOORAY",
	"CONFUSED",
	"HEART",
	"ROCKET",
	"EYES",
}

var reactionEmoji = map[string]string{
	"THUMBS_UP":   "👍",
	"THUMBS_DOWN": "👎",
	"LAUGH":       "😄",
	"HOORAY":      "🎉",
	"CONFUSED":    "😕",
	"HEART":       "❤️",
	"ROCKET":      "🚀",
	"EYES":        "👀",
}

// Emoji returns the emoji for a GraphQL reaction content, or "?" if unknown.
func Emoji(content string) string {
	if e, ok := reactionEmoji[content]; ok {
		return e
	}
	return "?"
}

// Transform maps nodes to display items in the same order, one item per node.
// An item is owned by the current user when its author login equals
// currentUser exactly; an empty login on either side never matches.
// The input is not modified.
func Transform(nodes []domain.ThreadNode, currentUser string) []domain.DisplayItem {
	items := make([]domain.DisplayItem, len(nodes))
	for i, n := range nodes {
		items[i] = toItem(n, currentUser)
	}
	return items
}

func toItem(n domain.ThreadNode, currentUser string) domain.DisplayItem {
	item := domain.DisplayItem{
		ID:            n.ID,
		Number:        n.Number,
		Title:         n.Title,
		Body:          n.Body,
		URL:           n.URL,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		Category:      n.Category,
		ReactionCount: n.ReactionCount,
		CommentCount:  n.CommentCount,
		ViewerReacted: n.ViewerReacted,
	}

	if n.Author != nil {
		item.Author = n.Author.Login
		item.AvatarURL = n.Author.AvatarURL
	}
	item.IsOwnedByCurrentUser = currentUser != "" && item.Author != "" && item.Author == currentUser

	if len(n.Labels) > 0 {
		item.Labels = append([]string(nil), n.Labels...)
	}
	if len(n.ReactionGroups) > 0 {
		item.Reactions = sortReactions(n.ReactionGroups)
	}
	return item
}

func sortReactions(groups []domain.ReactionGroup) []domain.ReactionGroup {
	out := append([]domain.ReactionGroup(nil), groups...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Content) < rank(out[j].Content)
	})
	return out
}

func rank(content string) int {
	for i, c := range reactionOrder {
		if c == content {
			return i
		}
	}
	return len(reactionOrder)
}
