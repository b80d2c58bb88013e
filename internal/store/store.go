// Package store holds the in-memory state of one feed: the fetched thread
// nodes, the display items derived from them and the pagination cursor.
// Raw nodes and display items are always kept 1:1 and in the same order.
//
// A Store is not safe for concurrent use; the owning controller serializes
// access.
package store

import (
	"errors"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/transform"
)

var (
	// ErrItemNotFound indicates the requested item is not in the feed.
	ErrItemNotFound = errors.New("item not found")
	// ErrNoRollback indicates there is no optimistic update to revert.
	ErrNoRollback = errors.New("no rollback state available")
)

const thumbsUp = "THUMBS_UP"

// Store is the state of a single feed.
type Store struct {
	repo        domain.RepoRef
	viewerLogin string

	nodes []domain.ThreadNode
	items []domain.DisplayItem
	index map[string]int // node ID -> position

	// Pagination state
	cursor      string
	hasNextPage bool

	// generation changes every time the repository is reset. Responses
	// carry the generation they were requested for.
	generation uint64

	repoDescription string
	repoURL         string

	// Node state before the pending optimistic reactions, by item ID
	rollback map[string]domain.ThreadNode
}

// New creates an empty store positioned at the start of a feed.
func New() *Store {
	return &Store{
		index:       make(map[string]int),
		hasNextPage: true,
		rollback:    make(map[string]domain.ThreadNode),
	}
}

// Reset switches the store to repo: items are cleared, the cursor goes back
// to the start and a new generation begins. It returns that generation.
func (s *Store) Reset(repo domain.RepoRef) uint64 {
	s.repo = repo
	s.nodes = nil
	s.items = nil
	s.index = make(map[string]int)
	s.cursor = ""
	s.hasNextPage = true
	s.repoDescription = ""
	s.repoURL = ""
	clear(s.rollback)
	s.generation++
	return s.generation
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	return s.generation
}

// Repo returns the repository the feed belongs to.
func (s *Store) Repo() domain.RepoRef {
	return s.repo
}

// SetViewerLogin sets the current user's login and re-derives every display
// item. Raw nodes are untouched.
func (s *Store) SetViewerLogin(login string) {
	s.viewerLogin = login
	s.items = transform.Transform(s.nodes, login)
}

// ViewerLogin returns the login items are compared against.
func (s *Store) ViewerLogin() string {
	return s.viewerLogin
}

// ReplaceNodes discards the current items and stores nodes as the first page.
func (s *Store) ReplaceNodes(nodes []domain.ThreadNode) {
	s.nodes = nil
	s.items = nil
	s.index = make(map[string]int)
	clear(s.rollback)
	s.AppendNodes(nodes)
}

// AppendNodes adds a page after the existing items. Nodes already present are
// skipped so the feed never shows an item twice.
func (s *Store) AppendNodes(nodes []domain.ThreadNode) {
	fresh := make([]domain.ThreadNode, 0, len(nodes))
	for _, n := range nodes {
		if _, exists := s.index[n.ID]; exists {
			continue
		}
		s.index[n.ID] = len(s.nodes) + len(fresh)
		fresh = append(fresh, n)
	}
	s.nodes = append(s.nodes, fresh...)
	s.items = append(s.items, transform.Transform(fresh, s.viewerLogin)...)
}

// Len returns the number of items.
func (s *Store) Len() int {
	return len(s.items)
}

// Items returns a copy of the display items in feed order.
func (s *Store) Items() []domain.DisplayItem {
	result := make([]domain.DisplayItem, len(s.items))
	copy(result, s.items)
	return result
}

// Nodes returns a copy of the raw nodes in feed order.
func (s *Store) Nodes() []domain.ThreadNode {
	result := make([]domain.ThreadNode, len(s.nodes))
	copy(result, s.nodes)
	return result
}

// Item returns the display item with the given node ID.
func (s *Store) Item(id string) (domain.DisplayItem, error) {
	i, exists := s.index[id]
	if !exists {
		return domain.DisplayItem{}, ErrItemNotFound
	}
	return s.items[i], nil
}

// SetPagination updates the pagination state.
func (s *Store) SetPagination(cursor string, hasNextPage bool) {
	s.cursor = cursor
	s.hasNextPage = hasNextPage
}

// Pagination returns the current pagination state.
func (s *Store) Pagination() (cursor string, hasNextPage bool) {
	return s.cursor, s.hasNextPage
}

// SetRepoInfo records repository metadata returned with the first page.
func (s *Store) SetRepoInfo(description, url string) {
	s.repoDescription = description
	s.repoURL = url
}

// RepoInfo returns the repository description and URL.
func (s *Store) RepoInfo() (description, url string) {
	return s.repoDescription, s.repoURL
}

// ApplyReaction optimistically records that the viewer added (or removed) a
// 👍 on an item. The node is replaced by an updated copy and the previous
// node is saved for RollbackReaction.
func (s *Store) ApplyReaction(id string, reacted bool) error {
	i, exists := s.index[id]
	if !exists {
		return ErrItemNotFound
	}

	prev := s.nodes[i]
	if prev.ViewerReacted == reacted {
		return nil
	}
	if _, pending := s.rollback[id]; !pending {
		s.rollback[id] = prev
	}

	next := prev
	next.ViewerReacted = reacted
	next.ReactionGroups = adjustThumbsUp(prev.ReactionGroups, reacted)
	if reacted {
		next.ReactionCount++
	} else if next.ReactionCount > 0 {
		next.ReactionCount--
	}

	s.nodes[i] = next
	s.items[i] = transform.Transform([]domain.ThreadNode{next}, s.viewerLogin)[0]
	return nil
}

// RollbackReaction restores id to its state before the pending optimistic
// reactions. It should be called when the mutation fails on the server.
func (s *Store) RollbackReaction(id string) error {
	prev, ok := s.rollback[id]
	if !ok {
		return ErrNoRollback
	}
	delete(s.rollback, id)

	i, exists := s.index[id]
	if !exists {
		return ErrItemNotFound
	}
	s.nodes[i] = prev
	s.items[i] = transform.Transform([]domain.ThreadNode{prev}, s.viewerLogin)[0]
	return nil
}

// CommitReaction drops the rollback state of id after the server confirmed.
func (s *Store) CommitReaction(id string) {
	delete(s.rollback, id)
}

func adjustThumbsUp(groups []domain.ReactionGroup, reacted bool) []domain.ReactionGroup {
	out := make([]domain.ReactionGroup, 0, len(groups)+1)
	found := false
	for _, g := range groups {
		if g.Content == thumbsUp {
			found = true
			if reacted {
				g.Count++
			} else {
				g.Count--
			}
			if g.Count <= 0 {
				continue
			}
		}
		out = append(out, g)
	}
	if !found && reacted {
		out = append(out, domain.ReactionGroup{Content: thumbsUp, Count: 1})
	}
	return out
}
