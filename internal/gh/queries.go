package gh

import (
	"context"
	"fmt"
	"time"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/machinebox/graphql"
)

// thumbsUp is the reaction the feed lets users give.
const thumbsUp = "THUMBS_UP"

type threadConnection struct {
	PageInfo struct {
		HasNextPage bool    `json:"hasNextPage"`
		EndCursor   *string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []*threadNode `json:"nodes"`
}

type threadNode struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    *struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatarUrl"`
		URL       string `json:"url"`
	} `json:"author"`
	Reactions struct {
		TotalCount int `json:"totalCount"`
	} `json:"reactions"`
	ReactionGroups []struct {
		Content          string `json:"content"`
		ViewerHasReacted bool   `json:"viewerHasReacted"`
		Reactors         struct {
			TotalCount int `json:"totalCount"`
		} `json:"reactors"`
	} `json:"reactionGroups"`
	Comments struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
	Labels *struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category"`
}

func (n *threadNode) toDomain() domain.ThreadNode {
	node := domain.ThreadNode{
		ID:            n.ID,
		Number:        n.Number,
		Title:         n.Title,
		Body:          n.Body,
		URL:           n.URL,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		ReactionCount: n.Reactions.TotalCount,
		CommentCount:  n.Comments.TotalCount,
	}

	// Deleted accounts come back as a null author.
	if n.Author != nil {
		node.Author = &domain.Author{
			Login:     n.Author.Login,
			AvatarURL: n.Author.AvatarURL,
			URL:       n.Author.URL,
		}
	}

	for _, g := range n.ReactionGroups {
		if g.Content == thumbsUp && g.ViewerHasReacted {
			node.ViewerReacted = true
		}
		if g.Reactors.TotalCount == 0 {
			continue
		}
		node.ReactionGroups = append(node.ReactionGroups, domain.ReactionGroup{
			Content: g.Content,
			Count:   g.Reactors.TotalCount,
		})
	}

	if n.Labels != nil {
		node.Labels = make([]string, 0, len(n.Labels.Nodes))
		for _, l := range n.Labels.Nodes {
			node.Labels = append(node.Labels, l.Name)
		}
	}
	if n.Category != nil {
		node.Category = n.Category.Name
	}
	return node
}

// FetchPage runs a query built by BuildQuery and returns one feed page.
// A repository that resolves to null is reported as ErrNotFound.
func (c *Client) FetchPage(ctx context.Context, q Query) (*domain.Page, error) {
	req := graphql.NewRequest(q.Document)
	for k, v := range q.Variables {
		req.Var(k, v)
	}

	var resp struct {
		Repository *struct {
			Description string            `json:"description"`
			URL         string            `json:"url"`
			Issues      *threadConnection `json:"issues"`
			Discussions *threadConnection `json:"discussions"`
		} `json:"repository"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s page: %w", q.Kind, err)
	}

	if resp.Repository == nil {
		return nil, &Error{Kind: ErrNotFound, Message: "Repository not found"}
	}

	conn := resp.Repository.Issues
	if q.Kind == domain.DataSourceDiscussion {
		conn = resp.Repository.Discussions
	}
	if conn == nil {
		return nil, &Error{Kind: ErrGraphQL, Message: fmt.Sprintf("response has no %s connection", q.Kind)}
	}

	page := &domain.Page{
		Nodes:           make([]domain.ThreadNode, 0, len(conn.Nodes)),
		HasNextPage:     conn.PageInfo.HasNextPage,
		RepoDescription: resp.Repository.Description,
		RepoURL:         resp.Repository.URL,
	}
	if conn.PageInfo.EndCursor != nil {
		page.EndCursor = *conn.PageInfo.EndCursor
	}
	for _, n := range conn.Nodes {
		if n == nil {
			continue
		}
		page.Nodes = append(page.Nodes, n.toDomain())
	}
	return page, nil
}

// Viewer returns the login of the authenticated user.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	req := graphql.NewRequest(`
		query {
			viewer {
				login
			}
		}
	`)

	var resp struct {
		Viewer struct {
			Login string `json:"login"`
		} `json:"viewer"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("get viewer: %w", err)
	}
	return resp.Viewer.Login, nil
}

// FetchComments fetches up to limit comments of an issue or discussion,
// oldest first.
func (c *Client) FetchComments(ctx context.Context, kind domain.DataSource, ref domain.RepoRef, number, limit int) ([]domain.Comment, error) {
	if !ref.Valid() {
		return nil, configError("Repository owner and name are required")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	field := "issue"
	if kind == domain.DataSourceDiscussion {
		field = "discussion"
	}
	req := graphql.NewRequest(fmt.Sprintf(`
		query($owner: String!, $repo: String!, $number: Int!, $first: Int!) {
			repository(owner: $owner, name: $repo) {
				thread: %s(number: $number) {
					comments(first: $first) {
						nodes {
							id
							author {
								login
							}
							body
							createdAt
							updatedAt
						}
					}
				}
			}
		}
	`, field))
	req.Var("owner", ref.Owner)
	req.Var("repo", ref.Repo)
	req.Var("number", number)
	req.Var("first", limit)

	var resp struct {
		Repository *struct {
			Thread *struct {
				Comments struct {
					Nodes []struct {
						ID     string `json:"id"`
						Author *struct {
							Login string `json:"login"`
						} `json:"author"`
						Body      string    `json:"body"`
						CreatedAt time.Time `json:"createdAt"`
						UpdatedAt time.Time `json:"updatedAt"`
					} `json:"nodes"`
				} `json:"comments"`
			} `json:"thread"`
		} `json:"repository"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	if resp.Repository == nil || resp.Repository.Thread == nil {
		return nil, &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s #%d not found in %s", field, number, ref)}
	}

	nodes := resp.Repository.Thread.Comments.Nodes
	comments := make([]domain.Comment, 0, len(nodes))
	for _, node := range nodes {
		comment := domain.Comment{
			ID:        node.ID,
			Body:      node.Body,
			CreatedAt: node.CreatedAt,
			UpdatedAt: node.UpdatedAt,
		}
		if node.Author != nil {
			comment.Author = node.Author.Login
		}
		comments = append(comments, comment)
	}
	return comments, nil
}
