package gh

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"
)

// AddReaction adds a 👍 from the viewer to an issue or discussion.
func (c *Client) AddReaction(ctx context.Context, subjectID string) error {
	return c.toggleReaction(ctx, "addReaction", subjectID)
}

// RemoveReaction removes the viewer's 👍 from an issue or discussion.
func (c *Client) RemoveReaction(ctx context.Context, subjectID string) error {
	return c.toggleReaction(ctx, "removeReaction", subjectID)
}

func (c *Client) toggleReaction(ctx context.Context, mutation, subjectID string) error {
	if !c.authenticated {
		return &Error{Kind: ErrUnauthorized, Message: "Login required to react"}
	}
	if subjectID == "" {
		return configError("subject id is required")
	}

	req := graphql.NewRequest(fmt.Sprintf(`
		mutation($subjectId: ID!, $content: ReactionContent!) {
			result: %s(input: {subjectId: $subjectId, content: $content}) {
				reaction {
					content
				}
			}
		}
	`, mutation))
	req.Var("subjectId", subjectID)
	req.Var("content", thumbsUp)

	var resp struct {
		Result struct {
			Reaction struct {
				Content string `json:"content"`
			} `json:"reaction"`
		} `json:"result"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to %s: %w", mutation, err)
	}
	return nil
}
