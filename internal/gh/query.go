package gh

import (
	"github.com/h0rv/gwitter/internal/domain"
)

// Query is a GraphQL document plus its variables for one feed page.
type Query struct {
	Kind      domain.DataSource
	Document  string
	Variables map[string]any
}

// QueryOptions tweak the generated query.
type QueryOptions struct {
	// OnlyShowOwner restricts issues to the ones opened by the repository
	// owner. Discussions cannot be filtered by author server side.
	OnlyShowOwner bool
}

// threadFields is shared by both documents. Issues and discussions expose the
// same shape for everything the feed renders.
const threadFields = `
				id
				number
				title
				body
				url
				createdAt
				updatedAt
				author {
					login
					avatarUrl
					url
				}
				reactions {
					totalCount
				}
				reactionGroups {
					content
					viewerHasReacted
					reactors {
						totalCount
					}
				}
				comments {
					totalCount
				}
				labels(first: 10) {
					nodes {
						name
					}
				}`

const issuesDocument = `
	query($owner: String!, $repo: String!, $first: Int!, $after: String, $filterBy: IssueFilters) {
		repository(owner: $owner, name: $repo) {
			description
			url
			issues(first: $first, after: $after, filterBy: $filterBy, orderBy: {field: CREATED_AT, direction: DESC}) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {` + threadFields + `
				}
			}
		}
	}
`

const discussionsDocument = `
	query($owner: String!, $repo: String!, $first: Int!, $after: String) {
		repository(owner: $owner, name: $repo) {
			description
			url
			discussions(first: $first, after: $after, orderBy: {field: CREATED_AT, direction: DESC}) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {` + threadFields + `
					category {
						name
					}
				}
			}
		}
	}
`

// BuildQuery builds the page query for kind. An empty cursor requests the
// first page. Invalid input is reported as ErrConfig without touching the
// network.
func BuildQuery(kind domain.DataSource, owner, repo, cursor string, pageSize int, opts QueryOptions) (Query, error) {
	if owner == "" || repo == "" {
		return Query{}, configError("Repository owner and name are required")
	}
	if pageSize <= 0 {
		return Query{}, configError("page size must be positive, got %d", pageSize)
	}

	vars := map[string]any{
		"owner": owner,
		"repo":  repo,
		"first": pageSize,
		"after": nil,
	}
	if cursor != "" {
		vars["after"] = cursor
	}

	switch kind {
	case domain.DataSourceIssue, "":
		if opts.OnlyShowOwner {
			vars["filterBy"] = map[string]any{"createdBy": owner}
		} else {
			vars["filterBy"] = nil
		}
		return Query{Kind: domain.DataSourceIssue, Document: issuesDocument, Variables: vars}, nil
	case domain.DataSourceDiscussion:
		return Query{Kind: domain.DataSourceDiscussion, Document: discussionsDocument, Variables: vars}, nil
	}
	return Query{}, configError("unknown data source %q", kind)
}
