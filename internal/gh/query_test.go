package gh

import (
	"testing"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery_Issues(t *testing.T) {
	q, err := BuildQuery(domain.DataSourceIssue, "panda8246", "tiny-blog", "", 6, QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.DataSourceIssue, q.Kind)
	assert.Contains(t, q.Document, "issues(first: $first, after: $after")
	assert.Contains(t, q.Document, "direction: DESC")
	assert.Contains(t, q.Document, "pageInfo")
	assert.Equal(t, "panda8246", q.Variables["owner"])
	assert.Equal(t, "tiny-blog", q.Variables["repo"])
	assert.Equal(t, 6, q.Variables["first"])
	assert.Nil(t, q.Variables["after"])
	assert.Nil(t, q.Variables["filterBy"])
}

func TestBuildQuery_CursorAndOwnerFilter(t *testing.T) {
	q, err := BuildQuery(domain.DataSourceIssue, "o", "r", "Y3Vy", 10, QueryOptions{OnlyShowOwner: true})
	require.NoError(t, err)

	assert.Equal(t, "Y3Vy", q.Variables["after"])
	assert.Equal(t, map[string]any{"createdBy": "o"}, q.Variables["filterBy"])
}

func TestBuildQuery_Discussions(t *testing.T) {
	q, err := BuildQuery(domain.DataSourceDiscussion, "o", "r", "", 10, QueryOptions{OnlyShowOwner: true})
	require.NoError(t, err)

	assert.Equal(t, domain.DataSourceDiscussion, q.Kind)
	assert.Contains(t, q.Document, "discussions(first: $first, after: $after")
	assert.Contains(t, q.Document, "category")
	assert.NotContains(t, q.Variables, "filterBy")
}

func TestBuildQuery_EmptyKindMeansIssues(t *testing.T) {
	q, err := BuildQuery("", "o", "r", "", 10, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceIssue, q.Kind)
}

func TestBuildQuery_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		kind     domain.DataSource
		owner    string
		repo     string
		pageSize int
	}{
		{"empty owner", domain.DataSourceIssue, "", "r", 10},
		{"empty repo", domain.DataSourceIssue, "o", "", 10},
		{"zero page size", domain.DataSourceIssue, "o", "r", 0},
		{"negative page size", domain.DataSourceDiscussion, "o", "r", -1},
		{"unknown kind", "pulls", "o", "r", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildQuery(tt.kind, tt.owner, tt.repo, "", tt.pageSize, QueryOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
			assert.False(t, IsRateLimitError(err))
		})
	}
}
