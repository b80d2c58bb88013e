package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/feed"
	"github.com/h0rv/gwitter/internal/transform"
	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	var maxPages int
	var login bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a repository feed without the TUI",
		Long: `dump pages through the feed of the configured repository the same way the
TUI does and prints one line per thread. Useful to check configuration,
credentials and quota.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cfg, runtimeOptions{stderr: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if login {
				if _, err := rt.holder.Login(ctx); err != nil {
					return err
				}
			}

			controller := rt.newController(feed.WithParams(newFlagParams(cmd, nil)))
			if err := controller.Initialize(ctx); err != nil {
				return describeState(controller.State(), err)
			}

			for page := 1; page < maxPages || maxPages <= 0; page++ {
				loaded, err := controller.LoadNextPage(ctx)
				if err != nil {
					return describeState(controller.State(), err)
				}
				if !loaded {
					break
				}
			}

			state := controller.State()
			writeFeed(cmd.OutOrStdout(), state)
			rt.logger.Info("dump finished", "repo", state.Repo, "items", len(state.Items), "has_next_page", state.HasNextPage, "token_source", state.TokenSource)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "pages", 3, "Maximum number of pages to fetch (0 for all)")
	cmd.Flags().BoolVar(&login, "login", false, "Log in before fetching")
	return cmd
}

// describeState turns a failed load into the message the TUI would show.
func describeState(state feed.State, err error) error {
	switch state.Phase() {
	case feed.PhaseRateLimited:
		return errors.New("GitHub API rate limit reached; log in (--login) for 5,000 requests per hour")
	case feed.PhaseLoginRequired:
		return errors.New("login required; run with --login")
	case feed.PhaseError:
		return errors.New(state.RepoError)
	}
	return err
}

func writeFeed(w io.Writer, state feed.State) {
	if len(state.Items) == 0 {
		fmt.Fprintf(w, "No %s Found\n", state.DataSource.Noun())
		return
	}
	for _, item := range state.Items {
		fmt.Fprintln(w, formatItem(item))
	}
	if state.HasNextPage {
		fmt.Fprintln(w, "…")
	}
}

func formatItem(item domain.DisplayItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%-5d %s", item.Number, item.Title)

	author := item.Author
	if author == "" {
		author = "ghost"
	}
	fmt.Fprintf(&b, "  @%s", author)
	if item.IsOwnedByCurrentUser {
		b.WriteString(" (you)")
	}
	for _, r := range item.Reactions {
		fmt.Fprintf(&b, "  %s %d", transform.Emoji(r.Content), r.Count)
	}
	fmt.Fprintf(&b, "  💬 %d", item.CommentCount)
	return b.String()
}
