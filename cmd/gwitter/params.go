package main

import (
	"sync"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/spf13/cobra"
)

// flagParams exposes --owner/--repo to the feed controller and reports
// repository changes back, which the TUI shows in the terminal title.
type flagParams struct {
	mu       sync.Mutex
	ref      domain.RepoRef
	explicit bool
	onUpdate func(domain.RepoRef)
}

func newFlagParams(cmd *cobra.Command, onUpdate func(domain.RepoRef)) *flagParams {
	p := &flagParams{onUpdate: onUpdate}
	flags := cmd.Flags()
	if flags.Changed("owner") && flags.Changed("repo") {
		owner, _ := flags.GetString("owner")
		repo, _ := flags.GetString("repo")
		p.ref = domain.RepoRef{Owner: owner, Repo: repo}
		p.explicit = true
	}
	return p
}

// RepoFromParams returns the repository given on the command line.
func (p *flagParams) RepoFromParams() (domain.RepoRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref, p.explicit && p.ref.Valid()
}

// UpdateParams records the repository now on screen.
func (p *flagParams) UpdateParams(ref domain.RepoRef) {
	p.mu.Lock()
	p.ref = ref
	p.explicit = true
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(ref)
	}
}
