package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/gwitter/internal/config"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/feed"
	"github.com/h0rv/gwitter/internal/tui"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
)

var configPath string

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gwitter",
		Short: "Read a repository's issues or discussions as a feed",
		Long: `gwitter shows the issues or discussions of a GitHub repository as a
scrolling feed in the terminal.

Anonymous reading works for public repositories with a small API quota.
Log in (press l) for 5,000 requests per hour and 👍 reactions.

Authentication:
  1. Device flow: set request.client_id of a GitHub OAuth app
  2. GitHub CLI: Run 'gh auth login'
  3. Environment variable: Set GITHUB_TOKEN

Configuration is read from .gwitter.yaml in the working directory or $HOME,
GWITTER_* environment variables and the flags below.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default .gwitter.yaml in . or $HOME)")
	flags.String("owner", "", "Repository owner")
	flags.String("repo", "", "Repository name")
	flags.String("source", "", "Thread source: issue or discussion")
	flags.String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newLoginCmd(), newDumpCmd(), newInitCmd())
	return rootCmd
}

// loadConfig resolves the configuration with the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	return config.Load(config.LoadOptions{
		Path: configPath,
		Flags: map[string]*pflag.Flag{
			"request.owner":   flags.Lookup("owner"),
			"request.repo":    flags.Lookup("repo"),
			"app.data_source": flags.Lookup("source"),
			"log.level":       flags.Lookup("log-level"),
		},
	})
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The program is created after the runtime, but the device flow prompt
	// and the title updates only fire once it runs.
	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	rt, err := newRuntime(cfg, runtimeOptions{
		prompt: func(da *oauth2.DeviceAuthResponse) {
			send(tui.DeviceCodeMsg{VerificationURI: da.VerificationURI, UserCode: da.UserCode})
			_ = browser.OpenURL(da.VerificationURI)
		},
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	params := newFlagParams(cmd, func(ref domain.RepoRef) {
		send(tui.TitleMsg{Title: "gwitter · " + ref.String()})
	})

	options := []feed.Option{
		feed.WithParams(params),
		feed.WithOnChange(func() { send(tui.StateChangedMsg{}) }),
	}
	controller := rt.newController(options...)

	deps := tui.Deps{Controller: controller, Login: rt.holder}
	if rt.history != nil {
		deps.Recents = rt.history
	}
	app := tui.NewAppModel(deps, tui.Options{
		EnableAbout:        cfg.App.EnableAbout,
		EnableEgg:          cfg.App.EnableEgg,
		EnableRepoSwitcher: cfg.App.EnableRepoSwitcher,
	}, cmd.Context())

	program = tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context()))
	rt.logger.Info("starting tui", "repo", cfg.Request.RepoRef(), "data_source", cfg.App.DataSource)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("program error: %w", err)
	}
	rt.logger.Info("tui exited")
	return nil
}
