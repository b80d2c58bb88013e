package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/h0rv/gwitter/internal/config"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := initPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if err := runInitForm(&cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Write(path, cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func initPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, config.DefaultFileName+".yaml"), nil
}

func runInitForm(cfg *config.Config) error {
	var (
		repo     = cfg.Request.RepoRef().String()
		source   = string(cfg.App.DataSource)
		pageSize = strconv.Itoa(cfg.Request.PageSize)
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository").
				Description("owner/repo whose threads make up the feed").
				Placeholder("panda8246/tiny-blog").
				Value(&repo).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := domain.ParseRepoRef(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Source").
				Options(
					huh.NewOption("Issues", string(domain.DataSourceIssue)),
					huh.NewOption("Discussions", string(domain.DataSourceDiscussion)),
				).
				Value(&source),
			huh.NewInput().
				Title("Page size").
				Value(&pageSize).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 || n > 100 {
						return errors.New("enter a number between 1 and 100")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OAuth app client ID").
				Description("Optional. Enables device flow login.").
				Value(&cfg.Request.ClientID),
			huh.NewInput().
				Title("Token").
				Description("Optional. Used for every request when nobody is logged in.").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Request.Token),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the repository switcher?").
				Value(&cfg.App.EnableRepoSwitcher),
			huh.NewConfirm().
				Title("Show the repository description above the feed?").
				Value(&cfg.App.EnableAbout),
			huh.NewConfirm().
				Title("Show a surprise at the end of the feed?").
				Value(&cfg.App.EnableEgg),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if repo != "" {
		ref, err := domain.ParseRepoRef(repo)
		if err != nil {
			return err
		}
		cfg.Request.Owner, cfg.Request.Repo = ref.Owner, ref.Repo
	}
	cfg.App.DataSource = domain.DataSource(source)
	cfg.Request.PageSize, _ = strconv.Atoi(pageSize)
	return nil
}
