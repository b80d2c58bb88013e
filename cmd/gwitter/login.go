package main

import (
	"fmt"

	"github.com/h0rv/gwitter/internal/auth"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newLoginCmd() *cobra.Command {
	var openBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check that gwitter can log in to GitHub",
		Long: `login runs the configured login method and prints the GitHub user.

With request.client_id set this is the OAuth device flow: a code is printed
and github.com/login/device is opened. Otherwise the gh CLI token or
GITHUB_TOKEN is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rt, err := newRuntime(cfg, runtimeOptions{
				stderr: true,
				prompt: func(da *oauth2.DeviceAuthResponse) {
					fmt.Fprintf(out, "Open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
					if openBrowser {
						_ = browser.OpenURL(da.VerificationURI)
					}
				},
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.holder.Login(cmd.Context())
			if err != nil {
				return err
			}

			_, source := auth.EffectiveToken(session.Token, cfg.Request.OwnerToken())
			fmt.Fprintf(out, "Logged in as %s (requests use the %s token)\n", session.UserLogin, source)
			if rl := rt.factory.RateLimit(); rl.Known() {
				fmt.Fprintf(out, "API quota: %d of %d remaining\n", rl.Remaining, rl.Limit)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&openBrowser, "browser", true, "Open the verification page in the browser")
	return cmd
}
