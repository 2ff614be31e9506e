package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/mailstore"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain a Gmail refresh token for an account",
	Long: "Prints an authorization URL, reads the code from stdin and prints the refresh token. " +
		"Client credentials come from GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET.",
	RunE: func(cmd *cobra.Command, args []string) error {
		redirect, _ := cmd.Flags().GetString("redirect-url")
		acc := config.AccountConfig{
			ClientID:     os.Getenv("GMAIL_CLIENT_ID"),
			ClientSecret: os.Getenv("GMAIL_CLIENT_SECRET"),
		}
		if acc.ClientID == "" || acc.ClientSecret == "" {
			return fmt.Errorf("please set GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET environment variables")
		}

		oauthConfig := mailstore.OAuthConfig(acc, redirect)
		out := cmd.OutOrStdout()

		authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Fprintf(out, "Go to the following link in your browser: %v\n", authURL)
		fmt.Fprintln(out, "\nAfter authorization, you'll be redirected to a URL. Copy the 'code' parameter from that URL.")

		var authCode string
		fmt.Fprint(out, "\nEnter the authorization code: ")
		if _, err := fmt.Fscan(cmd.InOrStdin(), &authCode); err != nil {
			return fmt.Errorf("failed to read authorization code: %w", err)
		}

		tok, err := oauthConfig.Exchange(cmd.Context(), authCode)
		if err != nil {
			return fmt.Errorf("unable to retrieve token from web: %w", err)
		}

		fmt.Fprintf(out, "\nRefresh Token: %s\n", tok.RefreshToken)
		fmt.Fprintln(out, "\nAdd the refresh token to the account's refresh_token in config.yaml.")
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("redirect-url", "http://localhost:8080/callback", "OAuth2 redirect URL")
	rootCmd.AddCommand(tokenCmd)
}
