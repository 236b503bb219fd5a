package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/app"
	"github.com/abdulachik/socialpilot/internal/db"
	"github.com/abdulachik/socialpilot/internal/platform"
)

var (
	accountPlatform     string
	accountUser         string
	accountToken        string
	accountRefreshToken string
	accountExpiresIn    time.Duration
	accountPlatformUser string
	accountUsername     string
	accountVerify       bool
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected accounts",
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Connect an account",
	Long: `Store an account's tokens. With --verify (the default) the profile is
fetched first, which both checks the token and fills in the platform user
id LinkedIn and Bluesky need for publishing.

Examples:
  socialpilot accounts add --platform twitter --token $TOKEN --refresh-token $REFRESH --expires-in 2h
  socialpilot accounts add --platform linkedin --token $TOKEN --platform-user-id abc123 --verify=false`,
	RunE: runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected accounts",
	RunE:  runAccountsList,
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Disconnect an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

func init() {
	f := accountsAddCmd.Flags()
	f.StringVar(&accountPlatform, "platform", "", "Platform of the account")
	f.StringVar(&accountUser, "user", "cli", "Owning user id")
	f.StringVar(&accountToken, "token", "", "Access token")
	f.StringVar(&accountRefreshToken, "refresh-token", "", "Refresh token")
	f.DurationVar(&accountExpiresIn, "expires-in", 0, "Access token lifetime")
	f.StringVar(&accountPlatformUser, "platform-user-id", "", "Platform user id")
	f.StringVar(&accountUsername, "username", "", "Username")
	f.BoolVar(&accountVerify, "verify", true, "Fetch the profile before saving")
	_ = accountsAddCmd.MarkFlagRequired("platform")
	_ = accountsAddCmd.MarkFlagRequired("token")

	accountsCmd.AddCommand(accountsAddCmd, accountsListCmd, accountsRemoveCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !platform.IsSupported(accountPlatform) {
		return &platform.UnsupportedPlatformError{Platform: accountPlatform}
	}

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if accountVerify {
		opts := app.ClientOptions(a.Config)(platform.Platform(accountPlatform))
		adapter, err := platform.CreateClient(accountPlatform, accountToken, opts...)
		if err != nil {
			return err
		}
		profile, err := adapter.GetProfile(ctx)
		if err != nil {
			return fmt.Errorf("verify account: %w", err)
		}
		if accountPlatformUser == "" {
			accountPlatformUser = profile.PlatformUserID
		}
		if accountUsername == "" {
			accountUsername = profile.Username
		}
	}

	now := time.Now().UTC()
	params := db.CreateAccountParams{
		ID:             uuid.NewString(),
		UserID:         accountUser,
		Platform:       accountPlatform,
		PlatformUserID: nullable(accountPlatformUser),
		Username:       nullable(accountUsername),
		AccessToken:    accountToken,
		RefreshToken:   nullable(accountRefreshToken),
		CreatedAt:      now,
	}
	if accountExpiresIn > 0 {
		params.TokenExpiresAt = sql.NullTime{Time: now.Add(accountExpiresIn), Valid: true}
	}

	account, err := a.Store.CreateAccount(ctx, params)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("Connected %s account %s\n", account.Platform, account.ID)
	if account.Username.Valid {
		fmt.Printf("  Username: %s\n", account.Username.String)
	}
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	accounts, err := a.Store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No connected accounts.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLATFORM\tUSERNAME\tUSER\tTOKEN")
	for _, acc := range accounts {
		token := "valid"
		switch {
		case acc.TokenExpired(now, 0):
			token = "expired"
		case !acc.TokenExpiresAt.Valid:
			token = "no expiry"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", acc.ID, acc.Platform, acc.Username.String, acc.UserID, token)
	}
	return w.Flush()
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Store.DeleteAccount(ctx, args[0]); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	fmt.Printf("Removed account %s\n", args[0])
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
