package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/danielolaszy/tether/internal/cache"
	"github.com/danielolaszy/tether/internal/config"
	"github.com/danielolaszy/tether/internal/credentials"
	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
	"github.com/spf13/cobra"
)

// userCmd groups the stored-account subcommands. Stored accounts take
// precedence over GITHUB_TOKEN, so several identities can share a machine.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage stored GitHub accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Store an account token",
	Long: `Store a GitHub account and its token. The first stored account becomes
the active one; later accounts are selected with 'tether user default'.

The token is read from --token, or from GITHUB_TOKEN when the flag is
omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		token, err := cmd.Flags().GetString("token")
		if err != nil {
			return err
		}
		if token == "" {
			token = cfg.GitHub.Token
		}
		if token == "" {
			return fmt.Errorf("no token given: pass --token or set GITHUB_TOKEN")
		}

		creds := credentials.NewManager(cfg.Storage.DataDir)
		if err := creds.Add(credentials.Account{Username: args[0], Token: token}); err != nil {
			return fmt.Errorf("failed to store account: %v", err)
		}

		logging.Info("account stored",
			"username", args[0],
			"token", logging.MaskSensitive(token))
		fmt.Fprintf(cmd.OutOrStdout(), "stored account %s\n", args[0])
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		creds := credentials.NewManager(cfg.Storage.DataDir)
		accounts, err := creds.List()
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no accounts stored")
			return nil
		}

		active := creds.ActiveUsername()
		for _, acct := range accounts {
			marker := " "
			if acct.Username == active {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, acct.Username)
		}
		return nil
	},
}

var userDefaultCmd = &cobra.Command{
	Use:   "default <username>",
	Short: "Make a stored account the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		creds := credentials.NewManager(cfg.Storage.DataDir)
		if err := creds.SetActive(args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "active account is now %s\n", args[0])
		return nil
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Delete a stored account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		creds := credentials.NewManager(cfg.Storage.DataDir)
		acct, err := creds.Get(args[0])
		if err != nil {
			return err
		}
		if err := creds.Remove(args[0]); err != nil {
			return err
		}

		dropCachedListings(cmd, cfg, models.Identity{
			Username:    acct.Username,
			TokenDigest: credentials.TokenDigest(acct.Token),
		})

		fmt.Fprintf(cmd.OutOrStdout(), "removed account %s\n", args[0])
		return nil
	},
}

// dropCachedListings clears an identity's cached listings. Removal already
// happened, so cache trouble is only logged.
func dropCachedListings(cmd *cobra.Command, cfg *config.Config, identity models.Identity) {
	listings, err := cache.New(filepath.Join(cfg.Storage.DataDir, "cache.db"), cfg.Storage.CacheTTL)
	if err != nil {
		logging.Warn("failed to open listing cache", "error", err)
		return
	}
	defer listings.Close()

	if err := listings.InvalidateIdentity(cmd.Context(), identity); err != nil {
		logging.Warn("failed to invalidate cached listings",
			"username", identity.Username, "error", err)
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDefaultCmd)
	userCmd.AddCommand(userRemoveCmd)

	userAddCmd.Flags().String("token", "", "personal access token for the account")
}
