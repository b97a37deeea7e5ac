// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/storage/gormstore"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

var credentialsUsername string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage registered passkey credentials",
	Long: `Administrative operations against the credential store.
Credential IDs are printed as base64url and as Postgres BYTEA literals
so they can be pasted into SQL tooling directly.`,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's registered credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, user, err := openStoreForUser()
		if err != nil {
			return err
		}

		ctx := context.Background()
		creds, err := store.Credentials.GetByUser(ctx, user.UserHandle())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID (base64url)\tID (bytea)\tLABEL\tSIGN COUNT\tCREATED\tLAST USED")
		for _, cred := range creds {
			lastUsed := "never"
			if !cred.LastUsedAt.IsZero() {
				lastUsed = cred.LastUsedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				encoding.EncodeBase64URL(cred.ID),
				encoding.EncodeBytea(cred.ID),
				cred.Label,
				cred.SignCount,
				cred.CreatedAt.Format(time.RFC3339),
				lastUsed)
		}
		return w.Flush()
	},
}

var credentialsRenameLabel string

var credentialsRenameCmd = &cobra.Command{
	Use:   "rename <credential-id>",
	Short: "Rename a credential (ID as base64url)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, user, err := openStoreForUser()
		if err != nil {
			return err
		}
		if credentialsRenameLabel == "" {
			return fmt.Errorf("--label is required")
		}

		id, err := encoding.DecodeBase64URL(args[0])
		if err != nil {
			return fmt.Errorf("invalid credential ID: %w", err)
		}

		if err := store.Credentials.UpdateLabel(context.Background(), id, user.UserHandle(), credentialsRenameLabel); err != nil {
			return err
		}
		fmt.Printf("Renamed credential %s to %q\n", args[0], credentialsRenameLabel)
		return nil
	},
}

var credentialsRevokeCmd = &cobra.Command{
	Use:   "revoke <credential-id>",
	Short: "Revoke (delete) a credential (ID as base64url)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, user, err := openStoreForUser()
		if err != nil {
			return err
		}

		id, err := encoding.DecodeBase64URL(args[0])
		if err != nil {
			return fmt.Errorf("invalid credential ID: %w", err)
		}

		if err := store.Credentials.Delete(context.Background(), id, user.UserHandle()); err != nil {
			return err
		}
		fmt.Printf("Revoked credential %s\n", args[0])
		return nil
	},
}

// openStoreForUser connects to the configured Postgres store and resolves
// the --username flag. The memory driver holds nothing between processes,
// so credential administration requires postgres.
func openStoreForUser() (*gormstore.Store, webauthn.User, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Driver != "postgres" {
		return nil, nil, fmt.Errorf("credentials commands require the postgres storage driver")
	}
	if credentialsUsername == "" {
		return nil, nil, fmt.Errorf("--username is required")
	}

	store, err := gormstore.Open(cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}

	user, err := store.Users.GetByUsername(context.Background(), credentialsUsername)
	if err != nil {
		return nil, nil, err
	}
	return store, user, nil
}

func init() {
	credentialsCmd.PersistentFlags().StringVarP(&credentialsUsername, "username", "u", "",
		"username owning the credentials")
	credentialsRenameCmd.Flags().StringVarP(&credentialsRenameLabel, "label", "l", "",
		"new credential label")

	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsRenameCmd)
	credentialsCmd.AddCommand(credentialsRevokeCmd)
}
