// Command warden-admin is the operator CLI for key lifecycle tasks:
// inspecting, rotating and pruning signing keys directly against the
// configured store, without going through the HTTP surface.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/repository"
	"github.com/wardenauth/warden/internal/infrastructure/crypto"
	"github.com/wardenauth/warden/internal/infrastructure/persistence/fs"
	"github.com/wardenauth/warden/internal/infrastructure/persistence/gormstore"
	redisstore "github.com/wardenauth/warden/internal/infrastructure/persistence/redis"
	"github.com/wardenauth/warden/pkg/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "warden-admin",
		Short:        "Operator tooling for the warden signing key store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(keysListCmd(), keysRotateCmd(), keysDeleteCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List signing keys in the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := store.List(ctx)
			if err != nil {
				return err
			}
			sort.Slice(records, func(i, j int) bool {
				return records[i].CreatedAt.After(records[j].CreatedAt)
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY ID\tCREATED\tACTIVE\tRETIRED")
			for _, rec := range records {
				retired := "-"
				if rec.RetiredAt != nil {
					retired = rec.RetiredAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n",
					rec.KeyID, rec.CreatedAt.Format(time.RFC3339), rec.IsActive, retired)
			}
			return w.Flush()
		},
	}
}

func keysRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Generate and activate a new signing key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			keys := crypto.NewKeyManager(cfg.Keys, cfg.Profile, store, logger.NewNoopLogger(), nil)
			if err := keys.Initialize(ctx); err != nil {
				return err
			}
			defer keys.Close()

			keyID, err := keys.Rotate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rotated, new active key:", keyID)
			return nil
		},
	}
}

func keysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete a signing key record from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := store.List(ctx)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if rec.KeyID == args[0] && rec.IsActive {
					return fmt.Errorf("refusing to delete the active key %s, rotate first", args[0])
				}
			}

			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func openStore(ctx context.Context) (repository.KeyStore, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	noop := func() {}
	switch cfg.Keys.Store {
	case "fs":
		store, err := fs.NewKeyStore(cfg.Keys.Dir)
		return store, noop, err
	case "gorm":
		store, err := gormstore.Open(cfg.Database)
		return store, noop, err
	case "redis":
		store, err := redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown key store %q", cfg.Keys.Store)
	}
}
