package main

import (
	"github.com/animalet/passwork-go/pkg/runner"
	"github.com/spf13/cobra"
)

// override copies value into dst when the flag was given.
func override(cmd *cobra.Command, name string, dst *string, value string) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

func (a *app) createVaultCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-vault",
		Short: "Create a vault",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.run(cmd,
				func(p *runner.Params) { override(cmd, "name", &p.VaultName, name) },
				func(p runner.Params) runner.Operation { return runner.CreateVault(p.Vault()) })
		},
	}
	cmd.Flags().StringVar(&name, "name", runner.DefaultVaultName, "vault name")
	return cmd
}

func (a *app) createCompanyVaultCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-company-vault",
		Short: "Create a vault of the default company type",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.run(cmd,
				func(p *runner.Params) { override(cmd, "name", &p.VaultName, name) },
				func(p runner.Params) runner.Operation { return runner.CreateCompanyVault(p.Vault()) })
		},
	}
	cmd.Flags().StringVar(&name, "name", runner.DefaultVaultName, "vault name")
	return cmd
}

func (a *app) createLinkCommand() *cobra.Command {
	var itemID, shortcutID, linkType, expiration string
	cmd := &cobra.Command{
		Use:   "create-link",
		Short: "Share an item or a shortcut through a link",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.run(cmd,
				func(p *runner.Params) {
					// A target given on the command line replaces both configured targets.
					if cmd.Flags().Changed("item-id") || cmd.Flags().Changed("shortcut-id") {
						p.ItemID, p.ShortcutID = itemID, shortcutID
					}
					override(cmd, "type", &p.LinkType, linkType)
					override(cmd, "expiration", &p.Expiration, expiration)
				},
				func(p runner.Params) runner.Operation {
					lt, exp, err := p.Link()
					if err != nil {
						return failed(err)
					}
					return runner.CreateLink(lt, exp, p.ItemID, p.ShortcutID)
				})
		},
	}
	cmd.Flags().StringVar(&itemID, "item-id", "", "id of the item to share")
	cmd.Flags().StringVar(&shortcutID, "shortcut-id", "", "id of the shortcut to share")
	cmd.Flags().StringVar(&linkType, "type", "reusable", "link type: reusable or one_time")
	cmd.Flags().StringVar(&expiration, "expiration", "unlimited", "link expiration: unlimited, hour, day, week or month")
	cmd.MarkFlagsMutuallyExclusive("item-id", "shortcut-id")
	return cmd
}

func (a *app) getSnapshotCommand() *cobra.Command {
	var itemID, snapshotID string
	cmd := &cobra.Command{
		Use:   "get-snapshot",
		Short: "Fetch and decrypt an item snapshot",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.run(cmd,
				func(p *runner.Params) {
					override(cmd, "item-id", &p.ItemID, itemID)
					override(cmd, "snapshot-id", &p.SnapshotID, snapshotID)
				},
				func(p runner.Params) runner.Operation { return runner.GetSnapshot(p.ItemID, p.SnapshotID) })
		},
	}
	cmd.Flags().StringVar(&itemID, "item-id", "", "id of the item")
	cmd.Flags().StringVar(&snapshotID, "snapshot-id", "", "id of the snapshot")
	return cmd
}
