package runner

import (
	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
)

// DefaultVaultName is used by the vault examples when no name is given.
const DefaultVaultName = "Go Vault"

// Params holds the per-example inputs, read from the "examples"
// configuration section and overridden by command flags.
type Params struct {
	VaultName  string `yaml:"vault_name,omitempty"`
	ItemID     string `yaml:"item_id,omitempty"`
	ShortcutID string `yaml:"shortcut_id,omitempty"`
	SnapshotID string `yaml:"snapshot_id,omitempty"`
	LinkType   string `yaml:"link_type,omitempty"`
	Expiration string `yaml:"expiration,omitempty"`
}

// Validate checks the section shape only. Link type and expiration are
// parsed by Link so that a bad value is an operation error wherever it comes
// from.
func (p Params) Validate() error {
	if p.ItemID != "" && p.ShortcutID != "" {
		return errors.New("item_id and shortcut_id are mutually exclusive")
	}
	return nil
}

// Vault returns VaultName or DefaultVaultName.
func (p Params) Vault() string {
	if p.VaultName == "" {
		return DefaultVaultName
	}
	return p.VaultName
}

// Link returns the parsed link type and expiration, defaulting to a
// reusable link that never expires.
func (p Params) Link() (passwork.LinkType, passwork.LinkExpirationTime, error) {
	linkType, expiration := passwork.LinkTypeReusable, passwork.LinkExpirationUnlimited
	var err error
	if p.LinkType != "" {
		if linkType, err = passwork.ParseLinkType(p.LinkType); err != nil {
			return "", "", err
		}
	}
	if p.Expiration != "" {
		if expiration, err = passwork.ParseLinkExpirationTime(p.Expiration); err != nil {
			return "", "", err
		}
	}
	return linkType, expiration, nil
}
