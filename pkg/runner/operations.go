package runner

import (
	"context"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
)

// ErrCompanyVaultTypeNotFound is returned when the server has no vault type
// with the "company" code.
var ErrCompanyVaultTypeNotFound = errors.New("Default 'company' vault type not found.")

// CreateVault creates a vault without a type.
func CreateVault(name string) Operation {
	return func(ctx context.Context, client Client) (string, error) {
		id, err := client.CreateVault(ctx, name, "")
		if err != nil {
			return "", err
		}
		return "Vault was created: " + id, nil
	}
}

// CreateCompanyVault looks up the company vault type and creates a vault of
// that type. Nothing is created when the type is missing.
func CreateCompanyVault(name string) Operation {
	return func(ctx context.Context, client Client) (string, error) {
		vaultType, err := client.FindVaultType(ctx, passwork.VaultTypeCompany)
		if err != nil {
			return "", err
		}
		if vaultType == nil {
			return "", ErrCompanyVaultTypeNotFound
		}

		id, err := client.CreateVault(ctx, name, vaultType.ID)
		if err != nil {
			return "", err
		}
		return "Vault was created: " + id, nil
	}
}

// CreateLink shares an item or a shortcut.
func CreateLink(linkType passwork.LinkType, expiration passwork.LinkExpirationTime, itemID, shortcutID string) Operation {
	return func(ctx context.Context, client Client) (string, error) {
		link, err := client.CreateLink(ctx, linkType, expiration, itemID, shortcutID)
		if err != nil {
			return "", err
		}
		return "Link: " + link.String(), nil
	}
}

// GetSnapshot fetches and decrypts an item snapshot. Attachments are left on
// the server.
func GetSnapshot(itemID, snapshotID string) Operation {
	return func(ctx context.Context, client Client) (string, error) {
		snapshot, err := client.GetSnapshot(ctx, itemID, snapshotID)
		if err != nil {
			return "", err
		}
		return "Decrypted item: " + snapshot.String(), nil
	}
}
