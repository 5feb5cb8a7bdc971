package passwork

import (
	"context"
	"net/http"

	"github.com/animalet/passwork-go/internal/deepcopy"
	"github.com/pkg/errors"
)

type vaultTypeList struct {
	Items []VaultType `json:"items"`
}

// VaultTypes lists the vault types. The list is fetched once per client.
func (c *Client) VaultTypes(ctx context.Context) ([]VaultType, error) {
	c.vaultTypesMu.Lock()
	defer c.vaultTypesMu.Unlock()

	if err := c.loadVaultTypes(ctx); err != nil {
		return nil, err
	}
	return deepcopy.Slice(c.vaultTypes)
}

// FindVaultType returns a copy of the vault type with the given code, or nil
// when there is none.
func (c *Client) FindVaultType(ctx context.Context, code string) (*VaultType, error) {
	if code == "" {
		return nil, errors.New("vault type code is required")
	}

	c.vaultTypesMu.Lock()
	defer c.vaultTypesMu.Unlock()

	if err := c.loadVaultTypes(ctx); err != nil {
		return nil, err
	}
	for i := range c.vaultTypes {
		if c.vaultTypes[i].Code == code {
			return deepcopy.Copy(&c.vaultTypes[i])
		}
	}
	return nil, nil
}

// loadVaultTypes fills the cache; callers hold vaultTypesMu.
func (c *Client) loadVaultTypes(ctx context.Context) error {
	if c.vaultTypes != nil {
		return nil
	}
	var list vaultTypeList
	if err := c.do(ctx, http.MethodGet, "/vaults/types", nil, &list); err != nil {
		return errors.Wrap(err, "failed to list vault types")
	}
	if list.Items == nil {
		list.Items = []VaultType{}
	}
	c.vaultTypes = list.Items
	return nil
}

type createVaultRequest struct {
	Name         string `json:"name"`
	TypeID       string `json:"typeId,omitempty"`
	EncryptedKey string `json:"encryptedKey,omitempty"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// CreateVault creates a vault and returns its id. typeID is optional; servers
// older than 7.0.11 do not know vault types. With a master key set, a fresh
// vault key is generated and sent encrypted.
func (c *Client) CreateVault(ctx context.Context, name, typeID string) (string, error) {
	if name == "" {
		return "", errors.New("vault name is required")
	}
	if typeID != "" {
		if err := validateID("vault type", typeID); err != nil {
			return "", err
		}
	}

	req := createVaultRequest{Name: name, TypeID: typeID}
	if masterKey := c.getMasterKey(); masterKey != "" {
		vaultKey, err := newItemKey()
		if err != nil {
			return "", err
		}
		if req.EncryptedKey, err = Encrypt(vaultKey, masterKey); err != nil {
			return "", errors.Wrap(err, "failed to encrypt vault key")
		}
	}

	var resp createdResponse
	if err := c.do(ctx, http.MethodPost, "/vaults", req, &resp); err != nil {
		return "", errors.Wrapf(err, "failed to create vault %q", name)
	}
	if resp.ID == "" {
		return "", errors.New("server returned no vault id")
	}
	return resp.ID, nil
}
