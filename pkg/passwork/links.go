package passwork

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

type createLinkRequest struct {
	Type       LinkType           `json:"type"`
	Expiration LinkExpirationTime `json:"expiration"`
	ItemID     string             `json:"itemId,omitempty"`
	ShortcutID string             `json:"shortcutId,omitempty"`
}

// CreateLink shares an item or a shortcut. Exactly one of itemID and
// shortcutID must be set.
func (c *Client) CreateLink(ctx context.Context, linkType LinkType, expiration LinkExpirationTime, itemID, shortcutID string) (*Link, error) {
	if _, err := ParseLinkType(string(linkType)); err != nil {
		return nil, err
	}
	if _, err := ParseLinkExpirationTime(string(expiration)); err != nil {
		return nil, err
	}

	switch {
	case itemID == "" && shortcutID == "":
		return nil, errors.New("either an item id or a shortcut id is required")
	case itemID != "" && shortcutID != "":
		return nil, errors.New("item id and shortcut id are mutually exclusive")
	case itemID != "":
		if err := validateID("item", itemID); err != nil {
			return nil, err
		}
	default:
		if err := validateID("shortcut", shortcutID); err != nil {
			return nil, err
		}
	}

	var link Link
	req := createLinkRequest{Type: linkType, Expiration: expiration, ItemID: itemID, ShortcutID: shortcutID}
	if err := c.do(ctx, http.MethodPost, "/links", req, &link); err != nil {
		return nil, errors.Wrap(err, "failed to create link")
	}
	return &link, nil
}
