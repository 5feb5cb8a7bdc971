package passwork

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// GetSnapshot fetches a snapshot of an item and decrypts its secret fields.
func (c *Client) GetSnapshot(ctx context.Context, itemID, snapshotID string) (*Snapshot, error) {
	if err := validateID("item", itemID); err != nil {
		return nil, err
	}
	if err := validateID("snapshot", snapshotID); err != nil {
		return nil, err
	}

	var snapshot Snapshot
	path := "/items/" + url.PathEscape(itemID) + "/snapshots/" + url.PathEscape(snapshotID)
	if err := c.do(ctx, http.MethodGet, path, nil, &snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to get snapshot %s of item %s", snapshotID, itemID)
	}
	if snapshot.ItemID == "" {
		snapshot.ItemID = itemID
	}
	if snapshot.ID == "" {
		snapshot.ID = snapshotID
	}

	if err := c.decryptSnapshot(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) decryptSnapshot(s *Snapshot) error {
	if s.EncryptionKey == "" {
		return nil
	}
	masterKey := c.getMasterKey()
	if masterKey == "" {
		return errors.Wrapf(ErrMasterKeyRequired, "snapshot %s", s.ID)
	}

	itemKey, err := Decrypt(s.EncryptionKey, masterKey)
	if err != nil {
		return errors.Wrap(err, "failed to decrypt item key")
	}
	s.itemKey = itemKey

	if s.Password, err = decryptField(s.Password, itemKey); err != nil {
		return errors.Wrap(err, "failed to decrypt password")
	}
	for i := range s.CustomFields {
		if s.CustomFields[i].Value, err = decryptField(s.CustomFields[i].Value, itemKey); err != nil {
			return errors.Wrapf(err, "failed to decrypt custom field %q", s.CustomFields[i].Name)
		}
	}
	return nil
}

func decryptField(value, key string) (string, error) {
	if !isEncrypted(value) {
		return value, nil
	}
	return Decrypt(value, key)
}

type attachmentPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Data          string `json:"data,omitempty"`
	EncryptedData string `json:"encryptedData,omitempty"`
}

// DownloadSnapshotAttachments saves every attachment of snapshot into dir and
// returns the written paths. dir is created when missing.
func (c *Client) DownloadSnapshotAttachments(ctx context.Context, snapshot *Snapshot, dir string) ([]string, error) {
	if snapshot == nil {
		return nil, errors.New("snapshot is nil")
	}
	if dir == "" {
		return nil, errors.New("download directory is required")
	}
	if len(snapshot.Attachments) == 0 {
		return nil, nil
	}
	if snapshot.EncryptionKey != "" && snapshot.itemKey == "" {
		return nil, errors.Wrap(ErrMasterKeyRequired, "snapshot was not decrypted")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create %q", dir)
	}

	base := "/items/" + url.PathEscape(snapshot.ItemID) + "/snapshots/" + url.PathEscape(snapshot.ID) + "/attachments/"
	written := make([]string, 0, len(snapshot.Attachments))
	for _, att := range snapshot.Attachments {
		if err := validateID("attachment", att.ID); err != nil {
			return written, err
		}

		var payload attachmentPayload
		if err := c.do(ctx, http.MethodGet, base+url.PathEscape(att.ID), nil, &payload); err != nil {
			return written, errors.Wrapf(err, "failed to download attachment %q", att.Name)
		}

		content, err := attachmentContent(payload, snapshot.itemKey)
		if err != nil {
			return written, errors.Wrapf(err, "attachment %q", att.Name)
		}

		name := att.Name
		if name == "" {
			name = payload.Name
		}
		target := filepath.Join(dir, safeFileName(name, att.ID))
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return written, errors.Wrapf(err, "failed to write %q", target)
		}
		log.Debug().Str("attachment", att.ID).Str("path", target).Msg("Saved attachment")
		written = append(written, target)
	}
	return written, nil
}

func attachmentContent(p attachmentPayload, itemKey string) ([]byte, error) {
	encoded := p.Data
	if p.EncryptedData != "" {
		if itemKey == "" {
			return nil, ErrMasterKeyRequired
		}
		var err error
		if encoded, err = Decrypt(p.EncryptedData, itemKey); err != nil {
			return nil, err
		}
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "attachment content is not base64")
	}
	return content, nil
}

// safeFileName keeps only the base name so a hostile name cannot escape dir.
func safeFileName(name, fallback string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return fallback
	}
	return name
}
