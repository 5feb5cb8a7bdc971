package passwork

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// VaultTypeCompany is the code of the default company vault type.
const VaultTypeCompany = "company"

// VaultType classifies a vault at creation time.
type VaultType struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// LinkType controls how many times a shared link can be opened.
type LinkType string

const (
	LinkTypeReusable LinkType = "reusable"
	LinkTypeOneTime  LinkType = "one_time"
)

// ParseLinkType accepts the API value or a case-insensitive name like "OneTime".
func ParseLinkType(s string) (LinkType, error) {
	switch normalizeEnum(s) {
	case "reusable":
		return LinkTypeReusable, nil
	case "onetime", "disposable":
		return LinkTypeOneTime, nil
	}
	return "", errors.Errorf("unknown link type %q (want reusable or one_time)", s)
}

// LinkExpirationTime is how long a shared link stays valid.
type LinkExpirationTime string

const (
	LinkExpirationUnlimited LinkExpirationTime = "unlimited"
	LinkExpirationHour      LinkExpirationTime = "hour"
	LinkExpirationDay       LinkExpirationTime = "day"
	LinkExpirationWeek      LinkExpirationTime = "week"
	LinkExpirationMonth     LinkExpirationTime = "month"
)

// ParseLinkExpirationTime accepts the API value, case-insensitively.
func ParseLinkExpirationTime(s string) (LinkExpirationTime, error) {
	switch e := LinkExpirationTime(normalizeEnum(s)); e {
	case LinkExpirationUnlimited, LinkExpirationHour, LinkExpirationDay, LinkExpirationWeek, LinkExpirationMonth:
		return e, nil
	}
	return "", errors.Errorf("unknown link expiration %q (want unlimited, hour, day, week or month)", s)
}

func normalizeEnum(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Link is a shared reference to an item or a shortcut.
type Link struct {
	ID         string             `json:"id"`
	URL        string             `json:"url"`
	Type       LinkType           `json:"type"`
	Expiration LinkExpirationTime `json:"expiration"`
	ItemID     string             `json:"itemId,omitempty"`
	ShortcutID string             `json:"shortcutId,omitempty"`
	ExpiredAt  *time.Time         `json:"expiredAt,omitempty"`
}

func (l Link) String() string {
	return compactJSON(l)
}

// CustomField is an additional item field.
type CustomField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Attachment describes a file attached to an item snapshot.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}

// Snapshot is a point-in-time copy of an item. Values returned by GetSnapshot
// are already decrypted.
type Snapshot struct {
	ID           string        `json:"id"`
	ItemID       string        `json:"itemId"`
	VaultID      string        `json:"vaultId,omitempty"`
	Name         string        `json:"name"`
	Login        string        `json:"login,omitempty"`
	Password     string        `json:"password,omitempty"`
	URL          string        `json:"url,omitempty"`
	Description  string        `json:"description,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	CustomFields []CustomField `json:"customs,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`

	// EncryptionKey is the item key encrypted with the master key; empty when
	// the vault does not use client-side encryption.
	EncryptionKey string `json:"encryptionKey,omitempty"`
	itemKey       string
}

// String renders the snapshot as compact JSON without the encrypted item key.
func (s Snapshot) String() string {
	s.EncryptionKey = ""
	return compactJSON(s)
}

func compactJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return "<unprintable: " + err.Error() + ">"
	}
	return string(out)
}
