package passwork

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNoTokens is returned by requests made before SetTokens.
	ErrNoTokens = errors.New("access token is not set")
	// ErrInvalidID marks a malformed vault, item, shortcut, snapshot or attachment id.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrMasterKeyRequired is returned when encrypted data is met without a master key.
	ErrMasterKeyRequired = errors.New("master key is required to decrypt this data")
	// ErrDecrypt is returned when ciphertext cannot be decrypted with the master key.
	ErrDecrypt = errors.New("failed to decrypt data")
)

// Well-known API error codes.
const (
	CodeAccessTokenExpired  = "accessTokenExpired"
	CodeRefreshTokenExpired = "refreshTokenExpired"
	CodeNotFound            = "notFound"
)

// Error is a failed Passwork API call.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("passwork API error %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("passwork API error %d: %s", e.Status, msg)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Code == CodeNotFound)
}

// decodeError builds an *Error from a non-2xx response body. Bodies that are not
// the JSON error document are kept as the message.
func decodeError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || (apiErr.Code == "" && apiErr.Message == "") {
		apiErr.Code = ""
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
