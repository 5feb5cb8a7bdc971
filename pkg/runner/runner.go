// Package runner drives one Passwork example: authenticate, run a single
// operation and report the outcome on a writer.
//
// Failures are caught in two places. An authentication failure prints
// "Error: <message>" and yields ExitAuthFailed; the operation is never
// attempted. An operation failure prints the same line but yields ExitOK.
package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ExitOK         = 0
	ExitAuthFailed = 1
)

// Client is the part of *passwork.Client the examples use.
type Client interface {
	FindVaultType(ctx context.Context, code string) (*passwork.VaultType, error)
	CreateVault(ctx context.Context, name, typeID string) (string, error)
	CreateLink(ctx context.Context, linkType passwork.LinkType, expiration passwork.LinkExpirationTime, itemID, shortcutID string) (*passwork.Link, error)
	GetSnapshot(ctx context.Context, itemID, snapshotID string) (*passwork.Snapshot, error)
	DownloadSnapshotAttachments(ctx context.Context, snapshot *passwork.Snapshot, dir string) ([]string, error)
}

// Authenticator builds a ready to use Client.
type Authenticator func(ctx context.Context) (Client, error)

// Operation performs one call on the client and returns the line to print.
type Operation func(ctx context.Context, client Client) (string, error)

// Run authenticates, runs op and writes its result or error to out.
func Run(ctx context.Context, out io.Writer, auth Authenticator, op Operation) int {
	client, err := guard(func() (Client, error) { return auth(ctx) })
	if err == nil && client == nil {
		err = errors.New("no client returned")
	}
	if err != nil {
		log.Debug().Err(err).Msg("Authentication failed")
		report(out, err)
		return ExitAuthFailed
	}

	result, err := guard(func() (string, error) { return op(ctx, client) })
	if err != nil {
		log.Debug().Err(err).Msg("Operation failed")
		report(out, err)
		return ExitOK
	}

	if _, err := fmt.Fprintln(out, result); err != nil {
		log.Error().Err(err).Msg("Failed to write result")
	}
	return ExitOK
}

// guard turns a panic in fn into an error.
func guard[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%v", r)
		}
	}()
	return fn()
}

func report(out io.Writer, err error) {
	if _, werr := fmt.Fprintf(out, "Error: %s\n", err); werr != nil {
		log.Error().Err(werr).Msg("Failed to write error")
	}
}
