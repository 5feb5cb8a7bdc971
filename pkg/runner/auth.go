package runner

import (
	"context"

	"github.com/animalet/passwork-go/pkg/config"
	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NewAuthenticator returns an Authenticator that connects to cfg.Host with
// the configured tokens and master key. When store is not nil, a pair saved
// by an earlier run replaces the configured tokens and refreshed pairs are
// saved back.
func NewAuthenticator(cfg config.PassworkConfig, store passwork.TokenStore) Authenticator {
	return func(ctx context.Context) (Client, error) {
		opts := []passwork.Option{
			passwork.WithTimeout(cfg.EffectiveTimeout()),
			passwork.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		}
		if cfg.UserAgent != "" {
			opts = append(opts, passwork.WithUserAgent(cfg.UserAgent))
		}
		if store != nil {
			opts = append(opts, passwork.WithTokenStore(store))
		}

		client, err := passwork.NewClient(cfg.Host, opts...)
		if err != nil {
			return nil, err
		}

		accessToken, refreshToken := cfg.AccessToken, cfg.RefreshToken
		if store != nil {
			stored, err := store.Load(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "failed to load stored tokens")
			}
			if stored != nil {
				log.Debug().Msg("Using tokens from the token store")
				accessToken, refreshToken = stored.AccessToken, stored.RefreshToken
			}
		}

		if err := client.SetTokens(accessToken, refreshToken); err != nil {
			return nil, err
		}
		if cfg.MasterKey != "" {
			if err := client.SetMasterKey(cfg.MasterKey); err != nil {
				return nil, err
			}
		}
		return client, nil
	}
}
