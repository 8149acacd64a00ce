package options

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PostgresOptions holds options related to the source postgres database
type PostgresOptions struct {
	PostgresURI string

	PoolConfig *pgxpool.Config
}

// Complete configures postgres options from a URI if needed
func (o *PostgresOptions) Complete() error {
	if o.PoolConfig != nil {
		log.Debug().Msg("postgres config already set, skipping postgres option validation")
		return nil
	}
	if o.PostgresURI == "" {
		return fmt.Errorf("must provide postgres uri or dsn")
	}
	cfg, err := pgxpool.ParseConfig(o.PostgresURI)
	if err != nil {
		return err
	}
	o.PoolConfig = cfg
	return nil
}

// Connect opens a pool with the completed config
func (o *PostgresOptions) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	log.Info().EmbedObject(LoggedConnConfig{ConnConfig: o.PoolConfig.ConnConfig}).Msg("connecting to postgres")
	return pgxpool.ConnectConfig(ctx, o.PoolConfig)
}

// LoggedConnConfig wraps a pgx.ConnConfig to make it satisfy the
// zerolog.LogObjectMarshaler interface
type LoggedConnConfig struct {
	*pgx.ConnConfig
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (l LoggedConnConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("host", l.Host)
	e.Uint16("port", l.Port)
	e.Str("user", l.User)
	e.Str("database", l.Database)
}
