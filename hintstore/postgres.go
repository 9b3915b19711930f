package hintstore

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

func NewPostgres(db *sql.DB, logger logrus.FieldLogger, options ...PostgresOption) *Postgres {
	p := &Postgres{
		db:     db,
		logger: logger,
	}

	for _, o := range options {
		o(p)
	}

	return p
}

type PostgresOption func(p *Postgres)

// WithDecrypt installs a credential decryption callback. Stored usernames and
// passwords pass through it before they're returned in a Hint.
func WithDecrypt(fn DecryptFn) PostgresOption {
	return func(p *Postgres) {
		p.decrypt = fn
	}
}

// Postgres reads hints from the relational schema described in schema.sql,
// through the connection_view join of domains, servers and credentials.
type Postgres struct {
	db      *sql.DB
	logger  logrus.FieldLogger
	decrypt DecryptFn
}

func (p *Postgres) Lookup(ctx context.Context, domain string) (Hint, bool, error) {
	stmt, err := p.db.PrepareContext(ctx, `
		SELECT
			domain,
			server,
			username,
			password,
			is_ssl,
			port
		FROM
			connection_view
		WHERE
			domain = $1
	`)

	if err != nil {
		return Hint{}, false, err
	}

	defer deferClose(stmt, p.logger)

	var row connectionRow
	err = stmt.QueryRowContext(ctx, domain).Scan(&row.Domain, &row.Server, &row.Username, &row.Password, &row.IsSSL, &row.Port)

	if err == sql.ErrNoRows {
		return Hint{}, false, nil
	}

	if err != nil {
		return Hint{}, false, err
	}

	hint, err := p.rowToHint(row)
	if err != nil {
		return Hint{}, false, err
	}

	return hint, true, nil
}

func (p *Postgres) rowToHint(row connectionRow) (Hint, error) {
	hint := Hint{
		Domain: row.Domain,
		Server: row.Server,
		Port:   uint16(row.Port),
		TLS:    row.IsSSL > 0,
	}

	if hint.Port == 0 {
		hint.Port = 25
	}

	var err error
	if row.Username.Valid {
		hint.Username = row.Username.String
		if p.decrypt != nil {
			hint.Username, err = p.decrypt(row.Username.String)
			if err != nil {
				return Hint{}, err
			}
		}
	}

	if row.Password.Valid {
		hint.Password = row.Password.String
		if p.decrypt != nil {
			hint.Password, err = p.decrypt(row.Password.String)
			if err != nil {
				return Hint{}, err
			}
		}
	}

	return hint, nil
}

type connectionRow struct {
	Domain   string         `sql:"domain"`
	Server   string         `sql:"server"`
	Username sql.NullString `sql:"username"`
	Password sql.NullString `sql:"password"`
	IsSSL    int64          `sql:"is_ssl"`
	Port     int64          `sql:"port"`
}

func deferClose(toClose interface{ Close() error }, log logrus.FieldLogger) {
	if toClose == nil {
		return
	}

	if err := toClose.Close(); err != nil && log != nil {
		log.WithError(err).Error("Failed to close handle")
	}
}
