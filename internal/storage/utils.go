package storage

import "github.com/pkg/errors"

// InitStore connects to Postgres and verifies the connection before the
// server starts accepting work.
func InitStore(dbConnStr string) (*PostgresStore, error) {
	store, err := NewPostgresStore(dbConnStr)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return store, nil
}
