package postgres

import (
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db}, mock
}

// captureArg matches any []byte argument and keeps it
type captureArg struct {
	value []byte
}

func (c *captureArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if ok {
		c.value = b
	}
	return ok
}
