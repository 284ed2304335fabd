package transaction

import (
	"context"
	"database/sql"

	"github.com/iceymoss/discovery-engine/pkg/db"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbgorm"
	"gorm.io/gorm"
)

// Manager owns the transaction lifecycle for multi-row mutations (entity
// merges, relationship upserts). Retries on serialization conflicts and
// commits or rolls back as a unit.
type Manager struct {
	db *gorm.DB
}

func NewManager() *Manager {
	return &Manager{
		db: db.GetStoreConn(),
	}
}

// NewManagerWithDB is for tests and callers holding their own connection.
func NewManagerWithDB(conn *gorm.DB) *Manager {
	return &Manager{db: conn}
}

// Execute runs operation inside one transaction. The transaction handle is
// injected into the context so every repository call within joins it.
func (m *Manager) Execute(
	ctx context.Context,
	opts *sql.TxOptions,
	operation func(ctx context.Context) error,
) error {
	return crdbgorm.ExecuteTx(ctx, m.db, opts, func(tx *gorm.DB) error {
		return operation(WithTransaction(ctx, tx))
	})
}
