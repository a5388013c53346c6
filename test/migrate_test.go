package test

import (
	"context"

	"github.com/2beens/catalogsvc/internal/db"
)

func (s *IntegrationTestSuite) TestMigrate_Idempotent() {
	ctx := context.Background()

	// server startup already migrated the db
	s.Require().NoError(db.Migrate(ctx, s.pgPool))

	var counterRows int
	s.Require().NoError(s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_counter WHERE name = 'catalog_entry'`).Scan(&counterRows))
	s.Equal(1, counterRows)

	var appliedVersion int64
	s.Require().NoError(s.DB.QueryRowContext(ctx, `SELECT MAX(version_id) FROM goose_db_version WHERE is_applied`).Scan(&appliedVersion))
	s.Equal(int64(2), appliedVersion)
}
