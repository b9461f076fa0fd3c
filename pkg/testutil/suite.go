package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fieldscan/fieldscan-backend/pkg/database"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

var (
	// Shared across all integration tests in a package
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a migrated database backed by a real PostgreSQL.
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    s, err := testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    suite = s
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (once) the shared container and applies the schema
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	if containerErr != nil {
		return nil, containerErr
	}

	raw, err := globalContainer.Connect(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	db := database.Wrap(raw, log)
	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}

	return &IntegrationSuite{Container: globalContainer, DB: db, Logger: log}, nil
}

// Truncate empties tables between tests
func (s *IntegrationSuite) Truncate(t *testing.T, ctx context.Context, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
