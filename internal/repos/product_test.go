package repos

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
)

func newMockProductRepo(t *testing.T) (ProductRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return NewProductRepo(db, log), mock
}

func TestUpdateCachedFieldsDoesNotTouchUpdatedAt(t *testing.T) {
	repo, mock := newMockProductRepo(t)
	id := uuid.New()

	// The statement must set only the cache column. An updated_at stamp here
	// would make cache writes indistinguishable from product edits and
	// fabricate sync conflicts for jobs already in flight.
	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE "product" SET "cached_carbon"=\$1 WHERE id = \$2$`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateCachedFields(context.Background(), nil, id, map[string]interface{}{
		"cached_carbon": datatypes.JSON([]byte(`{"value":2.6}`)),
	})
	if err != nil {
		t.Fatalf("UpdateCachedFields: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateCachedFieldsIgnoresNonCacheColumns(t *testing.T) {
	repo, mock := newMockProductRepo(t)

	// No expectations registered: a write to anything but the cache columns
	// must be dropped before it reaches the database.
	err := repo.UpdateCachedFields(context.Background(), nil, uuid.New(), map[string]interface{}{
		"name":       "renamed",
		"updated_at": "2026-01-01",
	})
	if err != nil {
		t.Fatalf("UpdateCachedFields: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database write: %v", err)
	}
}
