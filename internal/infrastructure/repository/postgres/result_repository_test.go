package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ResultRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ResultRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveUpsertsResult(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	result := &domain.StoredResult{
		ID:   "res-1",
		Name: "alpha search",
		Kind: domain.KindBlock,
		Records: []domain.NodeRecord{
			{ID: "b1", Kind: domain.KindBlock, Content: "alpha"},
		},
		CreatedAt: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO result_sets").
		WithArgs(result.ID, result.Name, string(result.Kind), sqlmock.AnyArg(), result.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), result); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveRejectsMissingID(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	err := repo.Save(context.Background(), &domain.StoredResult{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Save() error = %v, want invalid input", err)
	}
}

func TestGetRoundTripsRecords(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "kind", "records", "created_at"}).
		AddRow("res-1", "alpha search", "block",
			[]byte(`[{"id":"b1","kind":"block","content":"alpha"}]`), createdAt)
	mock.ExpectQuery("SELECT id, name, kind, records, created_at").
		WithArgs("res-1").
		WillReturnRows(rows)

	result, err := repo.Get(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if result.Kind != domain.KindBlock {
		t.Fatalf("Kind = %q, want block", result.Kind)
	}
	if len(result.Records) != 1 || result.Records[0].ID != "b1" {
		t.Fatalf("Records = %+v", result.Records)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMissListsAvailableIDs(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, kind, records, created_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "kind", "records", "created_at"}))
	mock.ExpectQuery("SELECT id FROM result_sets").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("res-1").AddRow("res-2"))

	_, err := repo.Get(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrResultNotFound) {
		t.Fatalf("Get() error = %v, want result not found", err)
	}
	var lookupErr *domain.ResultLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Get() error = %T, want *ResultLookupError", err)
	}
	if len(lookupErr.Available) != 2 || lookupErr.Available[0] != "res-1" {
		t.Fatalf("Available = %v, want [res-1 res-2]", lookupErr.Available)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListIDsOrdersByRecency(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id FROM result_sets ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("newest").AddRow("oldest"))

	ids, err := repo.ListIDs(context.Background())
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "newest" {
		t.Fatalf("ids = %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
