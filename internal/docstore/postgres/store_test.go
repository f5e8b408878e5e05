package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanplus/posture-console/internal/docstore"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(sqlx.NewDb(db, "postgres"))
	s.newID = func() string { return "doc-1" }
	return s, mock
}

func TestStore_Add_WithServerTimestamps(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb || jsonb_build_object($4::text, to_jsonb(now()), $5::text, to_jsonb(now())))`,
	)).
		WithArgs("patients", "doc-1", `{"a":1}`, "createdAt", "updatedAt").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.Add(context.Background(), "patients", map[string]any{"a": 1}, "createdAt", "updatedAt")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get(t *testing.T) {
	s, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("doc-1", []byte(`{"personal_info":{"first_name":"Anna"},"createdAt":"2026-01-01T10:00:00.5+00:00"}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM documents WHERE collection = $1 AND id = $2`)).
		WithArgs("patients", "doc-1").
		WillReturnRows(rows)

	snap, err := s.Get(context.Background(), "patients", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", snap.ID)
	assert.Equal(t, "Anna", snap.Data["personal_info"].(map[string]any)["first_name"])

	ts, ok := docstore.ParseTimestamp(snap.Data["createdAt"])
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM documents WHERE collection = $1 AND id = $2`)).
		WithArgs("patients", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "patients", "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_Query(t *testing.T) {
	s, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("v2", []byte(`{"patient_id":"p1"}`)).
		AddRow("v1", []byte(`{"patient_id":"p1"}`))
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY try_timestamptz(data->>$4) DESC NULLS LAST, data->>$4 DESC NULLS LAST LIMIT $5`,
	)).
		WithArgs("visits", "patient_id", "p1", "createdAt", 3).
		WillReturnRows(rows)

	out, err := s.Query(context.Background(), "visits", docstore.Query{
		Where:   []docstore.Filter{{Field: "patient_id", Value: "p1"}},
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   3,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "v2", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MigrateInstallsTimestampGuard(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS documents.*FUNCTION try_timestamptz\(v TEXT\).*EXCEPTION WHEN others THEN\s+RETURN NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryAscendingOrder(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY try_timestamptz(data->>$2) ASC NULLS LAST, data->>$2 ASC NULLS LAST`,
	)).
		WithArgs("visits", "createdAt").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("v1", []byte(`{"createdAt":"2026-01-01T10:00:00Z"}`)).
			AddRow("v2", []byte(`{"createdAt":"pending"}`)))

	out, err := s.Query(context.Background(), "visits", docstore.Query{OrderBy: "createdAt"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "pending", out[1].Data["createdAt"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM documents WHERE collection = $1`)).
		WithArgs("patients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).AddRow("a", []byte(`{}`)))

	out, err := s.List(context.Background(), "patients")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestStore_Update_NotFound(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`)).
		WithArgs("visits", "missing", `{"exercises":[]}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), "visits", "missing", map[string]any{"exercises": []any{}})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
