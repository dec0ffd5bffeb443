package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/drive/internal/db"
	"github.com/templui/drive/internal/model"
)

func newSQLiteRepo(t *testing.T) UserRepository {
	t.Helper()
	database, err := db.Init("sqlite", filepath.Join(t.TempDir(), "drive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), database.DB, "sqlite"))
	return NewUserRepository(database)
}

func newRepoWithMock(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewUserRepository(sqlx.NewDb(sqlDB, "sqlmock")), mock
}

func strPtr(s string) *string { return &s }

func TestUserRepository_CreateAndRead(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	user := &model.User{
		ID:           "u-1",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: strPtr("$2a$10$hash"),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, user))

	byEmail, err := repo.ByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byEmail.ID)
	assert.Equal(t, "Alice", byEmail.Name)
	assert.True(t, byEmail.HasPassword())
}

func TestUserRepository_PasswordlessUser(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.User{ID: "u-2", Name: "Bob", Email: "bob@example.com", CreatedAt: time.Now()}))

	got, err := repo.ByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, got.HasPassword())
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.User{ID: "a", Name: "A", Email: "dup@example.com", CreatedAt: time.Now()}))
	err := repo.Create(ctx, &model.User{ID: "b", Name: "B", Email: "dup@example.com", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)

	_, err := repo.ByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_CreateDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.User{ID: "x", Email: "x@example.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
	assert.Contains(t, err.Error(), "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_PostgresDuplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), &model.User{ID: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_PostgresOtherConstraint(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23502", ColumnName: "name"})

	err := repo.Create(context.Background(), &model.User{ID: "x", Email: "x@example.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_SelectDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*name,\s*email,\s*password_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ByEmail(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
