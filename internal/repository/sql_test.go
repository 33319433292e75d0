package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aop-weaver/pkg/errors"
)

var expressionColumns = []string{"id", "source", "description", "create_time"}

func TestPostgresExpressionRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresExpressionRepository(db)
	ctx := context.Background()

	t.Run("EnsureSchema", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS runtime_expressions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, repo.EnsureSchema(ctx))
	})

	t.Run("Save_Success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO runtime_expressions").
			WithArgs("abc", "true", "arg id > 1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Save(ctx, &CompiledExpression{ID: "abc", Source: "true", Description: "arg id > 1"})
		require.NoError(t, err)
	})

	t.Run("Save_Error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO runtime_expressions").
			WillReturnError(errors.New("connection reset"))

		err := repo.Save(ctx, &CompiledExpression{ID: "abc", Source: "true"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save expression abc")
	})

	t.Run("Get_Success", func(t *testing.T) {
		created := time.Now()
		rows := sqlmock.NewRows(expressionColumns).AddRow("abc", "true", "arg id > 1", created)
		mock.ExpectQuery("SELECT id, source").WithArgs("abc").WillReturnRows(rows)

		expr, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", expr.ID)
		assert.Equal(t, "true", expr.Source)
		assert.Equal(t, created, expr.CreatedAt)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, source").WithArgs("missing").WillReturnError(sql.ErrNoRows)

		expr, err := repo.Get(ctx, "missing")
		assert.Nil(t, expr)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("List", func(t *testing.T) {
		rows := sqlmock.NewRows(expressionColumns).
			AddRow("a", "false", "", time.Now()).
			AddRow("b", "true", "", time.Now())
		mock.ExpectQuery("SELECT id, source").WillReturnRows(rows)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
	})

	t.Run("Delete_Success", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM runtime_expressions").
			WithArgs("abc").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, "abc"))
	})

	t.Run("Delete_NotFound", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM runtime_expressions").
			WithArgs("abc").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, "abc")))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLExpressionRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLExpressionRepository(db)
	ctx := context.Background()

	t.Run("Save_Uses_Insert_Ignore", func(t *testing.T) {
		mock.ExpectExec("INSERT IGNORE INTO runtime_expressions").
			WithArgs("abc", "true", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, repo.Save(ctx, &CompiledExpression{ID: "abc", Source: "true"}))
	})

	t.Run("Get_Success", func(t *testing.T) {
		rows := sqlmock.NewRows(expressionColumns).AddRow("abc", "true", "", time.Now())
		mock.ExpectQuery("SELECT id, source").WithArgs("abc").WillReturnRows(rows)

		expr, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "true", expr.Source)
	})

	t.Run("List_Scan_Error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id"}).AddRow("abc")
		mock.ExpectQuery("SELECT id, source").WillReturnRows(rows)

		_, err := repo.List(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to scan expression")
	})

	t.Run("Close", func(t *testing.T) {
		mock.ExpectClose()
		require.NoError(t, repo.Close())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
