package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/aop-weaver/pkg/errors"
)

// sqlQueries holds the dialect specific statements of SQLExpressionRepository.
type sqlQueries struct {
	createTable string
	insert      string
	selectOne   string
	selectAll   string
	delete      string
}

// SQLExpressionRepository implements ExpressionRepository over database/sql.
type SQLExpressionRepository struct {
	db      *sql.DB
	queries sqlQueries
}

// EnsureSchema creates the runtime_expressions table if it does not exist.
func (r *SQLExpressionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.queries.createTable); err != nil {
		return fmt.Errorf("failed to create runtime_expressions table: %w", err)
	}
	return nil
}

// Save stores an expression, ignoring IDs that already exist.
func (r *SQLExpressionRepository) Save(ctx context.Context, expr *CompiledExpression) error {
	createdAt := expr.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, r.queries.insert, expr.ID, expr.Source, expr.Description, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save expression %s: %w", expr.ID, err)
	}
	return nil
}

// Get retrieves an expression by its ID.
func (r *SQLExpressionRepository) Get(ctx context.Context, id string) (*CompiledExpression, error) {
	expr := &CompiledExpression{}
	err := r.db.QueryRowContext(ctx, r.queries.selectOne, id).Scan(
		&expr.ID, &expr.Source, &expr.Description, &expr.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get expression: %w", err)
	}
	return expr, nil
}

// List returns all stored expressions, oldest first.
func (r *SQLExpressionRepository) List(ctx context.Context) ([]*CompiledExpression, error) {
	rows, err := r.db.QueryContext(ctx, r.queries.selectAll)
	if err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}
	defer rows.Close()

	var result []*CompiledExpression
	for rows.Next() {
		expr := &CompiledExpression{}
		if err := rows.Scan(&expr.ID, &expr.Source, &expr.Description, &expr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expression: %w", err)
		}
		result = append(result, expr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expressions: %w", err)
	}
	return result, nil
}

// Delete removes an expression.
func (r *SQLExpressionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.queries.delete, id)
	if err != nil {
		return fmt.Errorf("failed to delete expression: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLExpressionRepository) Close() error {
	return r.db.Close()
}
