// Package repository persists compiled runtime expressions so that later
// processes can load them instead of compiling again.
package repository

import (
	"context"
	"time"
)

// CompiledExpression is one runtime expression in compiled form.
type CompiledExpression struct {
	// ID is the stable identifier derived from Source.
	ID string `json:"id"`
	// Source is the program text handed to the evaluator.
	Source string `json:"source"`
	// Description is the human readable form of the conditions.
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExpressionRepository defines the operations of the expression cache.
type ExpressionRepository interface {
	// Save stores an expression. Saving an ID that already exists is a no-op.
	Save(ctx context.Context, expr *CompiledExpression) error

	// Get retrieves an expression by its ID.
	Get(ctx context.Context, id string) (*CompiledExpression, error)

	// List returns all stored expressions, oldest first.
	List(ctx context.Context) ([]*CompiledExpression, error)

	// Delete removes an expression.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying connection or file.
	Close() error
}
