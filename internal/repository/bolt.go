package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/aop-weaver/pkg/errors"
)

var expressionsBucket = []byte("runtime_expressions")

// BoltExpressionRepository implements ExpressionRepository on a bbolt file.
// Values are JSON encoded CompiledExpressions keyed by ID.
type BoltExpressionRepository struct {
	filename string
	db       *bolt.DB
}

// OpenBoltExpressionRepository opens or creates the database file.
func OpenBoltExpressionRepository(filename string) (*BoltExpressionRepository, error) {
	db, err := bolt.Open(filename, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", filename, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(expressionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltExpressionRepository{filename: filename, db: db}, nil
}

// Save stores an expression, ignoring IDs that already exist.
func (r *BoltExpressionRepository) Save(ctx context.Context, expr *CompiledExpression) error {
	stored := *expr
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	js, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode expression %s: %w", expr.ID, err)
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(expressionsBucket)
		key := []byte(expr.ID)
		if b.Get(key) != nil {
			return nil
		}
		return b.Put(key, js)
	})
}

// Get retrieves an expression by its ID.
func (r *BoltExpressionRepository) Get(ctx context.Context, id string) (*CompiledExpression, error) {
	var expr *CompiledExpression
	err := r.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(expressionsBucket).Get([]byte(id))
		if bs == nil {
			return nil
		}
		expr = &CompiledExpression{}
		return json.Unmarshal(bs, expr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get expression: %w", err)
	}
	if expr == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
	}
	return expr, nil
}

// List returns all stored expressions, oldest first.
func (r *BoltExpressionRepository) List(ctx context.Context) ([]*CompiledExpression, error) {
	var result []*CompiledExpression
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(expressionsBucket).Cursor()
		for _, bs := c.First(); bs != nil; _, bs = c.Next() {
			var expr CompiledExpression
			if err := json.Unmarshal(bs, &expr); err != nil {
				return err
			}
			result = append(result, &expr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes an expression.
func (r *BoltExpressionRepository) Delete(ctx context.Context, id string) error {
	found := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(expressionsBucket)
		key := []byte(id)
		if b.Get(key) == nil {
			return nil
		}
		found = true
		return b.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete expression: %w", err)
	}
	if !found {
		return apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
	}
	return nil
}

// Close closes the database file.
func (r *BoltExpressionRepository) Close() error {
	return r.db.Close()
}
