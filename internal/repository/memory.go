package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/aop-weaver/pkg/errors"
)

// MemoryExpressionRepository keeps expressions for the lifetime of the
// process only.
type MemoryExpressionRepository struct {
	mu          sync.RWMutex
	expressions map[string]*CompiledExpression
	seq         []string
}

// NewMemoryExpressionRepository creates an empty repository.
func NewMemoryExpressionRepository() *MemoryExpressionRepository {
	return &MemoryExpressionRepository{expressions: make(map[string]*CompiledExpression)}
}

func (r *MemoryExpressionRepository) Save(ctx context.Context, expr *CompiledExpression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expressions[expr.ID]; ok {
		return nil
	}
	stored := *expr
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.expressions[expr.ID] = &stored
	r.seq = append(r.seq, expr.ID)
	return nil
}

func (r *MemoryExpressionRepository) Get(ctx context.Context, id string) (*CompiledExpression, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	expr, ok := r.expressions[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
	}
	out := *expr
	return &out, nil
}

func (r *MemoryExpressionRepository) List(ctx context.Context) ([]*CompiledExpression, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*CompiledExpression, 0, len(r.seq))
	for _, id := range r.seq {
		out := *r.expressions[id]
		result = append(result, &out)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryExpressionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expressions[id]; !ok {
		return apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
	}
	delete(r.expressions, id)
	for i, s := range r.seq {
		if s == id {
			r.seq = append(r.seq[:i], r.seq[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryExpressionRepository) Close() error { return nil }
