// Package mock provides testify mocks for the weaver's external collaborators.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aop-weaver/internal/repository"
)

// MockExpressionRepository is a mock implementation of the ExpressionRepository interface.
type MockExpressionRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockExpressionRepository) Save(ctx context.Context, expr *repository.CompiledExpression) error {
	args := m.Called(ctx, expr)
	return args.Error(0)
}

// Get mocks the Get method.
func (m *MockExpressionRepository) Get(ctx context.Context, id string) (*repository.CompiledExpression, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CompiledExpression), args.Error(1)
}

// List mocks the List method.
func (m *MockExpressionRepository) List(ctx context.Context) ([]*repository.CompiledExpression, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.CompiledExpression), args.Error(1)
}

// Delete mocks the Delete method.
func (m *MockExpressionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Close mocks the Close method.
func (m *MockExpressionRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
