package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/aop-weaver/pkg/errors"
)

// GormExpressionRepository implements ExpressionRepository using GORM.
type GormExpressionRepository struct {
	db *gorm.DB
}

// NewGormExpressionRepository creates a new GormExpressionRepository.
func NewGormExpressionRepository(db *gorm.DB) *GormExpressionRepository {
	return &GormExpressionRepository{db: db}
}

// Migrate creates or updates the runtime_expressions table.
func (r *GormExpressionRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&RuntimeExpressionRecord{}); err != nil {
		return fmt.Errorf("failed to migrate runtime expressions: %w", err)
	}
	return nil
}

// Save stores an expression, ignoring IDs that already exist.
func (r *GormExpressionRepository) Save(ctx context.Context, expr *CompiledExpression) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(recordFromModel(expr)).Error
	if err != nil {
		return fmt.Errorf("failed to save expression %s: %w", expr.ID, err)
	}
	return nil
}

// Get retrieves an expression by its ID.
func (r *GormExpressionRepository) Get(ctx context.Context, id string) (*CompiledExpression, error) {
	var record RuntimeExpressionRecord

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get expression: %w", err)
	}

	return record.ToModel(), nil
}

// List returns all stored expressions, oldest first.
func (r *GormExpressionRepository) List(ctx context.Context) ([]*CompiledExpression, error) {
	var records []RuntimeExpressionRecord

	err := r.db.WithContext(ctx).Order("create_time ASC").Order("id ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}

	result := make([]*CompiledExpression, len(records))
	for i := range records {
		result[i] = records[i].ToModel()
	}
	return result, nil
}

// Delete removes an expression.
func (r *GormExpressionRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&RuntimeExpressionRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete expression: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "expression not found: %s", id)
	}
	return nil
}

// Close closes the database connection.
func (r *GormExpressionRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
