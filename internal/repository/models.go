package repository

import (
	"time"
)

// RuntimeExpressionRecord represents the runtime_expressions table.
type RuntimeExpressionRecord struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	Source      string    `gorm:"column:source;type:text"`
	Description string    `gorm:"column:description;type:text"`
	CreateTime  time.Time `gorm:"column:create_time;autoCreateTime"`
}

// TableName returns the table name for RuntimeExpressionRecord.
func (RuntimeExpressionRecord) TableName() string {
	return "runtime_expressions"
}

// ToModel converts the record to a CompiledExpression.
func (r *RuntimeExpressionRecord) ToModel() *CompiledExpression {
	return &CompiledExpression{
		ID:          r.ID,
		Source:      r.Source,
		Description: r.Description,
		CreatedAt:   r.CreateTime,
	}
}

func recordFromModel(expr *CompiledExpression) *RuntimeExpressionRecord {
	return &RuntimeExpressionRecord{
		ID:          expr.ID,
		Source:      expr.Source,
		Description: expr.Description,
		CreateTime:  expr.CreatedAt,
	}
}
