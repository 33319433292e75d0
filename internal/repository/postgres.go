package repository

import (
	"database/sql"
)

// NewPostgresExpressionRepository creates a repository for PostgreSQL.
func NewPostgresExpressionRepository(db *sql.DB) *SQLExpressionRepository {
	return &SQLExpressionRepository{
		db: db,
		queries: sqlQueries{
			createTable: `
				CREATE TABLE IF NOT EXISTS runtime_expressions (
					id          VARCHAR(64) PRIMARY KEY,
					source      TEXT NOT NULL,
					description TEXT,
					create_time TIMESTAMP NOT NULL
				)
			`,
			insert: `
				INSERT INTO runtime_expressions (id, source, description, create_time)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING
			`,
			selectOne: `
				SELECT id, source, COALESCE(description, ''), create_time
				FROM runtime_expressions
				WHERE id = $1
			`,
			selectAll: `
				SELECT id, source, COALESCE(description, ''), create_time
				FROM runtime_expressions
				ORDER BY create_time ASC, id ASC
			`,
			delete: `DELETE FROM runtime_expressions WHERE id = $1`,
		},
	}
}
