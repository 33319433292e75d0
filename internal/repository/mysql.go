package repository

import (
	"database/sql"
)

// NewMySQLExpressionRepository creates a repository for MySQL.
func NewMySQLExpressionRepository(db *sql.DB) *SQLExpressionRepository {
	return &SQLExpressionRepository{
		db: db,
		queries: sqlQueries{
			createTable: `
				CREATE TABLE IF NOT EXISTS runtime_expressions (
					id          VARCHAR(64) NOT NULL PRIMARY KEY,
					source      TEXT NOT NULL,
					description TEXT,
					create_time DATETIME NOT NULL
				)
			`,
			insert: `
				INSERT IGNORE INTO runtime_expressions (id, source, description, create_time)
				VALUES (?, ?, ?, ?)
			`,
			selectOne: `
				SELECT id, source, COALESCE(description, ''), create_time
				FROM runtime_expressions
				WHERE id = ?
			`,
			selectAll: `
				SELECT id, source, COALESCE(description, ''), create_time
				FROM runtime_expressions
				ORDER BY create_time ASC, id ASC
			`,
			delete: `DELETE FROM runtime_expressions WHERE id = ?`,
		},
	}
}
