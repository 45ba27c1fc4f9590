package schema

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"deepclean/internal/model"
)

// extractSQLite queries the catalog rather than reading table contents
// into memory: table names from sqlite_master, columns from PRAGMA
// table_info, and row counts via COUNT(*). Grounded on
// schema_extractor.py's extract_sqlite_schema and the teacher's
// internal/store/local.go sql.Open("sqlite3", path) pattern.
func extractSQLite(path string) *model.Schema {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return errSchema(err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return errSchema(err)
	}

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return errSchema(err)
		}
		tableNames = append(tableNames, name)
	}
	rows.Close()

	tables := make(map[string]model.SQLiteTable, len(tableNames))
	for _, table := range tableNames {
		columns, err := tableColumns(db, table)
		if err != nil {
			return errSchema(err)
		}

		var count int64
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count); err != nil {
			return errSchema(err)
		}

		tables[table] = model.SQLiteTable{Columns: columns, RowCount: count}
	}

	return &model.Schema{Kind: model.SchemaKindSQLite, Tables: tables}
}

func tableColumns(db *sql.DB, table string) ([]model.SQLiteColumn, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []model.SQLiteColumn
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, model.SQLiteColumn{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
			PK:       pk != 0,
		})
	}
	return columns, nil
}
