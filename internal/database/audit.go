package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// AuditTableNames are the tables included in spreadsheet exports.
var AuditTableNames = []string{
	"users",
	"rooms",
	"reservations",
	"room_restrictions",
	"archived_reservations",
	"system_notice",
}

// GetTableNames returns list of table names to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return slices.Clone(AuditTableNames), nil
}

// GetTableData returns all rows of a whitelisted table as maps, plus the
// column order.
func (db *DB) GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error) {
	// Only whitelisted names reach the query text.
	if !slices.Contains(AuditTableNames, tableName) {
		return nil, nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	infoRows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, nil, err
	}
	var columns []string
	for infoRows.Next() {
		var (
			cid         int
			name, typ   string
			notNull, pk int
			dflt        sql.NullString
		)
		if err := infoRows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			infoRows.Close()
			return nil, nil, err
		}
		columns = append(columns, name)
	}
	err = infoRows.Err()
	infoRows.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("table info %s: %w", tableName, err)
	}
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("table %s has no columns", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var data []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	return data, columns, rows.Err()
}
