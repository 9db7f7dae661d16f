// Package audit writes spreadsheet reports of archived reservations and of
// the live tables.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"teukbyeolsil/internal/models"
)

// TableExporter provides access to database tables for export.
type TableExporter interface {
	// GetTableNames returns list of table names to export.
	GetTableNames(ctx context.Context) ([]string, error)

	// GetTableData returns rows for a table as maps, plus the column order.
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// ArchiveSource lists archived reservations.
type ArchiveSource interface {
	ListArchived(ctx context.Context, since time.Time) ([]models.ArchivedReservation, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	SaveToFile(path string) error
	Close() error
}

// GenerateFilename creates a filename like "보관예약_2024년_05월.xlsx".
func GenerateFilename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%d년_%02d월.xlsx", prefix, t.Year(), int(t.Month()))
}
