package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
)

// ArchiveSheet is the sheet name of the archive report.
const ArchiveSheet = "보관된 예약"

var archiveColumns = []string{
	"원본 ID", "특별실", "신청자", "시작", "종료", "사용 목적", "참석자",
	"상태", "승인자", "승인 시각", "신청 시각", "보관 시각",
}

// Exporter builds xlsx workbooks.
type Exporter struct {
	tables  TableExporter
	archive ArchiveSource
	writer  func() ExcelWriter // factory for creating new Excel writers
	logger  zerolog.Logger
}

// NewExporter creates an exporter. A nil writer factory uses excelize.
func NewExporter(tables TableExporter, archive ArchiveSource, writerFactory func() ExcelWriter, logger zerolog.Logger) *Exporter {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	return &Exporter{
		tables:  tables,
		archive: archive,
		writer:  writerFactory,
		logger:  logger.With().Str("component", "audit").Logger(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return kst.In(t).Format("2006-01-02 15:04")
}

func formatNullTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ArchiveRow renders one archived reservation in archiveColumns order.
func ArchiveRow(a models.ArchivedReservation) []interface{} {
	room := a.RoomName
	if room == "" {
		room = a.RoomID
	}
	user := a.UserName
	if user == "" {
		user = a.UserID
	}
	return []interface{}{
		a.OriginalID, room, user,
		formatTime(a.StartTime), formatTime(a.EndTime),
		a.Purpose, strings.Join(a.Attendees, ", "),
		string(a.Status), a.ApprovedBy, formatNullTime(a.ApprovedAt),
		formatTime(a.CreatedAt), formatTime(a.ArchivedAt),
	}
}

// ExportArchive writes archived reservations since the given time (zero for
// all) as a single-sheet workbook. It returns the number of rows written.
func (e *Exporter) ExportArchive(ctx context.Context, since time.Time, w io.Writer) (int, error) {
	if e.archive == nil {
		return 0, fmt.Errorf("archive source not configured")
	}
	records, err := e.archive.ListArchived(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list archived: %w", err)
	}

	excel := e.writer()
	defer excel.Close()

	if err := excel.AddSheet(ArchiveSheet); err != nil {
		return 0, err
	}
	if err := excel.WriteHeader(archiveColumns); err != nil {
		return 0, err
	}
	for _, a := range records {
		if err := excel.WriteRow(ArchiveRow(a)); err != nil {
			return 0, fmt.Errorf("write archive row %s: %w", a.OriginalID, err)
		}
	}

	if err := excel.Save(w); err != nil {
		return 0, fmt.Errorf("save excel: %w", err)
	}
	e.logger.Info().Int("rows", len(records)).Msg("Archive exported")
	return len(records), nil
}

// ExportTables writes every exported table to its own sheet. Tables that
// fail to read are skipped and logged.
func (e *Exporter) ExportTables(ctx context.Context, w io.Writer) error {
	if e.tables == nil {
		return fmt.Errorf("table exporter not configured")
	}
	names, err := e.tables.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}

	excel := e.writer()
	defer excel.Close()

	written := 0
	for _, table := range names {
		data, columns, err := e.tables.GetTableData(ctx, table)
		if err != nil {
			e.logger.Error().Err(err).Str("table", table).Msg("Failed to get table data")
			continue
		}
		if err := excel.AddSheet(table); err != nil {
			e.logger.Error().Err(err).Str("table", table).Msg("Failed to add sheet")
			continue
		}
		if err := excel.WriteHeader(columns); err != nil {
			return err
		}
		for _, row := range data {
			values := make([]interface{}, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := excel.WriteRow(values); err != nil {
				return fmt.Errorf("write %s row: %w", table, err)
			}
		}
		written++
		e.logger.Debug().Str("table", table).Int("rows", len(data)).Msg("Exported table")
	}
	if written == 0 {
		return fmt.Errorf("no tables exported")
	}

	if err := excel.Save(w); err != nil {
		return fmt.Errorf("save excel: %w", err)
	}
	return nil
}

// WriteArchiveFile exports the archive into dir and returns the file path.
func (e *Exporter) WriteArchiveFile(ctx context.Context, dir string, since, now time.Time) (string, int, error) {
	var n int
	path, err := writeFile(dir, GenerateFilename("보관예약", kst.In(now)), func(w io.Writer) error {
		var err error
		n, err = e.ExportArchive(ctx, since, w)
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return path, n, nil
}

// WriteTablesFile exports every whitelisted table into dir and returns the
// file path.
func (e *Exporter) WriteTablesFile(ctx context.Context, dir string, now time.Time) (string, error) {
	return writeFile(dir, GenerateFilename("전체데이터", kst.In(now)), func(w io.Writer) error {
		return e.ExportTables(ctx, w)
	})
}

// writeFile creates dir/name and fills it with write. The file is removed
// when write fails.
func writeFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	err = write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
