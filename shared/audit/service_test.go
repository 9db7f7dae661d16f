package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
)

type fakeTables struct {
	data map[string][]map[string]interface{}
	cols map[string][]string
}

func (f *fakeTables) GetTableNames(context.Context) ([]string, error) {
	return []string{"rooms", "broken"}, nil
}

func (f *fakeTables) GetTableData(_ context.Context, name string) ([]map[string]interface{}, []string, error) {
	cols, ok := f.cols[name]
	if !ok {
		return nil, nil, errors.New("no such table")
	}
	return f.data[name], cols, nil
}

type fakeArchive []models.ArchivedReservation

func (f fakeArchive) ListArchived(context.Context, time.Time) ([]models.ArchivedReservation, error) {
	return f, nil
}

func TestExportArchive(t *testing.T) {
	approved := kst.Date(2024, 4, 30).Add(9 * time.Hour)
	records := fakeArchive{{
		Reservation: models.Reservation{
			ID:         "copy-1",
			RoomID:     "r1",
			UserID:     "s1",
			StartTime:  kst.Date(2024, 5, 1).Add(10 * time.Hour),
			EndTime:    kst.Date(2024, 5, 1).Add(11 * time.Hour),
			Purpose:    "동아리 활동",
			Attendees:  []string{"김민수", "이영희"},
			Status:     models.StatusConfirmed,
			ApprovedBy: "t1",
			ApprovedAt: &approved,
			CreatedAt:  approved,
			RoomName:   "과학실",
		},
		OriginalID: "orig-1",
		ArchivedAt: kst.Date(2024, 5, 20),
	}}
	e := NewExporter(nil, records, nil, zerolog.Nop())

	var buf bytes.Buffer
	n, err := e.ExportArchive(context.Background(), time.Time{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ArchiveSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, archiveColumns, rows[0])
	assert.Equal(t, "orig-1", rows[1][0])
	assert.Equal(t, "과학실", rows[1][1])
	assert.Equal(t, "s1", rows[1][2])
	assert.Equal(t, "2024-05-01 10:00", rows[1][3])
	assert.Equal(t, "김민수, 이영희", rows[1][6])
	assert.Equal(t, "2024-05-20 00:00", rows[1][11])
}

func TestExportTables_SkipsUnreadableTables(t *testing.T) {
	tables := &fakeTables{
		cols: map[string][]string{"rooms": {"id", "name"}},
		data: map[string][]map[string]interface{}{
			"rooms": {{"id": "r1", "name": "과학실"}, {"id": "r2", "name": "음악실"}},
		},
	}
	e := NewExporter(tables, nil, nil, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, e.ExportTables(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"rooms"}, f.GetSheetList())
	rows, err := f.GetRows("rooms")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "name"}, {"r1", "과학실"}, {"r2", "음악실"}}, rows)
}

func TestWriteArchiveFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := NewExporter(nil, fakeArchive{}, nil, zerolog.Nop())

	path, n, err := e.WriteArchiveFile(context.Background(), dir, time.Time{}, kst.Date(2024, 5, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, filepath.Join(dir, "보관예약_2024년_05월.xlsx"), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteTablesFile(t *testing.T) {
	dir := t.TempDir()
	tables := &fakeTables{
		cols: map[string][]string{"rooms": {"id", "name"}},
		data: map[string][]map[string]interface{}{"rooms": {{"id": "r1", "name": "과학실"}}},
	}
	e := NewExporter(tables, nil, nil, zerolog.Nop())

	path, err := e.WriteTablesFile(context.Background(), dir, kst.Date(2024, 6, 3))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "전체데이터_2024년_06월.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"rooms"}, f.GetSheetList())

	// A failed export leaves no file behind.
	empty := NewExporter(&fakeTables{}, nil, nil, zerolog.Nop())
	_, err = empty.WriteTablesFile(context.Background(), dir, kst.Date(2024, 7, 1))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "전체데이터_2024년_07월.xlsx"))
}

func TestSheetNameTruncatesByCharacter(t *testing.T) {
	long := "가나다라마바사아자차카타파하가나다라마바사아자차카타파하가나다라"
	got := sheetName(long)
	assert.Equal(t, maxSheetName, len([]rune(got)))
	assert.Equal(t, "rooms", sheetName("rooms"))
}
