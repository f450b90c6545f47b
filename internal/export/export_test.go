package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"meter-capture-agent/internal/model"
)

func TestWriteOutbox(t *testing.T) {
	loc := time.FixedZone("SAST", 2*60*60)
	payloads := []model.Payload{
		{
			Meta:      model.Meta{SubmittedAt: time.Date(2026, 4, 2, 7, 30, 0, 0, time.UTC)},
			Record:    model.Record{Stand: "1042", Area: "Soweto", Street: "12 Vilakazi St"},
			RequestID: "req-1",
		},
		{Record: model.Record{Stand: "1043"}, RequestID: "req-2"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOutbox(&buf, payloads, loc))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"1", "1042", "Soweto", "12 Vilakazi St", "2026-04-02 09:30:00", "req-1"}, rows[1])
	assert.Equal(t, "1043", rows[2][1])
	assert.Equal(t, "-", rows[2][4])
	assert.Equal(t, "req-2", rows[2][5])
}

func TestWriteOutbox_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutbox(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
