package runlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runID = "6f1c2d34-5e6f-4a7b-8c9d-0e1f2a3b4c5d"

func TestStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO geoload.load_runs").
		WithArgs(runID, "/geojson", StatusRunning).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(17)))

	id, err := New(mock).Start(context.Background(), runID, "/geojson")
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO geoload.load_runs").
		WillReturnError(errors.New(`relation "geoload.load_runs" does not exist`))

	_, err = New(mock).Start(context.Background(), runID, "/geojson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runlog: start run")
}

func TestComplete_AllLoaded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE geoload.load_runs").
		WithArgs(StatusComplete, 2, 2, 0, 0, int64(5), []byte(`{"run_id":"x"}`), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).Complete(context.Background(), 3, Result{
		Files: 2, Loaded: 2, Rows: 5,
		Report: map[string]string{"run_id": "x"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_WithFaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE geoload.load_runs").
		WithArgs(StatusWithFaults, 3, 1, 1, 1, int64(1), pgxmock.AnyArg(), int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).Complete(context.Background(), 4, Result{Files: 3, Loaded: 1, Rejected: 1, Failed: 1, Rows: 1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE geoload.load_runs").
		WithArgs(StatusFailed, "commit run transaction: connection reset", int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).Fail(context.Background(), 5, "commit run transaction: connection reset")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLast(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT started_at FROM geoload.load_runs").
		WithArgs("/geojson", StatusComplete).
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(ts))

	got, err := New(mock).Last(context.Background(), "/geojson")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ts, *got)
}

func TestLast_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT started_at FROM geoload.load_runs").
		WithArgs("/geojson", StatusComplete).
		WillReturnError(pgx.ErrNoRows)

	got, err := New(mock).Last(context.Background(), "/geojson")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	done := started.Add(time.Minute)
	msg := "list source files: permission denied"

	mock.ExpectQuery("SELECT id, run_id::text").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "source_dir", "status", "started_at", "completed_at",
			"files", "loaded", "rejected", "failed", "rows_written", "error",
		}).
			AddRow(int64(2), runID, "/geojson", StatusFailed, started, &done, 0, 0, 0, 0, int64(0), &msg).
			AddRow(int64(1), runID, "/geojson", StatusComplete, started, &done, 3, 3, 0, 0, int64(9), (*string)(nil)))

	entries, err := New(mock).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, msg, entries[0].Error)
	assert.Equal(t, int64(9), entries[1].Rows)
	assert.Empty(t, entries[1].Error)
	require.NotNil(t, entries[1].CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
