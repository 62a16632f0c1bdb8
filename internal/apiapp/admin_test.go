package apiapp

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/elite6108/sitesafe/internal/storage"
)

func TestToDos(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodPost, "/api/todos", map[string]any{"title": "Order PPE", "priority": "urgent"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.json(http.MethodPost, "/api/todos", map[string]any{"title": "Order PPE", "due_date": "2026-03-10"}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[map[string]any](t, rec)
	assert.Equal(t, "medium", first["priority"])
	id := first["id"].(string)

	require.Equal(t, http.StatusCreated, ts.json(http.MethodPost, "/api/todos", map[string]any{"title": "Book training", "priority": "HIGH"}, false).Code)

	rec = ts.json(http.MethodPut, "/api/todos/"+id, map[string]any{"title": "Order gloves", "priority": "low"}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order gloves", decode[map[string]any](t, rec)["title"])

	rec = ts.json(http.MethodPost, "/api/todos/"+id+"/complete", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["completed"])

	rec = ts.json(http.MethodGet, "/api/todos?status=open", nil, false)
	open := decode[[]map[string]any](t, rec)
	require.Len(t, open, 1)
	assert.Equal(t, "Book training", open[0]["title"])

	rec = ts.json(http.MethodGet, "/api/todos?status=completed", nil, false)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
	rec = ts.json(http.MethodGet, "/api/todos", nil, false)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	assert.Equal(t, http.StatusForbidden, ts.json(http.MethodDelete, "/api/todos/"+id, nil, false).Code)
	assert.Equal(t, http.StatusNoContent, ts.json(http.MethodDelete, "/api/todos/"+id, nil, true).Code)
	assert.Equal(t, http.StatusNotFound, ts.json(http.MethodPost, "/api/todos/"+id+"/complete", nil, false).Code)
}

func TestLeaveRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodPost, "/api/staff", map[string]any{"first_name": "Ana", "last_name": "Reyes", "email": "Ana@Example.com", "annual_allowance": 3}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	staffID := decode[map[string]any](t, rec)["id"].(string)

	rec = ts.json(http.MethodPost, "/api/staff", map[string]any{"first_name": "Other", "email": "ana@example.com"}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.json(http.MethodPost, "/api/leave", map[string]any{"staff_id": staffID, "start_date": "2026-03-03", "end_date": "2026-03-02"}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "end date cannot be before start date", decode[map[string]string](t, rec)["error"])

	rec = ts.json(http.MethodPost, "/api/leave", map[string]any{"staff_id": "nobody", "start_date": "2026-03-02"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Mon 30 Mar to Fri 3 Apr is five weekdays, one of them a bank holiday.
	rec = ts.json(http.MethodPost, "/api/leave", map[string]any{"staff_id": staffID, "start_date": "2026-03-30", "end_date": "2026-04-03"}, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.json(http.MethodPost, "/api/leave", map[string]any{"staff_id": staffID, "start_date": "2026-03-02", "end_date": "2026-03-03"}, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	leaveID := created["id"].(string)
	assert.EqualValues(t, 2, created["days"])
	assert.Equal(t, "pending", created["status"])

	rec = ts.json(http.MethodPost, "/api/leave", map[string]any{"staff_id": staffID, "start_date": "2026-03-04", "end_date": "2026-03-05"}, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.json(http.MethodPost, "/api/leave", map[string]any{"staff_id": staffID, "start_date": "2026-03-04", "half_day": true}, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusForbidden, ts.json(http.MethodPost, "/api/leave/"+leaveID+"/approve", nil, false).Code)
	assert.Equal(t, http.StatusNotFound, ts.json(http.MethodPost, "/api/leave/"+leaveID+"/maybe", nil, true).Code)

	rec = ts.json(http.MethodPost, "/api/leave/"+leaveID+"/approve", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	decided := decode[map[string]any](t, rec)
	assert.Equal(t, "approved", decided["status"])
	assert.Equal(t, "site.manager", decided["decided_by"])

	assert.Equal(t, http.StatusConflict, ts.json(http.MethodPost, "/api/leave/"+leaveID+"/reject", nil, true).Code)

	rec = ts.json(http.MethodGet, "/api/staff/"+staffID+"/leave-summary", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, summary["approved"])
	assert.EqualValues(t, 0.5, summary["pending"])
	assert.EqualValues(t, 0.5, summary["remaining"])
	assert.Equal(t, "2026-01-01", summary["year_start"])

	rec = ts.json(http.MethodGet, "/api/leave?status=pending", nil, false)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
	rec = ts.json(http.MethodGet, "/api/leave?staff_id="+staffID, nil, false)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = ts.json(http.MethodGet, "/api/leave/export", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leave-register-2026-03-01.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Requests")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestStaffImport(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.json(http.MethodPost, "/api/staff", map[string]any{"first_name": "Sam", "email": "sam@example.com"}, false).Code)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]any{
		{"First Name", "Last Name", "Email", "Allowance"},
		{"Sam", "Hill", "SAM@example.com", "20"},
		{"Jo", "Bloggs", "jo@example.com", ""},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	rec := ts.upload("/api/staff/import", "file", "staff.xlsx", buf.Bytes(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[map[string]int](t, rec)
	assert.Equal(t, 1, result["created"])
	assert.Equal(t, 1, result["skipped"])

	staff, err := ts.store.StaffByEmail(context.Background(), "jo@example.com")
	require.NoError(t, err)
	assert.Equal(t, 28.0, staff.AnnualAllowance)

	rec = ts.upload("/api/staff/import", "file", "staff.xlsx", []byte("nope"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToolboxTalks(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload("/api/toolbox-talks", "file", "talk.pdf", minimalPDF, map[string]string{"topic": "Ladders"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.upload("/api/toolbox-talks", "file", "talk.pdf", minimalPDF, map[string]string{
		"title":     "Ladder safety",
		"talk_date": "2026-02-20",
		"attendees": "Ana Reyes, Sam Hill\nJo Bloggs,",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	talk := decode[map[string]any](t, rec)
	assert.Len(t, talk["attendees"], 3)
	id := talk["id"].(string)

	objects, err := ts.files.List(context.Background(), storage.BucketToolboxTalks)
	require.NoError(t, err)
	require.Len(t, objects, 1)

	rec = ts.json(http.MethodGet, "/api/toolbox-talks", nil, false)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	assert.Equal(t, http.StatusForbidden, ts.json(http.MethodDelete, "/api/toolbox-talks/"+id, nil, false).Code)
	assert.Equal(t, http.StatusNoContent, ts.json(http.MethodDelete, "/api/toolbox-talks/"+id, nil, true).Code)

	objects, err = ts.files.List(context.Background(), storage.BucketToolboxTalks)
	require.NoError(t, err)
	assert.Empty(t, objects)
}
