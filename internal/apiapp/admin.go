package apiapp

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/leave"
	"github.com/elite6108/sitesafe/internal/spreadsheet"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

type toDoRequest struct {
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	DueDate    string `json:"due_date"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assigned_to"`
}

func validateToDo(req toDoRequest) (toDoRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return req, invalid("title is required")
	}
	req.Priority = strings.ToLower(strings.TrimSpace(req.Priority))
	switch req.Priority {
	case "":
		req.Priority = "medium"
	case "low", "medium", "high":
	default:
		return req, invalid("priority must be low, medium or high")
	}
	if err := checkDate("due date", req.DueDate, false); err != nil {
		return req, err
	}
	req.Notes = strings.TrimSpace(req.Notes)
	req.AssignedTo = strings.TrimSpace(req.AssignedTo)
	return req, nil
}

func (s *server) todosHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := s.store.ToDos.List(r.Context())
		if err != nil {
			s.fail(w, r, err, "unable to load to-dos")
			return
		}
		status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
		if status == "open" || status == "completed" {
			filtered := make([]domain.ToDo, 0, len(rows))
			for _, t := range rows {
				if t.Completed == (status == "completed") {
					filtered = append(filtered, t)
				}
			}
			rows = filtered
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var req toDoRequest
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err, "")
			return
		}
		req, err := validateToDo(req)
		if err != nil {
			s.fail(w, r, err, "")
			return
		}
		todo := &domain.ToDo{
			Title:      req.Title,
			Notes:      req.Notes,
			DueDate:    strings.TrimSpace(req.DueDate),
			Priority:   req.Priority,
			AssignedTo: req.AssignedTo,
		}
		if err := s.store.ToDos.Create(r.Context(), todo); err != nil {
			s.fail(w, r, err, "unable to save to-do")
			return
		}
		writeJSON(w, http.StatusCreated, todo)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) todoHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodPut:
		var req toDoRequest
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err, "")
			return
		}
		req, err := validateToDo(req)
		if err != nil {
			s.fail(w, r, err, "")
			return
		}
		todo, err := s.store.ToDos.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "unable to load to-do")
			return
		}
		todo.Title = req.Title
		todo.Notes = req.Notes
		todo.DueDate = strings.TrimSpace(req.DueDate)
		todo.Priority = req.Priority
		todo.AssignedTo = req.AssignedTo
		if err := s.store.ToDos.Update(r.Context(), id, todo); err != nil {
			s.fail(w, r, err, "unable to save to-do")
			return
		}
		writeJSON(w, http.StatusOK, todo)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		if err := s.store.ToDos.Delete(r.Context(), id); err != nil {
			s.fail(w, r, err, "unable to delete to-do")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) completeToDoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	todo, err := s.store.ToDos.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "unable to load to-do")
		return
	}
	if !todo.Completed {
		todo.Completed = true
		todo.CompletedAt = s.now().UTC()
		if err := s.store.ToDos.Update(r.Context(), id, todo); err != nil {
			s.fail(w, r, err, "unable to save to-do")
			return
		}
	}
	writeJSON(w, http.StatusOK, todo)
}

type staffRequest struct {
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Email           string   `json:"email"`
	AnnualAllowance *float64 `json:"annual_allowance"`
}

func (s *server) staffHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := s.store.Staff.List(r.Context())
		if err != nil {
			s.fail(w, r, err, "unable to load staff")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var req staffRequest
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err, "")
			return
		}
		member := domain.StaffMember{
			FirstName:       strings.TrimSpace(req.FirstName),
			LastName:        strings.TrimSpace(req.LastName),
			Email:           strings.ToLower(strings.TrimSpace(req.Email)),
			AnnualAllowance: s.defaultAllowance,
		}
		if req.AnnualAllowance != nil {
			member.AnnualAllowance = *req.AnnualAllowance
		}
		created, err := s.addStaff(r, &member)
		if err != nil {
			s.fail(w, r, err, "unable to save staff member")
			return
		}
		if !created {
			writeError(w, http.StatusConflict, "a staff member with that email already exists")
			return
		}
		writeJSON(w, http.StatusCreated, member)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// addStaff creates member unless another member already has its email.
func (s *server) addStaff(r *http.Request, member *domain.StaffMember) (bool, error) {
	if member.FirstName == "" && member.LastName == "" {
		return false, invalid("first or last name is required")
	}
	if member.AnnualAllowance < 0 {
		return false, invalid("annual allowance cannot be negative")
	}
	if member.Email != "" {
		_, err := s.store.StaffByEmail(r.Context(), member.Email)
		switch {
		case err == nil:
			return false, nil
		case !errors.Is(err, store.ErrNotFound):
			return false, err
		}
	}
	if err := s.store.Staff.Create(r.Context(), member); err != nil {
		return false, err
	}
	return true, nil
}

func (s *server) staffImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, fileName, err := s.readUpload(w, r, "file")
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	rows, err := spreadsheet.ParseStaff(bytes.NewReader(raw), fileName, s.defaultAllowance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, skipped := 0, 0
	for i := range rows {
		ok, err := s.addStaff(r, &rows[i])
		if err != nil {
			s.fail(w, r, err, "unable to import staff")
			return
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}
	s.logger.Info("staff imported", zap.Int("created", created), zap.Int("skipped", skipped))
	writeJSON(w, http.StatusOK, map[string]int{"created": created, "skipped": skipped})
}

func (s *server) leaveSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	member, err := s.store.Staff.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "unable to load staff member")
		return
	}
	day := s.now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must use YYYY-MM-DD")
			return
		}
	}
	requests, err := s.store.Leave.ListWhere(r.Context(), "staff_id", member.ID)
	if err != nil {
		s.fail(w, r, err, "unable to load leave")
		return
	}
	writeJSON(w, http.StatusOK, s.calendar.Summarise(*member, requests, day))
}

func (s *server) leaveHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var (
			rows []domain.LeaveRequest
			err  error
		)
		if staffID := strings.TrimSpace(q.Get("staff_id")); staffID != "" {
			rows, err = s.store.Leave.ListWhere(r.Context(), "staff_id", staffID)
		} else {
			rows, err = s.store.Leave.List(r.Context())
		}
		if err != nil {
			s.fail(w, r, err, "unable to load leave")
			return
		}
		if status := strings.TrimSpace(q.Get("status")); status != "" {
			filtered := make([]domain.LeaveRequest, 0, len(rows))
			for _, req := range rows {
				if req.Status == status {
					filtered = append(filtered, req)
				}
			}
			rows = filtered
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var req leave.Request
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err, "")
			return
		}
		if _, _, err := leave.Validate(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		member, err := s.store.Staff.Get(r.Context(), strings.TrimSpace(req.StaffID))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "staff member not found")
			return
		}
		if err != nil {
			s.fail(w, r, err, "unable to load staff member")
			return
		}
		existing, err := s.store.Leave.ListWhere(r.Context(), "staff_id", member.ID)
		if err != nil {
			s.fail(w, r, err, "unable to load leave")
			return
		}
		request, err := s.calendar.Prepare(req, *member, existing)
		if err != nil {
			s.fail(w, r, err, "")
			return
		}
		if err := s.store.Leave.Create(r.Context(), &request); err != nil {
			s.fail(w, r, err, "unable to save leave request")
			return
		}
		writeJSON(w, http.StatusCreated, request)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) leaveDecisionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var status string
	switch r.PathValue("action") {
	case "approve":
		status = domain.LeaveApproved
	case "reject":
		status = domain.LeaveRejected
	default:
		http.NotFound(w, r)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	id := r.PathValue("id")
	request, err := s.store.Leave.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "unable to load leave request")
		return
	}
	if request.Status != domain.LeavePending {
		writeError(w, http.StatusConflict, fmt.Sprintf("leave request is already %s", request.Status))
		return
	}
	request.Status = status
	request.DecidedBy = currentUser(r)
	request.DecidedAt = s.now().UTC()
	if err := s.store.Leave.Update(r.Context(), id, request); err != nil {
		s.fail(w, r, err, "unable to save leave request")
		return
	}
	s.logger.Info("leave decided", zap.String("id", id), zap.String("status", status), zap.String("user", request.DecidedBy))
	writeJSON(w, http.StatusOK, request)
}

func (s *server) leaveExportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	staff, err := s.store.Staff.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "unable to load staff")
		return
	}
	requests, err := s.store.Leave.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "unable to load leave")
		return
	}
	now := s.now().UTC()
	summaries := make([]leave.Summary, 0, len(staff))
	for _, member := range staff {
		summaries = append(summaries, s.calendar.Summarise(member, requests, now))
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteLeaveRegister(&buf, staff, requests, summaries); err != nil {
		s.fail(w, r, err, "unable to build leave register")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "leave-register-"+now.Format("2006-01-02")+".xlsx"))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) toolboxTalksHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := s.store.ToolboxTalks.List(r.Context())
		if err != nil {
			s.fail(w, r, err, "unable to load toolbox talks")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		if err := s.parseUploadForm(w, r); err != nil {
			s.fail(w, r, err, "")
			return
		}
		talk := &domain.ToolboxTalk{
			Title:     strings.TrimSpace(r.FormValue("title")),
			Topic:     strings.TrimSpace(r.FormValue("topic")),
			Presenter: strings.TrimSpace(r.FormValue("presenter")),
			TalkDate:  strings.TrimSpace(r.FormValue("talk_date")),
			Attendees: splitList(r.FormValue("attendees")),
		}
		if talk.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		if err := checkDate("talk date", talk.TalkDate, false); err != nil {
			s.fail(w, r, err, "")
			return
		}
		file, err := s.storeUpload(w, r, storage.BucketToolboxTalks, "file")
		if err != nil {
			s.fail(w, r, err, "unable to upload toolbox talk")
			return
		}
		talk.FileName = file.Name
		if err := s.store.ToolboxTalks.Create(r.Context(), talk); err != nil {
			s.discardUpload(r.Context(), file)
			s.fail(w, r, err, "unable to save toolbox talk")
			return
		}
		writeJSON(w, http.StatusCreated, talk)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) toolboxTalkHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	id := r.PathValue("id")
	talk, err := s.store.ToolboxTalks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "unable to load toolbox talk")
		return
	}
	if err := s.store.ToolboxTalks.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, "unable to delete toolbox talk")
		return
	}
	if talk.FileName != "" {
		if err := s.removeFile(r.Context(), storage.BucketToolboxTalks, talk.FileName); err != nil {
			s.logger.Warn("toolbox talk file not removed", zap.String("name", talk.FileName), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// splitList splits on commas and newlines, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
