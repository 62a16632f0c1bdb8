package apiapp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/pdfgen"
	"github.com/elite6108/sitesafe/internal/spreadsheet"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

// resource is the CRUD surface shared by the record kinds served under
// /api/{kind}.
type resource interface {
	list(ctx context.Context) (any, error)
	get(ctx context.Context, id string) (any, error)
	create(ctx context.Context, r *http.Request) (any, error)
	update(ctx context.Context, id string, r *http.Request) (any, error)
	remove(ctx context.Context, id string) error
}

type collectionResource[T any] struct {
	c        *store.Collection[T]
	validate func(*T) error
}

func (c collectionResource[T]) list(ctx context.Context) (any, error) {
	rows, err := c.c.List(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c collectionResource[T]) get(ctx context.Context, id string) (any, error) {
	rec, err := c.c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (c collectionResource[T]) decode(r *http.Request) (*T, error) {
	var rec T
	if err := decodeJSON(r, &rec); err != nil {
		return nil, err
	}
	if err := c.validate(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c collectionResource[T]) create(ctx context.Context, r *http.Request) (any, error) {
	rec, err := c.decode(r)
	if err != nil {
		return nil, err
	}
	if err := c.c.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c collectionResource[T]) update(ctx context.Context, id string, r *http.Request) (any, error) {
	rec, err := c.decode(r)
	if err != nil {
		return nil, err
	}
	if err := c.c.Update(ctx, id, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c collectionResource[T]) remove(ctx context.Context, id string) error {
	return c.c.Delete(ctx, id)
}

func (s *server) recordResources() map[string]resource {
	return map[string]resource{
		"incidents":        collectionResource[domain.IncidentReport]{c: s.store.Incidents, validate: validateIncident},
		"risk-assessments": collectionResource[domain.RiskAssessment]{c: s.store.RiskAssessments, validate: validateRiskAssessment},
		"sign-offs":        collectionResource[domain.SignOff]{c: s.store.SignOffs, validate: validateSignOff},
		"dse-assessments":  collectionResource[domain.DSEAssessment]{c: s.store.DSEAssessments, validate: validateDSE},
		"projects":         collectionResource[domain.Project]{c: s.store.Projects, validate: validateProject},
		"customers":        collectionResource[domain.Customer]{c: s.store.Customers, validate: validateCustomer},
	}
}

func (s *server) incidentExportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	incidents, err := s.store.Incidents.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "unable to load incidents")
		return
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteIncidentRegister(&buf, incidents); err != nil {
		s.fail(w, r, err, "unable to build incident register")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "incident-register-"+s.now().UTC().Format("2006-01-02")+".xlsx"))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	res, ok := s.resources[kind]
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		rows, err := res.list(r.Context())
		if err != nil {
			s.fail(w, r, err, "unable to load "+kind)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		rec, err := res.create(r.Context(), r)
		if err != nil {
			s.fail(w, r, err, "unable to save record")
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) recordHandler(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	res, ok := s.resources[kind]
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	switch r.Method {
	case http.MethodGet:
		rec, err := res.get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "unable to load record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		rec, err := res.update(r.Context(), id, r)
		if err != nil {
			s.fail(w, r, err, "unable to save record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		if err := res.remove(r.Context(), id); err != nil {
			s.fail(w, r, err, "unable to delete record")
			return
		}
		s.logger.Info("record deleted", zap.String("kind", kind), zap.String("id", id), zap.String("user", currentUser(r)))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Record numbers are always assigned by the store on create and kept on
// update, so the validators drop whatever the client sent.
func validateIncident(rec *domain.IncidentReport) error {
	rec.ReportNumber = ""
	rec.Description = strings.TrimSpace(rec.Description)
	if rec.Description == "" {
		return invalid("description is required")
	}
	if err := checkDate("incident date", rec.IncidentDate, true); err != nil {
		return err
	}
	if err := checkDate("return to work date", rec.ReturnToWorkDate, false); err != nil {
		return err
	}
	for i, a := range rec.Actions {
		if err := checkDate(fmt.Sprintf("action %d due date", i+1), a.DueDate, false); err != nil {
			return err
		}
	}
	if rec.Status == "" {
		rec.Status = "open"
	}
	return nil
}

func validateRiskAssessment(rec *domain.RiskAssessment) error {
	rec.RANumber = ""
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return invalid("name is required")
	}
	for i, h := range rec.Hazards {
		if strings.TrimSpace(h.Hazard) == "" {
			return invalid(fmt.Sprintf("hazard %d needs a description", i+1))
		}
		for _, score := range []int{h.Likelihood, h.Severity, h.Residual} {
			if score < 0 || score > 5 {
				return invalid(fmt.Sprintf("hazard %d scores must be between 0 and 5", i+1))
			}
		}
	}
	if err := checkDate("assessment date", rec.AssessmentDate, false); err != nil {
		return err
	}
	return checkDate("review date", rec.ReviewDate, false)
}

func validateSignOff(rec *domain.SignOff) error {
	rec.SignOffNumber = ""
	rec.ProjectID = strings.TrimSpace(rec.ProjectID)
	rec.CustomerID = strings.TrimSpace(rec.CustomerID)
	if rec.ProjectID == "" {
		return invalid("project is required")
	}
	if rec.CustomerID == "" {
		return invalid("customer is required")
	}
	return checkDate("completion date", rec.CompletionDate, false)
}

func validateDSE(rec *domain.DSEAssessment) error {
	rec.AssessmentNumber = ""
	rec.EmployeeName = strings.TrimSpace(rec.EmployeeName)
	if rec.EmployeeName == "" {
		return invalid("employee name is required")
	}
	known := map[string]bool{}
	for _, area := range pdfgen.DSEAreas {
		for _, q := range area.Questions {
			known[q.Key] = true
		}
	}
	for key := range rec.Answers {
		if !known[key] {
			return invalid(fmt.Sprintf("unknown question %q", key))
		}
	}
	return checkDate("assessment date", rec.AssessmentDate, false)
}

func validateProject(rec *domain.Project) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return invalid("project name is required")
	}
	if err := checkDate("start date", rec.StartDate, false); err != nil {
		return err
	}
	return checkDate("end date", rec.EndDate, false)
}

func validateCustomer(rec *domain.Customer) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return invalid("customer name is required")
	}
	return nil
}

// checkDate accepts YYYY-MM-DD, or an RFC 3339 timestamp when withTime is
// set. Empty values pass.
func checkDate(label, value string, withTime bool) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return nil
	}
	if withTime {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04"} {
			if _, err := time.Parse(layout, value); err == nil {
				return nil
			}
		}
		return invalid(label + " must use YYYY-MM-DD or YYYY-MM-DDTHH:MM")
	}
	return invalid(label + " must use YYYY-MM-DD")
}

func (s *server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.Settings(r.Context())
		if err != nil {
			s.fail(w, r, err, "unable to load settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var settings domain.CompanySettings
		if err := decodeJSON(r, &settings); err != nil {
			s.fail(w, r, err, "")
			return
		}
		settings.Name = strings.TrimSpace(settings.Name)
		if settings.Name == "" {
			writeError(w, http.StatusBadRequest, "company name is required")
			return
		}
		if settings.LogoURL == "" {
			if existing, err := s.store.Settings(r.Context()); err == nil {
				settings.LogoURL = existing.LogoURL
			}
		}
		if err := s.store.SaveSettings(r.Context(), &settings); err != nil {
			s.fail(w, r, err, "unable to save settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// logoHandler stores an uploaded logo in the public logo bucket and points
// the company settings at it.
func (s *server) logoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err, "unable to load settings")
		return
	}
	file, err := s.storeUpload(w, r, storage.BucketLogos, "logo_file")
	if err != nil {
		s.fail(w, r, err, "unable to upload logo")
		return
	}
	previous := settings.LogoURL
	settings.LogoURL = s.files.PublicURL(file.Bucket, file.Name)
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		s.discardUpload(r.Context(), file)
		s.fail(w, r, err, "unable to save settings")
		return
	}
	s.logger.Info("logo updated", zap.String("object", file.Name), zap.String("previous", previous))
	writeJSON(w, http.StatusOK, settings)
}

func (s *server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := s.store.Categories.List(r.Context())
		if err != nil {
			s.fail(w, r, err, "unable to load categories")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var req domain.IncidentCategory
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err, "")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "category name is required")
			return
		}
		category := &domain.IncidentCategory{Name: name}
		if err := s.store.Categories.Create(r.Context(), category); err != nil {
			s.fail(w, r, err, "unable to save category")
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) categoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	if err := s.store.Categories.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err, "unable to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
