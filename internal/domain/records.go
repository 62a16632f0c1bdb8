// Package domain holds the row shapes shared by the store, the HTTP API and
// the document generators. JSON tags match the store's column names.
package domain

import "time"

type CompanySettings struct {
	Name          string    `json:"name"`
	AddressLine1  string    `json:"address_line1"`
	AddressLine2  string    `json:"address_line2,omitempty"`
	Town          string    `json:"town,omitempty"`
	County        string    `json:"county,omitempty"`
	Postcode      string    `json:"postcode,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Website       string    `json:"website,omitempty"`
	LogoURL       string    `json:"logo_url,omitempty"`
	CompanyNumber string    `json:"company_number,omitempty"`
	VATNumber     string    `json:"vat_number,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Action is one corrective action attached to an incident report.
type Action struct {
	Title   string `json:"title"`
	DueDate string `json:"due_date,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

type IncidentReport struct {
	ID                  string    `json:"id"`
	ReportNumber        string    `json:"report_number"`
	Status              string    `json:"status,omitempty"`
	Category            string    `json:"category,omitempty"`
	IncidentType        string    `json:"incident_type,omitempty"`
	IncidentDate        string    `json:"incident_date,omitempty"`
	ReportedBy          string    `json:"reported_by,omitempty"`
	ReportedAt          string    `json:"reported_at,omitempty"`
	ProjectName         string    `json:"project_name,omitempty"`
	Location            string    `json:"location,omitempty"`
	Description         string    `json:"description,omitempty"`
	ImmediateActions    string    `json:"immediate_actions,omitempty"`
	InjuredPersonName   string    `json:"injured_person_name,omitempty"`
	InjuredPersonRole   string    `json:"injured_person_role,omitempty"`
	InjuryType          string    `json:"injury_type,omitempty"`
	BodyParts           []string  `json:"body_parts,omitempty"`
	FirstAidGiven       *bool     `json:"first_aid_given,omitempty"`
	HospitalVisit       *bool     `json:"hospital_visit,omitempty"`
	TimeLost            *bool     `json:"time_lost,omitempty"`
	TimeLostDays        string    `json:"time_lost_days,omitempty"`
	ReturnToWorkDate    string    `json:"return_to_work_date,omitempty"`
	RIDDORReportable    *bool     `json:"riddor_reportable,omitempty"`
	RIDDORReference     string    `json:"riddor_reference,omitempty"`
	Witnesses           []string  `json:"witnesses,omitempty"`
	RootCause           string    `json:"root_cause,omitempty"`
	ContributingFactors []string  `json:"contributing_factors,omitempty"`
	Actions             []Action  `json:"actions,omitempty"`
	ClosedAt            string    `json:"closed_at,omitempty"`
	ImageURLs           []string  `json:"image_urls,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Hazard is one row of a risk assessment's hazard grid. Likelihood and
// Severity are scored 1-5.
type Hazard struct {
	Hazard     string `json:"hazard"`
	WhoAtRisk  string `json:"who_at_risk,omitempty"`
	Likelihood int    `json:"likelihood,omitempty"`
	Severity   int    `json:"severity,omitempty"`
	Controls   string `json:"controls,omitempty"`
	Residual   int    `json:"residual,omitempty"`
}

func (h Hazard) RiskRating() int {
	return h.Likelihood * h.Severity
}

type RiskAssessment struct {
	ID                   string    `json:"id"`
	RANumber             string    `json:"ra_number"`
	Name                 string    `json:"name"`
	ProjectName          string    `json:"project_name,omitempty"`
	Location             string    `json:"location,omitempty"`
	Assessor             string    `json:"assessor,omitempty"`
	AssessmentDate       string    `json:"assessment_date,omitempty"`
	ReviewDate           string    `json:"review_date,omitempty"`
	Description          string    `json:"description,omitempty"`
	Hazards              []Hazard  `json:"hazards,omitempty"`
	WorkingMethods       []string  `json:"working_methods,omitempty"`
	PPE                  []string  `json:"ppe,omitempty"`
	SequenceOfOperations string    `json:"sequence_of_operations,omitempty"`
	Guidelines           string    `json:"guidelines,omitempty"`
	EmergencyProcedures  string    `json:"emergency_procedures,omitempty"`
	FirstAidArrangements string    `json:"first_aid_arrangements,omitempty"`
	SignedOffBy          string    `json:"signed_off_by,omitempty"`
	ImageURLs            []string  `json:"image_urls,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Reference   string    `json:"reference,omitempty"`
	SiteAddress string    `json:"site_address,omitempty"`
	SiteManager string    `json:"site_manager,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	CustomerID  string    `json:"customer_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CompanyName string    `json:"company_name,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Signature is a named signatory. Image, when set, is a data URL or a
// storage URL of the drawn signature.
type Signature struct {
	Name     string `json:"name,omitempty"`
	Position string `json:"position,omitempty"`
	SignedAt string `json:"signed_at,omitempty"`
	Image    string `json:"image,omitempty"`
}

type SignOff struct {
	ID                string    `json:"id"`
	SignOffNumber     string    `json:"sign_off_number"`
	ProjectID         string    `json:"project_id"`
	CustomerID        string    `json:"customer_id"`
	ContractReference string    `json:"contract_reference,omitempty"`
	CompletionDate    string    `json:"completion_date,omitempty"`
	WorksDescription  string    `json:"works_description,omitempty"`
	Snags             []string  `json:"snags,omitempty"`
	WorksSatisfactory *bool     `json:"works_satisfactory,omitempty"`
	SiteLeftClean     *bool     `json:"site_left_clean,omitempty"`
	Comments          string    `json:"comments,omitempty"`
	CustomerSignature Signature `json:"customer_signature"`
	CompanySignature  Signature `json:"company_signature"`
	ImageURLs         []string  `json:"image_urls,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DSEAnswer is the response to one display screen equipment question.
type DSEAnswer struct {
	Answer  *bool  `json:"answer,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type DSEAssessment struct {
	ID               string               `json:"id"`
	AssessmentNumber string               `json:"assessment_number"`
	EmployeeName     string               `json:"employee_name"`
	JobTitle         string               `json:"job_title,omitempty"`
	Department       string               `json:"department,omitempty"`
	Workstation      string               `json:"workstation,omitempty"`
	AssessmentDate   string               `json:"assessment_date,omitempty"`
	Assessor         string               `json:"assessor,omitempty"`
	HoursPerDay      string               `json:"hours_per_day,omitempty"`
	Answers          map[string]DSEAnswer `json:"answers,omitempty"`
	ActionsRequired  []Action             `json:"actions_required,omitempty"`
	FurtherComments  string               `json:"further_comments,omitempty"`
	NextReviewDate   string               `json:"next_review_date,omitempty"`
	Signature        Signature            `json:"signature"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type IncidentCategory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
