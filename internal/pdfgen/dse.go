package pdfgen

import (
	"context"
	"fmt"

	"github.com/elite6108/sitesafe/internal/domain"
)

var dseIdentity = Section{
	Title: "ASSESSMENT DETAILS",
	Fields: []Field{
		{Key: "assessment_number", Label: "REFERENCE", Type: FieldText},
		{Key: "assessment_date", Label: "ASSESSED", Type: FieldDate},
		{Key: "next_review_date", Label: "NEXT REVIEW", Type: FieldDate},
	},
}

var dseEmployee = Section{
	Title: "EMPLOYEE",
	Fields: []Field{
		{Key: "employee_name", Label: "NAME", Type: FieldText},
		{Key: "job_title", Label: "JOB TITLE", Type: FieldText},
		{Key: "department", Label: "DEPARTMENT", Type: FieldText},
		{Key: "workstation", Label: "WORKSTATION", Type: FieldText},
		{Key: "hours_per_day", Label: "HOURS AT SCREEN PER DAY", Type: FieldText},
		{Key: "assessor", Label: "ASSESSOR", Type: FieldText},
	},
}

// DSEQuestion keys are the keys of DSEAssessment.Answers.
type DSEQuestion struct {
	Key  string
	Text string
}

type DSEArea struct {
	Title     string
	Questions []DSEQuestion
}

var DSEAreas = []DSEArea{
	{Title: "DISPLAY SCREEN", Questions: []DSEQuestion{
		{"screen_clear", "Is the screen image clear, stable and free from flicker?"},
		{"screen_adjustable", "Can brightness and contrast be adjusted?"},
		{"screen_position", "Can the screen swivel and tilt, and is the top at or below eye level?"},
		{"screen_glare", "Is the screen free from glare and reflections?"},
	}},
	{Title: "KEYBOARD", Questions: []DSEQuestion{
		{"keyboard_separate", "Is the keyboard separate from the screen?"},
		{"keyboard_tilt", "Does the keyboard tilt?"},
		{"keyboard_space", "Is there space in front of the keyboard to rest the hands?"},
		{"keyboard_legible", "Are the key symbols legible?"},
	}},
	{Title: "MOUSE AND INPUT DEVICES", Questions: []DSEQuestion{
		{"mouse_position", "Is the mouse close to the user?"},
		{"mouse_support", "Is there support for the wrist and forearm?"},
		{"mouse_smooth", "Does the mouse work smoothly at a speed that suits the user?"},
	}},
	{Title: "FURNITURE", Questions: []DSEQuestion{
		{"desk_size", "Is the work surface large enough for all equipment and papers?"},
		{"desk_surface", "Is the surface free from glare?"},
		{"desk_legroom", "Is there enough leg room?"},
	}},
	{Title: "CHAIR", Questions: []DSEQuestion{
		{"chair_stable", "Is the chair stable?"},
		{"chair_height", "Is the seat height adjustable?"},
		{"chair_back", "Is the back rest adjustable and does it support the lower back?"},
		{"chair_footrest", "Is a footrest provided where needed?"},
	}},
	{Title: "ENVIRONMENT", Questions: []DSEQuestion{
		{"env_space", "Is there enough room to change position and vary movement?"},
		{"env_lighting", "Is the lighting suitable?"},
		{"env_noise", "Are noise levels comfortable?"},
		{"env_temperature", "Are temperature and humidity comfortable?"},
	}},
	{Title: "SOFTWARE AND HEALTH", Questions: []DSEQuestion{
		{"software_suitable", "Is the software suitable for the task?"},
		{"breaks_taken", "Are regular breaks or changes of activity taken?"},
		{"eyesight_test", "Has the user been offered an eyesight test?"},
		{"discomfort", "Is the user free from aches, pains or eye strain?"},
	}},
}

var dseOutcome = Section{
	Title: "OUTCOME",
	Fields: []Field{
		{Key: "actions_required", Label: "ACTIONS REQUIRED", Type: FieldActions},
		{Key: "further_comments", Label: "FURTHER COMMENTS", Type: FieldText},
	},
}

var dseSignature = signatureSection("EMPLOYEE SIGNATURE", "signature")

var dseAreaSections = func() []Section {
	out := make([]Section, len(DSEAreas))
	for i, area := range DSEAreas {
		out[i] = Section{Title: area.Title}
		for _, q := range area.Questions {
			out[i].Fields = append(out[i].Fields, Field{Key: "answers." + q.Key, Label: q.Text, Type: FieldQuestion})
		}
	}
	return out
}()

func dseDocument(a *domain.DSEAssessment) (document, error) {
	values, err := recordValues(a)
	if err != nil {
		return document{}, err
	}
	doc := document{
		title:    "DSE ASSESSMENT",
		fileStem: "dse-assessment-" + a.AssessmentNumber,
		identity: dseIdentity,
		values:   values,
		blocks:   []block{{section: &dseEmployee}},
		created:  a.CreatedAt,
	}
	for i := range dseAreaSections {
		doc.blocks = append(doc.blocks, block{section: &dseAreaSections[i]})
	}
	doc.blocks = append(doc.blocks,
		block{section: &dseOutcome},
		block{section: &dseSignature, signature: a.Signature.Image},
	)
	return doc, nil
}

func (g *Generator) DSEAssessment(ctx context.Context, settings *domain.CompanySettings, a *domain.DSEAssessment) (*Output, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: dse assessment", ErrMissingRecord)
	}
	doc, err := dseDocument(a)
	if err != nil {
		return nil, fmt.Errorf("dse assessment %s: %w", a.ID, err)
	}
	return g.render(ctx, settings, doc)
}
