package pdfgen

import (
	"context"
	"fmt"

	"github.com/elite6108/sitesafe/internal/domain"
)

var incidentIdentity = Section{
	Title: "REPORT DETAILS",
	Fields: []Field{
		{Key: "report_number", Label: "REPORT NO", Type: FieldText},
		{Key: "incident_date", Label: "DATE OF INCIDENT", Type: FieldDateTime},
		{Key: "category", Label: "CATEGORY", Type: FieldText},
		{Key: "status", Label: "STATUS", Type: FieldText},
	},
}

var incidentSections = []Section{
	{
		Title: "INCIDENT DETAILS",
		Fields: []Field{
			{Key: "incident_type", Label: "INCIDENT TYPE", Type: FieldText},
			{Key: "reported_by", Label: "REPORTED BY", Type: FieldText},
			{Key: "reported_at", Label: "REPORTED AT", Type: FieldDateTime},
			{Key: "project_name", Label: "PROJECT", Type: FieldText},
			{Key: "location", Label: "LOCATION", Type: FieldText},
			{Key: "description", Label: "DESCRIPTION", Type: FieldText},
			{Key: "immediate_actions", Label: "IMMEDIATE ACTIONS", Type: FieldText},
		},
	},
	{
		Title: "INJURY DETAILS",
		Fields: []Field{
			{Key: "injured_person_name", Label: "INJURED PERSON", Type: FieldText},
			{Key: "injured_person_role", Label: "ROLE", Type: FieldText},
			{Key: "injury_type", Label: "INJURY TYPE", Type: FieldText},
			{Key: "body_parts", Label: "BODY PARTS AFFECTED", Type: FieldList},
			{Key: "first_aid_given", Label: "FIRST AID GIVEN", Type: FieldBool},
			{Key: "hospital_visit", Label: "HOSPITAL VISIT", Type: FieldBool},
		},
	},
	{
		Title: "TIME LOST",
		Fields: []Field{
			{Key: "time_lost", Label: "TIME LOST", Type: FieldBool},
			{Key: "time_lost_days", Label: "DAYS LOST", Type: FieldText},
			{Key: "return_to_work_date", Label: "RETURN TO WORK", Type: FieldDate},
		},
	},
	{
		Title: "REPORTING",
		Fields: []Field{
			{Key: "riddor_reportable", Label: "RIDDOR REPORTABLE", Type: FieldBool},
			{Key: "riddor_reference", Label: "RIDDOR REFERENCE", Type: FieldText},
		},
	},
	{
		Title: "INVESTIGATION",
		Fields: []Field{
			{Key: "witnesses", Label: "WITNESSES", Type: FieldList},
			{Key: "root_cause", Label: "ROOT CAUSE", Type: FieldText},
			{Key: "contributing_factors", Label: "CONTRIBUTING FACTORS", Type: FieldList},
		},
	},
	{
		Title: "CORRECTIVE ACTIONS",
		Fields: []Field{
			{Key: "actions", Label: "ACTIONS", Type: FieldActions},
			{Key: "closed_at", Label: "CLOSED", Type: FieldDate},
		},
	},
}

func incidentDocument(r *domain.IncidentReport) (document, error) {
	values, err := recordValues(r)
	if err != nil {
		return document{}, err
	}
	doc := document{
		title:       "INCIDENT REPORT",
		fileStem:    "incident-report-" + r.ReportNumber,
		identity:    incidentIdentity,
		values:      values,
		attachments: r.ImageURLs,
		created:     r.CreatedAt,
	}
	for i := range incidentSections {
		doc.blocks = append(doc.blocks, block{section: &incidentSections[i]})
	}
	return doc, nil
}

func (g *Generator) IncidentReport(ctx context.Context, settings *domain.CompanySettings, r *domain.IncidentReport) (*Output, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: incident report", ErrMissingRecord)
	}
	doc, err := incidentDocument(r)
	if err != nil {
		return nil, fmt.Errorf("incident report %s: %w", r.ID, err)
	}
	return g.render(ctx, settings, doc)
}
