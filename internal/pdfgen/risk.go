package pdfgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/elite6108/sitesafe/internal/domain"
)

var riskIdentity = Section{
	Title: "ASSESSMENT DETAILS",
	Fields: []Field{
		{Key: "ra_number", Label: "RA NO", Type: FieldText},
		{Key: "name", Label: "ACTIVITY", Type: FieldText},
		{Key: "assessment_date", Label: "ASSESSED", Type: FieldDate},
		{Key: "review_date", Label: "REVIEW DATE", Type: FieldDate},
	},
}

var riskScope = Section{
	Title: "SCOPE OF WORKS",
	Fields: []Field{
		{Key: "project_name", Label: "PROJECT", Type: FieldText},
		{Key: "location", Label: "LOCATION", Type: FieldText},
		{Key: "assessor", Label: "ASSESSOR", Type: FieldText},
		{Key: "description", Label: "DESCRIPTION", Type: FieldText},
	},
}

var riskGuidance = Section{
	Title: "GUIDANCE",
	Fields: []Field{
		{Key: "sequence_of_operations", Label: "SEQUENCE OF OPERATIONS", Type: FieldText},
		{Key: "guidelines", Label: "GUIDELINES", Type: FieldText},
		{Key: "emergency_procedures", Label: "EMERGENCY PROCEDURES", Type: FieldText},
		{Key: "first_aid_arrangements", Label: "FIRST AID", Type: FieldText},
		{Key: "signed_off_by", Label: "SIGNED OFF BY", Type: FieldText},
	},
}

var hazardColumns = []Column{
	{Header: "HAZARD", Width: 0.22},
	{Header: "WHO AT RISK", Width: 0.15},
	{Header: "L", Width: 0.06},
	{Header: "S", Width: 0.06},
	{Header: "RISK", Width: 0.08},
	{Header: "CONTROL MEASURES", Width: 0.33},
	{Header: "RESIDUAL", Width: 0.10},
}

const ppePerRow = 3

func hazardTable(hazards []domain.Hazard) Table {
	t := Table{Title: "HAZARDS", Columns: hazardColumns}
	for _, h := range hazards {
		row := []string{
			strings.TrimSpace(h.Hazard),
			strings.TrimSpace(h.WhoAtRisk),
			score(h.Likelihood),
			score(h.Severity),
			score(h.RiskRating()),
			strings.TrimSpace(h.Controls),
			score(h.Residual),
		}
		if row[0] == "" && row[1] == "" && row[5] == "" {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// score renders an unscored value as 0.
func score(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}

func numberedTable(title, header string, items []string) Table {
	t := Table{Title: title, Columns: []Column{{Header: "#", Width: 0.08}, {Header: header, Width: 0.92}}}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			t.Rows = append(t.Rows, []string{strconv.Itoa(len(t.Rows) + 1), item})
		}
	}
	return t
}

// ppeTable lays PPE items out in a grid without column headers.
func ppeTable(items []string) Table {
	cols := make([]Column, ppePerRow)
	for i := range cols {
		cols[i] = Column{Width: 1.0 / ppePerRow}
	}
	t := Table{Title: "PPE REQUIRED", Columns: cols}
	var row []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		row = append(row, item)
		if len(row) == ppePerRow {
			t.Rows = append(t.Rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		for len(row) < ppePerRow {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func riskDocument(ra *domain.RiskAssessment) (document, error) {
	values, err := recordValues(ra)
	if err != nil {
		return document{}, err
	}
	hazards := hazardTable(ra.Hazards)
	methods := numberedTable("WORKING METHODS", "METHOD", ra.WorkingMethods)
	ppe := ppeTable(ra.PPE)
	return document{
		title:    "RISK ASSESSMENT",
		fileStem: "risk-assessment-" + ra.RANumber,
		identity: riskIdentity,
		values:   values,
		blocks: []block{
			{section: &riskScope},
			{table: &hazards},
			{table: &methods},
			{table: &ppe},
			{section: &riskGuidance},
		},
		attachments: ra.ImageURLs,
		created:     ra.CreatedAt,
	}, nil
}

func (g *Generator) RiskAssessment(ctx context.Context, settings *domain.CompanySettings, ra *domain.RiskAssessment) (*Output, error) {
	if ra == nil {
		return nil, fmt.Errorf("%w: risk assessment", ErrMissingRecord)
	}
	doc, err := riskDocument(ra)
	if err != nil {
		return nil, fmt.Errorf("risk assessment %s: %w", ra.ID, err)
	}
	return g.render(ctx, settings, doc)
}
