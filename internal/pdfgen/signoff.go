package pdfgen

import (
	"context"
	"fmt"

	"github.com/elite6108/sitesafe/internal/domain"
)

var signOffIdentity = Section{
	Title: "SIGN-OFF DETAILS",
	Fields: []Field{
		{Key: "sign_off_number", Label: "REFERENCE", Type: FieldText},
		{Key: "contract_reference", Label: "CONTRACT REF", Type: FieldText},
		{Key: "completion_date", Label: "COMPLETED", Type: FieldDate},
	},
}

var (
	signOffProject = Section{
		Title: "PROJECT",
		Fields: []Field{
			{Key: "project.name", Label: "PROJECT", Type: FieldText},
			{Key: "project.reference", Label: "PROJECT REF", Type: FieldText},
			{Key: "project.site_address", Label: "SITE ADDRESS", Type: FieldText},
			{Key: "project.site_manager", Label: "SITE MANAGER", Type: FieldText},
			{Key: "project.start_date", Label: "START DATE", Type: FieldDate},
			{Key: "project.end_date", Label: "END DATE", Type: FieldDate},
		},
	}
	signOffCustomer = Section{
		Title: "CUSTOMER",
		Fields: []Field{
			{Key: "customer.name", Label: "CUSTOMER", Type: FieldText},
			{Key: "customer.company_name", Label: "COMPANY", Type: FieldText},
			{Key: "customer.address", Label: "ADDRESS", Type: FieldText},
			{Key: "customer.phone", Label: "PHONE", Type: FieldText},
			{Key: "customer.email", Label: "EMAIL", Type: FieldText},
		},
	}
	signOffWorks = Section{
		Title: "COMPLETED WORKS",
		Fields: []Field{
			{Key: "works_description", Label: "DESCRIPTION OF WORKS", Type: FieldText},
			{Key: "snags", Label: "OUTSTANDING SNAGS", Type: FieldList},
			{Key: "works_satisfactory", Label: "WORKS SATISFACTORY", Type: FieldBool},
			{Key: "site_left_clean", Label: "SITE LEFT CLEAN", Type: FieldBool},
			{Key: "comments", Label: "COMMENTS", Type: FieldText},
		},
	}
	signOffCustomerSignature = signatureSection("CUSTOMER SIGNATURE", "customer_signature")
	signOffCompanySignature  = signatureSection("COMPANY SIGNATURE", "company_signature")
)

func signatureSection(title, key string) Section {
	return Section{
		Title: title,
		Fields: []Field{
			{Key: key + ".name", Label: "NAME", Type: FieldText},
			{Key: key + ".position", Label: "POSITION", Type: FieldText},
			{Key: key + ".signed_at", Label: "DATE", Type: FieldDate},
		},
	}
}

func signOffDocument(so *domain.SignOff, project *domain.Project, customer *domain.Customer) (document, error) {
	values, err := recordValues(so)
	if err != nil {
		return document{}, err
	}
	if values["project"], err = recordValues(project); err != nil {
		return document{}, err
	}
	if values["customer"], err = recordValues(customer); err != nil {
		return document{}, err
	}
	return document{
		title:    "CONTRACT SIGN-OFF",
		fileStem: "sign-off-" + so.SignOffNumber,
		identity: signOffIdentity,
		values:   values,
		blocks: []block{
			{section: &signOffProject},
			{section: &signOffCustomer},
			{section: &signOffWorks},
			{section: &signOffCustomerSignature, signature: so.CustomerSignature.Image},
			{section: &signOffCompanySignature, signature: so.CompanySignature.Image},
		},
		attachments: so.ImageURLs,
		created:     so.CreatedAt,
	}, nil
}

// SignOff needs the project and customer the sign-off refers to; either
// being nil aborts generation.
func (g *Generator) SignOff(ctx context.Context, settings *domain.CompanySettings, so *domain.SignOff, project *domain.Project, customer *domain.Customer) (*Output, error) {
	switch {
	case so == nil:
		return nil, fmt.Errorf("%w: sign-off", ErrMissingRecord)
	case project == nil:
		return nil, fmt.Errorf("%w: project %s", ErrMissingRecord, so.ProjectID)
	case customer == nil:
		return nil, fmt.Errorf("%w: customer %s", ErrMissingRecord, so.CustomerID)
	}
	doc, err := signOffDocument(so, project, customer)
	if err != nil {
		return nil, fmt.Errorf("sign-off %s: %w", so.ID, err)
	}
	return g.render(ctx, settings, doc)
}
