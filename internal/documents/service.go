// Package documents loads the records a document needs and hands them to
// the PDF generator.
package documents

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/pdfgen"
	"github.com/elite6108/sitesafe/internal/store"
)

type Kind string

const (
	KindIncident       Kind = "incidents"
	KindRiskAssessment Kind = "risk-assessments"
	KindSignOff        Kind = "sign-offs"
	KindDSE            Kind = "dse-assessments"
)

var ErrUnknownKind = errors.New("unknown document kind")

func Kinds() []Kind {
	return []Kind{KindIncident, KindRiskAssessment, KindSignOff, KindDSE}
}

func ParseKind(raw string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

type Service struct {
	store    *store.Store
	gen      *pdfgen.Generator
	logger   *zap.Logger
	parallel int
}

func NewService(st *store.Store, gen *pdfgen.Generator, logger *zap.Logger, parallel int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallel <= 0 {
		parallel = 4
	}
	return &Service{store: st, gen: gen, logger: logger.Named("documents"), parallel: parallel}
}

// Generate renders the document for one record. A missing record returns
// store.ErrNotFound; missing settings or related records return the
// generator's errors.
func (s *Service) Generate(ctx context.Context, kind Kind, id string) (*pdfgen.Output, error) {
	switch kind {
	case KindIncident:
		var rec *domain.IncidentReport
		settings, err := s.load(ctx, func(ctx context.Context) (err error) {
			rec, err = s.store.Incidents.Get(ctx, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		return s.gen.IncidentReport(ctx, settings, rec)
	case KindRiskAssessment:
		var rec *domain.RiskAssessment
		settings, err := s.load(ctx, func(ctx context.Context) (err error) {
			rec, err = s.store.RiskAssessments.Get(ctx, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		return s.gen.RiskAssessment(ctx, settings, rec)
	case KindDSE:
		var rec *domain.DSEAssessment
		settings, err := s.load(ctx, func(ctx context.Context) (err error) {
			rec, err = s.store.DSEAssessments.Get(ctx, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		return s.gen.DSEAssessment(ctx, settings, rec)
	case KindSignOff:
		return s.signOff(ctx, id)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// signOff reads the sign-off first for its project and customer ids, then
// fetches settings, project and customer together.
func (s *Service) signOff(ctx context.Context, id string) (*pdfgen.Output, error) {
	so, err := s.store.SignOffs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var (
		project  *domain.Project
		customer *domain.Customer
	)
	settings, err := s.load(ctx,
		func(ctx context.Context) (err error) {
			project, err = optional(s.store.Projects.Get(ctx, so.ProjectID))
			return err
		},
		func(ctx context.Context) (err error) {
			customer, err = optional(s.store.Customers.Get(ctx, so.CustomerID))
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return s.gen.SignOff(ctx, settings, so, project, customer)
}

// load fetches company settings alongside the given loaders, at most
// s.parallel at a time.
func (s *Service) load(ctx context.Context, loaders ...func(context.Context) error) (*domain.CompanySettings, error) {
	var settings *domain.CompanySettings
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallel)
	group.Go(func() error {
		var err error
		settings, err = s.store.Settings(gctx)
		if errors.Is(err, store.ErrNotFound) {
			return pdfgen.ErrMissingSettings
		}
		return err
	})
	for _, fn := range loaders {
		group.Go(func() error { return fn(gctx) })
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return settings, nil
}

func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return v, err
}
