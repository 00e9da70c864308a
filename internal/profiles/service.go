package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
	"github.com/EmpoweredVote/EV-Profiles/internal/places"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

// EvaluationError aborts a save whose evaluation failed.
type EvaluationError struct {
	ProfileID uuid.UUID
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate profile %s: %v", e.ProfileID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ErrIncomplete is returned when evaluation is requested without both a
// place and a report.
var ErrIncomplete = errors.New("profile is incomplete")

type PlaceLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*places.Place, error)
}

type ReportLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*reports.Report, error)
}

type Service struct {
	store      Store
	places     PlaceLookup
	reports    ReportLookup
	evaluator  Evaluator
	now        func() time.Time
	clearStale bool
	logger     *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithClearStale makes saving an incomplete profile drop its evaluation.
func WithClearStale(clear bool) Option {
	return func(s *Service) { s.clearStale = clear }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, pl PlaceLookup, rl ReportLookup, evaluator Evaluator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		places:    pl,
		reports:   rl,
		evaluator: evaluator,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, userID string) ([]Profile, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Profile, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("profile %s: %w", id, apperrors.ErrForbidden)
	}
	return p, nil
}

// Evaluate recomputes the evaluation of a complete profile and stamps it.
// On failure p is left unchanged.
func (s *Service) Evaluate(ctx context.Context, p *Profile) error {
	if p.IsIncomplete() {
		return ErrIncomplete
	}

	result, err := s.evaluator.Evaluate(ctx, p.Place, p.Report)
	if err != nil {
		return &EvaluationError{ProfileID: p.ID, Err: err}
	}

	p.Evaluation = result
	p.EvaluatedAt = s.nextEvaluatedAt(p.EvaluatedAt)
	return nil
}

// Save resolves the profile's place and report, evaluates it when complete
// and persists it. Nothing is written when resolution or evaluation fails.
func (s *Service) Save(ctx context.Context, p *Profile) error {
	if err := s.resolve(ctx, p); err != nil {
		return err
	}

	if p.IsComplete() {
		if err := s.Evaluate(ctx, p); err != nil {
			s.logger.Error("Profile evaluation failed",
				zap.String("profile_id", p.ID.String()),
				zap.Error(err),
			)
			return err
		}
	} else if s.clearStale {
		p.Evaluation = nil
		p.EvaluatedAt = nil
	}

	return s.store.Save(ctx, p)
}

// Reevaluate saves a stored complete profile again, refreshing its
// evaluation.
func (s *Service) Reevaluate(ctx context.Context, userID string, id uuid.UUID) (*Profile, error) {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var errs validation.Errors
	if p.PlaceID == nil {
		errs.Add("place", validation.MissingRequiredField, "must be present to evaluate")
	}
	if p.ReportID == nil {
		errs.Add("report", validation.MissingRequiredField, "must be present to evaluate")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// resolve loads Place and Report from their ids. An id naming a missing row,
// or a place owned by someone else, is reported as UnknownReference.
func (s *Service) resolve(ctx context.Context, p *Profile) error {
	var errs validation.Errors

	switch {
	case p.PlaceID == nil:
		p.Place = nil
	case p.Place == nil || p.Place.ID != *p.PlaceID:
		pl, err := s.places.Lookup(ctx, *p.PlaceID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			errs.Add("place", validation.UnknownReference, "references unknown place %s", *p.PlaceID)
		case err != nil:
			return err
		case pl.UserID != p.UserID:
			errs.Add("place", validation.UnknownReference, "references unknown place %s", *p.PlaceID)
		default:
			p.Place = pl
		}
	}

	switch {
	case p.ReportID == nil:
		p.Report = nil
	case p.Report == nil || p.Report.ID != *p.ReportID:
		r, err := s.reports.Get(ctx, *p.ReportID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			errs.Add("report", validation.UnknownReference, "references unknown report %s", *p.ReportID)
		case err != nil:
			return err
		default:
			p.Report = r
		}
	}

	return errs.Err()
}

// nextEvaluatedAt returns the current time at Postgres precision, moved past
// prev when the clock has not advanced.
func (s *Service) nextEvaluatedAt(prev *time.Time) *time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if prev != nil && !now.After(*prev) {
		now = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return &now
}
