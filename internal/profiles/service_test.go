package profiles_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/EmpoweredVote/EV-Profiles/internal/apperrors"
	"github.com/EmpoweredVote/EV-Profiles/internal/places"
	"github.com/EmpoweredVote/EV-Profiles/internal/profiles"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

const square = `{"type":"Polygon","coordinates":[[[-71.1,42.3],[-71.0,42.3],[-71.0,42.4],[-71.1,42.4],[-71.1,42.3]]]}`

type memStore struct {
	profiles map[uuid.UUID]profiles.Profile
	saves    int
}

func newMemStore() *memStore {
	return &memStore{profiles: map[uuid.UUID]profiles.Profile{}}
}

func (m *memStore) ListByUser(ctx context.Context, userID string) ([]profiles.Profile, error) {
	var out []profiles.Profile
	for _, p := range m.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*profiles.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, apperrors.ErrNotFound)
	}
	return &p, nil
}

func (m *memStore) Save(ctx context.Context, p *profiles.Profile) error {
	m.saves++
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.profiles[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

type fakePlaces map[uuid.UUID]*places.Place

func (f fakePlaces) Lookup(ctx context.Context, id uuid.UUID) (*places.Place, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

type fakeReports map[uuid.UUID]*reports.Report

func (f fakeReports) Get(ctx context.Context, id uuid.UUID) (*reports.Report, error) {
	r, ok := f[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r, nil
}

// countingEvaluator wraps SummaryEvaluator and can be told to fail.
type countingEvaluator struct {
	calls int
	err   error
}

func (c *countingEvaluator) Evaluate(ctx context.Context, place *places.Place, report *reports.Report) (datatypes.JSON, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return profiles.SummaryEvaluator{}.Evaluate(ctx, place, report)
}

type env struct {
	store     *memStore
	evaluator *countingEvaluator
	place     *places.Place
	report    *reports.Report
	svc       *profiles.Service
}

func newEnv(opts ...profiles.Option) *env {
	e := &env{
		store:     newMemStore(),
		evaluator: &countingEvaluator{},
		place: &places.Place{
			ID:       uuid.New(),
			UserID:   "user-1",
			Name:     "Dudley",
			Geometry: datatypes.JSON(square),
			Geoids:   []string{"25025080200", "25025080100"},
		},
		report: &reports.Report{ID: uuid.New(), Title: "Median income"},
	}
	e.svc = profiles.NewService(e.store,
		fakePlaces{e.place.ID: e.place},
		fakeReports{e.report.ID: e.report},
		e.evaluator,
		opts...,
	)
	return e
}

func (e *env) complete() *profiles.Profile {
	return &profiles.Profile{UserID: "user-1", PlaceID: &e.place.ID, ReportID: &e.report.ID}
}

func validationErrors(t *testing.T, err error) validation.Errors {
	t.Helper()
	var errs validation.Errors
	require.True(t, errors.As(err, &errs), "expected validation errors, got %v", err)
	return errs
}

func TestProfile_Title(t *testing.T) {
	place := &places.Place{Name: "Dudley"}
	report := &reports.Report{Title: "Median income"}

	tests := []struct {
		name    string
		profile profiles.Profile
		want    string
	}{
		{"both", profiles.Profile{Place: place, Report: report}, "Median income in Dudley"},
		{"no report", profiles.Profile{Place: place}, " in Dudley"},
		{"no place", profiles.Profile{Report: report}, "Median income in "},
		{"neither", profiles.Profile{}, " in "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.Title())
		})
	}
}

func TestProfile_CompleteRequiresBothHalves(t *testing.T) {
	place := &places.Place{}
	report := &reports.Report{}

	p := profiles.Profile{}
	assert.False(t, p.IsComplete())
	p.Place = place
	assert.False(t, p.IsComplete())
	p.Report = report
	assert.True(t, p.IsComplete())
	assert.False(t, p.IsIncomplete())
	p.Place = nil
	assert.False(t, p.IsComplete())
	assert.True(t, p.IsIncomplete())
}

func TestSave_StateMachine(t *testing.T) {
	tests := []struct {
		name          string
		withPlace     bool
		withReport    bool
		wantEvaluated bool
	}{
		{"neither", false, false, false},
		{"place only", true, false, false},
		{"report only", false, true, false},
		{"both", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			p := &profiles.Profile{UserID: "user-1"}
			if tt.withPlace {
				p.PlaceID = &e.place.ID
			}
			if tt.withReport {
				p.ReportID = &e.report.ID
			}

			require.NoError(t, e.svc.Save(context.Background(), p))

			assert.Equal(t, tt.wantEvaluated, p.IsComplete())
			assert.Equal(t, tt.wantEvaluated, p.IsEvaluated())
			assert.Equal(t, tt.wantEvaluated, p.Evaluation != nil)
			assert.Equal(t, tt.wantEvaluated, e.evaluator.calls == 1)
			assert.Equal(t, 1, e.store.saves)
		})
	}
}

func TestSave_EvaluatedAtStrictlyIncreases(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := newEnv(profiles.WithClock(func() time.Time { return frozen }))
	p := e.complete()

	require.NoError(t, e.svc.Save(context.Background(), p))
	first := *p.EvaluatedAt
	firstEvaluation := string(p.Evaluation)

	require.NoError(t, e.svc.Save(context.Background(), p))
	second := *p.EvaluatedAt

	assert.True(t, second.After(first), "second=%s first=%s", second, first)
	assert.Equal(t, firstEvaluation, string(p.Evaluation), "evaluation content is deterministic")
	assert.Equal(t, 2, e.evaluator.calls, "evaluation is never skipped")
}

func TestSave_EvaluatedAtFollowsClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	e := newEnv(profiles.WithClock(func() time.Time { return now }))
	p := e.complete()

	require.NoError(t, e.svc.Save(context.Background(), p))
	assert.Equal(t, now.Truncate(time.Microsecond), *p.EvaluatedAt)

	now = now.Add(time.Hour)
	require.NoError(t, e.svc.Save(context.Background(), p))
	assert.Equal(t, now.Truncate(time.Microsecond), *p.EvaluatedAt)
}

func TestSave_EvaluationFailureAbortsSave(t *testing.T) {
	e := newEnv()
	p := e.complete()
	require.NoError(t, e.svc.Save(context.Background(), p))
	before := *p.EvaluatedAt
	beforeEvaluation := string(p.Evaluation)

	cause := errors.New("scoring service unavailable")
	e.evaluator.err = cause
	err := e.svc.Save(context.Background(), p)

	var evalErr *profiles.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, e.store.saves, "failed save must not reach the store")
	assert.Equal(t, before, *p.EvaluatedAt)
	assert.Equal(t, beforeEvaluation, string(p.Evaluation))
}

func TestSave_IncompletePreservesStaleEvaluation(t *testing.T) {
	e := newEnv()
	p := e.complete()
	require.NoError(t, e.svc.Save(context.Background(), p))
	evaluatedAt := *p.EvaluatedAt

	p.PlaceID = nil
	require.NoError(t, e.svc.Save(context.Background(), p))

	assert.True(t, p.IsIncomplete())
	require.NotNil(t, p.EvaluatedAt)
	assert.Equal(t, evaluatedAt, *p.EvaluatedAt)
	assert.NotNil(t, p.Evaluation)
	assert.Equal(t, 1, e.evaluator.calls)
}

func TestSave_IncompleteClearsStaleEvaluationWhenConfigured(t *testing.T) {
	e := newEnv(profiles.WithClearStale(true))
	p := e.complete()
	require.NoError(t, e.svc.Save(context.Background(), p))

	p.ReportID = nil
	require.NoError(t, e.svc.Save(context.Background(), p))

	assert.Nil(t, p.EvaluatedAt)
	assert.Nil(t, p.Evaluation)
	assert.False(t, p.IsEvaluated())
}

func TestSave_UnknownReferences(t *testing.T) {
	e := newEnv()
	missingPlace, missingReport := uuid.New(), uuid.New()
	p := &profiles.Profile{UserID: "user-1", PlaceID: &missingPlace, ReportID: &missingReport}

	errs := validationErrors(t, e.svc.Save(context.Background(), p))

	require.Len(t, errs, 2)
	assert.Equal(t, validation.UnknownReference, errs.On("place")[0].Code)
	assert.Equal(t, validation.UnknownReference, errs.On("report")[0].Code)
	assert.Zero(t, e.store.saves)
	assert.Zero(t, e.evaluator.calls)
}

func TestSave_RejectsSomeoneElsesPlace(t *testing.T) {
	e := newEnv()
	p := e.complete()
	p.UserID = "user-2"

	errs := validationErrors(t, e.svc.Save(context.Background(), p))

	assert.True(t, errs.Has(validation.UnknownReference))
	assert.Zero(t, e.store.saves)
}

func TestReevaluate(t *testing.T) {
	e := newEnv()
	p := e.complete()
	require.NoError(t, e.svc.Save(context.Background(), p))

	_, err := e.svc.Reevaluate(context.Background(), "user-2", p.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	got, err := e.svc.Reevaluate(context.Background(), "user-1", p.ID)
	require.NoError(t, err)
	assert.True(t, got.EvaluatedAt.After(*p.EvaluatedAt))
	assert.Equal(t, 2, e.evaluator.calls)
}

func TestReevaluate_IncompleteProfile(t *testing.T) {
	e := newEnv()
	p := &profiles.Profile{UserID: "user-1", PlaceID: &e.place.ID}
	require.NoError(t, e.svc.Save(context.Background(), p))

	_, err := e.svc.Reevaluate(context.Background(), "user-1", p.ID)

	errs := validationErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "report", errs[0].Field)
	assert.Equal(t, validation.MissingRequiredField, errs[0].Code)
}

func TestEvaluate_RequiresCompleteProfile(t *testing.T) {
	e := newEnv()

	err := e.svc.Evaluate(context.Background(), &profiles.Profile{Place: e.place})

	assert.ErrorIs(t, err, profiles.ErrIncomplete)
	assert.Zero(t, e.evaluator.calls)
}
