package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/EV-Profiles/internal/validation"
)

func TestErrors_EmptyIsNil(t *testing.T) {
	var errs validation.Errors
	assert.NoError(t, errs.Err())
}

func TestErrors_CollectsAll(t *testing.T) {
	var errs validation.Errors
	errs.Add("geometry", validation.WrongGeometryType, "must be a Polygon, got %s", "LineString")
	errs.Add("geometry", validation.AreaOutOfRange, "area %.2f out of range", 2.0)
	errs.Add("name", validation.MissingRequiredField, "is too short")

	err := errs.Err()
	require.Error(t, err)

	var got validation.Errors
	require.True(t, errors.As(err, &got))
	assert.Len(t, got, 3)
	assert.True(t, got.Has(validation.AreaOutOfRange))
	assert.False(t, got.Has(validation.PayloadTooLarge))
	assert.Len(t, got.On("geometry"), 2)
	assert.Contains(t, err.Error(), "geometry: must be a Polygon, got LineString")
}
