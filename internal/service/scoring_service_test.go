package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swimbuddz/academy-api/internal/models"
)

func TestScoringServiceDeterministic(t *testing.T) {
	svc := NewScoringService(models.DefaultScoringConfig(), nil, nil)

	inputs := models.ScoreInputs{
		Category:      models.CategoryLearnToSwim,
		Capacity:      10,
		LocationType:  models.LocationPool,
		DurationWeeks: 8,
	}

	first, err := svc.Score(inputs)
	require.NoError(t, err)
	second, err := svc.Score(inputs)
	require.NoError(t, err)
	require.Equal(t, first, second)

	firstJSON, err := MarshalDimensions(first.Dimensions)
	require.NoError(t, err)
	secondJSON, err := MarshalDimensions(second.Dimensions)
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON)
}

func TestScoringServiceBounds(t *testing.T) {
	svc := NewScoringService(models.DefaultScoringConfig(), nil, nil)

	low, err := svc.Score(models.ScoreInputs{
		Category:      models.CategoryAdjacentServices,
		Capacity:      4,
		LocationType:  models.LocationPool,
		DurationWeeks: 4,
	})
	require.NoError(t, err)
	require.Equal(t, 7, low.TotalScore)
	require.Equal(t, models.Grade1, low.RequiredGrade)

	high, err := svc.Score(models.ScoreInputs{
		Category:          models.CategorySpecialPopulations,
		Capacity:          25,
		LocationType:      models.LocationOpenWater,
		DurationWeeks:     20,
		SpecialPopulation: true,
		Pilot:             true,
	})
	require.NoError(t, err)
	require.Equal(t, 30, high.TotalScore)
	require.Equal(t, models.Grade3, high.RequiredGrade)
}

func TestScoringServiceMidBandRequiresGrade2(t *testing.T) {
	svc := NewScoringService(models.DefaultScoringConfig(), nil, nil)

	// size 3 + risk 2 + location 5 + special 1 + pilot 4 + duration 2 + cert 1 = 18
	result, err := svc.Score(models.ScoreInputs{
		Category:      models.CategoryLearnToSwim,
		Capacity:      12,
		LocationType:  models.LocationOpenWater,
		DurationWeeks: 8,
		Pilot:         true,
	})
	require.NoError(t, err)
	require.Equal(t, 18, result.TotalScore)
	require.Equal(t, models.Grade2, result.RequiredGrade)
	require.Equal(t, 43, result.PayBandMin)
	require.Equal(t, 52, result.PayBandMax)
}

func TestScoringServiceRejectsUnknownCategory(t *testing.T) {
	svc := NewScoringService(models.DefaultScoringConfig(), nil, nil)

	_, err := svc.Score(models.ScoreInputs{Category: "aqua_aerobics", Capacity: 8})
	require.Error(t, err)
}

func TestScoringServiceCertificationDimension(t *testing.T) {
	svc := NewScoringService(models.DefaultScoringConfig(), nil, nil)

	result, err := svc.Score(models.ScoreInputs{
		Category:      models.CategoryCertifications,
		Capacity:      8,
		LocationType:  models.LocationPool,
		DurationWeeks: 6,
	})
	require.NoError(t, err)
	require.Equal(t, 5, result.Dimensions[models.DimCertification])
	// size 2 + risk 4 + location 1 + special 1 + pilot 1 + duration 2 + cert 5 = 16
	require.Equal(t, 16, result.TotalScore)
	require.Equal(t, models.Grade2, result.RequiredGrade)
}
