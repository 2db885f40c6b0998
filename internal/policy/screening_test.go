package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/entity"
)

func TestScreening_NotDue(t *testing.T) {
	e := visit(entity.StateScreening, 100)
	e.TimeSysp = 200

	require.NoError(t, newPathway(nil).Screening(e))
	assert.Empty(t, e.Resources)
	assert.Equal(t, 200.0, e.TimeSysp)
}

func TestScreening_RoutineVisit(t *testing.T) {
	e := visit(entity.StateScreening, 100)

	require.NoError(t, newPathway(nil).Screening(e))

	assert.Equal(t, []string{"Dental Appointment"}, resourceLabels(e))
	assert.Equal(t, 1, e.Care.DentalVisits)
	assert.Equal(t, 465.0, e.Care.TimeDentist, "interval is truncated to whole days")
	assert.Equal(t, 465.0, e.TimeSysp)
	assert.Equal(t, entity.StateScreening, e.State)
}

func TestScreening_BenignLesionFalsePositive(t *testing.T) {
	p := newPathway(map[string]float64{ParamScreenAnyLesion: 1})
	e := visit(entity.StateScreening, 100)

	require.NoError(t, p.Screening(e))
	assert.True(t, e.Care.ScreenReturn)
	assert.Equal(t, 121.0, e.TimeSysp)

	e.AllTime = e.TimeSysp
	require.NoError(t, p.Screening(e))

	assert.False(t, e.Care.ScreenReturn)
	assert.Equal(t, 1, e.Care.FalsePositives)
	assert.Equal(t, []string{"False positive"}, eventLabels(e))
	assert.Equal(t, []string{
		"Dental Appointment", "Cancer Screening",
		"Dental Appointment", "Cancer Screening", "Specialist Appointment", "Biopsy",
	}, resourceLabels(e))
	assert.Equal(t, 121.0+365, e.TimeSysp)
}

func TestScreening_BenignLesionNotRecalled(t *testing.T) {
	p := newPathway(map[string]float64{ParamScreenAnyLesion: 1, ParamScreenWillReturn: 0})
	e := visit(entity.StateScreening, 0)

	require.NoError(t, p.Screening(e))
	assert.False(t, e.Care.ScreenReturn)
	assert.Equal(t, 365.0, e.TimeSysp)
}

func TestScreening_OPLDiagnosedAtReturn(t *testing.T) {
	p := newPathway(nil)
	e := visit(entity.StateScreening, 100)
	e.HasOPL = true
	e.OPLPresent = true

	require.NoError(t, p.Screening(e))
	assert.True(t, e.Care.ScreenReturn)

	e.AllTime = e.TimeSysp
	require.NoError(t, p.Screening(e))

	assert.Equal(t, entity.StateOPLManagement, e.State)
	assert.True(t, e.OPLDetected)
	assert.True(t, e.DiseaseDetected)
	assert.Equal(t, 121.0, e.TimeOPLDetected)
	assert.Equal(t, 121.0, e.Care.OPLNextVisit)
	assert.Equal(t, []string{"OPL Diagnosed"}, eventLabels(e))
	assert.Equal(t, entity.Utility{Label: "Detected OPL", Value: 0.8, Time: 121}, e.Utility[0])
}

func TestScreening_OPLMissed(t *testing.T) {
	p := newPathway(map[string]float64{ParamScreenSensitivity: 0})
	e := visit(entity.StateScreening, 0)
	e.OPLPresent = true

	require.NoError(t, p.Screening(e))

	assert.Equal(t, 1, e.Care.FalseNegatives)
	assert.Equal(t, []string{"False negative"}, eventLabels(e))
	assert.Equal(t, 365.0, e.TimeSysp)
}

func TestScreening_CancerFoundAtReturn(t *testing.T) {
	e := visit(entity.StateScreening, 300)
	e.OPLPresent = true
	e.HasCancer = true
	e.Stage = entity.StageI
	e.Care.ScreenReturn = true

	require.NoError(t, newPathway(nil).Screening(e))

	assert.Equal(t, entity.StateIncidentCancer, e.State)
	assert.True(t, e.CancerDetected)
	assert.True(t, e.Care.ScreenDetected)
	assert.Equal(t, 300.0, e.TimeCancerDetected)
	assert.Equal(t, 300.0, e.TimeSysp, "treatment starts at detection")
}

func TestScreening_SurveillanceVisitDue(t *testing.T) {
	e := visit(entity.StateScreening, 500)
	e.OPLDetected = true
	e.Care.OPLNextVisit = 480

	require.NoError(t, newPathway(nil).Screening(e))

	assert.Equal(t, entity.StateOPLManagement, e.State)
	assert.Empty(t, e.Resources)
}

func TestScreening_KnownOPLWaitsForSurveillance(t *testing.T) {
	e := visit(entity.StateScreening, 500)
	e.OPLDetected = true
	e.Care.OPLNextVisit = 700

	require.NoError(t, newPathway(nil).Screening(e))

	assert.Equal(t, entity.StateScreening, e.State)
	assert.Equal(t, 700.0, e.TimeSysp)
	assert.Equal(t, 865.0, e.Care.TimeDentist)
}

func TestScreening_KnownOPLWithCancer(t *testing.T) {
	e := visit(entity.StateScreening, 500)
	e.OPLDetected = true
	e.HasCancer = true
	e.Stage = entity.StageII
	e.Care.OPLNextVisit = 700

	require.NoError(t, newPathway(nil).Screening(e))

	assert.Equal(t, entity.StateIncidentCancer, e.State)
	assert.Equal(t, []string{"Cancer First Detected"}, eventLabels(e))
}

func TestNoDentist(t *testing.T) {
	p := newPathway(nil)

	e := visit(entity.StateNoDentist, 250)
	require.NoError(t, p.NoDentist(e))
	assert.Equal(t, 1250.0, e.TimeSysp)

	e.TimeSysp = 4000
	require.NoError(t, p.NoDentist(e))
	assert.Equal(t, 4000.0, e.TimeSysp)
	assert.Empty(t, e.Resources)
}
