package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/regression"
	"github.com/roach88/oralsim/internal/simerr"
)

func cancerAt(stage entity.Stage, now float64) *entity.Entity {
	e := visit(entity.StateIncidentCancer, now)
	e.HasCancer = true
	e.CancerDetected = true
	e.Stage = stage
	return e
}

func TestIncidentCancer_ScreenDetectedHGL(t *testing.T) {
	p := newPathway(map[string]float64{ParamOPLfuSCC: 0})
	e := cancerAt(entity.StageI, 400)
	e.Care.ScreenDetected = true

	require.NoError(t, p.IncidentCancer(e))

	assert.Equal(t, entity.StageHGL, e.Stage)
	assert.Equal(t, string(entity.StageHGL), e.Care.FirstCancer)
	assert.Equal(t, TxSurgery, e.Care.TxPrimary)
	assert.Equal(t, entity.StateFollowup, e.State)
	assert.Equal(t, 520.0, e.TimeSysp)
	assert.True(t, entity.IsNever(e.TimeRecurrence))
	assert.True(t, entity.IsNever(e.TimeDeadOfDisease))
	assert.Equal(t, 400.0, e.TimeCancer)
	assert.Equal(t, []string{"Diagnostic Workup", "Treatment - HGL - Surgery"}, resourceLabels(e))
}

func TestIncidentCancer_StageIRecurrence(t *testing.T) {
	e := cancerAt(entity.StageI, 1000)
	e.Symptomatic = true

	require.NoError(t, newPathway(nil).IncidentCancer(e))

	assert.Equal(t, TxSurgery, e.Care.TxPrimary)
	assert.Equal(t, "I", e.Care.FirstCancer)
	assert.Equal(t, entity.StateFollowup, e.State)
	assert.InEpsilon(t, 2000.0, e.TimeRecurrence, 0.01)
	assert.True(t, entity.IsNever(e.TimeDeadOfDisease))
	assert.Equal(t, 1120.0, e.TimeSysp)
	assert.Equal(t, []string{
		"Biopsy", "Diagnostic Workup", "Treatment - Stage I - Surgery",
	}, resourceLabels(e))
	assert.Equal(t, []string{"Treatment - Stage I - Surgery"}, eventLabels(e))
	require.Len(t, e.Utility, 1)
	assert.Equal(t, "Stage I Cancer Under Treatment", e.Utility[0].Label)
}

func TestIncidentCancer_SymptomBiopsyOnlyOnce(t *testing.T) {
	e := cancerAt(entity.StageI, 1000)
	e.Symptomatic = true
	e.Care.SymptomBiopsied = true

	require.NoError(t, newPathway(nil).IncidentCancer(e))
	assert.NotContains(t, resourceLabels(e), "Biopsy")
}

func TestIncidentCancer_DeathInsideEndOfLifeWindow(t *testing.T) {
	p := fixture{regs: deathAt(50)}.pathway()
	e := cancerAt(entity.StageII, 1000)

	require.NoError(t, p.IncidentCancer(e))

	assert.Equal(t, TxSurgeryRT, e.Care.TxPrimary)
	assert.Equal(t, 1, e.Care.RTCourses)
	assert.InDelta(t, 1050.0, e.TimeDeadOfDisease, 1)
	assert.Equal(t, e.TimeDeadOfDisease, e.TimeSysp, "event is served at its own time")
	assert.True(t, entity.IsNever(e.TimeRecurrence))
}

func TestIncidentCancer_EventBeyondWindow(t *testing.T) {
	p := fixture{regs: recurrenceAt(5000)}.pathway()
	e := cancerAt(entity.StageI, 0)

	require.NoError(t, p.IncidentCancer(e))

	assert.True(t, entity.IsNever(e.TimeRecurrence))
	assert.True(t, entity.IsNever(e.TimeDeadOfDisease))
	assert.Equal(t, 120.0, e.TimeSysp)
	assert.Empty(t, e.Utility, "no on-treatment utility without a scheduled event")
}

func TestIncidentCancer_AdvancedOtherTreatment(t *testing.T) {
	e := cancerAt(entity.StageAdv, 0)

	require.NoError(t, newPathway(nil).IncidentCancer(e))

	assert.Equal(t, TxOther, e.Care.TxPrimary)
	assert.Equal(t, 1, e.Care.RTCourses)
	assert.Equal(t, 0, e.Care.ChemoCourses)
	assert.Contains(t, resourceLabels(e), "Treatment - Advanced - Other")
}

func TestIncidentCancer_KeepsAssignedTreatment(t *testing.T) {
	e := cancerAt(entity.StageI, 0)
	e.Care.TxPrimary = TxSurgeryRT
	e.TimeCancer = 10

	require.NoError(t, newPathway(nil).IncidentCancer(e))

	assert.Equal(t, TxSurgeryRT, e.Care.TxPrimary)
	assert.Equal(t, 10.0, e.TimeCancer)
	assert.Contains(t, resourceLabels(e), "Treatment - Stage I - Surgery + RT")
}

func TestIncidentCancer_InvalidStage(t *testing.T) {
	e := cancerAt(entity.StageNone, 0)

	err := newPathway(nil).IncidentCancer(e)
	require.Error(t, err)
	assert.True(t, simerr.IsInvalidState(err))
}

func TestIncidentCancer_MissingRegression(t *testing.T) {
	p := fixture{regs: regression.MustTable(spec(RegFirstEvent, 1000))}.pathway()

	err := p.IncidentCancer(cancerAt(entity.StageI, 0))
	require.Error(t, err)
	assert.True(t, simerr.IsUnknownParameter(err))
}

func TestIncidentCancer_SurgeryShift(t *testing.T) {
	p := fixture{opts: []Option{WithSurgeryShift(math.Log(2))}}.pathway()
	e := cancerAt(entity.StageI, 0)

	require.NoError(t, p.IncidentCancer(e))
	assert.InEpsilon(t, 2000.0, e.TimeRecurrence, 0.01)

	// Only surgery alone is shifted.
	e = cancerAt(entity.StageII, 0)
	require.NoError(t, p.IncidentCancer(e))
	assert.InEpsilon(t, 1000.0, e.TimeRecurrence, 0.01)
}

func TestIncidentCancer_RecurrenceSurgery(t *testing.T) {
	e := cancerAt(entity.StageRecur, 3000)
	e.Recurrence = true
	e.Care.TxPrimary = TxSurgery

	require.NoError(t, newPathway(nil).IncidentCancer(e))

	assert.Equal(t, TxRecurSurgery, e.Care.TxRecurrence)
	assert.True(t, e.Care.PrevRecurrence)
	assert.False(t, e.Recurrence)
	assert.Equal(t, entity.StateFollowup, e.State)
	assert.InEpsilon(t, 4000.0, e.TimeRecurrence, 0.01)
	assert.Equal(t, 3120.0, e.TimeSysp)
	assert.Equal(t, []string{"Detected recurrence", "Recurrence Surgery"}, eventLabels(e))
	assert.Equal(t, []string{"Recurrence Under Treatment", "Recurring Cancer In Remission"},
		utilityLabels(e))
}

func TestIncidentCancer_RecurrencePalliative(t *testing.T) {
	p := newPathway(map[string]float64{
		"Tx_recurrence_probSurgery":    0.001,
		"Tx_recurrence_probPalliative": 1000,
	})
	e := cancerAt(entity.StageRecur, 3000)

	require.NoError(t, p.IncidentCancer(e))

	assert.Equal(t, TxRecurPalliative, e.Care.TxRecurrence)
	assert.Equal(t, entity.StateTerminal, e.State)
	assert.Equal(t, 3000.0, e.TimeSysp)
	assert.InEpsilon(t, 4000.0, e.TimeDeadOfDisease, 0.01)
	assert.True(t, entity.IsNever(e.TimeRecurrence))
	assert.Equal(t, []string{"Recurrence Under Treatment", "Incurable disease"}, utilityLabels(e))
}

func TestIncidentCancer_SecondRecurrence(t *testing.T) {
	e := cancerAt(entity.StageRecur, 5000)
	e.Care.PrevRecurrence = true
	e.Care.TxRecurrence = TxRecurSurgery

	require.NoError(t, newPathway(nil).IncidentCancer(e))

	assert.Equal(t, entity.StateFollowup, e.State)
	assert.InEpsilon(t, 5800.0, e.TimeDeadOfDisease, 0.01)
	assert.True(t, entity.IsNever(e.TimeRecurrence))
	assert.Equal(t, 5120.0, e.TimeSysp)
	assert.Contains(t, resourceLabels(e), "Treatment - Second Recurrence")
	assert.Equal(t, []string{"Second Recurrence Under Treatment"}, utilityLabels(e))
}

func TestIncidentCancer_InvalidRecurrenceTreatment(t *testing.T) {
	e := cancerAt(entity.StageRecur, 0)
	e.Care.TxRecurrence = "Homeopathy"

	err := newPathway(nil).IncidentCancer(e)
	require.Error(t, err)
	assert.True(t, simerr.IsInvalidState(err))
}

func utilityLabels(e *entity.Entity) []string {
	out := make([]string, len(e.Utility))
	for i, u := range e.Utility {
		out[i] = u.Label
	}
	return out
}
