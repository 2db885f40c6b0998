package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Codes(t *testing.T) {
	tests := []struct {
		state State
		code  float64
		name  string
	}{
		{StateNew, 0.0, "new"},
		{StateInitialized, 0.1, "initialized"},
		{StateScreening, 1.0, "screening"},
		{StateNoDentist, 1.8, "no-dentist"},
		{StateOPLManagement, 2.0, "opl-management"},
		{StateIncidentCancer, 3.0, "incident-cancer"},
		{StateFollowup, 4.0, "followup"},
		{StateRemission, 4.8, "remission"},
		{StateTerminal, 5.0, "terminal"},
		{StateDead, 100, "dead"},
		{StateError, 99, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.state.Code())
			assert.Equal(t, tt.name, tt.state.String())

			back, ok := StateFromCode(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.state, back)

			parsed, ok := ParseState(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.state, parsed)
		})
	}
}

func TestState_Invalid(t *testing.T) {
	s := State(42)
	assert.False(t, s.Valid())
	assert.Equal(t, -1.0, s.Code())
	assert.Equal(t, "state(42)", s.String())

	_, ok := StateFromCode(7.5)
	assert.False(t, ok)
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateDead.Terminal())
	assert.True(t, StateError.Terminal())
	assert.False(t, StateTerminal.Terminal())
	assert.False(t, StateRemission.Terminal())
}

func TestNHStatus_Codes(t *testing.T) {
	assert.Equal(t, 0.9, Status(NHNoOPL).Code())
	assert.Equal(t, 1.1, Detected(NHOPL).Code())
	assert.Equal(t, 2.1, Detected(NHStageI).Code())
	assert.Equal(t, 5.1, Detected(NHStageIV).Code())
	assert.Equal(t, 100.0, Status(NHDeadOfDisease).Code())
	assert.Equal(t, "stage-ii-detected", Detected(NHStageII).String())
}

func TestNHStatus_DetectableOnlyOnLesions(t *testing.T) {
	assert.False(t, Detected(NHNaturalDeath).Valid())
	assert.False(t, Detected(NHNoDisease).Valid())
	assert.True(t, Detected(NHStageIII).Valid())
	assert.Equal(t, -1.0, Detected(NHDeadOfDisease).Code())
}

func TestStatusFromCode(t *testing.T) {
	s, err := StatusFromCode(3.1)
	require.NoError(t, err)
	assert.Equal(t, Detected(NHStageII), s)

	s, err = StatusFromCode(9.0)
	require.NoError(t, err)
	assert.Equal(t, Status(NHNaturalDeath), s)

	_, err = StatusFromCode(7.0)
	assert.Error(t, err)
}

func TestNHStatus_Cancer(t *testing.T) {
	assert.True(t, Status(NHStageI).Cancer())
	assert.True(t, Detected(NHStageIV).Cancer())
	assert.False(t, Status(NHOPL).Cancer())
	assert.False(t, Status(NHDeadOfDisease).Cancer())
}
