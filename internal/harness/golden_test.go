package harness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/entity"
)

// goldenEntity builds a fixed lifetime by hand: a healthy woman who sees
// her dentist once and dies of natural causes twenty years after entry.
func goldenEntity(t *testing.T) *entity.Entity {
	t.Helper()

	e := entity.New("golden", 3)
	e.StartAge = 60
	e.Sex = entity.Female
	e.Smoke = entity.SmokeNever
	e.Alcohol = entity.AlcoholNonheavy
	e.HasDentist = true
	require.NoError(t, e.SetNatHist([]entity.NatHistEntry{
		{Label: "Natural Death", Status: entity.Status(entity.NHNaturalDeath), Time: 7305},
	}))

	e.AddUtility("Well", 0.9)
	e.AllTime = 90
	e.AddEvent("Dental visit")
	e.AllTime = 7305
	e.Die(entity.DeathNatural, "Dead of Natural Causes")
	e.AddUtility("Dead", 0)
	e.AddEvent("Entity dies")
	return e
}

func TestAssertGolden_TextTrace(t *testing.T) {
	require.NoError(t, AssertGolden(t, "natural_death", goldenEntity(t)))
}
