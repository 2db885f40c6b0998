package policy

import (
	"fmt"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// Follow-up and terminal care estimates.
const (
	ParamFollowup0to3  = "Folup_time_appInt0to3"
	ParamFollowup3to5  = "Folup_time_appInt3to5"
	ParamFollowup5to10 = "Folup_time_appInt5to10"
	ParamUtilRemission = "Util_Remission"
	ParamUtilEOL       = "Util_EOL"
)

// followupUtility maps a cancer stage to its follow-up utility.
var followupUtility = map[entity.Stage]struct{ label, param string }{
	entity.StageHGL:   {"Followup for Stage I cancer", "Util_StageI_FU"},
	entity.StageI:     {"Followup for Stage I cancer", "Util_StageI_FU"},
	entity.StageII:    {"Followup for Stage II cancer", "Util_StageII_FU"},
	entity.StageAdv:   {"Followup for Advanced cancer", "Util_Advanced_FU"},
	entity.StageRecur: {"Followup for Recurring cancer", ParamUtilRecurFU},
}

// followupBands schedules appointments by time since treatment, in years.
var followupBands = []struct {
	upTo  float64
	label string
	param string
}{
	{3, "Follow-up appointment - 1 to 3", ParamFollowup0to3},
	{5, "Follow-up appointment - 3 to 5", ParamFollowup3to5},
	{10, "Follow-up appointment - 5 to 10", ParamFollowup5to10},
}

// Followup handles post-treatment follow-up (state 4.0). Appointments grow
// less frequent with time since treatment; after ten years the cancer is
// deemed in remission. Recurrences are not detected here: the synchronizer
// routes them straight back to treatment.
func (p *Pathway) Followup(e *entity.Entity) error {
	if e.TimeSysp > e.AllTime {
		return nil
	}
	c := &e.Care

	u, ok := followupUtility[e.Stage]
	if !ok {
		return simerr.InvalidState("entity %s in follow-up with no valid stage %q", e.ID, e.Stage)
	}
	if err := p.addUtility(e, u.label, u.param); err != nil {
		return err
	}

	for _, band := range followupBands {
		if c.FollowupTime > band.upTo*entity.DaysPerYear {
			continue
		}
		interval, err := p.sample(band.param)
		if err != nil {
			return err
		}
		e.AddResource(band.label)
		c.FollowupTime += interval
		e.TimeSysp = e.AllTime + interval
		return nil
	}

	e.AddResource("Follow-up appointment - final")
	e.AddEvent("Entity's cancer is in remission")
	return p.enterRemission(e)
}

func (p *Pathway) enterRemission(e *entity.Entity) error {
	e.TimeDeadOfDisease = entity.Never
	e.TimeRecurrence = entity.Never
	e.TimeSysp = entity.Never
	e.SetState(entity.StateRemission, "Remission")
	return p.addUtility(e, "Cancer in remission", ParamUtilRemission)
}

// Remission handles an entity that receives no further care (state 4.8).
// Only natural death remains.
func (p *Pathway) Remission(e *entity.Entity) error {
	if entity.IsNever(e.NaturalDeath) {
		return simerr.SchedulingConflict("entity %s in remission has no natural death time", e.ID)
	}
	e.AllTime = max(e.AllTime, e.NaturalDeath)
	return nil
}

// Terminal handles incurable disease (state 5.0).
//
// In the end-of-life window the entity receives end-of-life care and the
// clock moves to death of disease, or to natural death if that comes
// first. Before then, palliative or supportive care runs in monthly cycles.
func (p *Pathway) Terminal(e *entity.Entity) error {
	if e.EndOfLife {
		e.AddResource("Treatment - End of Life")
		e.AddEvent("End-of-life care")
		if err := p.addUtility(e, "End of life", ParamUtilEOL); err != nil {
			return err
		}
		e.AllTime = max(e.AllTime, min(e.TimeDeadOfDisease, e.NaturalDeath))
		return nil
	}

	c := &e.Care
	var resource, event string
	switch c.TxRecurrence {
	case TxRecurPalliative:
		resource, event = "Treatment - Palliative", "Palliative care - month %d"
	case TxRecurNone:
		resource, event = "Treatment - Recurrence - No Treatment", "Best supportive care - month %d"
	default:
		return simerr.InvalidState("entity %s is terminal with neither end of life nor incurable recurrence", e.ID)
	}

	if e.TimeSysp > e.AllTime {
		return nil
	}
	month := c.PalliativeMonth + 1
	if month >= PalliativeMonths {
		e.AddEvent("Entity's cancer is in remission")
		return p.enterRemission(e)
	}
	c.PalliativeMonth = month
	e.AddResource(resource)
	e.AddEvent(fmt.Sprintf(event, month))
	e.TimeSysp = e.AllTime + PalliativeCycle
	return nil
}
