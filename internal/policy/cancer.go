package policy

import (
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/regression"
	"github.com/roach88/oralsim/internal/simerr"
)

// Treatment estimates.
const (
	ParamOPLfuSCC      = "OPLfu_SCC"
	ParamTxTime        = "Tx_time_treatment"
	ParamTxOtherRT     = "Tx_other_RT"
	ParamTxOtherChemo  = "Tx_other_chemo"
	ParamUtilTreatment = "Util_StageI_Tx"
	ParamUtilRecurTx   = "Util_Recur_Tx"
	ParamUtilRecurFU   = "Util_Recur_FU"
	ParamUtilIncurable = "Util_Incurable"
	ParamUtil2RecurTx  = "Util_2Recur_Tx"
)

// Survival regressions.
const (
	RegFirstEvent       = "FirstEvent"
	RegFirstEventDeath  = "FirstEvent_death"
	RegSecondEvent      = "SecondEvent"
	RegSecondEventDeath = "SecondEvent_death"
	RegSecondRecurDeath = "TSRD"
)

// Primary treatments.
const (
	TxSurgery   = "Surgery"
	TxSurgeryRT = "SurgeryRT"
	TxOther     = "Other"
)

// Recurrence treatments.
const (
	TxRecurSurgery    = "Surgery"
	TxRecurNonsurgery = "Nonsurgery"
	TxRecurPalliative = "Palliative"
	TxRecurNone       = "NoTx"
)

var primaryTreatments = []string{TxSurgery, TxSurgeryRT, TxOther}

var recurrenceTreatments = []string{TxRecurSurgery, TxRecurNonsurgery, TxRecurPalliative, TxRecurNone}

// recurrenceTxParams holds the Dirichlet concentrations for recurrence
// treatment, in recurrenceTreatments order.
var recurrenceTxParams = []string{
	"Tx_recurrence_probSurgery",
	"Tx_recurrence_probNonsurgery",
	"Tx_recurrence_probPalliative",
	"Tx_recurrence_probNoTx",
}

// stageTreatment describes primary treatment of one stage.
type stageTreatment struct {
	label     string   // used in resource and event labels
	utilLabel string   // utility while under treatment
	txParams  []string // Dirichlet concentrations, in primaryTreatments order
}

// One on-treatment utility is estimated and applies to every stage.
var stageTreatments = map[entity.Stage]stageTreatment{
	entity.StageI: {
		label:     "Stage I",
		utilLabel: "Stage I Cancer Under Treatment",
		txParams:  []string{"Tx_stageI_probSurgery", "Tx_stageI_probSurgeryRT", "Tx_stageI_probOther"},
	},
	entity.StageII: {
		label:     "Stage II",
		utilLabel: "Stage II Cancer Under Treatment",
		txParams:  []string{"Tx_stageII_probSurgery", "Tx_stageII_probSurgeryRT", "Tx_stageII_probOther"},
	},
	entity.StageAdv: {
		label:     "Advanced",
		utilLabel: "Advanced Cancer Under Treatment",
		txParams:  []string{"Tx_adv_probSurgery", "Tx_adv_probSurgeryRT", "Tx_adv_probOther"},
	},
}

// IncidentCancer handles a newly detected cancer or recurrence (state 3.0):
// diagnostic workup, treatment assignment, treatment and scheduling of the
// next disease event.
func (p *Pathway) IncidentCancer(e *entity.Entity) error {
	c := &e.Care

	if e.Symptomatic && !c.SymptomBiopsied {
		e.AddResource("Biopsy")
		c.SymptomBiopsied = true
	}
	e.AddResource("Diagnostic Workup")

	if e.Stage != entity.StageRecur && c.TxPrimary == "" {
		if err := p.assignPrimary(e); err != nil {
			return err
		}
	}
	c.FollowupTime = 0

	p.logger.Debug("cancer treatment",
		"entity", e.ID,
		"stage", string(e.Stage),
		"tx_primary", c.TxPrimary,
		"time", e.AllTime)

	switch e.Stage {
	case entity.StageHGL:
		return p.treatHGL(e)
	case entity.StageI, entity.StageII, entity.StageAdv:
		return p.treatStage(e)
	case entity.StageRecur:
		return p.treatRecurrence(e)
	default:
		return simerr.InvalidState("entity %s detected with no valid cancer stage %q", e.ID, e.Stage)
	}
}

// assignPrimary sets the cancer flags of a first cancer. A screen-detected
// stage I lesion may turn out to be a high-grade lesion, which is always
// managed surgically.
func (p *Pathway) assignPrimary(e *entity.Entity) error {
	c := &e.Care
	if entity.IsNever(e.TimeCancer) {
		e.TimeCancer = e.AllTime
	}

	if e.Stage == entity.StageI && c.ScreenDetected {
		scc, err := p.sample(ParamOPLfuSCC)
		if err != nil {
			return err
		}
		if p.est.Uniform() > scc {
			e.Stage = entity.StageHGL
		}
	}
	c.FirstCancer = string(e.Stage)

	if e.Stage == entity.StageHGL {
		c.TxPrimary = TxSurgery
	} else {
		st, ok := stageTreatments[e.Stage]
		if !ok {
			return simerr.InvalidState("no primary treatment for stage %q", e.Stage)
		}
		tx, err := p.choose(st.txParams, primaryTreatments)
		if err != nil {
			return err
		}
		c.TxPrimary = tx
	}
	c.RTCourses = 0
	c.ChemoCourses = 0
	return nil
}

// treatHGL removes a high-grade lesion surgically. No further disease
// events are scheduled.
func (p *Pathway) treatHGL(e *entity.Entity) error {
	txTime, err := p.sample(ParamTxTime)
	if err != nil {
		return err
	}
	e.TimeDeadOfDisease = entity.Never
	e.TimeRecurrence = entity.Never
	e.AddResource("Treatment - HGL - Surgery")
	e.AddEvent("Treatment - HGL - Surgery")
	e.TimeSysp = e.AllTime + txTime
	e.SetState(entity.StateFollowup, "Post-treatment follow-up")
	return nil
}

// treatStage treats a stage I, II or advanced cancer and resolves the next
// disease event: recurrence or death of disease.
func (p *Pathway) treatStage(e *entity.Entity) error {
	c := &e.Care
	st, ok := stageTreatments[e.Stage]
	if !ok {
		return simerr.InvalidState("no treatment for stage %q", e.Stage)
	}

	txTime, err := p.sample(ParamTxTime)
	if err != nil {
		return err
	}

	regs := p.regs
	if p.surgeryShift != 0 && c.TxPrimary == TxSurgery {
		regs, err = regs.WithInterceptShift(p.surgeryShift, RegFirstEvent, RegFirstEventDeath)
		if err != nil {
			return err
		}
	}
	out, err := regs.Compete(RegFirstEvent, RegFirstEventDeath, e, p.est.Rand())
	if err != nil {
		return err
	}

	start := e.AllTime
	if out.Time < EventWindow {
		if err := p.addUtility(e, st.utilLabel, ParamUtilTreatment); err != nil {
			return err
		}
	}
	scheduleNext(e, start, out, txTime)
	e.SetState(entity.StateFollowup, "Post-treatment follow-up")

	return p.recordPrimary(e, st.label)
}

// scheduleNext books the outcome of a competing-risk draw made at start. An
// event within the end-of-life window is served at its own time; otherwise
// follow-up starts when treatment ends.
func scheduleNext(e *entity.Entity, start float64, out regression.Outcome, txTime float64) {
	e.TimeRecurrence = entity.Never
	e.TimeDeadOfDisease = entity.Never
	if out.Time >= EventWindow {
		e.TimeSysp = start + txTime
		return
	}

	if out.Type == regression.EventGeneral {
		e.TimeRecurrence = start + out.Time
	} else {
		e.TimeDeadOfDisease = start + out.Time
	}
	if out.Time < endOfLifeWindow {
		e.TimeSysp = start + out.Time
		return
	}
	e.TimeSysp = start + txTime
}

// recordPrimary logs the primary treatment and its courses of RT and
// chemotherapy.
func (p *Pathway) recordPrimary(e *entity.Entity, stage string) error {
	c := &e.Care
	switch c.TxPrimary {
	case TxSurgery:
		label := "Treatment - " + stage + " - Surgery"
		e.AddResource(label)
		e.AddEvent(label)
	case TxSurgeryRT:
		label := "Treatment - " + stage + " - Surgery + RT"
		e.AddResource(label)
		e.AddEvent(label)
		c.RTCourses++
	case TxOther:
		label := "Treatment - " + stage + " - Other"
		e.AddResource(label)
		e.AddEvent(label)
		rt, err := p.sample(ParamTxOtherRT)
		if err != nil {
			return err
		}
		chemo, err := p.sample(ParamTxOtherChemo)
		if err != nil {
			return err
		}
		if p.est.Uniform() < rt {
			c.RTCourses++
		}
		if p.est.Uniform() < chemo {
			c.ChemoCourses++
		}
	default:
		return simerr.InvalidState("entity %s has no valid primary treatment %q", e.ID, c.TxPrimary)
	}
	return nil
}

// treatRecurrence treats a recurrence. The first recurrence is assigned a
// treatment; palliative care or no treatment make the disease incurable.
// A second recurrence is treated and given a time to death from the
// second-recurrence survival regression.
func (p *Pathway) treatRecurrence(e *entity.Entity) error {
	c := &e.Care
	e.AddEvent("Detected recurrence")
	e.Recurrence = false
	if c.PrevRecurrence {
		return p.treatSecondRecurrence(e)
	}

	if c.TxRecurrence == "" {
		tx, err := p.choose(recurrenceTxParams, recurrenceTreatments)
		if err != nil {
			return err
		}
		c.TxRecurrence = tx
	}

	start := e.AllTime
	e.TimeSysp = start
	if err := p.addUtility(e, "Recurrence Under Treatment", ParamUtilRecurTx); err != nil {
		return err
	}

	incurable := false
	switch c.TxRecurrence {
	case TxRecurSurgery, TxRecurNonsurgery:
		label, event := "Treatment - Recurrence - Surgery", "Recurrence Surgery"
		if c.TxRecurrence == TxRecurNonsurgery {
			label, event = "Treatment - Recurrence - Nonsurgery", "Nonsurgical management of recurrence"
		}
		e.AddResource(label)
		e.AddEvent(event)
		if err := p.addUtility(e, "Recurring Cancer In Remission", ParamUtilRecurFU); err != nil {
			return err
		}
	case TxRecurPalliative:
		e.AddResource("Treatment - Recurrence - Palliative")
		e.AddEvent("Palliative care for recurrence")
		incurable = true
	case TxRecurNone:
		e.AddResource("Treatment - Recurrence - No Treatment")
		e.AddEvent("No treatment for recurrence")
		incurable = true
	default:
		return simerr.InvalidState("entity %s has no valid recurrence treatment %q", e.ID, c.TxRecurrence)
	}

	txTime, err := p.sample(ParamTxTime)
	if err != nil {
		return err
	}
	out, err := p.regs.Compete(RegSecondEvent, RegSecondEventDeath, e, p.est.Rand())
	if err != nil {
		return err
	}
	c.PrevRecurrence = true
	c.FollowupTime = 0

	if incurable {
		e.TimeRecurrence = entity.Never
		e.TimeDeadOfDisease = start + out.Time
		e.TimeSysp = start
		e.SetState(entity.StateTerminal, "Terminal disease")
		return p.addUtility(e, "Incurable disease", ParamUtilIncurable)
	}

	scheduleNext(e, start, out, txTime)
	e.SetState(entity.StateFollowup, "Post-treatment follow-up")
	return nil
}

func (p *Pathway) treatSecondRecurrence(e *entity.Entity) error {
	start := e.AllTime
	if err := p.addUtility(e, "Second Recurrence Under Treatment", ParamUtil2RecurTx); err != nil {
		return err
	}
	e.AddResource("Treatment - Second Recurrence")
	e.AddEvent("Treatment for Second Recurrence")

	txTime, err := p.sample(ParamTxTime)
	if err != nil {
		return err
	}
	t, err := p.regs.SampleTime(RegSecondRecurDeath, e, p.est.Rand())
	if err != nil {
		return err
	}

	e.TimeRecurrence = entity.Never
	e.TimeDeadOfDisease = entity.Never
	if t < EventWindow {
		e.TimeDeadOfDisease = start + t
	}
	e.TimeSysp = start + txTime
	if t < endOfLifeWindow {
		e.TimeSysp = start + t
	}
	e.Care.FollowupTime = 0
	e.SetState(entity.StateFollowup, "Post-treatment follow-up")
	return nil
}
