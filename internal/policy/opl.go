package policy

import (
	"github.com/roach88/oralsim/internal/entity"
)

// OPL surveillance estimates. Intervals are in years.
const (
	ParamOPLAppInt      = "Appint_gen"
	ParamOPLSensitivity = "OPLfu_sensitivity"
	ParamOPLSpecificity = "OPLfu_specificity"
	ParamOPLDischarge   = "time_Discharge"
	ParamOPLBiopsy      = "time_Biopsy_gen"
)

// OPLManagement handles surveillance of a diagnosed OPL (state 2.0).
//
// The first visit confirms the lesion by biopsy. Later visits inspect the
// lesion; a cancer may be caught by inspection with the surveillance
// sensitivity, and is always caught at the periodic scheduled biopsy. After
// the discharge time the entity leaves surveillance. Entities with a
// dentist alternate between surveillance and routine dental appointments.
func (p *Pathway) OPLManagement(e *entity.Entity) error {
	c := &e.Care

	if !c.OPLSeen {
		e.AddResource("Biopsy")
		c.OPLSeen = true
		e.OPLDetected = true
		e.DiseaseDetected = true
		if entity.IsNever(e.TimeOPLDetected) {
			e.TimeOPLDetected = e.AllTime
		}
		c.OPLFollowup = 0
		c.OPLFollowupTotal = 0
		e.TimeSysp = e.AllTime
	}
	if e.TimeSysp > e.AllTime {
		return nil
	}

	appInt, err := p.sample(ParamOPLAppInt)
	if err != nil {
		return err
	}
	appInt *= surveillanceYear
	discharge, err := p.sample(ParamOPLDischarge)
	if err != nil {
		return err
	}
	biopsyDue, err := p.sample(ParamOPLBiopsy)
	if err != nil {
		return err
	}
	biopsyDue *= surveillanceYear

	if c.OPLFollowupTotal >= discharge*surveillanceYear {
		p.dischargeOPL(e)
		return nil
	}

	if c.OPLFollowup < biopsyDue {
		e.AddResource("OPL surveillance appointment")
		if !e.HasCancer {
			if c.OPLFollowup == 0 {
				specificity, err := p.sample(ParamOPLSpecificity)
				if err != nil {
					return err
				}
				if p.est.Uniform() > specificity {
					e.AddResource("Biopsy")
				}
			}
		} else {
			sensitivity, err := p.sample(ParamOPLSensitivity)
			if err != nil {
				return err
			}
			if p.est.Uniform() <= sensitivity {
				e.AddResource("Biopsy")
				detectCancer(e, "Cancer first detected at OPL followup")
				return nil
			}
		}
	} else {
		c.OPLFollowup = 0
		e.AddResource("OPL surveillance appointment")
		e.AddResource("Biopsy")
		if e.HasCancer {
			detectCancer(e, "Cancer first detected at regular biopsy")
			return nil
		}
	}

	c.OPLFollowup += appInt
	c.OPLFollowupTotal += appInt
	c.OPLNextVisit = e.AllTime + appInt
	e.TimeSysp = c.OPLNextVisit

	if e.HasDentist {
		if entity.IsNever(c.TimeDentist) {
			c.TimeDentist = e.AllTime + FirstDentalVisit
		}
		if e.TimeSysp > c.TimeDentist {
			e.TimeSysp = c.TimeDentist
			e.SetState(entity.StateScreening, "1.0 - Dental Screening")
		}
	}
	return nil
}

// dischargeOPL ends surveillance. Entities with a dentist return to
// routine appointments; the rest wait for disease events.
func (p *Pathway) dischargeOPL(e *entity.Entity) {
	c := &e.Care
	c.OPLDischarged = true
	c.OPLFollowup = entity.Never
	c.OPLFollowupTotal = entity.Never
	c.OPLNextVisit = entity.Never
	e.AddEvent("Discharged from OPL surveillance")

	if e.HasDentist {
		if entity.IsNever(c.TimeDentist) {
			c.TimeDentist = e.AllTime + FirstDentalVisit
		}
		e.TimeSysp = c.TimeDentist
		e.SetState(entity.StateScreening, "1.0 - Dental Screening")
		return
	}
	e.TimeSysp = e.AllTime
	e.SetState(entity.StateNoDentist, "1.8 - Waiting for disease event")
}
