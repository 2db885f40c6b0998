package policy

import (
	"math"

	"github.com/roach88/oralsim/internal/entity"
)

// Screening estimates.
const (
	ParamScreenAppInt         = "Screen_appint"
	ParamScreenReturnInt      = "Screen_returnint"
	ParamScreenAnyLesion      = "Screen_anylesion"
	ParamScreenWillReturn     = "Screen_willreturn"
	ParamScreenLesionResolves = "Screen_lesionresolves"
	ParamScreenSensitivity    = "Screen_sensitivity"
	ParamScreenNeedsBiopsy    = "Screen_needsbiopsy"
	ParamUtilOPLDetected      = "Util_OPL_Detected"
)

// Screening handles a routine dental appointment (state 1.0).
//
// A dentist may spot an OPL with the exam's sensitivity and ask the patient
// to return; a lesion still present at the return visit is referred to a
// specialist and biopsied. Benign lesions follow the same path and produce
// false positives. An entity whose OPL is under surveillance is sent back
// to OPL management when its next surveillance visit falls due.
func (p *Pathway) Screening(e *entity.Entity) error {
	if e.TimeSysp > e.AllTime {
		return nil
	}
	c := &e.Care

	if e.OPLDetected && !c.OPLDischarged && e.AllTime >= c.OPLNextVisit {
		e.SetState(entity.StateOPLManagement, "2.0 - OPL Followup")
		return nil
	}

	appInt, err := p.sample(ParamScreenAppInt)
	if err != nil {
		return err
	}
	appInt = math.Trunc(appInt)

	e.AddResource("Dental Appointment")
	c.DentalVisits++
	c.TimeDentist = e.AllTime + appInt

	switch {
	case e.OPLDetected:
		return p.screenKnownOPL(e, appInt)
	case e.OPLPresent:
		return p.screenOPL(e, appInt)
	default:
		return p.screenHealthy(e, appInt)
	}
}

// screenKnownOPL sees an entity whose OPL has already been diagnosed.
func (p *Pathway) screenKnownOPL(e *entity.Entity, appInt float64) error {
	c := &e.Care
	if e.HasCancer {
		detectCancer(e, "Cancer First Detected")
		return nil
	}
	e.TimeSysp = e.AllTime + appInt
	if !c.OPLDischarged && e.TimeSysp > c.OPLNextVisit {
		e.TimeSysp = c.OPLNextVisit
	}
	return nil
}

// screenOPL sees an entity with an undiagnosed OPL.
func (p *Pathway) screenOPL(e *entity.Entity, appInt float64) error {
	c := &e.Care

	if !c.ScreenReturn {
		sensitivity, err := p.sample(ParamScreenSensitivity)
		if err != nil {
			return err
		}
		if p.est.Uniform() < sensitivity {
			returnInt, err := p.sample(ParamScreenReturnInt)
			if err != nil {
				return err
			}
			e.AddResource("Cancer Screening")
			c.ScreenReturn = true
			e.TimeSysp = e.AllTime + returnInt
			return nil
		}
		e.AddEvent("False negative")
		c.FalseNegatives++
		e.TimeSysp = e.AllTime + appInt
		return nil
	}

	c.ScreenReturn = false
	e.AddResource("Cancer Screening")
	e.AddResource("Specialist Appointment")
	e.AddResource("Biopsy")
	if e.HasCancer {
		detectCancer(e, "Cancer First Detected")
		return nil
	}

	e.AddEvent("OPL Diagnosed")
	e.DiseaseDetected = true
	e.OPLDetected = true
	e.TimeOPLDetected = e.AllTime
	c.OPLNextVisit = e.AllTime
	e.SetState(entity.StateOPLManagement, "2.0 - OPL Detected")
	return p.addUtility(e, "Detected OPL", ParamUtilOPLDetected)
}

// screenHealthy sees an entity with no OPL. A benign lesion may be found,
// recalled and, if it persists and looks suspicious, biopsied.
func (p *Pathway) screenHealthy(e *entity.Entity, appInt float64) error {
	c := &e.Care

	if !c.ScreenReturn {
		anyLesion, err := p.sample(ParamScreenAnyLesion)
		if err != nil {
			return err
		}
		if p.est.Uniform() < anyLesion {
			e.AddResource("Cancer Screening")
			willReturn, err := p.sample(ParamScreenWillReturn)
			if err != nil {
				return err
			}
			if p.est.Uniform() < willReturn {
				returnInt, err := p.sample(ParamScreenReturnInt)
				if err != nil {
					return err
				}
				c.ScreenReturn = true
				e.TimeSysp = e.AllTime + returnInt
				return nil
			}
		}
		e.TimeSysp = e.AllTime + appInt
		return nil
	}

	c.ScreenReturn = false
	persists, err := p.sample(ParamScreenLesionResolves)
	if err != nil {
		return err
	}
	if p.est.Uniform() < persists {
		e.AddResource("Cancer Screening")
		e.AddResource("Specialist Appointment")
		needsBiopsy, err := p.sample(ParamScreenNeedsBiopsy)
		if err != nil {
			return err
		}
		if p.est.Uniform() < needsBiopsy {
			c.FalsePositives++
			e.AddResource("Biopsy")
			e.AddEvent("False positive")
		}
	}
	e.TimeSysp = e.AllTime + appInt
	return nil
}

// NoDentist handles an entity without dental care (state 1.8). Nothing is
// scheduled; the system process is pushed ahead so that disease events
// drive the clock.
func (p *Pathway) NoDentist(e *entity.Entity) error {
	if e.TimeSysp > e.AllTime {
		return nil
	}
	e.TimeSysp = e.AllTime + NoDentistInterval
	return nil
}
