package entity

import "sort"

// Covariate is the value of an entity attribute as seen by a regression.
type Covariate struct {
	Categorical bool
	Level       string
	Value       float64
}

type covariateFunc func(e *Entity) (Covariate, bool)

func level(s string) (Covariate, bool) {
	return Covariate{Categorical: true, Level: s}, s != ""
}

func numeric(v float64) (Covariate, bool) {
	return Covariate{Value: v}, true
}

// covariates is the closed schema of attributes a regression may reference.
var covariates = map[string]covariateFunc{
	"age":         func(e *Entity) (Covariate, bool) { return numeric(e.Age) },
	"startAge":    func(e *Entity) (Covariate, bool) { return numeric(e.StartAge) },
	"sex":         func(e *Entity) (Covariate, bool) { return level(string(e.Sex)) },
	"smokeStatus": func(e *Entity) (Covariate, bool) { return level(string(e.Smoke)) },
	"alcStatus":   func(e *Entity) (Covariate, bool) { return level(string(e.Alcohol)) },
	"OPLRisk":     func(e *Entity) (Covariate, bool) { return level(string(e.OPLRisk)) },
	"cancerStage": func(e *Entity) (Covariate, bool) { return level(string(e.Stage)) },
	"tx_prim":     func(e *Entity) (Covariate, bool) { return level(e.Care.TxPrimary) },
	"tx_recur":    func(e *Entity) (Covariate, bool) { return level(e.Care.TxRecurrence) },
}

// CovariateNames returns the attribute names a regression may reference,
// sorted.
func CovariateNames() []string {
	names := make([]string, 0, len(covariates))
	for name := range covariates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCovariate reports whether name is in the covariate schema.
func HasCovariate(name string) bool {
	_, ok := covariates[name]
	return ok
}

// Covariate returns the named attribute. ok is false when the name is not
// in the schema or the attribute has not been assigned yet.
func (e *Entity) Covariate(name string) (Covariate, bool) {
	fn, known := covariates[name]
	if !known {
		return Covariate{}, false
	}
	return fn(e)
}
