package cohort

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// LifeRow is one year of age in a life table: the number of deaths from
// natural causes at that age, by sex. Only the relative weights matter.
type LifeRow struct {
	Age    float64
	Female float64
	Male   float64
}

// LifeTable draws ages at death from natural causes.
type LifeTable struct {
	rows []LifeRow
}

// NewLifeTable validates rows and sorts them by age.
func NewLifeTable(rows []LifeRow) (*LifeTable, error) {
	if len(rows) == 0 {
		return nil, simerr.InvalidParameter("lifeTable", "no rows")
	}
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, func(a, b LifeRow) int {
		switch {
		case a.Age < b.Age:
			return -1
		case a.Age > b.Age:
			return 1
		}
		return 0
	})

	var female, male float64
	for i, r := range sorted {
		if math.IsNaN(r.Age) || r.Age < 0 {
			return nil, simerr.InvalidParameter("lifeTable", fmt.Sprintf("row %d has age %v", i, r.Age))
		}
		if i > 0 && r.Age == sorted[i-1].Age {
			return nil, simerr.InvalidParameter("lifeTable", fmt.Sprintf("age %v appears twice", r.Age))
		}
		if r.Female < 0 || r.Male < 0 {
			return nil, simerr.InvalidParameter("lifeTable", fmt.Sprintf("negative deaths at age %v", r.Age))
		}
		female += r.Female
		male += r.Male
	}
	if female == 0 || male == 0 {
		return nil, simerr.InvalidParameter("lifeTable", "no deaths recorded for one sex")
	}
	return &LifeTable{rows: sorted}, nil
}

// MustLifeTable is like NewLifeTable but panics on error.
func MustLifeTable(rows ...LifeRow) *LifeTable {
	t, err := NewLifeTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Rows returns a copy of the table's rows in age order.
func (t *LifeTable) Rows() []LifeRow {
	return slices.Clone(t.rows)
}

// DeathAge draws an age at death for an entity of the given sex who is
// alive at startAge. The year of death is drawn with pick among the years
// the entity can still reach; the time within the year is spread by frac.
func (t *LifeTable) DeathAge(sex entity.Sex, startAge, pick, frac float64) (float64, error) {
	weights := make([]float64, len(t.rows))
	var total float64
	for i, r := range t.rows {
		if r.Age+1 <= startAge {
			continue
		}
		switch sex {
		case entity.Female:
			weights[i] = r.Female
		case entity.Male:
			weights[i] = r.Male
		default:
			return 0, simerr.MissingCovariate("lifeTable", "sex", fmt.Sprintf("unknown sex %q", sex))
		}
		total += weights[i]
	}
	if total == 0 {
		return 0, simerr.InvalidParameter("lifeTable",
			fmt.Sprintf("no deaths after age %v for sex %q", startAge, sex))
	}
	target := pick * total
	chosen := -1
	var cum float64
	for i, w := range weights {
		if w == 0 {
			continue
		}
		chosen = i
		cum += w
		if target < cum {
			break
		}
	}

	row := t.rows[chosen]
	from := max(row.Age, startAge)
	return from + frac*(row.Age+1-from), nil
}
