package trace

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/roach88/oralsim/internal/entity"
)

// WriteText prints the entity's path for a reader: its attributes, the
// natural history it was dealt, and the care pathway it actually took.
// The output is stable for a given entity and is used for golden files.
func WriteText(w io.Writer, e *entity.Entity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "entity %d\n", e.Index)
	fmt.Fprintf(tw, "  start age\t%s\n", Number(e.StartAge))
	fmt.Fprintf(tw, "  sex\t%s\n", e.Sex)
	fmt.Fprintf(tw, "  smoking\t%s\n", e.Smoke)
	fmt.Fprintf(tw, "  alcohol\t%s\n", e.Alcohol)
	fmt.Fprintf(tw, "  dentist\t%t\n", e.HasDentist)
	if e.HasOPL {
		fmt.Fprintf(tw, "  opl risk\t%s\n", e.OPLRisk)
	}

	fmt.Fprintln(tw, "\nnatural history")
	for _, n := range e.NatHist() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", Clock(n.Time), Number(n.Status.Code()), n.Label)
	}

	fmt.Fprintln(tw, "\nevents")
	for _, ev := range e.Events {
		fmt.Fprintf(tw, "  %s\t%s\n", Clock(ev.Time), ev.Label)
	}

	if len(e.Resources) > 0 {
		fmt.Fprintln(tw, "\nresources")
		for _, r := range e.Resources {
			fmt.Fprintf(tw, "  %s\t%s\n", Clock(r.Time), r.Label)
		}
	}

	fmt.Fprintln(tw, "\nutility")
	for _, u := range e.Utility {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", Clock(u.Time), Number(u.Value), u.Label)
	}

	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "state\t%s (%s)\n", Number(e.State.Code()), e.StateLabel)
	if e.DeathType != entity.DeathNone {
		fmt.Fprintf(tw, "death\t%s at %s\n", e.DeathType, Clock(e.TimeDeath))
	}
	return tw.Flush()
}
