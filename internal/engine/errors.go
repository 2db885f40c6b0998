package engine

import (
	"log/slog"
	"strconv"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// failEntity routes e to the error state and logs the failure with enough
// entity context to reproduce it from the run seed and entity index.
//
// Entity-local failures never stop the batch: the dispatcher stops
// advancing this entity and the batch driver counts it.
func failEntity(logger *slog.Logger, e *entity.Entity, err error) {
	prev := e.State
	e.Fail(err)

	logger.Warn("entity routed to error state",
		"entity", e.ID,
		"index", e.Index,
		"code", string(simerr.CodeOf(err)),
		"reason", simerr.Reason(err),
		"state", prev.String(),
		"all_time", formatClock(e.AllTime),
		"time_sysp", formatClock(e.TimeSysp),
		"error", err,
	)
}

// formatClock renders a clock value, spelling out the unscheduled sentinel.
func formatClock(t float64) string {
	if entity.IsNever(t) {
		return "never"
	}
	return strconv.FormatFloat(t, 'f', -1, 64)
}
