// Package trace renders a finished entity as a canonical record.
//
// The record covers everything a run produces for one entity: its drawn
// attributes, the natural history, the event, resource and utility logs
// and how it terminated. Two runs with the same seed and parameters must
// produce byte-identical records, whatever the worker count, so the
// record digest is the unit of the determinism check.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// DomainEntity prefixes entity record digests. The version suffix changes
// whenever the record layout does.
const DomainEntity = "oralsim/entity/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Record builds the canonical record of e. The entity ID is left out so
// that records compare equal across runs that name entities differently.
func Record(e *entity.Entity) Object {
	obj := Object{
		"index":      Int(e.Index),
		"startAge":   Number(e.StartAge),
		"sex":        String(e.Sex),
		"smoke":      String(e.Smoke),
		"alcohol":    String(e.Alcohol),
		"hasDentist": Bool(e.HasDentist),
		"probOPL":    Number(e.ProbOPL),
		"oplRisk":    String(e.OPLRisk),
		"state":      Number(e.State.Code()),
		"stateLabel": String(e.StateLabel),
		"stage":      String(e.Stage),
		"deathType":  String(e.DeathType),
		"allTime":    Clock(e.AllTime),
		"timeDeath":  Clock(e.TimeDeath),
		"censored":   Bool(e.HorizonCensored),
		"natHist":    natHist(e.NatHist()),
		"events":     events(e.Events),
		"resources":  resources(e.Resources),
		"utility":    utilities(e.Utility),
	}
	if e.Err != nil {
		obj["error"] = Object{
			"code":    String(simerr.CodeOf(e.Err)),
			"message": String(e.Err.Error()),
		}
	}
	return obj
}

// Canonical returns the canonical JSON of the entity's record.
func Canonical(e *entity.Entity) ([]byte, error) {
	data, err := Marshal(Record(e))
	if err != nil {
		return nil, fmt.Errorf("entity %d: %w", e.Index, err)
	}
	return data, nil
}

// Digest returns the domain-separated SHA-256 of the entity's record.
func Digest(e *entity.Entity) (string, error) {
	data, err := Canonical(e)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(DomainEntity, data), nil
}

// MustDigest is like Digest but panics on error.
// Use only in tests.
func MustDigest(e *entity.Entity) string {
	d, err := Digest(e)
	if err != nil {
		panic(err)
	}
	return d
}

func natHist(entries []entity.NatHistEntry) Array {
	out := make(Array, len(entries))
	for i, n := range entries {
		out[i] = Object{
			"label":  String(n.Label),
			"status": Number(n.Status.Code()),
			"time":   Clock(n.Time),
		}
	}
	return out
}

func events(evs []entity.Event) Array {
	out := make(Array, len(evs))
	for i, ev := range evs {
		out[i] = Object{"label": String(ev.Label), "time": Clock(ev.Time)}
	}
	return out
}

func resources(rs []entity.Resource) Array {
	out := make(Array, len(rs))
	for i, r := range rs {
		out[i] = Object{"label": String(r.Label), "time": Clock(r.Time)}
	}
	return out
}

func utilities(us []entity.Utility) Array {
	out := make(Array, len(us))
	for i, u := range us {
		out[i] = Object{"label": String(u.Label), "value": Number(u.Value), "time": Clock(u.Time)}
	}
	return out
}
