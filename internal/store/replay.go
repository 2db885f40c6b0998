package store

import (
	"context"
	"fmt"
	"sort"
)

// Mismatch is an entity whose replayed record differs from the stored one.
// An empty Want or Got means the entity is missing on that side.
type Mismatch struct {
	Index int    `json:"index"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// VerifyDigests compares replayed record digests with those stored for
// runID. It returns the mismatches ordered by entity index; none means the
// replay reproduced the stored run exactly.
func (s *Store) VerifyDigests(ctx context.Context, runID string, got map[int]string) ([]Mismatch, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, err
	}
	want, err := s.Digests(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("verify digests: %w", err)
	}
	return CompareDigests(want, got), nil
}

// CompareDigests returns the entities on which two digest sets disagree,
// ordered by entity index.
func CompareDigests(want, got map[int]string) []Mismatch {
	mismatches := []Mismatch{}
	for idx, w := range want {
		if g := got[idx]; g != w {
			mismatches = append(mismatches, Mismatch{Index: idx, Want: w, Got: g})
		}
	}
	for idx, g := range got {
		if _, ok := want[idx]; !ok {
			mismatches = append(mismatches, Mismatch{Index: idx, Got: g})
		}
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Index < mismatches[j].Index })
	return mismatches
}
