package generation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPendingGeneration rejects pruning while any generation is mid-activation.
var ErrPendingGeneration = errors.New("profile has a pending generation; retry after activation completes")

// Prune removes generations not protected by the policy and returns the
// removed records so callers can report them. The active generation is never
// removed. Allocated numbers are not reclaimed.
//
// Callers must hold the profile lock; the delete set is computed and applied
// in one transaction so concurrent readers never observe a partial prune.
func (s *Store) Prune(ctx context.Context, profile string, policy Policy) ([]*Generation, error) {
	generations, err := s.List(ctx, profile)
	if err != nil {
		return nil, err
	}
	for _, gen := range generations {
		if gen.Status == StatusPending {
			return nil, fmt.Errorf("prune %s: %w", profile, ErrPendingGeneration)
		}
	}

	doomed := selectDoomed(generations, policy, time.Now().UTC())
	if len(doomed) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("prune: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, gen := range doomed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM generations WHERE profile = ? AND number = ?`,
			gen.Profile, gen.Number,
		); err != nil {
			return nil, fmt.Errorf("prune generation %d: %w", gen.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("prune: commit: %w", err)
	}

	for _, gen := range doomed {
		s.removeGenerationLink(gen)
	}
	return doomed, nil
}

// PrunePreview reports what Prune would remove without touching anything.
func (s *Store) PrunePreview(ctx context.Context, profile string, policy Policy) ([]*Generation, error) {
	generations, err := s.List(ctx, profile)
	if err != nil {
		return nil, err
	}
	for _, gen := range generations {
		if gen.Status == StatusPending {
			return nil, fmt.Errorf("prune %s: %w", profile, ErrPendingGeneration)
		}
	}
	return selectDoomed(generations, policy, time.Now().UTC()), nil
}

// selectDoomed partitions generations (newest first) into kept and doomed
// under the policy. Protection rules, in order: the active generation, the
// KeepLast most recent non-active generations, generations newer than
// KeepNewerThan, and specialised generations when KeepSpecialisations is set.
func selectDoomed(generations []*Generation, policy Policy, now time.Time) []*Generation {
	var doomed []*Generation
	kept := 0
	for _, gen := range generations {
		switch {
		case gen.Status == StatusActive:
			continue
		case kept < policy.KeepLast:
			kept++
			continue
		case policy.KeepNewerThan > 0 && now.Sub(gen.CreatedAt) < policy.KeepNewerThan:
			continue
		case policy.KeepSpecialisations && gen.Specialisation != "":
			continue
		default:
			doomed = append(doomed, gen)
		}
	}
	return doomed
}
