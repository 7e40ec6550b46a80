package policy

import (
	"errors"
	"fmt"

	"govfed/pkg/types"
)

// Strategy selects the rule used to pick a winner among divergent versions
// of the same policy id held by different organizations.
type Strategy string

const (
	// StrategyLatest picks the version with the most recent effective-from
	// time.
	StrategyLatest Strategy = "latest"

	// StrategyLeader picks the most recent version owned by an
	// organization in the leader role.
	StrategyLeader Strategy = "leader"

	// StrategyMerge is a placeholder: it returns the first candidate and
	// flags that manual reconciliation is still required.
	StrategyMerge Strategy = "merge"
)

// ErrNeedsManualMerge marks a resolution that callers must reconcile by
// hand before treating the conflict as settled.
var ErrNeedsManualMerge = errors.New("merge strategy requires manual reconciliation")

// Resolution is the outcome of conflict resolution. NeedsManualMerge is set
// only by the merge strategy so a placeholder result can never be mistaken
// for settled state.
type Resolution struct {
	Policy           *types.FederatedPolicy
	Strategy         Strategy
	NeedsManualMerge bool
}

// ResolveConflict picks a winner among divergent versions of one policy id.
// The orgs map supplies role information for the leader strategy.
func (p *Protocol) ResolveConflict(versions []*types.FederatedPolicy, strategy Strategy, orgs map[string]*types.OrganizationIdentity) (*Resolution, error) {
	if len(versions) == 0 {
		return nil, fmt.Errorf("no versions to resolve")
	}

	switch strategy {
	case StrategyLatest:
		winner := versions[0]
		for _, candidate := range versions[1:] {
			if candidate.EffectiveFrom.After(winner.EffectiveFrom) {
				winner = candidate
			}
		}
		return &Resolution{Policy: winner.Clone(), Strategy: strategy}, nil

	case StrategyLeader:
		var winner *types.FederatedPolicy
		for _, candidate := range versions {
			owner, ok := orgs[candidate.OwnerOrgID]
			if !ok || owner.Role != types.RoleLeader {
				continue
			}
			if winner == nil || candidate.EffectiveFrom.After(winner.EffectiveFrom) {
				winner = candidate
			}
		}
		if winner == nil {
			return nil, fmt.Errorf("no candidate version is owned by a leader organization")
		}
		return &Resolution{Policy: winner.Clone(), Strategy: strategy}, nil

	case StrategyMerge:
		return &Resolution{
			Policy:           versions[0].Clone(),
			Strategy:         strategy,
			NeedsManualMerge: true,
		}, nil

	default:
		return nil, fmt.Errorf("unknown conflict resolution strategy %q", strategy)
	}
}
