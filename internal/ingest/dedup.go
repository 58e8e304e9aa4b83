package ingest

import (
	"context"
	"fmt"
)

// Dedup classifies each fingerprinted posting against the canonical store and
// against the rest of its batch:
//
//   - same (sourceId, externalId) already seen in this batch → skip
//   - fingerprint already claimed by a different source in this batch → skip
//   - no stored match → insert
//   - earliest stored match belongs to the same source → update
//   - earliest stored match belongs to another source → skip (first source wins)
//
// The store is consulted with a single batch query.
func Dedup(ctx context.Context, postings []FingerprintedPosting, store Store) ([]DedupOutcome, error) {
	if len(postings) == 0 {
		return nil, nil
	}

	unique := make([]string, 0, len(postings))
	seenFp := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		if _, ok := seenFp[p.Fingerprint]; ok {
			continue
		}
		seenFp[p.Fingerprint] = struct{}{}
		unique = append(unique, p.Fingerprint)
	}

	owners, err := store.JobsByFingerprint(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("dedup fingerprint lookup: %w", err)
	}

	ownersByFp := make(map[string][]FingerprintOwner, len(owners))
	for _, o := range owners {
		ownersByFp[o.Fingerprint] = append(ownersByFp[o.Fingerprint], o)
	}

	outcomes := make([]DedupOutcome, 0, len(postings))
	seenSourceExternal := make(map[string]struct{}, len(postings))
	batchFpSource := make(map[string]string, len(postings))

	for _, p := range postings {
		key := p.Posting.SourceID + ":" + p.Posting.ExternalID
		if _, ok := seenSourceExternal[key]; ok {
			outcomes = append(outcomes, DedupOutcome{
				Action:  ActionSkip,
				Posting: p,
				Reason:  fmt.Sprintf("duplicate source/external in batch: %s", key),
			})
			continue
		}
		seenSourceExternal[key] = struct{}{}

		if claimedBy, ok := batchFpSource[p.Fingerprint]; ok && claimedBy != p.Posting.SourceID {
			outcomes = append(outcomes, DedupOutcome{
				Action:  ActionSkip,
				Posting: p,
				Reason:  fmt.Sprintf("fingerprint duplicate in batch of %s", claimedBy),
			})
			continue
		}

		matches := ownersByFp[p.Fingerprint]
		if len(matches) == 0 {
			batchFpSource[p.Fingerprint] = p.Posting.SourceID
			outcomes = append(outcomes, DedupOutcome{Action: ActionInsert, Posting: p})
			continue
		}

		winner := matches[0]
		if winner.SourceID != p.Posting.SourceID {
			outcomes = append(outcomes, DedupOutcome{
				Action:  ActionSkip,
				Posting: p,
				Reason:  fmt.Sprintf("fingerprint duplicate of %s:%s", winner.SourceID, winner.ID),
			})
			continue
		}

		batchFpSource[p.Fingerprint] = p.Posting.SourceID
		outcomes = append(outcomes, DedupOutcome{
			Action:     ActionUpdate,
			Posting:    p,
			ExistingID: winner.ID,
		})
	}

	return outcomes, nil
}
