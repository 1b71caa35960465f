package richtext

import (
	"context"
	"slices"
)

// Resolve issues one batch fetch for every reference in chunks and attaches
// the results. A fetch error leaves every reference unresolved and is returned
// so the caller can tell failure from absence.
func Resolve(ctx context.Context, store EntityStore, chunks []Chunk, site Site) error {
	refs := make([]*Reference, 0)
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, c := range chunks {
		ref, ok := c.(*Reference)
		if !ok {
			continue
		}
		refs = append(refs, ref)
		if _, exists := seen[ref.id]; exists {
			continue
		}
		seen[ref.id] = struct{}{}
		ids = append(ids, ref.id)
	}
	if len(refs) == 0 {
		return nil
	}
	var (
		found map[int64]Entity
		err   error
	)
	if store != nil {
		slices.Sort(ids)
		found, err = store.FetchByIDs(ctx, ids, site)
		if err != nil {
			found = nil
		}
	}
	for _, ref := range refs {
		ref.attach(found[ref.id])
	}
	return err
}
