package app

import "reviews_dashboard/internal/domain"

// Merge concatenates the sequences and drops repeated ids. The first
// occurrence wins, so earlier providers take precedence on collision.
func Merge(seqs ...[]domain.Review) []domain.Review {
	n := 0
	for _, s := range seqs {
		n += len(s)
	}
	seen := make(map[domain.ReviewID]struct{}, n)
	out := make([]domain.Review, 0, n)
	for _, s := range seqs {
		for _, r := range s {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
