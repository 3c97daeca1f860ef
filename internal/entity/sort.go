package entity

import "sort"

// SortPending orders a working set for reconciliation: priority descending,
// then created_at descending within a tier.
func SortPending(list []*PendingNotification) {
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := PriorityRank(list[i].Priority), PriorityRank(list[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
