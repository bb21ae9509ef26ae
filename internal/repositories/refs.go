package repositories

import (
	"sort"
	"strconv"
)

func orderKeys(ids []uint64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatUint(id, 10)
	}
	return keys
}

func idSet(ids []uint64) map[uint64]bool {
	set := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// resolveOrderRef maps a typed or string order reference onto one of want.
func resolveOrderRef(oid *uint64, key *string, want map[uint64]bool) (uint64, bool) {
	if oid != nil && want[*oid] {
		return *oid, true
	}
	if key != nil {
		id, err := strconv.ParseUint(*key, 10, 64)
		if err == nil && want[id] {
			return id, true
		}
	}
	return 0, false
}

func sortOMCTotals(rows []OMCTotal) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Total.Equal(rows[j].Total) {
			return rows[i].Total.GreaterThan(rows[j].Total)
		}
		return rows[i].OMC < rows[j].OMC
	})
}
