package domain

import (
	"fmt"
	"sort"
	"strings"
)

// SummarizeItems renders the items summary of a movement record.
func SummarizeItems(names []string) string {
	return fmt.Sprintf("%d equipos: %s", len(names), strings.Join(names, ", "))
}

// SortHistory orders records by date descending, newest id first on equal dates.
func SortHistory(records []MovementRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return records[i].ID > records[j].ID
		}
		return records[i].Date.After(records[j].Date)
	})
}
