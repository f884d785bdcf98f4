package domain

// CountAt counts the independently located items at the named location.
// Items inside a rack are not counted.
func CountAt(all []Equipment, locationName string) int {
	count := 0
	for _, item := range all {
		if item.ParentID == nil && item.Location == locationName {
			count++
		}
	}
	return count
}

// CanDelete reports whether no item references the location.
func CanDelete(all []Equipment, location Location) bool {
	return CountAt(all, location.Name) == 0
}
