package domain

import "strings"

// MatchesTerm reports a case-insensitive substring match of term against the
// name, serial number or description. An empty term matches everything.
func MatchesTerm(item Equipment, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{item.Name, item.SerialNumber, item.Description} {
		if field != "" && strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// MatchesCategory reports an exact category match; CategoryAll and the empty
// category match everything.
func MatchesCategory(item Equipment, category Category) bool {
	if category == "" || category == CategoryAll {
		return true
	}
	return item.Category == category
}

// Search returns the items matching term, in input order.
func Search(all []Equipment, term string) []Equipment {
	return filter(all, func(e Equipment) bool { return MatchesTerm(e, term) })
}

// FilterByCategory returns the items of the given category, in input order.
func FilterByCategory(all []Equipment, category Category) []Equipment {
	return filter(all, func(e Equipment) bool { return MatchesCategory(e, category) })
}

// Visible combines search and category filters over the top-level items.
func Visible(all []Equipment, term string, category Category) []Equipment {
	return TopLevel(all, func(e Equipment) bool {
		return MatchesTerm(e, term) && MatchesCategory(e, category)
	})
}

// FindBySerial returns the first item whose serial number equals serial exactly.
func FindBySerial(all []Equipment, serial string) (Equipment, bool) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return Equipment{}, false
	}
	for _, item := range all {
		if item.SerialNumber == serial {
			return item, true
		}
	}
	return Equipment{}, false
}

func filter(all []Equipment, keep func(Equipment) bool) []Equipment {
	out := make([]Equipment, 0, len(all))
	for _, item := range all {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
