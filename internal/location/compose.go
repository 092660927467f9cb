package location

import "strings"

// ComposeFullAddress builds the display-ready full address string from the
// street line and the settlement hierarchy. It is a pure projection: blank
// segments are skipped rather than rendered as empty commas, and consecutive
// duplicates (a settlement named like its municipality) collapse to one
// segment.
func ComposeFullAddress(streetAndNumber, settlement, municipality, county string) string {
	segments := make([]string, 0, 4)
	for _, segment := range []string{streetAndNumber, settlement, municipality, county} {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if len(segments) > 0 && strings.EqualFold(segments[len(segments)-1], segment) {
			continue
		}
		segments = append(segments, segment)
	}
	return strings.Join(segments, ", ")
}

// ComposeFromHierarchy is the store-shaped convenience over ComposeFullAddress.
func ComposeFromHierarchy(streetAndNumber string, h Hierarchy) string {
	return ComposeFullAddress(streetAndNumber, h.Settlement.Name, h.Municipality.Name, h.County.Name)
}
