package mapping

import "strings"

// Direction states which side of a mapping is authoritative when it is
// applied.
type Direction string

const (
	// DirectionRepoToTable pushes repository attributes into table fields.
	DirectionRepoToTable Direction = "repo_to_table"
	// DirectionTableToRepo pushes table fields into repository attributes.
	DirectionTableToRepo Direction = "table_to_repo"
	// DirectionBidirectional keeps both sides in sync and requires a
	// one-to-one field correspondence.
	DirectionBidirectional Direction = "bidirectional"
)

// ParseDirection validates a direction tag.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.TrimSpace(s)) {
	case DirectionRepoToTable:
		return DirectionRepoToTable, nil
	case DirectionTableToRepo:
		return DirectionTableToRepo, nil
	case DirectionBidirectional:
		return DirectionBidirectional, nil
	default:
		return "", ErrInvalidDirection
	}
}

// requiresTableCoverage reports whether the direction writes into the table
// and therefore should warn about unmapped required table fields.
func (d Direction) requiresTableCoverage() bool {
	return d == DirectionRepoToTable || d == DirectionBidirectional
}
