package roster

import (
	"fmt"
	"strings"
)

// ApplyRole sets the priority of a position, or a group of positions, by
// name. Accepted names are carry/pos1, mid/midlane/pos2, off/offlane/pos3,
// pos4, pos5, core (carry, mid and offlane) and sup/supp/support (pos4 and pos5).
func ApplyRole(r Roles, name string, value int) (Roles, error) {
	if value < MinRolePriority || value > MaxRolePriority {
		return r, fmt.Errorf("%w: priority %d", ErrInvalidRole, value)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "carry", "pos1":
		r.Carry = value
	case "mid", "midlane", "pos2":
		r.Mid = value
	case "off", "offlane", "pos3":
		r.Offlane = value
	case "pos4":
		r.Pos4 = value
	case "pos5":
		r.Pos5 = value
	case "core":
		r.Carry, r.Mid, r.Offlane = value, value, value
	case "sup", "supp", "support":
		r.Pos4, r.Pos5 = value, value
	default:
		return r, fmt.Errorf("%w: unknown role %q", ErrInvalidRole, name)
	}
	return r, nil
}
