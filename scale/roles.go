package scale

// Mode selects how black keys are struck.
type Mode int

const (
	// ModeNormal holds the black-key modifier together with the base key.
	ModeNormal Mode = iota
	// ModeExperimental taps the transpose-up key, holds the base key and
	// taps transpose-down, so no modifier stays held for the note.
	ModeExperimental
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeExperimental:
		return "experimental"
	default:
		return "unknown"
	}
}

// Role is a symbolic key slot. A layout binds roles to concrete keys.
type Role int

const (
	RoleBase Role = iota
	RoleBlackModifier
	RoleTransposeUp
	RoleTransposeDown
)

func (r Role) String() string {
	switch r {
	case RoleBase:
		return "base"
	case RoleBlackModifier:
		return "black-modifier"
	case RoleTransposeUp:
		return "transpose-up"
	case RoleTransposeDown:
		return "transpose-down"
	default:
		return "unknown"
	}
}

// Strike lists the roles needed to sound one degree. Lead roles are tapped
// before the hold, Hold roles are pressed in order and kept down until
// note-off, Trail roles are tapped once the hold is in place.
type Strike struct {
	Lead  []Role
	Hold  []Role
	Trail []Role
}

var (
	whiteStrike = Strike{Hold: []Role{RoleBase}}

	strikes = map[Mode]Strike{
		ModeNormal: {
			Hold: []Role{RoleBlackModifier, RoleBase},
		},
		ModeExperimental: {
			Lead:  []Role{RoleTransposeUp},
			Hold:  []Role{RoleBase},
			Trail: []Role{RoleTransposeDown},
		},
	}
)

// StrikeFor returns the strike for a degree in the given mode. White
// degrees are the same in every mode.
func StrikeFor(d Degree, m Mode) Strike {
	if !d.Black {
		return whiteStrike
	}
	if s, ok := strikes[m]; ok {
		return s
	}
	return strikes[ModeNormal]
}
