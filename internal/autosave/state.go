package autosave

// State is the controller's position in its save cycle:
// Idle -> PendingSave -> Saving -> Saved|Failed -> Idle.
type State int

const (
	Idle State = iota
	PendingSave
	Saving
	Saved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingSave:
		return "pending_save"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
