package model

// InputKind enumerates the operator actions an input source can produce.
type InputKind int

const (
	InputDirectionDown InputKind = iota + 1
	InputDirectionUp
	InputSpeedSet
	InputSpeedStep
	InputToggleEffect
	InputSaveFrame
)

func (k InputKind) String() string {
	switch k {
	case InputDirectionDown:
		return "direction_down"
	case InputDirectionUp:
		return "direction_up"
	case InputSpeedSet:
		return "speed_set"
	case InputSpeedStep:
		return "speed_step"
	case InputToggleEffect:
		return "toggle_effect"
	case InputSaveFrame:
		return "save_frame"
	default:
		return "unknown"
	}
}

// InputEvent is one operator action. Only the fields relevant to Kind are set:
// Direction for InputDirectionDown, Speed for InputSpeedSet (absolute) and
// InputSpeedStep (signed delta), Effect for InputToggleEffect.
type InputEvent struct {
	Kind      InputKind
	Direction Direction
	Speed     int
	Effect    Effect
	Source    string
}
