package pipeline

import "fmt"

// FrameOf says which frame's output of another pass a pass observes.
type FrameOf int

const (
	// FramePrevious: the other pass has not run yet this frame (or is the
	// observing pass itself), so its read buffer holds last frame's result.
	FramePrevious FrameOf = iota
	// FrameCurrent: the other pass already ran and swapped this frame.
	FrameCurrent
)

func (f FrameOf) String() string {
	if f == FrameCurrent {
		return "current"
	}
	return "previous"
}

// Observes returns which frame of pass j's output pass i samples. Passes
// run in ascending index order, so only lower indices are current.
func Observes(i, j int) FrameOf {
	if j < i {
		return FrameCurrent
	}
	return FramePrevious
}

// PassTextureName is the sampler uniform through which every pass sees
// pass j's read buffer.
func PassTextureName(j int) string {
	return fmt.Sprintf("pass%dTexture", j)
}

// checkOrder validates that every declared current-frame dependency points
// at an earlier pass.
func checkOrder(passes []Pass) error {
	for i, p := range passes {
		for _, j := range p.CurrentInputs {
			if j < 0 || j >= len(passes) {
				return fmt.Errorf("%w: pass %d (%s) depends on unknown pass %d", ErrPassOrder, i, p.Fragment, j)
			}
			if Observes(i, j) != FrameCurrent {
				return fmt.Errorf("%w: pass %d (%s) needs the current frame of pass %d, which runs later or is itself",
					ErrPassOrder, i, p.Fragment, j)
			}
		}
	}
	return nil
}
