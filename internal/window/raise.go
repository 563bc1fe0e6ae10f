package window

import (
	"fmt"

	"github.com/bryanchriswhite/focusfollows/internal/logger"
)

// Raiser brings a top-level window to the front and gives it focus.
type Raiser struct {
	prims Primitives
}

// NewRaiser creates a Raiser on top of the given primitives
func NewRaiser(prims Primitives) *Raiser {
	return &Raiser{prims: prims}
}

// Raise runs the foreground-lock bypass sequence against h.
//
// The self-directed input event makes the OS attribute recent input to this
// process, which is what permits the foreground transfer that follows. Only
// a failed foreground transfer is reported; the first two steps are
// best-effort.
func (r *Raiser) Raise(h Handle) error {
	log := logger.WithComponent("raiser")

	if err := r.prims.InjectSelfInput(); err != nil {
		log.Debug().Err(err).Msg("Self input injection failed")
	}

	if err := r.prims.SetTopNoMove(h); err != nil {
		log.Debug().Err(err).Stringer("hwnd", h).Msg("Z-order change rejected")
	}

	if err := r.prims.SetForeground(h); err != nil {
		return fmt.Errorf("failed to set foreground window %s: %w", h, err)
	}
	return nil
}
