package recording

import (
	akitasim "github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/sim"
)

// AccessHook records every access an engine performs.
type AccessHook struct {
	recorder *Recorder
}

// NewAccessHook creates a hook that feeds rec.
func NewAccessHook(rec *Recorder) *AccessHook {
	return &AccessHook{recorder: rec}
}

// Func records the access described by ctx.
func (h *AccessHook) Func(ctx akitasim.HookCtx) {
	if ctx.Pos != sim.HookPosAccess {
		return
	}

	if event, ok := ctx.Detail.(sim.AccessEvent); ok {
		h.recorder.RecordAccess(event)
	}
}
