package sim

import (
	"fmt"
	"io"
	"log"
	"strings"

	akitasim "github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/trace"
)

// VerboseHook prints one line per data record with the outcome of each of
// its accesses, for example "M 20,1 miss eviction hit".
type VerboseHook struct {
	*log.Logger

	pending strings.Builder
}

// NewVerboseHook creates a VerboseHook that writes to w.
func NewVerboseHook(w io.Writer) *VerboseHook {
	return &VerboseHook{
		Logger: log.New(w, "", 0),
	}
}

// Func prints the record once all of its accesses are known.
func (h *VerboseHook) Func(ctx akitasim.HookCtx) {
	if ctx.Pos != HookPosAccess {
		return
	}

	event, ok := ctx.Detail.(AccessEvent)
	if !ok {
		return
	}

	r := event.Record
	if event.Pass == 0 {
		h.pending.Reset()
		fmt.Fprintf(&h.pending, "%s %x,%d", r.Kind, r.Address, r.Size)
	}
	fmt.Fprintf(&h.pending, " %s", event.Outcome)

	if r.Kind == trace.Modify && event.Pass == 0 {
		return
	}

	h.Print(h.pending.String())
}
