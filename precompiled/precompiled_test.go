package precompiled

import (
	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

type fakeCtx struct {
	overlay *state.Overlay
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{overlay: state.NewOverlay(1, nil, nil)}
}

func (f *fakeCtx) Storage() vm.Storage          { return f.overlay }
func (f *fakeCtx) BlockNumber() uint64          { return 1 }
func (f *fakeCtx) GasSchedule() params.Schedule { return params.DefaultSchedule() }
