package engine

import (
	"context"

	"github.com/roach88/registrar/internal/model"
)

func (e *Engine) handleQuickRestore(ctx context.Context) (model.Step, error) {
	switch m := e.mem.RestoreMethod; {
	case m == model.RestoreMethodNone:
		return model.StepQuickRestore{}, nil
	case m == model.RestoreMethodDeviceTransfer:
		return model.StepDeviceTransfer{}, nil
	case m.RequiresRootKey():
		return model.StepEnterBackupKey{Method: m}, nil
	default:
		return model.StepQuickRestore{}, nil
	}
}

func (e *Engine) handleManualRestore(ctx context.Context) (model.Step, error) {
	switch m := e.mem.RestoreMethod; {
	case m == model.RestoreMethodDeviceTransfer:
		return model.StepDeviceTransfer{}, nil
	case m.RequiresRootKey():
		return model.StepEnterBackupKey{Method: m}, nil
	default:
		return model.StepChooseRestoreMethod{}, nil
	}
}
