package opcodes

import (
	"context"
	"encoding/json"
)

// NoopExecutor immediately succeeds every opcode it is asked to run. The
// CLI's App registers it under the kind "noop", and it is the default
// executor in tests that only care about queue/processor behavior, not real
// cluster side effects.
type NoopExecutor struct{}

func (NoopExecutor) Execute(ctx context.Context, kind string, params json.RawMessage, callbacks Callbacks) (json.RawMessage, error) {
	if err := callbacks.NotifyStart(); err != nil {
		return nil, err
	}
	callbacks.Feedback("info", "noop: nothing to do")
	return json.RawMessage(`{}`), nil
}
