package opcodes

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"
)

// SimulatedExecutor stands in for a real cluster operation in tests: it
// sleeps a random duration up to MaxDelay, then fails with probability
// FailureRate, honoring ctx cancellation and cooperative cancel checks
// throughout. It is not used outside tests.
type SimulatedExecutor struct {
	MaxDelay    time.Duration
	FailureRate float64 // 0..1
}

func (s SimulatedExecutor) Execute(ctx context.Context, kind string, params json.RawMessage, callbacks Callbacks) (json.RawMessage, error) {
	if err := callbacks.NotifyStart(); err != nil {
		return nil, err
	}

	delay := time.Duration(0)
	if s.MaxDelay > 0 {
		delay = time.Duration(rand.Int63n(int64(s.MaxDelay)))
	}

	callbacks.Feedback("info", "simulated: starting")

	const pollInterval = 5 * time.Millisecond
	deadline := time.Now().Add(delay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-time.After(wait):
		}
		if callbacks.CheckCancel() {
			return nil, ErrCanceled
		}
	}

	if s.FailureRate > 0 && rand.Float64() < s.FailureRate {
		return nil, errors.New("opcodes: simulated execution failure")
	}

	callbacks.Feedback("info", "simulated: done")
	return json.RawMessage(`{"simulated":true}`), nil
}
