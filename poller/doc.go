// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package poller drives a calculation from submission to a terminal state.

# States

	IDLE ──Start──▶ SUBMITTING ──accepted──▶ POLLING ──COMPLETED──▶ COMPLETED
	                    │                       ├──FAILED / poll errors──▶ FAILED
	                    └──error──▶ FAILED      └──Cancel──▶ CANCELLED

COMPLETED, FAILED and CANCELLED only change through a new Start.

# Guarantees

  - At most one poll goroutine exists. Start waits for the previous one to
    exit before submitting.
  - Polls are sequential: the next timer is armed after the previous poll
    returns, never on a fixed ticker.
  - Cancel bumps a generation counter, so a poll that resolves after
    cancellation is discarded.
  - Elapsed time runs from SUBMITTING and freezes at the terminal state.
    Slow is informational and never changes state.
  - Close cancels, waits for the goroutine and closes subscriptions.

# Failure policy

Submission errors end as FAILED with kind network, except rate limits
which keep kind rate_limit. Poll errors are counted; FailureBudget
consecutive failures end the calculation as FAILED. A backend FAILED
status becomes kind calculation with the backend's code and message.

# Usage

	engine := poller.New(client, poller.Options{
		Interval:   2 * time.Second,
		OnTerminal: func(s poller.Snapshot) { ... },
	})
	defer engine.Close()

	snap := engine.Start(ctx, req)
*/
package poller
