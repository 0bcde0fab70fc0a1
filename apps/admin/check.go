package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/markalloc/core/tracker"
)

var errDraftExceeds = errors.New("draft exceeds the semester limit")

// check validates a draft through a tracker session, the way an edit form does, and prints the answer.
// It fails with errDraftExceeds when the draft does not fit.
func (cli *commandLine) check(ctx context.Context, draft tracker.Draft) error {
	opts := tracker.OptionsFromConfig(cli.conf, cli.logger, nil)

	session := tracker.NewSession(cli.remote, opts)
	defer session.Close()

	outcomes := make(chan tracker.Outcome, 1)
	unsubscribe := session.Subscribe(func(o tracker.Outcome) {
		select {
		case outcomes <- o:
		default:
		}
	})
	defer unsubscribe()

	session.Update(draft)

	// the session times the request out itself; this only bounds the wait
	ctx, cancel := context.WithTimeout(ctx, waitBudget(opts))
	defer cancel()

	select {
	case o := <-outcomes:
		if o.Err != nil {
			return o.Err
		}
		res := o.Result
		w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Semester:\t%s\n", o.Draft.SemesterID)
		fmt.Fprintf(w, "Draft:\t%d\n", o.Draft.CandidateMarks)
		fmt.Fprintf(w, "Valid:\t%t\n", res.IsValid)
		fmt.Fprintf(w, "Remaining:\t%d\n", res.RemainingMarks)
		fmt.Fprintln(w, res.Message)
		_ = w.Flush()
		if res.WouldExceedLimit {
			return errDraftExceeds
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for validation")
	}
}

func waitBudget(opts tracker.Options) time.Duration {
	window, timeout := opts.DebounceWindow, opts.ValidateTimeout
	if window <= 0 {
		window = tracker.DefaultDebounceWindow
	}
	if timeout <= 0 {
		timeout = tracker.DefaultValidateTimeout
	}
	return window + timeout + time.Second
}
