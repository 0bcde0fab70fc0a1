package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/trezcool/markalloc/core/allocation"
	"github.com/trezcool/markalloc/core/tracker"
)

// summary fetches a semester's allocation through the tracker and prints it,
// with the projection of marks when they are set.
func (cli *commandLine) summary(ctx context.Context, sel allocation.SemesterSelector, marks int, exclude string) error {
	slot := tracker.SlotSelected
	if sel.IsCurrent() {
		slot = tracker.SlotCurrent
	}

	coord := tracker.NewCoordinator(tracker.NewStore(), cli.remote, tracker.OptionsFromConfig(cli.conf, cli.logger, nil))
	defer coord.Close()

	if _, err := coord.Fetch(ctx, slot, sel); err != nil {
		return err
	}
	summary, ok := coord.Store().Get(slot)
	if !ok {
		return tracker.ErrSlotEmpty
	}

	p, err := allocation.ProjectDraft(summary, allocation.ValidationRequest{
		SemesterID:       summary.SemesterID,
		CandidateMarks:   marks,
		ExcludeContentID: exclude,
	})
	if err != nil {
		return err
	}
	cli.printSummary(summary, p)
	return nil
}

func (cli *commandLine) printSummary(summary allocation.SemesterAllocationSummary, p allocation.Projection) {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Semester:\t%s (%s)\n", summary.SemesterName, summary.SemesterID)
	// figures reported by the server are shown as is; the projection uses the recomputed sum
	fmt.Fprintf(w, "Limit:\t%d\n", summary.TotalLimit)
	fmt.Fprintf(w, "Allocated:\t%d (%.1f%%, %s)\n", summary.TotalAllocated, p.CurrentPercent, p.CurrentStatus)
	fmt.Fprintf(w, "Remaining:\t%d\n", summary.RemainingMarks)
	if err := summary.CheckInvariant(); err != nil {
		fmt.Fprintf(w, "Warning:\t%v\n", err)
	}

	if len(summary.Contents) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tMARKS")
		for _, c := range summary.Contents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.ContentID, c.ContentTitle, c.ContentType, c.AllocatedMarks)
		}
	}

	if p.HasDraft() {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Draft:\t%d\n", p.CandidateMarks)
		fmt.Fprintf(w, "Projected:\t%d (%.1f%%, %s)\n", p.Baseline+p.CandidateMarks, p.ProjectedPercent, p.ProjectedStatus)
		fmt.Fprintf(w, "Projected remaining:\t%d\n", p.ProjectedRemaining)
		fmt.Fprintln(w, p.Message)
	}
	_ = w.Flush()
}
