package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
	"github.com/trezcool/markalloc/core/tracker"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	remote allocation.RemoteAPI
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run database migrations (up, down, status, version, redo, reset, up-to N, down-to N)")
	fmt.Fprintln(cli.out, "  summary [-semester ID|current] [-marks N] [-exclude CONTENT_ID] - print a semester's mark allocation")
	fmt.Fprintln(cli.out, "  check -marks N [-semester ID|current] [-type TYPE] [-exclude CONTENT_ID] - validate draft marks against the API")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	summaryCmd := flag.NewFlagSet("summary", flag.ContinueOnError)
	summaryCmd.SetOutput(cli.out)
	summarySemester := summaryCmd.String("semester", string(allocation.CurrentSemester), "The semester ID, or current.")
	summaryMarks := summaryCmd.Int("marks", 0, "Draft marks to project onto the semester.")
	summaryExclude := summaryCmd.String("exclude", "", "The content being edited; its marks are replaced by -marks.")

	checkCmd := flag.NewFlagSet("check", flag.ContinueOnError)
	checkCmd.SetOutput(cli.out)
	checkSemester := checkCmd.String("semester", string(allocation.CurrentSemester), "The semester ID, or current.")
	checkMarks := checkCmd.Int("marks", 0, "The draft marks to validate (> 0).")
	checkType := checkCmd.String("type", "", "The content type (exam, assignment, quiz, material, note).")
	checkExclude := checkCmd.String("exclude", "", "The content being edited; its marks are replaced by -marks.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "summary":
		if err := summaryCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.summary(ctx, allocation.SelectSemester(*summarySemester), *summaryMarks, *summaryExclude)
	case "check":
		if err := checkCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *checkMarks <= 0 {
			checkCmd.Usage()
			return errHelp
		}
		ctype := allocation.ContentType(core.CleanString(*checkType, true /* lower */))
		if ctype != "" && !ctype.IsValid() {
			return errors.Errorf("invalid content type %q", *checkType)
		}
		return cli.check(ctx, tracker.Draft{
			SemesterID:       allocation.SelectSemester(*checkSemester).String(),
			CandidateMarks:   *checkMarks,
			ContentType:      ctype,
			ExcludeContentID: *checkExclude,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
