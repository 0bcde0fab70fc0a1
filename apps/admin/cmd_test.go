package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/markalloc/apps/api/echo"
	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
	allocapisvc "github.com/trezcool/markalloc/services/allocationapi"
	"github.com/trezcool/markalloc/storage/database"
	inmemdb "github.com/trezcool/markalloc/storage/database/inmem"
	"github.com/trezcool/markalloc/tests"
)

var repo allocation.Repository

// setup starts an allocation API over an in-memory repository and returns a CLI talking to it.
func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo = inmemdb.NewAllocationRepository(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	allocation.InitValidators(validate, translator)

	conf := &core.Config{
		TestMode: true,
		Server:   core.ServerConfig{DisableReqLogs: true},
		Database: core.DatabaseConfig{
			Engine: core.EngineSQLite,
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		},
		Allocation: core.AllocationConfig{
			DebounceWindow:  10 * time.Millisecond,
			ValidateTimeout: 5 * time.Second,
			FetchTimeout:    5 * time.Second,
		},
	}

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        testutil.NewLogger(),
		AllocationSvc: allocation.NewService(repo, testutil.NewLogger()),
		Validate:      validate,
		Translator:    translator,
	})
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	conf.Allocation.APIBaseURL = srv.URL

	var out bytes.Buffer
	return &commandLine{
		conf:   conf,
		logger: testutil.NewLogger(),
		remote: allocapisvc.NewClient(conf, srv.Client()),
		out:    &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: []string{"Usage:"}},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: []string{"Usage:"}},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	defer func() { gooseRunFunc = database.RunMigrations }()

	runCLITests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})

	cli.conf.Database.Engine = core.EngineMemory
	runCLITests(t, cli, out, []cliTest{
		{name: "in-memory engine", args: []string{"migrate", "up"}, wantErrStr: `unsupported database engine "memory"`},
	})
}

func Test_commandLine_migrate_sqlite(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "up", args: []string{"migrate", "up"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	})
}

func Test_commandLine_summary(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no current semester", args: []string{"summary"}, wantErrStr: "fetch semester allocation (current): " +
			"fetching semester allocation: status 404: current semester not found"},
	})

	sem := testutil.CreateSemester(t, repo, "Fall 2024", 100, true)
	testutil.CreateContent(t, repo, sem.ID, "Midterm", allocation.ContentExam, 60)
	quiz := testutil.CreateContent(t, repo, sem.ID, "Quiz 1", allocation.ContentQuiz, 20)

	runCLITests(t, cli, out, []cliTest{
		{
			name: "current", args: []string{"summary"},
			wantOut: []string{"Fall 2024", "Allocated:  80 (80.0%, warning)", "Remaining:  20", "Midterm", "Quiz 1"},
		},
		{
			name: "by id", args: []string{"summary", "-semester", sem.ID},
			wantOut: []string{"Fall 2024 (" + sem.ID + ")"},
		},
		{
			name: "draft within limit", args: []string{"summary", "-marks", "15"},
			wantOut: []string{"Projected remaining:  5", "(95.0%, critical)", "Allocating 15 marks is within the semester limit; 5 marks will remain"},
		},
		{
			name: "draft over limit", args: []string{"summary", "-marks", "30"},
			wantOut: []string{"Projected remaining:  -10", "Allocating 30 marks would exceed the semester limit of 100 by 10 marks"},
		},
		{
			name: "editing a content", args: []string{"summary", "-marks", "25", "-exclude", quiz.ContentID},
			wantOut: []string{"Projected remaining:  15"},
		},
		{name: "bad flag", args: []string{"summary", "-marks", "lol"}, wantErrStr: `invalid value "lol" for flag -marks: parse error`},
	})

	out.Reset()
	err := cli.run([]string{"admin", "summary", "-semester", "lol"})
	require.Error(t, err)
	assert.True(t, allocation.IsTransportError(err))
	assert.True(t, allocapisvc.IsNotFound(err))
}

func Test_commandLine_check(t *testing.T) {
	cli, out := setup(t)

	sem := testutil.CreateSemester(t, repo, "Fall 2024", 100, true)
	testutil.CreateContent(t, repo, sem.ID, "Midterm", allocation.ContentExam, 60)
	quiz := testutil.CreateContent(t, repo, sem.ID, "Quiz 1", allocation.ContentQuiz, 20)

	runCLITests(t, cli, out, []cliTest{
		{name: "no marks", args: []string{"check"}, wantErr: errHelp},
		{name: "bad type", args: []string{"check", "-marks", "5", "-type", "essay"}, wantErrStr: `invalid content type "essay"`},
		{
			name: "within limit", args: []string{"check", "-marks", "15", "-type", "Quiz"},
			wantOut: []string{"Valid:      true", "Remaining:  5", "Allocating 15 marks is within the semester limit; 5 marks will remain"},
		},
		{
			name: "over limit", args: []string{"check", "-marks", "30", "-semester", sem.ID}, wantErr: errDraftExceeds,
			wantOut: []string{"Valid:      false", "Remaining:  -10", "Allocating 30 marks would exceed the semester limit of 100 by 10 marks"},
		},
		{
			name: "editing a content", args: []string{"check", "-marks", "25", "-exclude", quiz.ContentID},
			wantOut: []string{"Valid:      true", "Remaining:  15"},
		},
	})

	out.Reset()
	err := cli.run([]string{"admin", "check", "-marks", "5", "-semester", "lol"})
	require.Error(t, err)
	assert.True(t, allocation.IsTransportError(err))
	assert.True(t, allocapisvc.IsNotFound(err))

	// nothing was committed
	contents, err := repo.QueryContents(context.Background(), sem.ID)
	require.NoError(t, err)
	assert.Len(t, contents, 2)
}
