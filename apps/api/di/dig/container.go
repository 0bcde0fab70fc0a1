package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/markalloc/apps/api/echo"
	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
	logsvc "github.com/trezcool/markalloc/services/logger"
	"github.com/trezcool/markalloc/storage/database"
	inmemdb "github.com/trezcool/markalloc/storage/database/inmem"
	sqlxrepos "github.com/trezcool/markalloc/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage holds the allocation repository selected by conf.Database.Engine.
type Storage struct {
	Repository allocation.Repository
	db         *sqlx.DB // nil for the in-memory engine
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) *Storage {
	setUp := func() (*Storage, error) {
		if conf.Database.Engine == core.EngineMemory {
			db, err := inmemdb.Open()
			if err != nil {
				return nil, err
			}
			return &Storage{Repository: inmemdb.NewAllocationRepository(db)}, nil
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Storage{Repository: sqlxrepos.NewAllocationRepository(db), db: db}, nil
	}

	storage, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return storage
}

func newRepository(storage *Storage) allocation.Repository {
	return storage.Repository
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	svc *allocation.Service,
	validate *validator.Validate,
	translator ut.Translator,
	reg *prometheus.Registry,
) *echoapi.Server {
	return echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			AllocationSvc: svc,
			Validate:      validate,
			Translator:    translator,
			Registry:      reg,
		},
	)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newRepository))
	must(c.Provide(allocation.NewService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newRegistry))
	must(c.Provide(newServer))

	return c
}

// Visualize writes the container's dependency graph in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
