package tracker

import (
	"time"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"github.com/trezcool/markalloc/core"
)

// Defaults
const (
	DefaultDebounceWindow  = 300 * time.Millisecond
	DefaultValidateTimeout = 10 * time.Second
	DefaultFetchTimeout    = 15 * time.Second
)

var ErrSlotEmpty = errors.New("no allocation summary in slot")

// Options configure a Coordinator or a Session. Zero values fall back to the defaults.
type Options struct {
	Logger  core.Logger
	Metrics *Metrics
	Clock   clock.Clock

	DebounceWindow  time.Duration
	ValidateTimeout time.Duration
	FetchTimeout    time.Duration
}

// OptionsFromConfig builds Options from the allocation config.
func OptionsFromConfig(conf *core.Config, logger core.Logger, metrics *Metrics) Options {
	return Options{
		Logger:          logger,
		Metrics:         metrics,
		DebounceWindow:  conf.Allocation.DebounceWindow,
		ValidateTimeout: conf.Allocation.ValidateTimeout,
		FetchTimeout:    conf.Allocation.FetchTimeout,
	}
}

func (opts Options) withDefaults() Options {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.ValidateTimeout <= 0 {
		opts.ValidateTimeout = DefaultValidateTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return opts
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
