package main

import (
	"log"
	"os"

	"github.com/trezcool/markalloc/core"
	allocapisvc "github.com/trezcool/markalloc/services/allocationapi"
	logsvc "github.com/trezcool/markalloc/services/logger"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// start CLI
	cli := commandLine{
		conf:   conf,
		logger: logger,
		remote: allocapisvc.NewClient(conf, nil),
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
