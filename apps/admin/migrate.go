package main

import (
	"github.com/trezcool/markalloc/storage/database"
)

var (
	openDBFunc   = database.Open          // mockable
	gooseRunFunc = database.RunMigrations // mockable
)

func (cli *commandLine) migrate(args []string) error {
	db, err := openDBFunc(cli.conf)
	if err != nil {
		return err
	}
	defer db.Close()

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(db, args[0], arguments...)
}
