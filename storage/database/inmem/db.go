package inmemdb

import (
	"sync"

	"github.com/trezcool/markalloc/core/allocation"
)

type (
	DB struct {
		semester *semesterTable
	}

	semesterRow struct {
		semester allocation.Semester
		contents []allocation.ContentAllocation // creation order
	}

	semesterTable struct {
		mutex sync.RWMutex
		table map[string]*semesterRow
		order []string // semester IDs, creation order
	}
)

func Open() (*DB, error) {
	db := &DB{
		semester: &semesterTable{table: make(map[string]*semesterRow)},
	}
	return db, nil
}
