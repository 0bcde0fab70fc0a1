package inmemdb

import (
	"context"

	"github.com/trezcool/markalloc/core/allocation"
)

type allocationRepository struct {
	db *semesterTable
}

var _ allocation.Repository = (*allocationRepository)(nil)

func NewAllocationRepository(db *DB) allocation.Repository {
	return &allocationRepository{db: db.semester}
}

func (repo *allocationRepository) CreateSemester(_ context.Context, sem allocation.Semester) (allocation.Semester, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sem.IsCurrent {
		for _, row := range repo.db.table {
			row.semester.IsCurrent = false
		}
	}
	repo.db.table[sem.ID] = &semesterRow{semester: sem}
	repo.db.order = append(repo.db.order, sem.ID)
	return sem, nil
}

func (repo *allocationRepository) QuerySemesters(_ context.Context) ([]allocation.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sems := make([]allocation.Semester, 0, len(repo.db.order))
	for _, id := range repo.db.order {
		sems = append(sems, repo.db.table[id].semester)
	}
	return sems, nil
}

func (repo *allocationRepository) GetSemester(_ context.Context, id string) (allocation.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.table[id]; ok {
		return row.semester, nil
	}
	return allocation.Semester{}, allocation.ErrSemesterNotFound
}

func (repo *allocationRepository) GetCurrentSemester(_ context.Context) (allocation.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, row := range repo.db.table {
		if row.semester.IsCurrent {
			return row.semester, nil
		}
	}
	return allocation.Semester{}, allocation.ErrNoCurrentSemester
}

func (repo *allocationRepository) QueryContents(_ context.Context, semesterID string) ([]allocation.ContentAllocation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	row, ok := repo.db.table[semesterID]
	if !ok {
		return nil, allocation.ErrSemesterNotFound
	}
	contents := make([]allocation.ContentAllocation, len(row.contents))
	copy(contents, row.contents)
	return contents, nil
}

func (repo *allocationRepository) CreateContent(_ context.Context, semesterID string, content allocation.ContentAllocation) (allocation.ContentAllocation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.table[semesterID]
	if !ok {
		return allocation.ContentAllocation{}, allocation.ErrSemesterNotFound
	}
	row.contents = append(row.contents, content)
	return content, nil
}

func (repo *allocationRepository) UpdateContent(_ context.Context, semesterID string, content allocation.ContentAllocation) (allocation.ContentAllocation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.table[semesterID]
	if !ok {
		return allocation.ContentAllocation{}, allocation.ErrSemesterNotFound
	}
	for i := range row.contents {
		if row.contents[i].ContentID == content.ContentID {
			row.contents[i] = content
			return content, nil
		}
	}
	return allocation.ContentAllocation{}, allocation.ErrContentNotFound
}

func (repo *allocationRepository) DeleteContent(_ context.Context, semesterID, contentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.table[semesterID]
	if !ok {
		return allocation.ErrSemesterNotFound
	}
	for i, c := range row.contents {
		if c.ContentID == contentID {
			row.contents = append(row.contents[:i], row.contents[i+1:]...)
			return nil
		}
	}
	return allocation.ErrContentNotFound
}
