package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/markalloc/core/allocation"
)

const semesterColumns = "id, name, total_mark_limit, is_current, created_at, updated_at"

type (
	semesterRow struct {
		ID             string    `db:"id"`
		Name           string    `db:"name"`
		TotalMarkLimit int       `db:"total_mark_limit"`
		IsCurrent      bool      `db:"is_current"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	contentRow struct {
		ID             string `db:"id"`
		Title          string `db:"title"`
		ContentType    string `db:"content_type"`
		AllocatedMarks int    `db:"allocated_marks"`
	}
)

func (r semesterRow) semester() allocation.Semester {
	return allocation.Semester{
		ID:             r.ID,
		Name:           r.Name,
		TotalMarkLimit: r.TotalMarkLimit,
		IsCurrent:      r.IsCurrent,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (r contentRow) content() allocation.ContentAllocation {
	return allocation.ContentAllocation{
		ContentID:      r.ID,
		ContentTitle:   r.Title,
		ContentType:    allocation.ContentType(r.ContentType),
		AllocatedMarks: r.AllocatedMarks,
	}
}

type allocationRepository struct {
	db *sqlx.DB
}

var _ allocation.Repository = (*allocationRepository)(nil)

// NewAllocationRepository returns a Repository over a postgres or sqlite3 database.
func NewAllocationRepository(db *sqlx.DB) allocation.Repository {
	return &allocationRepository{db: db}
}

// inTx runs fn in a transaction, committed if fn succeeds.
func (repo *allocationRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func getSemester(ctx context.Context, q sqlx.ExtContext, id string) (allocation.Semester, error) {
	var row semesterRow
	query := q.Rebind("SELECT " + semesterColumns + " FROM semesters WHERE id = ?")
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return allocation.Semester{}, allocation.ErrSemesterNotFound
		}
		return allocation.Semester{}, errors.Wrap(err, "selecting semester")
	}
	return row.semester(), nil
}

func (repo *allocationRepository) CreateSemester(ctx context.Context, sem allocation.Semester) (allocation.Semester, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		if sem.IsCurrent {
			q := tx.Rebind("UPDATE semesters SET is_current = ? WHERE is_current = ?")
			if _, err := tx.ExecContext(ctx, q, false, true); err != nil {
				return errors.Wrap(err, "unsetting current semester")
			}
		}
		q := tx.Rebind("INSERT INTO semesters (" + semesterColumns + ") VALUES (?, ?, ?, ?, ?, ?)")
		_, err := tx.ExecContext(ctx, q, sem.ID, sem.Name, sem.TotalMarkLimit, sem.IsCurrent, sem.CreatedAt, sem.UpdatedAt)
		return errors.Wrap(err, "inserting semester")
	})
	if err != nil {
		return allocation.Semester{}, err
	}
	return sem, nil
}

func (repo *allocationRepository) QuerySemesters(ctx context.Context) ([]allocation.Semester, error) {
	var rows []semesterRow
	q := "SELECT " + semesterColumns + " FROM semesters ORDER BY created_at, name"
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting semesters")
	}
	sems := make([]allocation.Semester, 0, len(rows))
	for _, row := range rows {
		sems = append(sems, row.semester())
	}
	return sems, nil
}

func (repo *allocationRepository) GetSemester(ctx context.Context, id string) (allocation.Semester, error) {
	return getSemester(ctx, repo.db, id)
}

func (repo *allocationRepository) GetCurrentSemester(ctx context.Context) (allocation.Semester, error) {
	var row semesterRow
	q := repo.db.Rebind("SELECT " + semesterColumns + " FROM semesters WHERE is_current = ? LIMIT 1")
	if err := repo.db.GetContext(ctx, &row, q, true); err != nil {
		if err == sql.ErrNoRows {
			return allocation.Semester{}, allocation.ErrNoCurrentSemester
		}
		return allocation.Semester{}, errors.Wrap(err, "selecting current semester")
	}
	return row.semester(), nil
}

func (repo *allocationRepository) QueryContents(ctx context.Context, semesterID string) ([]allocation.ContentAllocation, error) {
	if _, err := getSemester(ctx, repo.db, semesterID); err != nil {
		return nil, err
	}

	var rows []contentRow
	q := repo.db.Rebind(`
		SELECT id, title, content_type, allocated_marks
		FROM content_allocations
		WHERE semester_id = ?
		ORDER BY position`)
	if err := repo.db.SelectContext(ctx, &rows, q, semesterID); err != nil {
		return nil, errors.Wrap(err, "selecting contents")
	}
	contents := make([]allocation.ContentAllocation, 0, len(rows))
	for _, row := range rows {
		contents = append(contents, row.content())
	}
	return contents, nil
}

func (repo *allocationRepository) CreateContent(ctx context.Context, semesterID string, content allocation.ContentAllocation) (allocation.ContentAllocation, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getSemester(ctx, tx, semesterID); err != nil {
			return err
		}
		q := tx.Rebind(`
			INSERT INTO content_allocations (id, semester_id, title, content_type, allocated_marks, position)
			VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM content_allocations WHERE semester_id = ?))`)
		_, err := tx.ExecContext(
			ctx, q,
			content.ContentID, semesterID, content.ContentTitle, string(content.ContentType), content.AllocatedMarks, semesterID,
		)
		return errors.Wrap(err, "inserting content")
	})
	if err != nil {
		return allocation.ContentAllocation{}, err
	}
	return content, nil
}

func (repo *allocationRepository) UpdateContent(ctx context.Context, semesterID string, content allocation.ContentAllocation) (allocation.ContentAllocation, error) {
	q := repo.db.Rebind(`
		UPDATE content_allocations
		SET title = ?, content_type = ?, allocated_marks = ?
		WHERE id = ? AND semester_id = ?`)
	res, err := repo.db.ExecContext(
		ctx, q,
		content.ContentTitle, string(content.ContentType), content.AllocatedMarks, content.ContentID, semesterID,
	)
	if err != nil {
		return allocation.ContentAllocation{}, errors.Wrap(err, "updating content")
	}
	if err = checkAffected(res); err != nil {
		return allocation.ContentAllocation{}, err
	}
	return content, nil
}

func (repo *allocationRepository) DeleteContent(ctx context.Context, semesterID, contentID string) error {
	q := repo.db.Rebind("DELETE FROM content_allocations WHERE id = ? AND semester_id = ?")
	res, err := repo.db.ExecContext(ctx, q, contentID, semesterID)
	if err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return allocation.ErrContentNotFound
	}
	return nil
}
