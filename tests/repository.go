package testutil

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/markalloc/core/allocation"
)

// RepositoryTests runs the allocation.Repository contract against the repos built by newRepo.
// Each subtest gets a fresh, empty repo.
func RepositoryTests(t *testing.T, newRepo func(t *testing.T) allocation.Repository) {
	ctx := context.Background()

	t.Run("semesters", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetCurrentSemester(ctx)
		assert.True(t, errors.Is(err, allocation.ErrNoCurrentSemester))
		sems, err := repo.QuerySemesters(ctx)
		require.NoError(t, err)
		assert.Empty(t, sems)

		fall := CreateSemester(t, repo, "Fall 2024", 100, true)
		spring := CreateSemester(t, repo, "Spring 2025", 120, false)

		cur, err := repo.GetCurrentSemester(ctx)
		require.NoError(t, err)
		assert.Equal(t, fall.ID, cur.ID)

		got, err := repo.GetSemester(ctx, spring.ID)
		require.NoError(t, err)
		assert.Equal(t, spring.Name, got.Name)
		assert.Equal(t, 120, got.TotalMarkLimit)
		assert.False(t, got.IsCurrent)
		assert.True(t, spring.CreatedAt.Equal(got.CreatedAt))

		_, err = repo.GetSemester(ctx, "nope")
		assert.True(t, errors.Is(err, allocation.ErrSemesterNotFound))
		assert.True(t, allocation.IsNotFound(err))

		sems, err = repo.QuerySemesters(ctx)
		require.NoError(t, err)
		assert.Len(t, sems, 2)
	})

	t.Run("single current semester", func(t *testing.T) {
		repo := newRepo(t)

		fall := CreateSemester(t, repo, "Fall 2024", 100, true)
		spring := CreateSemester(t, repo, "Spring 2025", 100, true)

		cur, err := repo.GetCurrentSemester(ctx)
		require.NoError(t, err)
		assert.Equal(t, spring.ID, cur.ID)

		got, err := repo.GetSemester(ctx, fall.ID)
		require.NoError(t, err)
		assert.False(t, got.IsCurrent)
	})

	t.Run("contents", func(t *testing.T) {
		repo := newRepo(t)
		fall := CreateSemester(t, repo, "Fall 2024", 100, true)
		other := CreateSemester(t, repo, "Spring 2025", 100, false)

		contents, err := repo.QueryContents(ctx, fall.ID)
		require.NoError(t, err)
		assert.Empty(t, contents)

		mid := CreateContent(t, repo, fall.ID, "Midterm", allocation.ContentExam, 30)
		quiz := CreateContent(t, repo, fall.ID, "Quiz 1", allocation.ContentQuiz, 10)
		notes := CreateContent(t, repo, fall.ID, "Notes", allocation.ContentNote, 0)
		CreateContent(t, repo, other.ID, "Essay", allocation.ContentAssignment, 50)

		contents, err = repo.QueryContents(ctx, fall.ID)
		require.NoError(t, err)
		assert.Equal(t, []allocation.ContentAllocation{mid, quiz, notes}, contents, "creation order")

		quiz.AllocatedMarks = 15
		quiz.ContentTitle = "Quiz 1b"
		_, err = repo.UpdateContent(ctx, fall.ID, quiz)
		require.NoError(t, err)

		require.NoError(t, repo.DeleteContent(ctx, fall.ID, mid.ContentID))

		contents, err = repo.QueryContents(ctx, fall.ID)
		require.NoError(t, err)
		assert.Equal(t, []allocation.ContentAllocation{quiz, notes}, contents)

		contents, err = repo.QueryContents(ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, contents, 1)
	})

	t.Run("contents not found", func(t *testing.T) {
		repo := newRepo(t)
		fall := CreateSemester(t, repo, "Fall 2024", 100, true)
		other := CreateSemester(t, repo, "Spring 2025", 100, false)
		quiz := CreateContent(t, repo, fall.ID, "Quiz 1", allocation.ContentQuiz, 10)

		_, err := repo.QueryContents(ctx, "nope")
		assert.True(t, errors.Is(err, allocation.ErrSemesterNotFound))

		_, err = repo.CreateContent(ctx, "nope", allocation.ContentAllocation{
			ContentID:    "c1",
			ContentTitle: "Lost",
			ContentType:  allocation.ContentQuiz,
		})
		assert.True(t, errors.Is(err, allocation.ErrSemesterNotFound))

		// content of another semester
		_, err = repo.UpdateContent(ctx, other.ID, quiz)
		assert.True(t, allocation.IsNotFound(err))
		err = repo.DeleteContent(ctx, other.ID, quiz.ContentID)
		assert.True(t, allocation.IsNotFound(err))

		err = repo.DeleteContent(ctx, fall.ID, "nope")
		assert.True(t, errors.Is(err, allocation.ErrContentNotFound))
	})
}
