package reporting_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"quizbot-service/internal/config"
	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/sqlstore"
	"quizbot-service/internal/infra/sqlstore/sqlstoretest"
	"quizbot-service/internal/reporting"
)

var base = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

// seed creates a session answering the first `correct` of `total` questions right.
func seed(t *testing.T, store *sqlstore.Store, identity domain.Identity, total, correct int, complete bool, offset time.Duration) int64 {
	t.Helper()
	ctx := context.Background()
	s := domain.Session{Identity: identity, DisplayName: "User " + string(identity), Variant: "basic",
		TotalQuestions: total, Status: domain.SessionInProgress, StartedAt: base.Add(offset)}
	require.NoError(t, store.InsertSession(ctx, &s))

	entries := make([]domain.AnswerEntry, total)
	for i := range entries {
		entries[i] = domain.AnswerEntry{SessionID: s.ID, Position: i, QuestionID: "q", QuestionText: "Q?",
			Options: []string{"a", "b"}, CorrectIndex: 0}
	}
	require.NoError(t, store.InsertAnswerEntries(ctx, entries))

	for i := 0; i < total; i++ {
		entry, err := store.AnswerEntry(ctx, s.ID, i)
		require.NoError(t, err)
		option := 1
		if i < correct {
			option = 0
		}
		_, err = store.SaveAnswer(ctx, entry.ID, option, option == 0, base.Add(offset))
		require.NoError(t, err)
		if option == 0 {
			require.NoError(t, store.IncrementScore(ctx, s.ID))
		}
	}
	if complete {
		require.NoError(t, store.CompleteSession(ctx, s.ID, base.Add(offset+time.Minute)))
	}
	return s.ID
}

func TestListDetailStatistics(t *testing.T) {
	db := sqlstoretest.Open(t)
	store := sqlstore.New(db)
	reports := reporting.Open(db.DB, config.DriverSQLite)
	ctx := context.Background()

	first := seed(t, store, "tg:1", 2, 2, true, 0)
	second := seed(t, store, "tg:2", 2, 1, true, time.Hour)
	seed(t, store, "tg:3", 2, 0, false, 2*time.Hour)

	list, err := reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	require.NotNil(t, list[0].CompletedAt)
	assert.True(t, list[0].CompletedAt.Equal(base.Add(time.Hour+time.Minute)))

	detail, err := reports.Detail(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Session.Score)
	require.Len(t, detail.Answers, 2)
	assert.True(t, detail.Answers[0].IsCorrect)
	assert.Equal(t, "a", detail.Answers[0].UserAnswer())
	assert.False(t, detail.Answers[1].IsCorrect)
	assert.Equal(t, "b", detail.Answers[1].UserAnswer())
	assert.Equal(t, "a", detail.Answers[1].CorrectAnswer())

	_, err = reports.Detail(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	st, err := reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 1.5, st.Average, 0.001)
	assert.Equal(t, 1, st.Min)
	assert.Equal(t, 2, st.Max)
}

func TestStatisticsEmpty(t *testing.T) {
	db := sqlstoretest.Open(t)
	st, err := reporting.Open(db.DB, config.DriverSQLite).Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Statistics{}, st)
}

func TestWriteResultsXLSX(t *testing.T) {
	completed := base.Add(time.Minute)
	var buf bytes.Buffer
	err := reporting.WriteResultsXLSX(&buf, []domain.SessionSummary{{
		ID: 7, Identity: "tg:1", DisplayName: "Alice", Variant: "basic", Score: 4, TotalQuestions: 5,
		Status: "completed", StartedAt: base, CompletedAt: &completed,
	}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0][2])
	assert.Equal(t, []string{"7", "tg:1", "Alice", "basic", "4", "5", "80", "2024-11-22 09:00:00", "2024-11-22 09:01:00"}, rows[1])
}
