// internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"image"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/varkai/screenpilot/pkg/automation"
)

// flexibleSQLMatcher builds a regex that is insensitive to whitespace, so
// reformatting a statement does not break its mock expectation.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// argMatcherFunc adapts a func to the mock's Argument interface.
type argMatcherFunc func(v interface{}) bool

func (f argMatcherFunc) Match(v interface{}) bool { return f(v) }

// utcInstant matches a time.Time that is both in UTC and at the expected
// instant.
func utcInstant(want time.Time) argMatcherFunc {
	return func(v interface{}) bool {
		ts, ok := v.(time.Time)
		return ok && ts.Location() == time.UTC && ts.Equal(want)
	}
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool
}

func newTestStore(t *testing.T, mockPool pgxmock.PgxPoolIface, logger *zap.Logger) *Store {
	t.Helper()
	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s
}

func sampleReport() automation.WorkflowReport {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return automation.WorkflowReport{
		WorkflowID: "wf-0001",
		StartedAt:  base,
		Duration:   1500 * time.Millisecond,
		Succeeded:  false,
		Results: []automation.Result{
			{
				StepID:    "login",
				StepName:  "log in",
				Status:    automation.StatusSuccess,
				StartedAt: base,
				Duration:  800 * time.Millisecond,
				Attempts:  1,
				Data:      map[string]any{"gold": 12},
			},
			{
				StepID:    "claim",
				StepName:  "claim reward",
				Status:    automation.StatusFailure,
				Error:     errors.New("button never appeared"),
				StartedAt: base.Add(800 * time.Millisecond),
				Duration:  700 * time.Millisecond,
				Attempts:  3,
			},
		},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("propagates ping failure", func(t *testing.T) {
		mockPool := newMockPool(t)

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err := New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("succeeds when the database answers", func(t *testing.T) {
		mockPool := newMockPool(t)
		s := newTestStore(t, mockPool, nil)
		require.NotNil(t, s)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	mockPool := newMockPool(t)
	s := newTestStore(t, mockPool, zap.NewNop())

	mockPool.ExpectExec(flexibleSQLMatcher(createRunsTableSQL)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mockPool.ExpectExec(flexibleSQLMatcher(createStepResultsTableSQL)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveReport(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the run and its steps in one transaction", func(t *testing.T) {
		mockPool := newMockPool(t)

		observedCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s := newTestStore(t, mockPool, zap.New(observedCore))

		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).
			WithArgs(report.WorkflowID, utcInstant(report.StartedAt), int64(1500), 2, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"step_results"}, stepResultColumns).
			WillReturnResult(2)
		mockPool.ExpectCommit()
		// The deferred rollback fires after commit and reports ErrTxClosed.
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveReport(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "the post-commit rollback must not be logged as an error")
	})

	t.Run("converts local timestamps to UTC", func(t *testing.T) {
		mockPool := newMockPool(t)
		s := newTestStore(t, mockPool, zap.NewNop())

		loc, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)
		startedLocal := time.Date(2026, 3, 14, 7, 0, 0, 0, loc)

		report := automation.WorkflowReport{
			WorkflowID: "wf-tz",
			StartedAt:  startedLocal,
			Duration:   time.Second,
			Succeeded:  true,
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).
			WithArgs("wf-tz", utcInstant(startedLocal), int64(1000), 0, true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveReport(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("skips the bulk copy for an empty result list", func(t *testing.T) {
		mockPool := newMockPool(t)
		s := newTestStore(t, mockPool, zap.NewNop())

		report := sampleReport()
		report.Results = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).
			WithArgs(report.WorkflowID, utcInstant(report.StartedAt), int64(1500), 0, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveReport(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back on a copy count mismatch", func(t *testing.T) {
		mockPool := newMockPool(t)
		s := newTestStore(t, mockPool, zap.NewNop())

		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).
			WithArgs(report.WorkflowID, utcInstant(report.StartedAt), int64(1500), 2, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"step_results"}, stepResultColumns).
			WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.SaveReport(ctx, report)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied step results")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("surfaces begin failures", func(t *testing.T) {
		mockPool := newMockPool(t)
		s := newTestStore(t, mockPool, zap.NewNop())

		beginErr := errors.New("too many connections")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.SaveReport(ctx, sampleReport())
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRecentRuns(t *testing.T) {
	mockPool := newMockPool(t)
	s := newTestStore(t, mockPool, zap.NewNop())

	newest := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	older := newest.Add(-time.Hour)

	mockPool.ExpectQuery(flexibleSQLMatcher(selectRecentRunsSQL)).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "duration_ms", "step_count", "succeeded"}).
			AddRow("wf-2", newest, int64(900), 3, true).
			AddRow("wf-1", older, int64(2500), 5, false))

	runs, err := s.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "wf-2", runs[0].WorkflowID)
	assert.Equal(t, 900*time.Millisecond, runs[0].Duration)
	assert.Equal(t, 3, runs[0].StepCount)
	assert.True(t, runs[0].Succeeded)

	assert.Equal(t, "wf-1", runs[1].WorkflowID)
	assert.Equal(t, 2500*time.Millisecond, runs[1].Duration)
	assert.False(t, runs[1].Succeeded)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEncodeResultData(t *testing.T) {
	t.Run("empty data becomes an empty object", func(t *testing.T) {
		encoded, err := encodeResultData(nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(encoded))
	})

	t.Run("plain values pass through", func(t *testing.T) {
		encoded, err := encodeResultData(map[string]any{"gold": 12, "title": "Level 3"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"gold":12,"title":"Level 3"}`, string(encoded))
	})

	t.Run("images collapse to their dimensions", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 40, 24))
		encoded, err := encodeResultData(map[string]any{"portrait": img})
		require.NoError(t, err)
		assert.JSONEq(t, `{"portrait":"image 40x24"}`, string(encoded))
	})
}
