package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"veristat/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnNonTransientError(t *testing.T) {
	calls := 0
	wantErr := models.NewValidationError("bad input")
	err := WithRetry(context.Background(), "op", 3, time.Millisecond, func() error {
		calls++
		return wantErr
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, wantErr, err)
}

func TestWithRetryExhaustionYieldsTransientError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "op", 3, time.Millisecond, func() error {
		calls++
		return driver.ErrBadConn
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeTransient, appErr.Code)
	assert.ErrorIs(t, err, driver.ErrBadConn)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, "op", 5, 50*time.Millisecond, func() error {
		calls++
		cancel()
		return driver.ErrBadConn
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeTransient, appErr.Code)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"deadline", context.DeadlineExceeded, true},
		{"deadlock", errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), true},
		{"serialization", errors.New("ERROR: could not serialize access due to concurrent update"), true},
		{"locked", errors.New("database is locked"), true},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"transient app error", models.NewTransientError(errors.New("boom")), true},
		{"validation", models.NewValidationError("nope"), false},
		{"not found", models.NewNotFoundError("Post", 1), false},
		{"plain", errors.New("syntax error"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestWithRetryRecoversDroppedConnection(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	query := `SELECT count\(\*\) FROM "posts" WHERE author_id = \$1`
	mock.ExpectQuery(query).WillReturnError(driver.ErrBadConn)
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	repo := NewPostRepository(db)

	var count int64
	err = WithRetry(context.Background(), "count_by_author", 3, time.Millisecond, func() error {
		var ferr error
		count, ferr = repo.CountByAuthor(context.Background(), "alice")
		return ferr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
