package limiter

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newPG(t *testing.T, p Policy) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPG(mock, p), mock
}

var client = HashClient("10.0.0.1")

func TestPG_Allow(t *testing.T) {
	l, mock := newPG(t, DefaultPolicy)
	ctx := context.Background()
	sel := regexp.QuoteMeta(selectAttemptQ)

	mock.ExpectQuery(sel).WithArgs("a@x.com", client).WillReturnError(pgx.ErrNoRows)
	ok, d, err := l.Allow(ctx, " A@x.com ", client)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, d)

	mock.ExpectQuery(sel).WithArgs("a@x.com", client).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Now().Add(10 * time.Minute)))
	ok, d, err = l.Allow(ctx, "a@x.com", client)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, d, time.Duration(0))

	mock.ExpectQuery(sel).WithArgs("a@x.com", client).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Unix(0, 0)))
	ok, _, err = l.Allow(ctx, "a@x.com", client)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(sel).WithArgs("a@x.com", client).WillReturnError(errors.New("db boom"))
	ok, _, err = l.Allow(ctx, "a@x.com", client)
	require.Error(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Success(t *testing.T) {
	l, mock := newPG(t, DefaultPolicy)

	mock.ExpectExec(regexp.QuoteMeta(resetAttemptQ)).WithArgs("a@x.com", client).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), "a@x.com", client))

	mock.ExpectExec(regexp.QuoteMeta(resetAttemptQ)).WithArgs("a@x.com", client).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), "a@x.com", client))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Failure(t *testing.T) {
	p := Policy{Window: 5 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}
	l, mock := newPG(t, p)
	ctx := context.Background()
	rec := regexp.QuoteMeta(recordFailureQ)

	mock.ExpectQuery(rec).WithArgs("a@x.com", client, p.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, d, err := l.Failure(ctx, "a@x.com", client)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, d)

	mock.ExpectQuery(rec).WithArgs("a@x.com", client, p.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(blockQ)).WithArgs("a@x.com", client, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, d, err = l.Failure(ctx, "a@x.com", client)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, d)

	mock.ExpectQuery(rec).WithArgs("a@x.com", client, p.Window).WillReturnError(errors.New("query error"))
	_, _, err = l.Failure(ctx, "a@x.com", client)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
