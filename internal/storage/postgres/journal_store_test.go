package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

func TestRecordInsertsSuccessRow(t *testing.T) {
	t.Parallel()

	helloDigest := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJournalStoreWithPool(mock, "")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	outcome := resolver.Outcome{
		RequestID: "req-1",
		URL:       "https://pastebin.com/abc",
		AdapterID: "pastebin",
		Success:   true,
		Content:   "hello world",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}

	mock.ExpectExec("INSERT INTO resolution_outcomes").
		WithArgs(
			"req-1",
			"https://pastebin.com/abc",
			"pastebin",
			true,
			(*string)(nil),
			(*int)(nil),
			(*string)(nil),
			(*string)(nil),
			(*string)(nil),
			11,
			&helloDigest,
			started,
			int64(1500),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Record(context.Background(), outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInsertsGateFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJournalStoreWithPool(mock, "outcomes")
	require.NoError(t, err)

	gateErr := resolver.StepError(1, "continue", errors.New("timeout"))
	gateErr.Diagnostic = "memory://diagnostics/linkvertise/req-2/step-1.html"
	outcome := resolver.Outcome{
		RequestID: "req-2",
		URL:       "https://linkvertise.com/1/x",
		AdapterID: "linkvertise",
		Err:       gateErr,
		StartedAt: time.Unix(1700000000, 0).UTC(),
		Duration:  time.Second,
	}

	mock.ExpectExec("INSERT INTO outcomes").
		WithArgs(
			"req-2",
			"https://linkvertise.com/1/x",
			"linkvertise",
			false,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			(*string)(nil),
			0,
			(*string)(nil),
			outcome.StartedAt,
			int64(1000),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Record(context.Background(), outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJournalStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO resolution_outcomes").WillReturnError(errors.New("conn reset"))
	err = store.Record(context.Background(), resolver.Outcome{RequestID: "req-3"})
	require.ErrorContains(t, err, "insert outcome")
}

func TestRecordRequiresRequestID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJournalStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, store.Record(context.Background(), resolver.Outcome{}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJournalStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS resolution_outcomes").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewJournalStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewJournalStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewJournalStoreWithPool(mock, "bad;table")
	require.Error(t, err)

	_, err = NewJournalStore(context.Background(), JournalStoreConfig{})
	require.Error(t, err)
}
