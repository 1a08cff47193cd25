package answercache

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock, zaptest.NewLogger(t)), mock
}

func TestPostgresStoreMigrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(flexibleSQLMatcher(`CREATE TABLE IF NOT EXISTS answers`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoad(t *testing.T) {
	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"question", "answer"}).
		AddRow("notice period", "2 weeks").
		AddRow("#last:country", "Canada")
	mock.ExpectQuery(flexibleSQLMatcher(`SELECT question, answer FROM answers`)).
		WillReturnRows(rows)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"notice period": "2 weeks",
		"#last:country": "Canada",
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(flexibleSQLMatcher(`SELECT question, answer FROM answers`)).
		WillReturnError(errors.New("connection refused"))

	_, err := store.Load(context.Background())
	assert.ErrorContains(t, err, "failed to load answers")
}

func TestPostgresStoreSave(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(flexibleSQLMatcher(`INSERT INTO answers`)).
		WithArgs("notice period", "2 weeks").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), "notice period", "2 weeks"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(flexibleSQLMatcher(`INSERT INTO answers`)).
		WithArgs("q", "a").
		WillReturnError(errors.New("boom"))

	err := store.Save(context.Background(), "q", "a")
	assert.ErrorContains(t, err, "failed to save answer")
}
