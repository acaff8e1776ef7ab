package docstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
)

func newMockMySQLStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &MySQLStore{db: db, table: "documents"}, mock
}

func TestMySQLStoreListDocuments(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	rows := sqlmock.NewRows([]string{"doc_id", "body"}).
		AddRow("a", []byte(`{"name":"ann","age":31}`)).
		AddRow("b", []byte(`{"name":"bob"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc_id, body FROM `documents` WHERE scope_path = ? AND collection = ? ORDER BY seq")).
		WithArgs(testScope.Path(), "people").
		WillReturnRows(rows)

	docs, err := store.ListDocuments(context.Background(), testScope, "people")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, int64(31), docs[0].Fields["age"])
	assert.Equal(t, "bob", docs[1].Fields["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreAddDocument(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `documents` (scope_path, collection, doc_id, body) VALUES (?, ?, ?, ?)")).
		WithArgs(testScope.Path(), "people", sqlmock.AnyArg(), []byte(`{"name":"ann"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.AddDocument(context.Background(), testScope, "people", map[string]interface{}{"name": "ann"})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreUpdateDocument(t *testing.T) {
	t.Run("merges inside a transaction", func(t *testing.T) {
		store, mock := newMockMySQLStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM `documents` WHERE scope_path = ? AND collection = ? AND doc_id = ? FOR UPDATE")).
			WithArgs(testScope.Path(), "people", "a").
			WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"age":31,"name":"ann"}`)))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `documents` SET body = ? WHERE scope_path = ? AND collection = ? AND doc_id = ?")).
			WithArgs([]byte(`{"age":32,"name":"ann"}`), testScope.Path(), "people", "a").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.UpdateDocument(context.Background(), testScope, "people", "a", map[string]interface{}{"age": 32})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing document", func(t *testing.T) {
		store, mock := newMockMySQLStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT body FROM").WillReturnRows(sqlmock.NewRows([]string{"body"}))
		mock.ExpectRollback()

		err := store.UpdateDocument(context.Background(), testScope, "people", "zz", map[string]interface{}{"age": 1})
		assert.True(t, errors.Is(err, core.ErrDocumentNotFound), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLStoreDeleteCollectionEscapesPattern(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `documents` WHERE scope_path = ? AND (collection = ? OR collection LIKE ?)")).
		WithArgs(testScope.Path(), "tables/t_1", `tables/t\_1/%`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.DeleteCollection(context.Background(), testScope, "tables/t_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreFactoryValidate(t *testing.T) {
	f := &MySQLStoreFactory{}
	cfg := defaultStoreConfig("mysql")
	cfg.MySQLConfig.Username = "root"
	assert.NoError(t, f.Validate(cfg))

	cfg.MySQLConfig.TableName = "bad name"
	assert.Error(t, f.Validate(cfg))
}
