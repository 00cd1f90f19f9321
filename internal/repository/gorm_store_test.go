package repository

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewStore(db), mock
}

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `activity_logs`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.WithTransaction(func(tx Store) error {
		return tx.Activity().Append(&models.ActivityLog{
			UserID:     1,
			Action:     models.ActionTaskCreated,
			EntityType: models.EntityTypeTask,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `activity_logs`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	err := store.WithTransaction(func(tx Store) error {
		if err := tx.Activity().Append(&models.ActivityLog{
			UserID:     1,
			Action:     models.ActionTaskCreated,
			EntityType: models.EntityTypeTask,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionPropagatesStoreError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `activity_logs`")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.WithTransaction(func(tx Store) error {
		return tx.Activity().Append(&models.ActivityLog{
			UserID:     1,
			Action:     models.ActionTaskCreated,
			EntityType: models.EntityTypeTask,
		})
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
