package store_test

import (
	"context"
	"errors"
	"testing"

	"enrol-sync/feature/enrol/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockStore(t *testing.T) (*store.GormStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return store.NewGormStore(gormDB), mock
}

func TestGormStore_FindCourseQueriesByIDNumber(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `course` WHERE idnumber = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "idnumber", "shortname", "visible"}).
			AddRow(7, "CS101", "CS101", true))

	course, err := s.FindCourseByIDNumber(context.Background(), "CS101")
	require.NoError(t, err)
	assert.Equal(t, uint(7), course.ID)
	assert.True(t, course.Visible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindUserNoRows(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `user` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.FindUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetStateError(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `enrol_sync_state`").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetState(context.Background(), "prev_path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read state prev_path")
	assert.NoError(t, mock.ExpectationsWereMet())
}
