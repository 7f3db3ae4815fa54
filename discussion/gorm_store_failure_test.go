package discussion

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agorahq/agora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockedGormStore 返回一个底层连接完全受 sqlmock 控制的 GormStore，
// 用于验证数据库故障会原样上抛而不是被当成 not-found 吞掉。
func newMockedGormStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	return NewGormStore(gdb), mock
}

func TestGormStore_GetPropagatesDBError(t *testing.T) {
	store, mock := newMockedGormStore(t)
	dbErr := errors.New("connection reset by peer")
	mock.ExpectQuery("SELECT .* FROM `discussions`").WillReturnError(dbErr)

	_, err := store.Get(context.Background(), "disc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)

	// 基础设施故障不能伪装成领域层的 not-found
	var domainErr *types.Error
	assert.False(t, errors.As(err, &domainErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockedGormStore(t)
	mock.ExpectQuery("SELECT .* FROM `discussions`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "disc-missing")
	require.Error(t, err)

	var domainErr *types.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, types.ErrDiscussionNotFound, domainErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListPropagatesDBError(t *testing.T) {
	store, mock := newMockedGormStore(t)
	dbErr := errors.New("table is locked")
	mock.ExpectQuery("SELECT .* FROM `discussions`").WillReturnError(dbErr)

	_, err := store.List(context.Background())
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
