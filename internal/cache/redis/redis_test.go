package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aistocker/quotehub/internal/cache"
)

func TestGetHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet("quotehub:quote:600000").SetVal("payload")

	b := New(rdb)
	v, ok, err := b.Get(context.Background(), "quotehub:quote:600000")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet("quotehub:quote:600000").RedisNil()

	b := New(rdb)
	_, ok, err := b.Get(context.Background(), "quotehub:quote:600000")
	require.NoError(t, err, "a miss is not an error")
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransportError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))

	b := New(rdb)
	_, ok, err := b.Get(context.Background(), "k")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrUnavailable))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectSet("k", []byte("v"), time.Minute).SetVal("OK")

	b := New(rdb)
	require.NoError(t, b.Set(context.Background(), "k", []byte("v"), time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectSet("k", []byte("v"), time.Minute).SetErr(errors.New("readonly replica"))

	b := New(rdb)
	err := b.Set(context.Background(), "k", []byte("v"), time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrUnavailable))
}

func TestExists(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectExists("k").SetVal(1)
	mock.ExpectExists("absent").SetVal(0)

	b := New(rdb)
	ok, err := b.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Exists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
