package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("http://localhost:8080/objects/")

	url, err := m.Put(ctx, "u1/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/objects/u1/a.png", url)
	assert.Equal(t, url, m.PublicURL("u1/a.png"))

	obj, ok := m.Get("u1/a.png")
	require.True(t, ok)
	assert.Equal(t, []byte("png"), obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, m.Delete(ctx, "u1/a.png"))
	_, ok = m.Get("u1/a.png")
	assert.False(t, ok)

	// missing paths are not an error
	assert.NoError(t, m.Delete(ctx, "u1/a.png"))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	m := NewMemoryStore("")
	data := []byte("abc")
	_, err := m.Put(context.Background(), "k", data, "text/plain")
	require.NoError(t, err)

	data[0] = 'z'
	obj, _ := m.Get("k")
	assert.Equal(t, "abc", string(obj.Data))
}

func TestMemoryStore_Errors(t *testing.T) {
	m := NewMemoryStore("")

	_, err := m.Put(context.Background(), "", nil, "")
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
	assert.ErrorIs(t, err, ErrEmptyPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Put(ctx, "k", nil, "")
	assert.ErrorIs(t, err, context.Canceled)

	err = m.Delete(ctx, "k")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, OpDelete, se.Op)
	assert.Equal(t, "k", se.Path)
}

func TestError_Message(t *testing.T) {
	err := &Error{Op: OpPut, Path: "a/b.png", Err: errors.New("boom")}
	assert.Equal(t, `storage put "a/b.png": boom`, err.Error())
	assert.False(t, IsStoreError(errors.New("other")))
}
