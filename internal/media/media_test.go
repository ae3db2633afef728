package media

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save([]byte("jpeg bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".jpg"))

	r, err := store.Open(name)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)
}

func TestNamesAreUnique(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Save([]byte("one"))
	require.NoError(t, err)
	b, err := store.Save([]byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(name))
	_, err = store.Open(name)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(name))
}

func TestRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Delete("../escape.jpg"))
}
