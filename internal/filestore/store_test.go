package filestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStores returns one store per backend implemented without external
// services, each on fresh state.
func newTestStores(t *testing.T) map[string]FileStore {
	t.Helper()

	return map[string]FileStore{
		"memory": NewMemoryStore("https://downloads.example.com"),
		"fs":     NewFSStore(t.TempDir(), "https://downloads.example.com"),
	}
}

// TestPutIdempotence verifies that a second no-overwrite put is skipped and
// leaves the first value in place.
func TestPutIdempotence(t *testing.T) {
	t.Parallel()

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			wrote, err := store.Put(ctx, "app/stable/win32/x64/App.exe", []byte("first"), false)
			require.NoError(t, err)
			require.True(t, wrote)

			wrote, err = store.Put(ctx, "app/stable/win32/x64/App.exe", []byte("second"), false)
			require.NoError(t, err)
			require.False(t, wrote)

			data, err := store.Get(ctx, "app/stable/win32/x64/App.exe")
			require.NoError(t, err)
			require.Equal(t, []byte("first"), data)

			// Overwrite wins.
			wrote, err = store.Put(ctx, "app/stable/win32/x64/App.exe", []byte("second"), true)
			require.NoError(t, err)
			require.True(t, wrote)

			data, err = store.Get(ctx, "app/stable/win32/x64/App.exe")
			require.NoError(t, err)
			require.Equal(t, []byte("second"), data)
		})
	}
}

// TestGetAbsent verifies absence returns empty bytes, never an error.
func TestGetAbsent(t *testing.T) {
	t.Parallel()

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			data, err := store.Get(ctx, "app/none")
			require.NoError(t, err)
			require.Empty(t, data)

			has, err := store.Has(ctx, "app/none")
			require.NoError(t, err)
			require.False(t, has)

			size, err := store.Size(ctx, "app/none")
			require.NoError(t, err)
			require.Zero(t, size)
		})
	}
}

// TestListAndDeletePrefix verifies prefix semantics shared by all backends.
func TestListAndDeletePrefix(t *testing.T) {
	t.Parallel()

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			for _, key := range []string{
				"app/stable/win32/x64/App.exe",
				"app/stable/win32/x64/RELEASES",
				"app/stable/darwin/x64/App.zip",
				"app/temp/abc/file.bin",
			} {
				_, err := store.Put(ctx, key, []byte(key), false)
				require.NoError(t, err)
			}

			keys, err := store.List(ctx, "app/stable/win32")
			require.NoError(t, err)
			require.ElementsMatch(t, []string{
				"app/stable/win32/x64/App.exe",
				"app/stable/win32/x64/RELEASES",
			}, keys)

			// A sibling sharing the string prefix must not match.
			keys, err = store.List(ctx, "app/stable/win")
			require.NoError(t, err)
			require.Empty(t, keys)

			require.NoError(t, store.Delete(ctx, "app/stable/win32"))

			has, err := store.Has(ctx, "app/stable/win32/x64/App.exe")
			require.NoError(t, err)
			require.False(t, has)

			// Other trees untouched.
			has, err = store.Has(ctx, "app/stable/darwin/x64/App.zip")
			require.NoError(t, err)
			require.True(t, has)

			size, err := store.Size(ctx, "app/temp/abc/file.bin")
			require.NoError(t, err)
			require.Equal(t, int64(len("app/temp/abc/file.bin")), size)
		})
	}
}

// TestFSStoreKeyResolution permits dotted filenames while keeping every key
// below the store root.
func TestFSStoreKeyResolution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFSStore(t.TempDir(), "https://downloads.example.com")

	// Consecutive dots inside a filename are legitimate.
	wrote, err := store.Put(ctx, "app/stable/darwin/x64/App..v1..2.zip", []byte("zip"), false)
	require.NoError(t, err)
	require.True(t, wrote)

	data, err := store.Get(ctx, "app/stable/darwin/x64/App..v1..2.zip")
	require.NoError(t, err)
	require.Equal(t, []byte("zip"), data)

	// Traversal collapses inside the root instead of escaping it.
	wrote, err = store.Put(ctx, "app/../other/file.txt", []byte("data"), false)
	require.NoError(t, err)
	require.True(t, wrote)

	has, err := store.Has(ctx, "other/file.txt")
	require.NoError(t, err)
	require.True(t, has)

	// The root itself is not a key.
	_, err = store.Put(ctx, "..", []byte("x"), false)
	require.ErrorIs(t, err, errKeyEscapesRoot)
}

// TestURL checks base URL joining.
func TestURL(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore("https://downloads.example.com/")
	require.Equal(t,
		"https://downloads.example.com/app/stable/win32/x64/App.exe",
		URL(store, "app/stable/win32/x64/App.exe"))
}

// TestBatcher verifies coalescing, retry-on-failure and decorated stores.
func TestBatcher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var (
		flushed  [][]string
		flushErr error
	)

	batcher := NewBatcher(func(_ context.Context, keys []string) error {
		if flushErr != nil {
			return flushErr
		}

		flushed = append(flushed, keys)

		return nil
	})

	store := WithInvalidation(NewMemoryStore("https://downloads.example.com"), batcher)

	wrote, err := store.Put(ctx, "app/a", []byte("x"), false)
	require.NoError(t, err)
	require.True(t, wrote)

	// Skipped puts are not recorded.
	wrote, err = store.Put(ctx, "app/a", []byte("y"), false)
	require.NoError(t, err)
	require.False(t, wrote)

	_, err = store.Put(ctx, "app/b", []byte("x"), true)
	require.NoError(t, err)
	require.Equal(t, 2, batcher.Pending())

	// Failed flush keeps the batch.
	flushErr = errors.New("cdn unavailable")
	require.Error(t, batcher.Flush(ctx))
	require.Equal(t, 2, batcher.Pending())

	flushErr = nil
	require.NoError(t, batcher.Flush(ctx))
	require.Zero(t, batcher.Pending())
	require.Equal(t, [][]string{{"app/a", "app/b"}}, flushed)

	// Empty flush is a no-op.
	require.NoError(t, batcher.Flush(ctx))
	require.Len(t, flushed, 1)
}
