package checksum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCompute checks both digests against known vectors.
func TestCompute(t *testing.T) {
	t.Parallel()

	d := Compute([]byte("abc"))
	require.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", d.SHA1)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d.SHA256)

	empty := Compute(nil)
	require.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", empty.SHA1)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", empty.SHA256)
}
