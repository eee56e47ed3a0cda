package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenSourceMapsContent(t *testing.T) {
	src := "class C extends React.Component {}\n"
	path := writeFile(t, "c.jsx", src)

	sf, err := OpenSource(path, nil)
	require.NoError(t, err)
	assert.Equal(t, src, string(sf.Bytes()))
	assert.Equal(t, int64(len(src)), sf.Size)

	require.NoError(t, sf.Close())
	assert.Nil(t, sf.Bytes())
	require.NoError(t, sf.Close())
}

func TestOpenSourceEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.tsx", "")

	sf, err := OpenSource(path, nil)
	require.NoError(t, err)
	defer sf.Close()
	assert.Empty(t, sf.Bytes())
	assert.False(t, sf.Mapped())
}

func TestOpenSourceErrors(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "missing.ts"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")

	_, err = OpenSource(t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestReadSourceCopies(t *testing.T) {
	path := writeFile(t, "a.ts", "export const a = 1;\n")

	data, err := ReadSource(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "export const a = 1;\n", string(data))
}
