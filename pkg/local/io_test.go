package local

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFiles_BasicAndIgnoreDirs(t *testing.T) {
	tmpDir := t.TempDir()

	f1 := filepath.Join(tmpDir, "a.txt")
	f2 := filepath.Join(tmpDir, "sub", "b.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(f2), 0o755))
	require.NoError(t, os.WriteFile(f1, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(f2, []byte("y"), 0o644))

	matches, err := FindFiles([]string{filepath.Join(tmpDir, "**", "*.txt")})
	require.NoError(t, err)
	require.Contains(t, matches, f1)
	require.Contains(t, matches, f2)

	// Directories are never returned
	allMatches, err := FindFiles([]string{filepath.Join(tmpDir, "**")})
	require.NoError(t, err)
	for _, m := range allMatches {
		info, err := os.Lstat(m)
		require.NoError(t, err)
		require.True(t, info.Mode().IsRegular())
	}
}

func TestFindFiles_InvalidPattern(t *testing.T) {
	_, err := FindFiles([]string{"[unterminated"})
	require.Error(t, err)
}

func TestReadLines_Basic(t *testing.T) {
	tmpDir := t.TempDir()
	fpath := filepath.Join(tmpDir, "test.txt")
	content := strings.Join([]string{"first line", "second line", "third line"}, "\n") + "\n"
	require.NoError(t, os.WriteFile(fpath, []byte(content), 0o644))

	lines, err := ReadLines(fpath)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	for i, expected := range []string{"first line", "second line", "third line"} {
		ln := lines[i]
		require.Equal(t, fpath, ln.Filename)
		require.Equal(t, i+1, ln.Number)
		require.Equal(t, expected, ln.Text)
	}
}

func TestWriteLines_ReportsBytes(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "out.tsv")

	n, err := WriteLines(fpath, []string{"a\t1\n", "bb\t2\n"})
	require.NoError(t, err)
	require.Equal(t, int64(9), n)

	content, err := os.ReadFile(fpath)
	require.NoError(t, err)
	require.Equal(t, "a\t1\nbb\t2\n", string(content))
}
