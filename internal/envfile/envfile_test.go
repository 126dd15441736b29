package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadKeepsValueVerbatim(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "# comment\nSYNAPSE_SERVER_NAME=matrix.example.org\nSECRET=a=b=c\n\nbroken line\n")
	vars, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"SYNAPSE_SERVER_NAME": "matrix.example.org",
		"SECRET":              "a=b=c",
	}, vars)
}

func TestSetRewritesInPlace(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "# deployment\nA=1\nB=2\n")
	require.NoError(t, Set(path, "A", "changed"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# deployment\nA=changed\nB=2\n", string(data))
}

func TestSetAppendsMissingKey(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "A=1\n")
	require.NoError(t, Set(path, "NEW_KEY", "value"))

	vars, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "value", vars["NEW_KEY"])
	require.Equal(t, "1", vars["A"])
}

func TestSetCreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, Set(path, "A", "1"))

	vars, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"A": "1"}, vars)
}
