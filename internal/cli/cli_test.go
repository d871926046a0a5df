package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbio/internal/linediff"
	"bigbio/internal/skeleton"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	inputPath, rulesPath = "", ""
	var out bytes.Buffer
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestSkeletonCommand(t *testing.T) {
	content := "Top 3\n1. anne\n2. bea"
	var got skeleton.Result
	require.NoError(t, json.Unmarshal([]byte(run(t, content, "skeleton")), &got))
	assert.Equal(t, skeleton.Build(content), got)
}

func TestTagsCommand(t *testing.T) {
	var tags []string
	require.NoError(t, json.Unmarshal([]byte(run(t, "my playlist\nshe/her", "tags")), &tags))
	assert.Equal(t, []string{"music", "pronouns"}, tags)

	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("rules:\n  - tag: coffee\n    pattern: \"\\\\blatte\\\\b\"\n"), 0o600))
	require.NoError(t, json.Unmarshal([]byte(run(t, "oat latte", "tags", "--rules", rules)), &tags))
	assert.Equal(t, []string{"coffee"}, tags)
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("a\nb"), 0o600))
	require.NoError(t, os.WriteFile(newPath, []byte("a\nc"), 0o600))

	var ops []linediff.Op
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "diff", oldPath, newPath)), &ops))
	assert.Equal(t, []linediff.Op{{Op: linediff.OpReplace, Line: 1, Old: "b", New: "c"}}, ops)
}

func TestDiffCommandNeedsTwoFiles(t *testing.T) {
	RootCmd.SetArgs([]string{"diff", "only-one"})
	RootCmd.SetOut(&bytes.Buffer{})
	RootCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, RootCmd.Execute())
}
