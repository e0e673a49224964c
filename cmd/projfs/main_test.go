package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes one projfs invocation against a dir store rooted at root.
func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--store", "dir", "--root", root, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, root string, args ...string) string {
	t.Helper()
	out, err := run(t, root, args...)
	require.NoError(t, err, "projfs %s", strings.Join(args, " "))
	return out
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func writeLocal(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	return name
}

func TestPutCatLs(t *testing.T) {
	root := t.TempDir()
	local := writeLocal(t, filepath.Join(t.TempDir(), "main.fc"), "() main() {}")

	assert.Equal(t, "/proj/contracts/main.fc\n", mustRun(t, root, "put", local, "/proj/contracts/main.fc"))
	assert.Equal(t, "/proj/contracts/main(1).fc\n", mustRun(t, root, "put", "--no-overwrite", local, "/proj/contracts/main.fc"))
	assert.Equal(t, "() main() {}", mustRun(t, root, "cat", "/proj/contracts/main.fc"))

	assert.Equal(t, []string{"contracts"}, lines(mustRun(t, root, "ls", "/proj")))
	assert.Equal(t,
		[]string{"contracts", "contracts/main(1).fc", "contracts/main.fc"},
		lines(mustRun(t, root, "ls", "-r", "/proj")))

	// the dir store persists between invocations
	_, err := os.Stat(filepath.Join(root, "proj", "contracts", "main.fc"))
	assert.NoError(t, err)
}

func TestMkdirMvCpRm(t *testing.T) {
	root := t.TempDir()
	local := writeLocal(t, filepath.Join(t.TempDir(), "a.txt"), "a")

	assert.Equal(t, "/src\n", mustRun(t, root, "mkdir", "/src"))
	assert.Equal(t, "/src(1)\n", mustRun(t, root, "mkdir", "--no-overwrite", "/src"))

	mustRun(t, root, "put", local, "/src/a.txt")
	mustRun(t, root, "mv", "/src/a.txt", "/src/b.txt")
	mustRun(t, root, "cp", "/src/b.txt", "/src/c.txt")
	mustRun(t, root, "cp", "-r", "/src", "/copy")

	assert.Equal(t, []string{"b.txt", "c.txt"}, lines(mustRun(t, root, "ls", "/copy")))

	_, err := run(t, root, "rm", "/copy")
	assert.Error(t, err, "non-empty directory needs -r")
	mustRun(t, root, "rm", "-r", "/copy")

	assert.Equal(t, []string{"src", "src(1)"}, lines(mustRun(t, root, "ls", "--dirs")))
}

func TestCatMissing(t *testing.T) {
	_, err := run(t, t.TempDir(), "cat", "/nope.txt")
	assert.Error(t, err)
}

func TestTree(t *testing.T) {
	root := t.TempDir()
	local := writeLocal(t, filepath.Join(t.TempDir(), "x"), "x")
	mustRun(t, root, "put", local, "/p/src/main.ts")
	mustRun(t, root, "put", local, "/p/README.md")

	assert.Equal(t, "README.md\nsrc/\n  main.ts\n", mustRun(t, root, "tree", "/p"))

	out := mustRun(t, root, "tree", "--json", "/p")
	assert.Contains(t, out, `"path": "src/main.ts"`)
	assert.Contains(t, out, `"type": "directory"`)
	assert.Contains(t, out, `"parent": "src"`)
}

func TestDu(t *testing.T) {
	root := t.TempDir()
	local := writeLocal(t, filepath.Join(t.TempDir(), "x"), "12345")
	mustRun(t, root, "put", local, "/p/a")
	mustRun(t, root, "put", local, "/p/d/b")

	assert.Equal(t, "files: 2\ndirectories: 1\nbytes: 10\n", mustRun(t, root, "du", "/p"))
}

func TestZipUnzip(t *testing.T) {
	root := t.TempDir()
	work := t.TempDir()
	local := writeLocal(t, filepath.Join(work, "main.ts"), "export {}\n")
	mustRun(t, root, "put", local, "/p/src/main.ts")
	mustRun(t, root, "put", local, "/p/node_modules/dep/index.js")

	zipPath := filepath.Join(work, "p.zip")
	mustRun(t, root, "zip", zipPath, "/p")
	_, err := os.Stat(zipPath)
	require.NoError(t, err)

	out := mustRun(t, root, "unzip", "--dry-run", zipPath, "/restored")
	entries := lines(out)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0], "/restored/p/src/main.ts\t10\t"), entries[0])
	exists, err := os.Stat(filepath.Join(root, "restored"))
	assert.Nil(t, exists)
	assert.True(t, os.IsNotExist(err), "dry run writes nothing")

	mustRun(t, root, "unzip", zipPath, "/restored")
	assert.Equal(t, "export {}\n", mustRun(t, root, "cat", "/restored/p/src/main.ts"))
}

func TestImport(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeLocal(t, filepath.Join(src, "contracts", "main.fc"), "main")
	writeLocal(t, filepath.Join(src, "README.md"), "readme")
	writeLocal(t, filepath.Join(src, ".git", "HEAD"), "ref")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	assert.Equal(t, "imported 4 entries\n", mustRun(t, root, "import", src, "/proj"))
	assert.Equal(t,
		[]string{"README.md", "contracts", "contracts/main.fc", "empty"},
		lines(mustRun(t, root, "ls", "-r", "/proj")))
	assert.Equal(t, "main", mustRun(t, root, "cat", "/proj/contracts/main.fc"))
}

func TestStats(t *testing.T) {
	root := t.TempDir()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--store", "dir", "--root", root, "--log-level", "error", "--stats", "ls"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "op=readdir status=ok")
}

func TestVersionSkipsSetup(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out, &out)
	cmd.SetArgs([]string{"--store", "bogus", "version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "projfs dev\n", out.String())
}

// TestRootFlagCompletesEnvConfig tests that --root satisfies a dir store
// selected through the environment.
func TestRootFlagCompletesEnvConfig(t *testing.T) {
	t.Setenv("PROJFS_STORE_TYPE", "dir")
	root := t.TempDir()
	writeLocal(t, filepath.Join(root, "p", "a.txt"), "a")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--root", root, "--log-level", "error", "ls", "/p"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, []string{"a.txt"}, lines(out.String()))

	cmd = newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"ls", "/"})
	assert.ErrorContains(t, cmd.Execute(), "store.root")
}

func TestInvalidStore(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out, &out)
	cmd.SetArgs([]string{"--store", "bogus", "ls"})
	assert.Error(t, cmd.Execute())
}
