package get

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkrizic/groupstore/command"
	"github.com/dkrizic/groupstore/group"
	"github.com/dkrizic/groupstore/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func newRoot(out *bytes.Buffer) *cli.Command {
	return &cli.Command{
		Name:     "groupstore",
		Writer:   out,
		Flags:    command.StorageFlags(),
		Commands: []*cli.Command{{Name: "get", Action: Get}},
	}
}

func TestGet_EmptyStorageUsesDefault(t *testing.T) {
	dir := t.TempDir()
	defaultFile := filepath.Join(dir, "default.json")
	require.NoError(t, os.WriteFile(defaultFile, []byte(`{"name":"Dotkom","members":[]}`), 0o644))

	var out bytes.Buffer
	err := newRoot(&out).Run(context.Background(), []string{
		"groupstore",
		"--storage-type", "sqlite",
		"--sqlite-path", filepath.Join(dir, "storage.db"),
		"--default-group", defaultFile,
		"get",
	})
	require.NoError(t, err)

	var g group.Group
	require.NoError(t, json.Unmarshal(out.Bytes(), &g))
	assert.Equal(t, "Dotkom", g.Name)
	assert.Empty(t, g.Members)

	// the default is shown, not stored
	p, err := sqlite.Open(filepath.Join(dir, "storage.db"))
	require.NoError(t, err)
	defer p.Close()
	_, ok, err := p.Read(context.Background(), "group")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_DoesNotCreateStorageFile(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "storage.json")

	var out bytes.Buffer
	err := newRoot(&out).Run(context.Background(), []string{"groupstore", "--file-path", storage, "get"})
	require.NoError(t, err)

	var g group.Group
	require.NoError(t, json.Unmarshal(out.Bytes(), &g))
	assert.Empty(t, g.Members)
	assert.NotNil(t, g.Members)

	_, err = os.Stat(storage)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestGet_StoredGroup(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(storage, []byte(`{"group":"{\"name\":\"Dotkom\",\"members\":[{\"user_id\":1}]}"}`), 0o644))

	var out bytes.Buffer
	err := newRoot(&out).Run(context.Background(), []string{"groupstore", "--file-path", storage, "get"})
	require.NoError(t, err)

	var g group.Group
	require.NoError(t, json.Unmarshal(out.Bytes(), &g))
	assert.Equal(t, "Dotkom", g.Name)
	require.Len(t, g.Members, 1)
	assert.Equal(t, 1, g.Members[0].UserID)
}

func TestGet_MalformedStorage(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(storage, []byte(`{"group":"not json"}`), 0o644))

	var out bytes.Buffer
	err := newRoot(&out).Run(context.Background(), []string{"groupstore", "--file-path", storage, "get"})
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestGet_InvalidStorageType(t *testing.T) {
	var out bytes.Buffer
	err := newRoot(&out).Run(context.Background(), []string{"groupstore", "--storage-type", "redis", "get"})
	assert.Error(t, err)
}
