package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/domain"
)

// backends возвращает все реализации адаптера поверх временных ресурсов
func backends(t *testing.T) map[string]Adapter {
	t.Helper()
	ctx := context.Background()

	file, err := NewFile(t.TempDir())
	require.NoError(t, err)

	sqlite, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	mr := miniredis.RunT(t)
	rdb, err := NewRedis(ctx, mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return map[string]Adapter{
		DriverMemory: NewMemory(),
		DriverFile:   file,
		DriverSQLite: sqlite,
		DriverRedis:  rdb,
	}
}

func TestAdapters_GetPut(t *testing.T) {
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := a.Get(ctx, "pdf_versions_missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, a.Put(ctx, "pdf_versions_42", []byte(`[1]`)))
			require.NoError(t, a.Put(ctx, "pdf_versions_42", []byte(`[1,2]`)))

			got, ok, err := a.Get(ctx, "pdf_versions_42")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `[1,2]`, string(got))
		})
	}
}

func TestAdapters_KeysWithPathCharacters(t *testing.T) {
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := AnnotationsKey("blob:https://app.local/9f1c")

			require.NoError(t, a.Put(ctx, key, []byte(`[]`)))
			got, ok, err := a.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `[]`, string(got))
		})
	}
}

func TestTypedEntries_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewMemory()
	uploaded := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	versions := []VersionEntry{{
		ID: "1", VersionNumber: 1, Filename: "plan.pdf", FileURL: "blob:plan",
		Uploaded: uploaded, UploadedBy: "u-1",
	}}
	require.NoError(t, SaveVersions(ctx, a, "42", versions))

	got, ok, err := LoadVersions(ctx, a, "42")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(versions, got); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}

	annotations := []AnnotationEntry{{
		ID: "local-1", PdfVersionID: "1",
		Rect:   domain.Rect{X: 10, Y: 10, Width: 50, Height: 20, PageNumber: 2},
		Color:  domain.ColorBlue, Comment: "check tolerance", Status: domain.StatusNewComment,
		CreatedAt: uploaded, CreatedByID: "u-1",
	}}
	require.NoError(t, SaveAnnotations(ctx, a, "42", annotations))

	raw, _, err := a.Get(ctx, AnnotationsKey("42"))
	require.NoError(t, err)
	var generic []map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "local-1", generic[0]["id"])
	assert.Nil(t, generic[0]["taskId"])

	gotAnn, ok, err := LoadAnnotations(ctx, a, "42")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(annotations, gotAnn); diff != "" {
		t.Fatalf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_EmptyListIsArray(t *testing.T) {
	ctx := context.Background()
	a := NewMemory()

	require.NoError(t, SaveAnnotations(ctx, a, "7", nil))
	raw, ok, err := a.Get(ctx, AnnotationsKey("7"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[]`, string(raw))
	assert.Equal(t, 1, a.Puts())

	_, ok, err = LoadVersions(ctx, a, "7")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, a.Puts())
}

func TestLoad_Corrupted(t *testing.T) {
	ctx := context.Background()
	a := NewMemory()
	require.NoError(t, a.Put(ctx, VersionsKey("1"), []byte(`{not json`)))

	_, ok, err := LoadVersions(ctx, a, "1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRecordID(t *testing.T) {
	var entry AnnotationEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id": 15, "pdfVersionId": "3"}`), &entry))
	assert.Equal(t, RecordID("15"), entry.ID)
	assert.Equal(t, RecordID("3"), entry.PdfVersionID)

	n, ok := entry.ID.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(15), n)

	_, ok = RecordID("local-abc").Int64()
	assert.False(t, ok)

	data, err := json.Marshal(IDOf(99))
	require.NoError(t, err)
	assert.Equal(t, `"99"`, string(data))

	var id RecordID
	assert.Error(t, json.Unmarshal([]byte(`true`), &id))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	a, closer, err := New(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, a)
	assert.NoError(t, closer.Close())

	a, closer, err = New(ctx, Config{Driver: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, a)
	assert.NoError(t, closer.Close())

	a, closer, err = New(ctx, Config{Driver: "SQLite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, a)
	assert.NoError(t, closer.Close())

	mr := miniredis.RunT(t)
	a, closer, err = New(ctx, Config{Driver: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, a)
	assert.NoError(t, closer.Close())

	_, _, err = New(ctx, Config{Driver: "etcd"})
	assert.Error(t, err)
}
