package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/files/42/versions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":10,"fileId":42,"versionNumber":1,"filePath":"pdf_versions/42/a.pdf","uploadedById":"u-1"}]`))
	})
	mux.HandleFunc("/v1/versions/10/annotations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":501,"pdfVersionId":10,"rect":{"x":10,"y":10,"width":50,"height":20,"pageNumber":2},
			"color":"#3B82F6","comment":"check tolerance","status":"new_comment","createdById":"u-1"}]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Setenv("PDFSYNC_SERVER_URL", server.URL)
	t.Setenv("PDFSYNC_CACHE_DRIVER", "memory")
	return server
}

func TestRun_Load(t *testing.T) {
	server := newTestServer(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"load", "42"}, &stdout, &stderr)
	require.NoError(t, err)

	var out struct {
		Source          string            `json:"source"`
		ActiveVersionID string            `json:"activeVersionId"`
		ViewURL         string            `json:"viewUrl"`
		Annotations     []json.RawMessage `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "store", out.Source)
	assert.Equal(t, "10", out.ActiveVersionID)
	assert.Equal(t, server.URL+"/v1/versions/10/content", out.ViewURL)
	assert.Len(t, out.Annotations, 1)
}

func TestRun_AnnotateWithoutVersion(t *testing.T) {
	newTestServer(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"annotate", "-w", "40", "-h", "40", "draft-upload"}, &stdout, &stderr)
	assert.Error(t, err)
}

func TestRun_UnknownCommand(t *testing.T) {
	newTestServer(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"rename", "42"}, &stdout, &stderr)
	assert.ErrorContains(t, err, "unknown command")
	assert.Contains(t, stderr.String(), "Usage: pdfsync")
}
