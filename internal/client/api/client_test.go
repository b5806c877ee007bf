package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/domain"
)

func TestClient_ListVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/files/42/versions", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":10,"fileId":42,"versionNumber":1,"filePath":"k","uploadedById":"u-1"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token", time.Second)
	versions, err := c.ListVersions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, int64(10), versions[0].ID)
	assert.Equal(t, 1, versions[0].VersionNumber)
}

func TestClient_SetAuthToken(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	_, err := c.ListVersions(context.Background(), 42)
	require.NoError(t, err)

	c.SetAuthToken("fresh-token")
	_, err = c.ListVersions(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer fresh-token"}, got)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"bad request", http.StatusBadRequest, domain.ErrInvalidInput},
		{"conflict", http.StatusConflict, domain.ErrVersionConflict},
		{"unauthorized", http.StatusUnauthorized, ErrAuthorization},
		{"server error", http.StatusInternalServerError, domain.ErrStoreUnavailable},
		{"bad gateway", http.StatusBadGateway, domain.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"details"}`))
			}))
			defer server.Close()

			c := NewClient(server.URL, "t", time.Second)
			_, err := c.ListAnnotations(context.Background(), 1)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "details")
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c := NewClient(addr, "t", time.Second)
	_, err := c.ListVersions(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", 50*time.Millisecond)
	_, err := c.ListVersions(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestClient_CreateAnnotation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/versions/3/annotations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in domain.AnnotationInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, int64(3), in.PdfVersionID)
		assert.Equal(t, "check tolerance", in.Comment)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":501,"pdfVersionId":3,"rect":{"x":10,"y":10,"width":50,"height":20,"pageNumber":2},
			"color":"#3B82F6","comment":"check tolerance","status":"new_comment","createdById":"u-1",
			"assignedTo":null,"taskId":null,"projectId":null,"deadline":null,"createdAt":"2024-05-01T10:00:00Z"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", time.Second)
	a, err := c.CreateAnnotation(context.Background(), domain.AnnotationInput{
		PdfVersionID: 3,
		Rect:         &domain.Rect{X: 10, Y: 10, Width: 50, Height: 20, PageNumber: 2},
		Comment:      "check tolerance",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(501), a.ID)
	assert.Equal(t, domain.StatusNewComment, a.Status)
	assert.Nil(t, a.TaskID)
}

func TestClient_UpdateDeletePromote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/annotations/7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"status":"resolved","color":"#22C55E"}`, string(body))
			w.Write([]byte(`{"id":7,"status":"resolved","color":"#22C55E"}`))
		case http.MethodDelete:
			w.Write([]byte(`{"success":true,"versionId":3}`))
		}
	})
	mux.HandleFunc("/v1/annotations/7/promote", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"annotation":{"id":7,"taskId":900},"taskId":900,"orphaned":false}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL, "t", time.Second)
	ctx := context.Background()

	resolved := domain.StatusResolved
	color := domain.ColorGreen
	a, err := c.UpdateAnnotation(ctx, 7, domain.AnnotationPatch{Status: &resolved, Color: &color})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, a.Status)

	versionID, err := c.DeleteAnnotation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), versionID)

	res, err := c.PromoteToTask(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(900), res.TaskID)
	require.NotNil(t, res.Annotation.TaskID)
	assert.Equal(t, int64(900), *res.Annotation.TaskID)
}

func TestClient_CreateVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/files/42/versions", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		assert.Equal(t, "plan.pdf", r.Header.Get("X-Filename"))
		assert.Equal(t, "rev+C", r.Header.Get("X-Description"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF-1.7", string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":11,"fileId":42,"versionNumber":2}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", time.Second)
	v, err := c.CreateVersion(context.Background(), 42, "plan.pdf", []byte("%PDF-1.7"), "rev C")
	require.NoError(t, err)
	assert.Equal(t, 2, v.VersionNumber)
}

func TestClient_ContentURL(t *testing.T) {
	c := NewClient("http://localhost:2525/", "t", time.Second)
	assert.Equal(t, "http://localhost:2525/v1/versions/5/content", c.ContentURL(5))
}
