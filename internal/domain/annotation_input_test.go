package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusColors(t *testing.T) {
	tests := []struct {
		status AnnotationStatus
		color  string
	}{
		{StatusNewComment, ColorBlue},
		{StatusResolved, ColorGreen},
		{StatusActionRequired, ColorRed},
		{StatusRejected, ColorRed},
		{StatusNewReview, ColorYellow},
		{StatusOtherForum, ColorYellow},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.Valid())
			assert.Equal(t, tt.color, tt.status.Color())
		})
	}

	assert.Len(t, Statuses(), 6)
	assert.False(t, AnnotationStatus("archived").Valid())

	_, err := ParseStatus("archived")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnnotationInput_Coercions(t *testing.T) {
	body := `{
		"pdfVersionId": "7",
		"rect": {"x": 10, "y": 10, "width": 50, "height": 20, "pageNumber": 2},
		"comment": "check tolerance",
		"createdById": "u-1",
		"taskId": "15",
		"deadline": "2024-05-01"
	}`

	var in AnnotationInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))

	assert.Equal(t, int64(7), in.PdfVersionID)
	require.NotNil(t, in.TaskID)
	assert.Equal(t, int64(15), *in.TaskID)
	require.NotNil(t, in.Deadline)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *in.Deadline)
	assert.Nil(t, in.AssignedTo)

	in.Normalize()
	require.NoError(t, in.Validate())
	assert.Equal(t, StatusNewComment, in.Status)
	assert.Equal(t, ColorBlue, in.Color)
}

func TestAnnotationInput_AbsentLinksSerializeAsNull(t *testing.T) {
	a := PdfAnnotation{ID: 1, PdfVersionID: 2, Status: StatusNewComment}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"taskId", "assignedTo", "projectId", "deadline"} {
		v, ok := m[key]
		assert.True(t, ok, "field %s must be present", key)
		assert.Nil(t, v)
	}
}

func TestAnnotationInput_Validate(t *testing.T) {
	valid := func() AnnotationInput {
		return AnnotationInput{
			PdfVersionID: 1,
			Rect:         &Rect{X: 1, Y: 1, Width: 10, Height: 10, PageNumber: 1},
			CreatedByID:  "u-1",
		}
	}

	tests := []struct {
		name   string
		mutate func(in *AnnotationInput)
	}{
		{"missing rect", func(in *AnnotationInput) { in.Rect = nil }},
		{"zero width", func(in *AnnotationInput) { in.Rect.Width = 0 }},
		{"page zero", func(in *AnnotationInput) { in.Rect.PageNumber = 0 }},
		{"no version", func(in *AnnotationInput) { in.PdfVersionID = 0 }},
		{"unknown status", func(in *AnnotationInput) { in.Status = "archived" }},
		{"no author", func(in *AnnotationInput) { in.CreatedByID = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			assert.ErrorIs(t, in.Validate(), ErrInvalidInput)
		})
	}

	in := valid()
	assert.NoError(t, in.Validate())
}

func TestCoerceID(t *testing.T) {
	tests := []struct {
		raw     string
		want    *int64
		wantErr bool
	}{
		{`null`, nil, false},
		{``, nil, false},
		{`""`, nil, false},
		{`42`, ptr(int64(42)), false},
		{`42.0`, ptr(int64(42)), false},
		{`"42"`, ptr(int64(42)), false},
		{`" 9 "`, ptr(int64(9)), false},
		{`"abc"`, nil, true},
		{`4.5`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := CoerceID(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceDate(t *testing.T) {
	d, err := CoerceDate(json.RawMessage(`"2024-02-03T10:00:00+02:00"`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC), *d)

	d, err = CoerceDate(json.RawMessage(`""`))
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = CoerceDate(json.RawMessage(`"tomorrow"`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CoerceDate(json.RawMessage(`12`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnnotationPatch_JSON(t *testing.T) {
	var p AnnotationPatch
	require.NoError(t, json.Unmarshal([]byte(`{"status":"resolved","taskId":"12","assignedTo":null}`), &p))

	require.NotNil(t, p.Status)
	assert.Equal(t, StatusResolved, *p.Status)
	assert.True(t, p.TaskID.Set)
	assert.Equal(t, int64(12), *p.TaskID.Value)
	assert.True(t, p.AssignedTo.Set)
	assert.Nil(t, p.AssignedTo.Value)
	assert.Nil(t, p.Comment)
	assert.False(t, p.Deadline.Set)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"resolved","taskId":12,"assignedTo":null}`, string(data))

	err = json.Unmarshal([]byte(`{"status":"archived"}`), &p)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnnotationPatch_StatusUpdatesColor(t *testing.T) {
	a := PdfAnnotation{Status: StatusNewComment, Color: ColorBlue, Comment: "keep"}

	resolved := StatusResolved
	p := AnnotationPatch{Status: &resolved}
	p.Apply(&a)
	assert.Equal(t, StatusResolved, a.Status)
	assert.Equal(t, ColorGreen, a.Color)
	assert.Equal(t, "keep", a.Comment)

	custom := "#000000"
	rejected := StatusRejected
	p = AnnotationPatch{Status: &rejected, Color: &custom}
	p.Normalize()
	p.Apply(&a)
	assert.Equal(t, "#000000", a.Color)

	p = AnnotationPatch{Status: &rejected}
	p.Normalize()
	require.NotNil(t, p.Color)
	assert.Equal(t, ColorRed, *p.Color)
}

func TestLatestVersion(t *testing.T) {
	assert.Nil(t, LatestVersion(nil))

	versions := []PdfVersion{{ID: 10, VersionNumber: 1}, {ID: 12, VersionNumber: 3}, {ID: 11, VersionNumber: 2}}
	assert.Equal(t, int64(12), LatestVersion(versions).ID)
}

func ptr[T any](v T) *T { return &v }
