package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Nullable различает "поле не передано" (Set=false) и явный null (Set=true, Value=nil).
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// AnnotationInput - данные для создания аннотации.
// Принимает taskId/projectId числом или строкой, deadline строкой с датой.
type AnnotationInput struct {
	PdfVersionID int64            `json:"pdfVersionId" validate:"required"`
	ProjectID    *int64           `json:"projectId"`
	Rect         *Rect            `json:"rect" validate:"required"`
	Color        string           `json:"color"`
	Comment      string           `json:"comment"`
	Status       AnnotationStatus `json:"status"`
	CreatedByID  string           `json:"createdById"`
	AssignedTo   *string          `json:"assignedTo"`
	TaskID       *int64           `json:"taskId"`
	Deadline     *time.Time       `json:"deadline"`
}

func (in *AnnotationInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		PdfVersionID json.RawMessage `json:"pdfVersionId"`
		ProjectID    json.RawMessage `json:"projectId"`
		Rect         *Rect           `json:"rect"`
		Color        string          `json:"color"`
		Comment      string          `json:"comment"`
		Status       string          `json:"status"`
		CreatedByID  string          `json:"createdById"`
		AssignedTo   *string         `json:"assignedTo"`
		TaskID       json.RawMessage `json:"taskId"`
		Deadline     json.RawMessage `json:"deadline"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	versionID, err := CoerceID(raw.PdfVersionID)
	if err != nil {
		return fmt.Errorf("pdfVersionId: %w", err)
	}
	projectID, err := CoerceID(raw.ProjectID)
	if err != nil {
		return fmt.Errorf("projectId: %w", err)
	}
	taskID, err := CoerceID(raw.TaskID)
	if err != nil {
		return fmt.Errorf("taskId: %w", err)
	}
	deadline, err := CoerceDate(raw.Deadline)
	if err != nil {
		return fmt.Errorf("deadline: %w", err)
	}

	*in = AnnotationInput{
		ProjectID:   projectID,
		Rect:        raw.Rect,
		Color:       raw.Color,
		Comment:     raw.Comment,
		Status:      AnnotationStatus(raw.Status),
		CreatedByID: raw.CreatedByID,
		AssignedTo:  raw.AssignedTo,
		TaskID:      taskID,
		Deadline:    deadline,
	}
	if versionID != nil {
		in.PdfVersionID = *versionID
	}
	return nil
}

// Normalize заполняет значения по умолчанию: статус new_comment и цвет статуса.
func (in *AnnotationInput) Normalize() {
	if in.Status == "" {
		in.Status = StatusNewComment
	}
	if strings.TrimSpace(in.Color) == "" {
		in.Color = in.Status.Color()
	}
	if in.AssignedTo != nil && strings.TrimSpace(*in.AssignedTo) == "" {
		in.AssignedTo = nil
	}
}

func (in *AnnotationInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validate.Struct(in.Rect); err != nil {
		return fmt.Errorf("%w: rect: %v", ErrInvalidInput, err)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	if strings.TrimSpace(in.CreatedByID) == "" {
		return fmt.Errorf("%w: createdById is required", ErrInvalidInput)
	}
	return nil
}

// AnnotationPatch - частичное обновление. Непереданные поля не трогаются.
type AnnotationPatch struct {
	Rect       *Rect
	Color      *string
	Comment    *string
	Status     *AnnotationStatus
	ProjectID  Nullable[int64]
	AssignedTo Nullable[string]
	TaskID     Nullable[int64]
	Deadline   Nullable[time.Time]
}

func (p AnnotationPatch) IsEmpty() bool {
	return p.Rect == nil && p.Color == nil && p.Comment == nil && p.Status == nil &&
		!p.ProjectID.Set && !p.AssignedTo.Set && !p.TaskID.Set && !p.Deadline.Set
}

// Normalize: смена статуса без явного цвета выставляет канонический цвет статуса.
func (p *AnnotationPatch) Normalize() {
	if p.Status != nil && p.Color == nil {
		c := p.Status.Color()
		p.Color = &c
	}
}

func (p AnnotationPatch) Validate() error {
	if p.Rect != nil {
		if err := validate.Struct(p.Rect); err != nil {
			return fmt.Errorf("%w: rect: %v", ErrInvalidInput, err)
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *p.Status)
	}
	return nil
}

// Apply применяет патч к аннотации в памяти
func (p AnnotationPatch) Apply(a *PdfAnnotation) {
	if p.Rect != nil {
		a.Rect = *p.Rect
	}
	if p.Status != nil {
		a.Status = *p.Status
		if p.Color == nil {
			a.Color = p.Status.Color()
		}
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.Comment != nil {
		a.Comment = *p.Comment
	}
	if p.ProjectID.Set {
		a.ProjectID = p.ProjectID.Value
	}
	if p.AssignedTo.Set {
		a.AssignedTo = p.AssignedTo.Value
	}
	if p.TaskID.Set {
		a.TaskID = p.TaskID.Value
	}
	if p.Deadline.Set {
		a.Deadline = p.Deadline.Value
	}
}

func (p *AnnotationPatch) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var out AnnotationPatch
	for key, raw := range fields {
		var err error
		switch key {
		case "rect":
			if isNull(raw) {
				return fmt.Errorf("%w: rect cannot be null", ErrInvalidInput)
			}
			var r Rect
			err = json.Unmarshal(raw, &r)
			out.Rect = &r
		case "color":
			out.Color, err = decodeString(raw)
		case "comment":
			out.Comment, err = decodeString(raw)
			if err == nil && out.Comment == nil {
				empty := ""
				out.Comment = &empty
			}
		case "status":
			var s *string
			s, err = decodeString(raw)
			if err == nil && s != nil {
				var st AnnotationStatus
				st, err = ParseStatus(*s)
				out.Status = &st
			}
		case "projectId":
			var id *int64
			id, err = CoerceID(raw)
			out.ProjectID = Nullable[int64]{Set: true, Value: id}
		case "assignedTo":
			var s *string
			s, err = decodeString(raw)
			if s != nil && strings.TrimSpace(*s) == "" {
				s = nil
			}
			out.AssignedTo = Nullable[string]{Set: true, Value: s}
		case "taskId":
			var id *int64
			id, err = CoerceID(raw)
			out.TaskID = Nullable[int64]{Set: true, Value: id}
		case "deadline":
			var d *time.Time
			d, err = CoerceDate(raw)
			out.Deadline = Nullable[time.Time]{Set: true, Value: d}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	*p = out
	return nil
}

// MarshalJSON выводит только переданные поля, явный null сохраняется.
func (p AnnotationPatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if p.Rect != nil {
		m["rect"] = p.Rect
	}
	if p.Color != nil {
		m["color"] = *p.Color
	}
	if p.Comment != nil {
		m["comment"] = *p.Comment
	}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.ProjectID.Set {
		m["projectId"] = p.ProjectID.Value
	}
	if p.AssignedTo.Set {
		m["assignedTo"] = p.AssignedTo.Value
	}
	if p.TaskID.Set {
		m["taskId"] = p.TaskID.Value
	}
	if p.Deadline.Set {
		if p.Deadline.Value == nil {
			m["deadline"] = nil
		} else {
			m["deadline"] = p.Deadline.Value.Format(time.RFC3339)
		}
	}
	return json.Marshal(m)
}

// CoerceID принимает число, строку с целым числом, пустую строку или null.
func CoerceID(raw json.RawMessage) (*int64, error) {
	if isNull(raw) {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
	} else {
		s = string(raw)
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// JSON-число вида 42.0
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return nil, fmt.Errorf("%w: %q is not an integer id", ErrInvalidInput, s)
		}
		id = int64(f)
	}
	return &id, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CoerceDate принимает строку с датой или датой-временем, пустую строку или null.
func CoerceDate(raw json.RawMessage) (*time.Time, error) {
	if isNull(raw) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: date must be a string", ErrInvalidInput)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognized date %q", ErrInvalidInput, s)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: expected string", ErrInvalidInput)
	}
	return &s, nil
}
