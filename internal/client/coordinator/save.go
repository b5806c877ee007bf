package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stargate/internal/client/api"
	"stargate/internal/client/cache"
	"stargate/internal/domain"
	"stargate/internal/logger"
)

// minDragPixels - минимальная сторона выделения в пикселях экрана
const minDragPixels = 10

// Draft - выделение пользователя на странице в пикселях экрана
type Draft struct {
	Page       int
	PageCount  int // число страниц активной версии, 0 - неизвестно
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Scale      float64 // масштаб просмотрщика, 1 - без увеличения
	Comment    string
	CreatedBy  string
	AssignedTo *string
	ProjectID  *int64
}

// rect проверяет размер выделения до масштабирования и переводит его
// в координаты страницы
func (d Draft) rect() (domain.Rect, error) {
	x, y, w, h := d.X, d.Y, d.Width, d.Height
	// выделение могли тянуть влево или вверх
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	if w < minDragPixels || h < minDragPixels {
		return domain.Rect{}, fmt.Errorf("%w: %.0fx%.0f", ErrDragTooSmall, w, h)
	}
	if d.Page < 1 {
		return domain.Rect{}, fmt.Errorf("%w: page must be positive", domain.ErrInvalidInput)
	}
	if d.PageCount > 0 && d.Page > d.PageCount {
		return domain.Rect{}, fmt.Errorf("%w: page %d is out of range 1..%d", domain.ErrInvalidInput, d.Page, d.PageCount)
	}

	scale := d.Scale
	if scale <= 0 {
		scale = 1
	}
	return domain.Rect{
		X:          x / scale,
		Y:          y / scale,
		Width:      w / scale,
		Height:     h / scale,
		PageNumber: d.Page,
	}, nil
}

// VersionUpload - новая версия файла. URL показывается просмотрщиком,
// пока сервер не подтвердил версию.
type VersionUpload struct {
	Filename    string
	URL         string
	Content     []byte
	Description string
	UploadedBy  string
}

type annotationCall func(ctx context.Context) (*domain.PdfAnnotation, error)

// CreateAnnotation добавляет аннотацию на активную версию. Выделение меньше
// 10px отбрасывается и не доходит до сервера.
func (c *Coordinator) CreateAnnotation(ctx context.Context, d Draft) (SaveResult, error) {
	rect, err := d.rect()
	if err != nil {
		return SaveResult{}, err
	}

	id := localID()
	unlock := c.lock(id)
	defer unlock()

	c.mu.Lock()
	if c.activeVersion == "" {
		c.forget(id)
		c.mu.Unlock()
		return SaveResult{}, ErrNoVersion
	}
	entry := cache.AnnotationEntry{
		ID:           id,
		PdfVersionID: c.activeVersion,
		ProjectID:    d.ProjectID,
		Rect:         rect,
		Color:        domain.StatusNewComment.Color(),
		Comment:      d.Comment,
		Status:       domain.StatusNewComment,
		CreatedAt:    c.now().UTC(),
		CreatedByID:  d.CreatedBy,
		AssignedTo:   d.AssignedTo,
	}
	c.annotations = append(c.annotations, entry)
	c.phases[id] = PhasePending
	remote := c.annotationRemote(entry, domain.AnnotationPatch{})
	c.mu.Unlock()

	return c.settleAnnotation(ctx, id, remote), nil
}

func (c *Coordinator) UpdateStatus(ctx context.Context, id cache.RecordID, status domain.AnnotationStatus) (SaveResult, error) {
	st, err := domain.ParseStatus(string(status))
	if err != nil {
		return SaveResult{}, err
	}
	patch := domain.AnnotationPatch{Status: &st}
	patch.Normalize()
	return c.update(ctx, id, patch)
}

func (c *Coordinator) UpdateComment(ctx context.Context, id cache.RecordID, comment string) (SaveResult, error) {
	return c.update(ctx, id, domain.AnnotationPatch{Comment: &comment})
}

// UpdateAssignee назначает исполнителя; nil или пустая строка снимают назначение
func (c *Coordinator) UpdateAssignee(ctx context.Context, id cache.RecordID, assignee *string) (SaveResult, error) {
	if assignee != nil && strings.TrimSpace(*assignee) == "" {
		assignee = nil
	}
	return c.update(ctx, id, domain.AnnotationPatch{
		AssignedTo: domain.Nullable[string]{Set: true, Value: assignee},
	})
}

func (c *Coordinator) update(ctx context.Context, id cache.RecordID, patch domain.AnnotationPatch) (SaveResult, error) {
	unlock := c.lock(id)
	defer unlock()

	c.mu.Lock()
	id = c.canonical(id)
	i := c.annotationIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return SaveResult{}, fmt.Errorf("%w: annotation %s", domain.ErrNotFound, id)
	}
	applyPatch(&c.annotations[i], patch)
	c.phases[id] = PhasePending
	remote := c.annotationRemote(c.annotations[i], patch)
	c.mu.Unlock()

	return c.settleAnnotation(ctx, id, remote), nil
}

// DeleteAnnotation убирает аннотацию из памяти и удаляет её на сервере или в кэше
func (c *Coordinator) DeleteAnnotation(ctx context.Context, id cache.RecordID) (SaveResult, error) {
	unlock := c.lock(id)
	defer unlock()

	c.mu.Lock()
	id = c.canonical(id)
	i := c.annotationIndex(id)
	if i < 0 {
		c.forget(id)
		c.mu.Unlock()
		return SaveResult{}, fmt.Errorf("%w: annotation %s", domain.ErrNotFound, id)
	}
	c.annotations = append(c.annotations[:i:i], c.annotations[i+1:]...)
	delete(c.phases, id)
	c.forget(id)
	resolved := c.resolved
	c.mu.Unlock()

	if serverID, ok := id.Int64(); ok && resolved {
		tctx, cancel := c.withTimeout(ctx)
		_, err := c.store.DeleteAnnotation(tctx, serverID)
		cancel()
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			return SaveResult{ID: id, Phase: PhaseConfirmed}, nil
		}
		logger.Sugar.Warnf("[Coordinator] Failed to delete annotation %s on server, caching: %v", id, err)
	}

	if err := c.cacheAnnotations(ctx); err != nil {
		c.saveFailed(err)
		return SaveResult{ID: id, Phase: PhasePending}, nil
	}
	return SaveResult{ID: id, Phase: PhaseCached}, nil
}

// AddVersion добавляет новую версию файла и делает её активной
func (c *Coordinator) AddVersion(ctx context.Context, up VersionUpload) (SaveResult, error) {
	if len(up.Content) == 0 {
		return SaveResult{}, fmt.Errorf("%w: empty content", domain.ErrInvalidInput)
	}

	id := localID()
	unlock := c.lock(id)
	defer unlock()

	c.mu.Lock()
	if c.fileRef == "" {
		c.forget(id)
		c.mu.Unlock()
		return SaveResult{}, fmt.Errorf("%w: no file loaded", domain.ErrInvalidInput)
	}
	next := 1
	if latest := latestEntry(c.versions); latest != nil {
		next = latest.VersionNumber + 1
	}
	c.versions = append(c.versions, cache.VersionEntry{
		ID:            id,
		VersionNumber: next,
		Filename:      up.Filename,
		FileURL:       up.URL,
		Description:   up.Description,
		Uploaded:      c.now().UTC(),
		UploadedBy:    up.UploadedBy,
	})
	c.phases[id] = PhasePending
	c.activeVersion = id
	c.viewURL = up.URL
	resolved, fileID := c.resolved, c.fileID
	c.mu.Unlock()

	if resolved {
		tctx, cancel := c.withTimeout(ctx)
		v, err := c.store.CreateVersion(tctx, fileID, up.Filename, up.Content, up.Description)
		cancel()
		if err == nil {
			return c.confirmVersion(id, v), nil
		}
		logger.Sugar.Warnf("[Coordinator] Failed to upload version of file %d, caching: %v", fileID, err)
	}

	return c.fallback(id, c.cacheVersions(ctx)), nil
}

// PromoteToTask превращает подтверждённую сервером аннотацию в задачу
func (c *Coordinator) PromoteToTask(ctx context.Context, id cache.RecordID) (*api.PromotionResult, error) {
	unlock := c.lock(id)
	defer unlock()

	c.mu.Lock()
	id = c.canonical(id)
	resolved := c.resolved
	c.mu.Unlock()

	serverID, ok := id.Int64()
	if !resolved || !ok {
		return nil, fmt.Errorf("%w: annotation %s is not saved on the server", domain.ErrUnresolvable, id)
	}

	tctx, cancel := c.withTimeout(ctx)
	defer cancel()
	res, err := c.store.PromoteToTask(tctx, serverID)
	if err != nil {
		return nil, err
	}

	if res.Orphaned {
		logger.Sugar.Warnf("[Coordinator] Task %d created but not linked to annotation %s", res.TaskID, id)
	}
	if res.Annotation != nil {
		c.confirmAnnotation(id, res.Annotation)
	}
	return res, nil
}

// annotationRemote выбирает серверную операцию для записи. Вызывается под mu.
// Запись с локальным id создаётся на сервере целиком.
func (c *Coordinator) annotationRemote(e cache.AnnotationEntry, patch domain.AnnotationPatch) annotationCall {
	if !c.resolved {
		return nil
	}
	if serverID, ok := e.ID.Int64(); ok {
		return func(ctx context.Context) (*domain.PdfAnnotation, error) {
			return c.store.UpdateAnnotation(ctx, serverID, patch)
		}
	}
	if versionID, ok := e.PdfVersionID.Int64(); ok {
		in := createInput(e, versionID)
		return func(ctx context.Context) (*domain.PdfAnnotation, error) {
			return c.store.CreateAnnotation(ctx, in)
		}
	}
	return nil
}

func (c *Coordinator) settleAnnotation(ctx context.Context, id cache.RecordID, remote annotationCall) SaveResult {
	if remote != nil {
		tctx, cancel := c.withTimeout(ctx)
		saved, err := remote(tctx)
		cancel()
		if err == nil {
			return c.confirmAnnotation(id, saved)
		}
		logger.Sugar.Warnf("[Coordinator] Failed to save annotation %s on server, caching: %v", id, err)
	}
	return c.fallback(id, c.cacheAnnotations(ctx))
}

func (c *Coordinator) confirmAnnotation(id cache.RecordID, saved *domain.PdfAnnotation) SaveResult {
	e := annotationEntry(*saved)

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.annotationIndex(id); i >= 0 {
		c.annotations[i] = e
	}
	c.rekey(id, e.ID)
	c.phases[e.ID] = PhaseConfirmed
	return SaveResult{ID: e.ID, Phase: PhaseConfirmed}
}

func (c *Coordinator) confirmVersion(id cache.RecordID, v *domain.PdfVersion) SaveResult {
	e := versionEntry(*v, c.store.ContentURL(v.ID))

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.versions {
		if c.versions[i].ID == id {
			c.versions[i] = e
		}
	}
	for i := range c.annotations {
		if c.annotations[i].PdfVersionID == id {
			c.annotations[i].PdfVersionID = e.ID
		}
	}
	if c.activeVersion == id {
		c.activeVersion = e.ID
		c.viewURL = e.FileURL
	}
	c.rekey(id, e.ID)
	c.phases[e.ID] = PhaseConfirmed
	return SaveResult{ID: e.ID, Phase: PhaseConfirmed}
}

// fallback фиксирует итог записи в кэш
func (c *Coordinator) fallback(id cache.RecordID, cacheErr error) SaveResult {
	phase := PhaseCached
	if cacheErr != nil {
		phase = PhasePending
		c.saveFailed(cacheErr)
	}

	c.mu.Lock()
	if _, ok := c.phases[id]; ok {
		c.phases[id] = phase
	}
	c.mu.Unlock()
	return SaveResult{ID: id, Phase: phase}
}

func (c *Coordinator) saveFailed(err error) {
	logger.Sugar.Errorf("[Coordinator] Save failed on server and in cache: %v", err)
	c.notify(SaveFailedMessage)
}

// cacheAnnotations целиком перезаписывает список аннотаций файла в кэше.
// Список версий дописывается, если его там ещё нет.
func (c *Coordinator) cacheAnnotations(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := cache.SaveAnnotations(ctx, c.cache, c.fileRef, c.annotations); err != nil {
		return err
	}
	if len(c.versions) == 0 {
		return nil
	}
	_, ok, err := cache.LoadVersions(ctx, c.cache, c.fileRef)
	if err != nil || ok {
		return err
	}
	return cache.SaveVersions(ctx, c.cache, c.fileRef, c.versions)
}

func (c *Coordinator) cacheVersions(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.SaveVersions(ctx, c.cache, c.fileRef, c.versions)
}

// annotationIndex вызывается под mu
func (c *Coordinator) annotationIndex(id cache.RecordID) int {
	for i := range c.annotations {
		if c.annotations[i].ID == id {
			return i
		}
	}
	return -1
}
