// Package coordinator согласует состояние просмотрщика PDF между сервером
// и локальным кэшем. При загрузке побеждает ровно один источник, при
// сохранении сервер пробуется первым, а кэш служит запасным вариантом.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"stargate/internal/client/api"
	"stargate/internal/client/cache"
	"stargate/internal/domain"
	"stargate/internal/logger"
)

const (
	defaultStoreTimeout = 10 * time.Second

	// SaveFailedMessage показывается, когда не сохранили ни сервер, ни кэш
	SaveFailedMessage = "could not save; changes may be lost on reload"
)

var (
	ErrDragTooSmall = errors.New("selection is smaller than 10px")
	ErrNoVersion    = errors.New("no active version loaded")
)

// Store - серверная сторона: хранилище версий и аннотаций
type Store interface {
	ListVersions(ctx context.Context, fileID int64) ([]domain.PdfVersion, error)
	CreateVersion(ctx context.Context, fileID int64, filename string, content []byte, description string) (*domain.PdfVersion, error)
	ListAnnotations(ctx context.Context, versionID int64) ([]domain.PdfAnnotation, error)
	CreateAnnotation(ctx context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error)
	UpdateAnnotation(ctx context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error)
	DeleteAnnotation(ctx context.Context, id int64) (int64, error)
	PromoteToTask(ctx context.Context, id int64) (*api.PromotionResult, error)
	ContentURL(versionID int64) string
}

// Notifier показывает пользователю неблокирующее сообщение
type Notifier func(message string)

// Phase - состояние сохранения записи
type Phase int

const (
	PhasePending Phase = iota
	PhaseConfirmed
	PhaseCached
)

func (p Phase) String() string {
	switch p {
	case PhaseConfirmed:
		return "confirmed"
	case PhaseCached:
		return "cached"
	default:
		return "pending"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Source - откуда пришло состояние при последней загрузке
type Source int

const (
	SourceNone Source = iota
	SourceStore
	SourceCache
	SourceSynthesized
)

func (s Source) String() string {
	switch s {
	case SourceStore:
		return "store"
	case SourceCache:
		return "cache"
	case SourceSynthesized:
		return "synthesized"
	default:
		return "none"
	}
}

// FileHandle - только что загруженный пользователем файл, который ещё
// может не иметь ни одной версии
type FileHandle struct {
	Name       string
	URL        string
	UploadedBy string
}

// SaveResult - итог сохранения: id записи после сохранения и её фаза
type SaveResult struct {
	ID    cache.RecordID `json:"id"`
	Phase Phase          `json:"phase"`
}

type Option func(*Coordinator)

func WithStoreTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notify = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator безопасен для конкурентного использования
type Coordinator struct {
	store   Store
	cache   cache.Adapter
	notify  Notifier
	timeout time.Duration
	now     func() time.Time

	mu            sync.Mutex
	fileRef       string
	fileID        int64
	resolved      bool
	source        Source
	versions      []cache.VersionEntry
	annotations   []cache.AnnotationEntry
	phases        map[cache.RecordID]Phase
	aliases       map[cache.RecordID]cache.RecordID
	activeVersion cache.RecordID
	viewURL       string

	locksMu sync.Mutex
	locks   map[cache.RecordID]*sync.Mutex
}

func New(store Store, adapter cache.Adapter, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		cache:   adapter,
		notify:  func(string) {},
		timeout: defaultStoreTimeout,
		now:     time.Now,
		phases:  make(map[cache.RecordID]Phase),
		aliases: make(map[cache.RecordID]cache.RecordID),
		locks:   make(map[cache.RecordID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveFileID переводит ссылку на файл в числовой id сервера.
// Всё, что не является положительным целым, неразрешимо.
func ResolveFileID(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnresolvable, ref)
	}
	return id, nil
}

// Load загружает версии и аннотации файла. Ошибки сервера не возвращаются:
// они переводят загрузку на кэш.
func (c *Coordinator) Load(ctx context.Context, ref string, handle *FileHandle) Source {
	ref = strings.TrimSpace(ref)
	fileID, err := ResolveFileID(ref)
	resolved := err == nil

	if resolved {
		if st, ok := c.loadFromStore(ctx, fileID); ok {
			c.adopt(ref, fileID, true, st)
			logger.Sugar.Infof("[Coordinator] Loaded file %s from store: %d versions, %d annotations",
				ref, len(st.versions), len(st.annotations))
			return SourceStore
		}
	}

	st := c.loadFromCache(ctx, ref, handle)
	c.adopt(ref, fileID, resolved, st)
	logger.Sugar.Infof("[Coordinator] Loaded file %s from %s: %d versions, %d annotations",
		ref, st.source, len(st.versions), len(st.annotations))
	return st.source
}

type loadState struct {
	source        Source
	versions      []cache.VersionEntry
	annotations   []cache.AnnotationEntry
	activeVersion cache.RecordID
	viewURL       string
	phase         Phase
}

func (c *Coordinator) loadFromStore(ctx context.Context, fileID int64) (*loadState, bool) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	versions, err := c.store.ListVersions(tctx, fileID)
	cancel()
	if err != nil {
		logger.Sugar.Warnf("[Coordinator] Failed to list versions of file %d, using cache: %v", fileID, err)
		return nil, false
	}
	if len(versions) == 0 {
		return nil, false
	}

	current := domain.LatestVersion(versions)

	tctx, cancel = context.WithTimeout(ctx, c.timeout)
	annotations, err := c.store.ListAnnotations(tctx, current.ID)
	cancel()
	if err != nil {
		// результаты сервера и кэша не смешиваются
		logger.Sugar.Warnf("[Coordinator] Failed to list annotations of version %d, using cache: %v", current.ID, err)
		return nil, false
	}

	st := &loadState{
		source:        SourceStore,
		activeVersion: cache.IDOf(current.ID),
		viewURL:       c.store.ContentURL(current.ID),
		phase:         PhaseConfirmed,
	}
	for _, v := range versions {
		st.versions = append(st.versions, versionEntry(v, c.store.ContentURL(v.ID)))
	}
	for _, a := range annotations {
		st.annotations = append(st.annotations, annotationEntry(a))
	}
	return st, true
}

func (c *Coordinator) loadFromCache(ctx context.Context, ref string, handle *FileHandle) *loadState {
	st := &loadState{source: SourceCache, phase: PhaseCached}

	versions, ok, err := cache.LoadVersions(ctx, c.cache, ref)
	if err != nil {
		logger.Sugar.Errorf("[Coordinator] Failed to read cached versions of %s: %v", ref, err)
	}
	if ok {
		st.versions = versions
	}

	annotations, _, err := cache.LoadAnnotations(ctx, c.cache, ref)
	if err != nil {
		logger.Sugar.Errorf("[Coordinator] Failed to read cached annotations of %s: %v", ref, err)
	}
	st.annotations = annotations

	if len(st.versions) == 0 && handle != nil {
		st.source = SourceSynthesized
		st.versions = []cache.VersionEntry{c.synthesizeVersion(handle)}
		if err := cache.SaveVersions(ctx, c.cache, ref, st.versions); err != nil {
			logger.Sugar.Errorf("[Coordinator] Failed to cache synthesized version of %s: %v", ref, err)
		}
	}

	if latest := latestEntry(st.versions); latest != nil {
		st.activeVersion = latest.ID
		st.viewURL = latest.FileURL
	}
	return st
}

func (c *Coordinator) synthesizeVersion(handle *FileHandle) cache.VersionEntry {
	return cache.VersionEntry{
		ID:            localID(),
		VersionNumber: 1,
		Filename:      handle.Name,
		FileURL:       handle.URL,
		Uploaded:      c.now().UTC(),
		UploadedBy:    handle.UploadedBy,
	}
}

func (c *Coordinator) adopt(ref string, fileID int64, resolved bool, st *loadState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fileRef = ref
	c.fileID = fileID
	c.resolved = resolved
	c.source = st.source
	c.versions = st.versions
	c.annotations = st.annotations
	c.activeVersion = st.activeVersion
	c.viewURL = st.viewURL
	c.phases = make(map[cache.RecordID]Phase, len(st.versions)+len(st.annotations))
	c.aliases = make(map[cache.RecordID]cache.RecordID)
	for _, v := range st.versions {
		c.phases[v.ID] = st.phase
	}
	for _, a := range st.annotations {
		c.phases[a.ID] = st.phase
	}
}

// Source - источник последней загрузки
func (c *Coordinator) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Versions - версии по возрастанию номера
func (c *Coordinator) Versions() []cache.VersionEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]cache.VersionEntry(nil), c.versions...)
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out
}

// Annotations - аннотации активной версии
func (c *Coordinator) Annotations() []cache.AnnotationEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []cache.AnnotationEntry{}
	for _, a := range c.annotations {
		if a.PdfVersionID == c.activeVersion {
			out = append(out, a)
		}
	}
	return out
}

func (c *Coordinator) ActiveVersionID() cache.RecordID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeVersion
}

// ViewURL - адрес содержимого активной версии для просмотрщика
func (c *Coordinator) ViewURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewURL
}

// Phase возвращает фазу записи по её текущему или прежнему локальному id
func (c *Coordinator) Phase(id cache.RecordID) (Phase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.phases[c.canonical(id)]
	return p, ok
}

// canonical следует за заменой локального id серверным. Вызывается под mu.
func (c *Coordinator) canonical(id cache.RecordID) cache.RecordID {
	for {
		next, ok := c.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
}

// lock захватывает мьютекс записи; сохранения одной аннотации идут по очереди
func (c *Coordinator) lock(id cache.RecordID) func() {
	c.mu.Lock()
	id = c.canonical(id)
	c.mu.Unlock()

	c.locksMu.Lock()
	m, ok := c.locks[id]
	if !ok {
		m = &sync.Mutex{}
		c.locks[id] = m
	}
	c.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// rekey переносит мьютекс и фазу с локального id на серверный. Вызывается под mu.
func (c *Coordinator) rekey(from, to cache.RecordID) {
	if from == to {
		return
	}
	c.aliases[from] = to
	delete(c.phases, from)

	c.locksMu.Lock()
	if m, ok := c.locks[from]; ok {
		c.locks[to] = m
	}
	c.locksMu.Unlock()
}

// forget убирает мьютексы и псевдонимы удалённой записи. Вызывается под mu.
func (c *Coordinator) forget(id cache.RecordID) {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	for from := range c.aliases {
		if c.canonical(from) == id {
			delete(c.locks, from)
			delete(c.aliases, from)
		}
	}
	delete(c.locks, id)
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func latestEntry(versions []cache.VersionEntry) *cache.VersionEntry {
	var latest *cache.VersionEntry
	for i := range versions {
		if latest == nil || versions[i].VersionNumber > latest.VersionNumber {
			latest = &versions[i]
		}
	}
	return latest
}
