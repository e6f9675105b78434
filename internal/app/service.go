package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"yunmun/api/internal/archive"
	"yunmun/api/internal/auth"
	"yunmun/api/internal/email"
	"yunmun/api/internal/export"
	"yunmun/api/internal/glossary"
	"yunmun/api/internal/rbac"
	"yunmun/api/internal/search"
	"yunmun/api/internal/store"
	"yunmun/api/internal/trackchanges"
	"yunmun/api/internal/translator"
)

// DataStore is the persistence surface the service needs. *store.Store
// satisfies it.
type DataStore interface {
	store.Reader
	WithinTx(ctx context.Context, fn func(store.Tx) error) error
	Ping(ctx context.Context) error
	ListWorks(ctx context.Context, userID string, all bool) ([]store.Work, error)
	ListChapters(ctx context.Context, workID string) ([]store.Chapter, error)
	ListContracts(ctx context.Context, workID string) ([]store.Contract, error)
	ListSnapshots(ctx context.Context, chapterID string) ([]store.Snapshot, error)
	ListActivities(ctx context.Context, workID string, limit int) ([]store.Activity, error)
	ListGlossaryTerms(ctx context.Context, workID string) ([]store.GlossaryTerm, error)
	InsertGlossaryTerm(ctx context.Context, term store.GlossaryTerm) error
	SearchChapters(ctx context.Context, workID, term string, limit int) ([]store.ChapterHit, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

type Translator interface {
	IsConfigured() bool
	Retranslate(ctx context.Context, req translator.Request) (string, error)
}

type Glossary interface {
	Terms(ctx context.Context, workID string) ([]glossary.Term, error)
	Invalidate(ctx context.Context, workID string)
}

type SearchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexChapter(rec search.ChapterRecord)
	DeleteChapter(id string)
}

type Archiver interface {
	Publish(m archive.Manuscript, author, message string) (archive.CommitInfo, error)
	Tag(workID, name string) error
	History(workID string, limit int) ([]archive.CommitInfo, error)
}

type Exporter interface {
	Export(ctx context.Context, m export.Manuscript, format export.Format) (*export.Result, error)
	Publish(ctx context.Context, m export.Manuscript, format export.Format) (export.Artifact, error)
}

type Mailer interface {
	IsConfigured() bool
	SendWorkCompleted(to string, data email.WorkCompletedData) error
	SendChapterReady(to string, data email.ChapterReadyData) error
}

type Service struct {
	store      DataStore
	translator Translator
	glossary   Glossary
	search     SearchIndex
	archive    Archiver
	exporter   Exporter
	mailer     Mailer
	policy     trackchanges.Policy
	logger     *slog.Logger
	now        func() time.Time

	background sync.WaitGroup
}

type Option func(*Service)

func WithTranslator(t Translator) Option {
	return func(s *Service) { s.translator = t }
}

func WithGlossary(g Glossary) Option {
	return func(s *Service) { s.glossary = g }
}

func WithSearch(idx SearchIndex) Option {
	return func(s *Service) { s.search = idx }
}

func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithUndecidedPolicy sets how undecided track-changes chunks resolve when a
// review is applied.
func WithUndecidedPolicy(p trackchanges.Policy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(dataStore DataStore, opts ...Option) *Service {
	s := &Service{
		store:  dataStore,
		policy: trackchanges.PolicyKeepEdit,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.glossary == nil {
		s.glossary = glossary.NewService(dataStore, nil, s.logger)
	}
	if s.search == nil {
		s.search = search.NewService(nil, dataStore, s.logger)
	}
	if s.exporter == nil {
		s.exporter = export.NewService()
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until post-commit side effects started so far have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// timestamp is the service clock at the precision the store persists.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// goBackground runs fn after the request has been answered. Failures are
// logged by fn itself.
func (s *Service) goBackground(fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		fn(ctx)
	}()
}

func requireActor(actor auth.Actor) error {
	if !actor.Authenticated() {
		return errUnauthenticated()
	}
	return nil
}

// loadWork reads the work and checks that actor may see it.
func loadWork(ctx context.Context, r store.Reader, actor auth.Actor, workID string) (store.Work, error) {
	work, err := r.GetWork(ctx, workID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Work{}, errNotFound("work")
		}
		return store.Work{}, err
	}
	if err := authorizeWork(ctx, r, actor, work); err != nil {
		return store.Work{}, err
	}
	return work, nil
}

// authorizeWork admits the work's participants. An editor holding any active
// contract on the work counts even when another editor is the assigned one.
func authorizeWork(ctx context.Context, r store.Reader, actor auth.Actor, work store.Work) error {
	if rbac.CanAccessWork(actor.UserID, actor.Role, work.Ref()) {
		return nil
	}
	if actor.Role == rbac.RoleEditor {
		_, err := r.ActiveContract(ctx, work.ID, actor.UserID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
	}
	return errForbidden("you do not have access to this work", nil)
}

func loadChapter(ctx context.Context, r store.Reader, workID string, number int) (store.Chapter, error) {
	chapter, err := r.GetChapter(ctx, workID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Chapter{}, errNotFound("chapter")
		}
		return store.Chapter{}, err
	}
	return chapter, nil
}

// requireEditableWork is loadWork plus the write predicate.
func requireEditableWork(ctx context.Context, r store.Reader, actor auth.Actor, workID string) (store.Work, error) {
	work, err := loadWork(ctx, r, actor, workID)
	if err != nil {
		return store.Work{}, err
	}
	if !rbac.CanEditWork(actor.UserID, actor.Role, work.Ref()) {
		return store.Work{}, errForbidden("only the author or an admin may change this work", nil)
	}
	return work, nil
}

func (s *Service) ListWorks(ctx context.Context, actor auth.Actor) ([]store.Work, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	works, err := s.store.ListWorks(ctx, actor.UserID, actor.Role == rbac.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if works == nil {
		works = []store.Work{}
	}
	return works, nil
}

func (s *Service) GetWork(ctx context.Context, actor auth.Actor, workID string) (store.Work, error) {
	if err := requireActor(actor); err != nil {
		return store.Work{}, err
	}
	return loadWork(ctx, s.store, actor, workID)
}

func (s *Service) ListChapters(ctx context.Context, actor auth.Actor, workID string) ([]store.Chapter, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return nil, err
	}
	return s.store.ListChapters(ctx, workID)
}

func (s *Service) GetChapter(ctx context.Context, actor auth.Actor, workID string, number int) (store.Chapter, error) {
	if err := requireActor(actor); err != nil {
		return store.Chapter{}, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return store.Chapter{}, err
	}
	return loadChapter(ctx, s.store, workID, number)
}

func (s *Service) ListActivities(ctx context.Context, actor auth.Actor, workID string, limit int) ([]store.Activity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	activities, err := s.store.ListActivities(ctx, workID, limit)
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []store.Activity{}
	}
	return activities, nil
}

func (s *Service) SearchChapters(ctx context.Context, actor auth.Actor, workID, text string, limit int) (search.Response, error) {
	if err := requireActor(actor); err != nil {
		return search.Response{}, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return search.Response{}, err
	}
	if text == "" {
		return search.Response{}, errBadRequest("query is required")
	}
	return s.search.Search(ctx, search.Query{Text: text, WorkID: workID, Limit: limit}), nil
}
