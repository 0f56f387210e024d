package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/mail"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlanStore keeps plans in memory. Methods the tests never reach fall
// through to the nil embedded interface and panic.
type fakePlanStore struct {
	PlanStore

	mu        sync.Mutex
	plans     map[int64]*model.HousePlan
	nextID    int64
	seq       int
	views     map[int64]int64
	viewErr   error
	related   []*model.HousePlan
	codeTaken map[string]bool
}

func newFakePlanStore(plans ...*model.HousePlan) *fakePlanStore {
	s := &fakePlanStore{
		plans:     make(map[int64]*model.HousePlan),
		views:     make(map[int64]int64),
		codeTaken: make(map[string]bool),
	}
	for _, p := range plans {
		if p.ID > s.nextID {
			s.nextID = p.ID
		}
		s.plans[p.ID] = p
	}
	return s
}

func (s *fakePlanStore) Create(ctx context.Context, plan *model.HousePlan, categoryIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Slug == plan.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	s.nextID++
	plan.ID = s.nextID
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *fakePlanStore) Update(ctx context.Context, plan *model.HousePlan, categoryIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *fakePlanStore) GetByID(ctx context.Context, id int64) (*model.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePlanStore) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*model.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Slug == slug && (!publishedOnly || p.IsPublished) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakePlanStore) GetByPublicCode(ctx context.Context, code string) (*model.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.PublicPlanCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakePlanStore) FindByGumroadPermalink(ctx context.Context, permalink string) (*model.HousePlan, model.Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		switch permalink {
		case GumroadPermalink(p.GumroadPack2URL):
			return p, model.PackPro, nil
		case GumroadPermalink(p.GumroadPack3URL):
			return p, model.PackUltimate, nil
		}
	}
	return nil, 0, repository.ErrNotFound
}

func (s *fakePlanStore) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakePlanStore) PublicCodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeTaken[code] {
		return true, nil
	}
	for _, p := range s.plans {
		if p.PublicPlanCode == code && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakePlanStore) NextReferenceSequence(ctx context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *fakePlanStore) SetPublicCode(ctx context.Context, id int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PublicPlanCode = code
	return nil
}

func (s *fakePlanStore) ListMissingPublicCodes(ctx context.Context) ([]*model.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HousePlan
	for _, p := range s.plans {
		if p.PublicPlanCode == "" {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakePlanStore) SetPublished(ctx context.Context, id int64, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.IsPublished = published
	return nil
}

func (s *fakePlanStore) IncrementViews(ctx context.Context, id int64, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewErr != nil {
		return s.viewErr
	}
	s.views[id] += n
	return nil
}

func (s *fakePlanStore) List(ctx context.Context, filter repository.PlanFilter) (*repository.PlanPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &repository.PlanPage{Page: filter.Page.Number, PerPage: filter.Page.PerPage}
	for _, p := range s.plans {
		if filter.PublishedOnly && !p.IsPublished {
			continue
		}
		cp := *p
		page.Plans = append(page.Plans, &cp)
	}
	sort.Slice(page.Plans, func(i, j int) bool { return page.Plans[i].ID < page.Plans[j].ID })
	page.Total = int64(len(page.Plans))
	return page, nil
}

func (s *fakePlanStore) Related(ctx context.Context, plan *model.HousePlan, n int) ([]*model.HousePlan, error) {
	return s.related, nil
}

func (s *fakePlanStore) AllPublishedSlugs(ctx context.Context) ([]repository.PlanSlug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.PlanSlug
	for _, p := range s.plans {
		if p.IsPublished {
			out = append(out, repository.PlanSlug{Slug: p.Slug, UpdatedAt: p.UpdatedAt})
		}
	}
	return out, nil
}

func (s *fakePlanStore) get(id int64) *model.HousePlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plans[id]
}

// fakePlanCache is an in-memory PlanCache and ViewCounter.
type fakePlanCache struct {
	mu          sync.Mutex
	plans       map[string]*model.HousePlan
	negative    map[string]bool
	views       map[int64]int64
	invalidated []string
	drainErr    error
}

func newFakePlanCache() *fakePlanCache {
	return &fakePlanCache{
		plans:    make(map[string]*model.HousePlan),
		negative: make(map[string]bool),
		views:    make(map[int64]int64),
	}
}

func (c *fakePlanCache) GetPlan(ctx context.Context, slug string) (*model.HousePlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.plans[slug]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *p
	return &cp, nil
}

func (c *fakePlanCache) SetPlan(ctx context.Context, plan *model.HousePlan, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *plan
	c.plans[plan.Slug] = &cp
	return nil
}

func (c *fakePlanCache) InvalidatePlan(ctx context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.plans, slug)
	delete(c.negative, slug)
	c.invalidated = append(c.invalidated, slug)
	return nil
}

func (c *fakePlanCache) IsNegativelyCached(ctx context.Context, slug string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negative[slug], nil
}

func (c *fakePlanCache) SetNegativeCache(ctx context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[slug] = true
	return nil
}

func (c *fakePlanCache) IncrementViews(ctx context.Context, planID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[planID]++
	return nil
}

func (c *fakePlanCache) DrainViews(ctx context.Context) (map[int64]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drainErr != nil {
		return nil, c.drainErr
	}
	out := c.views
	c.views = make(map[int64]int64)
	return out, nil
}

func (c *fakePlanCache) RestoreViews(ctx context.Context, counts map[int64]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, n := range counts {
		c.views[id] += n
	}
	return nil
}

type fakeCategoryStore struct {
	CategoryStore
	categories []*model.Category
}

func (s *fakeCategoryStore) List(ctx context.Context) ([]*model.Category, error) {
	return s.categories, nil
}

type fakeFAQStore struct {
	FAQStore
	faqs map[int64][]*model.PlanFAQ
}

func (s *fakeFAQStore) ListByPlan(ctx context.Context, planID int64) ([]*model.PlanFAQ, error) {
	return s.faqs[planID], nil
}

type staticVisibility model.PackVisibility

func (v staticVisibility) PackVisibility(ctx context.Context) model.PackVisibility {
	return model.PackVisibility(v).Normalize()
}

type fakeContactStore struct {
	ContactStore

	mu       sync.Mutex
	messages map[int64]*model.ContactMessage
	nextID   int64
	updates  int
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{messages: make(map[int64]*model.ContactMessage)}
}

func (s *fakeContactStore) Create(ctx context.Context, m *model.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *fakeContactStore) Get(ctx context.Context, id int64) (*model.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeContactStore) Update(ctx context.Context, m *model.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *m
	s.messages[m.ID] = &cp
	s.updates++
	return nil
}

func (s *fakeContactStore) StatusCounts(ctx context.Context) (map[model.MessageStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.MessageStatus]int64)
	for _, m := range s.messages {
		out[m.Status]++
	}
	return out, nil
}

// recordingSender captures sent mail and fails the first failFirst sends.
type recordingSender struct {
	mu        sync.Mutex
	sent      []mail.Message
	failFirst int
}

func (s *recordingSender) Send(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst > 0 {
		s.failFirst--
		return errors.New("smtp: connection refused")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeOrderStore struct {
	OrderStore

	mu     sync.Mutex
	orders map[string]*model.Order
	nextID int64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*model.Order)}
}

func (s *fakeOrderStore) Create(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := o.PaymentMethod + ":" + o.TransactionID
	if _, ok := s.orders[key]; ok {
		return repository.ErrDuplicateTransaction
	}
	s.nextID++
	o.ID = s.nextID
	cp := *o
	s.orders[key] = &cp
	return nil
}

func (s *fakeOrderStore) GetByTransaction(ctx context.Context, method, transactionID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[method+":"+transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			o.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type fakeUserStore struct {
	UserStore

	mu    sync.Mutex
	users map[int64]*model.User
}

func (s *fakeUserStore) find(match func(*model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) Create(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicateUser
		}
	}
	u.ID = int64(len(s.users) + 1)
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.ID == id })
}

func (s *fakeUserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.Username == username })
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.Email == email })
}

func (s *fakeUserStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (s *fakeUserStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*cache.Session
	touched  int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*cache.Session)}
}

func (s *fakeSessionStore) CreateSession(ctx context.Context, userID int64, csrfToken string, ttl time.Duration) (*cache.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "session-" + csrfToken[:8]
	session := &cache.Session{Token: token, UserID: userID, CSRFToken: csrfToken, CreatedAt: time.Now().UTC()}
	s.sessions[token] = session
	return session, nil
}

func (s *fakeSessionStore) GetSession(ctx context.Context, token string) (*cache.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, cache.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) TouchSession(ctx context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched++
	return nil
}

func (s *fakeSessionStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
