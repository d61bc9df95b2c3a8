package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
)

// MockClientRepository is a mock implementation of domain.ClientRepository
type MockClientRepository struct {
	mu       sync.Mutex
	Clients  map[int32]*domain.Client
	NextID   int32
	GetAllFn func() ([]*domain.Client, error)
}

// NewMockClientRepository creates a new MockClientRepository
func NewMockClientRepository() *MockClientRepository {
	return &MockClientRepository{
		Clients: make(map[int32]*domain.Client),
		NextID:  1,
	}
}

// Create stores a new client and assigns its ID
func (m *MockClientRepository) Create(client *domain.Client) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client.ID = m.NextID
	m.NextID++
	client.CreatedAt = time.Now()
	client.UpdatedAt = client.CreatedAt
	m.Clients[client.ID] = client
	return client, nil
}

// GetByID retrieves a client by ID
func (m *MockClientRepository) GetByID(id int32) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.Clients[id]; ok {
		return client, nil
	}
	return nil, domain.ErrClientNotFound
}

// GetAll returns clients ordered by ID
func (m *MockClientRepository) GetAll() ([]*domain.Client, error) {
	if m.GetAllFn != nil {
		return m.GetAllFn()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.Client, 0, len(m.Clients))
	for _, c := range m.Clients {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateRisk stores a new risk score and level
func (m *MockClientRepository) UpdateRisk(id int32, score float64, level domain.RiskLevel) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.Clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	client.RiskScore = score
	client.RiskLevel = level
	client.UpdatedAt = time.Now()
	return client, nil
}

// SetCNICDocumentKey stores the object key of the client's CNIC scan
func (m *MockClientRepository) SetCNICDocumentKey(id int32, key string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.Clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	client.CNICDocumentKey = &key
	return client, nil
}

// AddClient adds a client to the mock repository (helper for tests)
func (m *MockClientRepository) AddClient(client *domain.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Clients[client.ID] = client
	if client.ID >= m.NextID {
		m.NextID = client.ID + 1
	}
}

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	mu       sync.Mutex
	Loans    map[int32]*domain.Loan
	NextID   int32
	CreateFn func(loan *domain.Loan) (*domain.Loan, error)
	GetAllFn func(filter domain.LoanFilter) ([]*domain.Loan, error)
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans:  make(map[int32]*domain.Loan),
		NextID: 1,
	}
}

// Create stores the loan with its fees and installments
func (m *MockLoanRepository) Create(loan *domain.Loan) (*domain.Loan, error) {
	if m.CreateFn != nil {
		return m.CreateFn(loan)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loan.ID = m.NextID
	m.NextID++
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = loan.CreatedAt
	m.Loans[loan.ID] = loan
	return loan, nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(id int32) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if loan, ok := m.Loans[id]; ok {
		return loan, nil
	}
	return nil, domain.ErrLoanNotFound
}

// GetAll returns loans matching the filter ordered by ID
func (m *MockLoanRepository) GetAll(filter domain.LoanFilter) ([]*domain.Loan, error) {
	if m.GetAllFn != nil {
		return m.GetAllFn(filter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.Loan, 0, len(m.Loans))
	for _, loan := range m.Loans {
		if filter.Status != "" && loan.Status != filter.Status {
			continue
		}
		if filter.ClientID != 0 && loan.ClientID != filter.ClientID {
			continue
		}
		result = append(result, loan)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateStatus changes a loan's status
func (m *MockLoanRepository) UpdateStatus(id int32, status domain.LoanStatus) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	loan.Status = status
	loan.UpdatedAt = time.Now()
	return loan, nil
}

// AddLoan adds a loan to the mock repository (helper for tests)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Loans[loan.ID] = loan
	if loan.ID >= m.NextID {
		m.NextID = loan.ID + 1
	}
}

// MockSessionRepository is a mock implementation of domain.SessionRepository.
// It stores copies so tests observe only what was saved.
type MockSessionRepository struct {
	mu       sync.Mutex
	Sessions map[string]domain.FormSession
	SaveErr  error
	Saves    int
}

// NewMockSessionRepository creates a new MockSessionRepository
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[string]domain.FormSession),
	}
}

func copySession(s domain.FormSession) domain.FormSession {
	fees := make([]domain.Fee, len(s.Fees))
	copy(fees, s.Fees)
	s.Fees = fees
	return s
}

// Get returns a copy of the stored session
func (m *MockSessionRepository) Get(id string) (*domain.FormSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.Sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := copySession(s)
	return &c, nil
}

// Save stores a copy of the session
func (m *MockSessionRepository) Save(session *domain.FormSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.Sessions[session.ID] = copySession(*session)
	return nil
}

// Delete removes a session
func (m *MockSessionRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.Sessions, id)
	return nil
}

// MockTextGenerator is a mock text-generation provider that counts calls
type MockTextGenerator struct {
	mu       sync.Mutex
	Response string
	Err      error
	// Block makes Generate wait until the context is done
	Block   bool
	calls   int
	prompts []string
}

// Generate records the prompt and returns the configured response
func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns how many times Generate was invoked
func (m *MockTextGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, empty if none
func (m *MockTextGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// MockResponseCache is an in-memory response cache
type MockResponseCache struct {
	mu      sync.Mutex
	Entries map[string]string
	GetErr  error
}

// NewMockResponseCache creates a new MockResponseCache
func NewMockResponseCache() *MockResponseCache {
	return &MockResponseCache{Entries: make(map[string]string)}
}

func cacheKey(model, prompt string) string {
	return model + "\x00" + prompt
}

// Get returns a cached response
func (m *MockResponseCache) Get(ctx context.Context, model, prompt string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.Entries[cacheKey(model, prompt)]
	return v, ok, nil
}

// Set stores a response
func (m *MockResponseCache) Set(ctx context.Context, model, prompt, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Entries[cacheKey(model, prompt)] = response
	return nil
}

// MockRiskScorer returns a fixed score, or blocks until cancelled
type MockRiskScorer struct {
	mu    sync.Mutex
	Score float64
	Err   error
	Block bool
	// Started is closed on the first call when set, so tests can wait for an in-flight request
	Started chan struct{}
	calls   int
}

// ComputeRiskScore implements the risk scorer contract
func (m *MockRiskScorer) ComputeRiskScore(ctx context.Context, client *domain.Client) (float64, error) {
	m.mu.Lock()
	m.calls++
	if m.calls == 1 && m.Started != nil {
		close(m.Started)
	}
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Score, nil
}

// Calls returns how many times ComputeRiskScore was invoked
func (m *MockRiskScorer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// PublishedEvent is one event captured by MockEventPublisher
type PublishedEvent struct {
	Topic string
	Event websocket.Event
}

// MockEventPublisher captures published events and closed topics
type MockEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	closed []string
}

// CloseTopic records the topic
func (m *MockEventPublisher) CloseTopic(topic, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, topic)
	return 0
}

// ClosedTopics returns the topics closed so far
func (m *MockEventPublisher) ClosedTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

// Publish records the event
func (m *MockEventPublisher) Publish(topic string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Topic: topic, Event: event})
}

// Events returns a copy of the captured events
func (m *MockEventPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the event types in publish order
func (m *MockEventPublisher) Types() []string {
	events := m.Events()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Event.Type
	}
	return types
}

// MockObjectRepository stores objects in memory
type MockObjectRepository struct {
	mu           sync.Mutex
	Objects      map[string][]byte
	ContentTypes map[string]string
	UploadErr    error
	// FailAfter makes uploads fail once this many have succeeded (0 disables)
	FailAfter int
	uploads   int
	Deleted   []string
}

// NewMockObjectRepository creates a new MockObjectRepository
func NewMockObjectRepository() *MockObjectRepository {
	return &MockObjectRepository{
		Objects:      make(map[string][]byte),
		ContentTypes: make(map[string]string),
	}
}

// Upload stores the object and returns its key
func (m *MockObjectRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	if m.FailAfter > 0 && m.uploads >= m.FailAfter {
		return "", fmt.Errorf("upload %d rejected", m.uploads+1)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}
	m.uploads++
	m.Objects[objectPath] = buf.Bytes()
	m.ContentTypes[objectPath] = contentType
	return objectPath, nil
}

// Delete removes an object
func (m *MockObjectRepository) Delete(ctx context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Objects, objectPath)
	delete(m.ContentTypes, objectPath)
	m.Deleted = append(m.Deleted, objectPath)
	return nil
}

// PresignedURL returns a fake signed link
func (m *MockObjectRepository) PresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s?expires=%d", objectPath, int(expiry.Seconds())), nil
}

// Keys returns the stored object keys in sorted order
func (m *MockObjectRepository) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.Objects))
	for k := range m.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
