package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/khabaroff/mockhook/src/database"
	"github.com/khabaroff/mockhook/src/repositories"
)

// DocumentStore is a mock implementation of repositories.DocumentStore.
// Without overrides it behaves like an in-memory store.
type DocumentStore struct {
	// Function stubs that can be overridden in tests
	ViewFunc   func(ctx context.Context, fn func(doc *database.Document) error) error
	UpdateFunc func(ctx context.Context, fn func(doc *database.Document) (bool, error)) error

	// Call tracking
	Calls map[string][]interface{}

	mu     sync.Mutex
	data   []byte
	writes int
}

var _ repositories.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new mock document store holding an empty document
func NewDocumentStore() *DocumentStore {
	data, _ := json.Marshal(database.NewDocument())
	return &DocumentStore{
		Calls: make(map[string][]interface{}),
		data:  data,
	}
}

func (m *DocumentStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name] = append(m.Calls[name], struct{}{})
}

// CallCount returns how many times the named method was called
func (m *DocumentStore) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls[name])
}

// Writes returns how many updates were persisted
func (m *DocumentStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *DocumentStore) View(ctx context.Context, fn func(doc *database.Document) error) error {
	m.record("View")
	if m.ViewFunc != nil {
		return m.ViewFunc(ctx, fn)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, err := m.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

func (m *DocumentStore) Update(ctx context.Context, fn func(doc *database.Document) (bool, error)) error {
	m.record("Update")
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, fn)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, err := m.load()
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.data = data
	m.writes++
	return nil
}

func (m *DocumentStore) load() (*database.Document, error) {
	doc := database.NewDocument()
	if err := json.Unmarshal(m.data, doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return doc, nil
}
