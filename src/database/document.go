package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/khabaroff/mockhook/src/models"
)

// ErrCorruptDocument indicates the backing store holds unparseable data
var ErrCorruptDocument = errors.New("corrupt document")

// Document is the single persisted unit shared by every store.
// Items live inside their owning instance; the top-level items map is
// kept for layout compatibility and is always written back empty.
type Document struct {
	Items     map[string]*models.Item         `json:"items"`
	Instances map[string]*models.Instance     `json:"instances"`
	Logs      map[string][]models.WebhookLog `json:"logs"`
}

// NewDocument returns a document with empty collections
func NewDocument() *Document {
	return &Document{
		Items:     make(map[string]*models.Item),
		Instances: make(map[string]*models.Instance),
		Logs:      make(map[string][]models.WebhookLog),
	}
}

// Normalize fills nil collections left by older or hand-edited documents
func (d *Document) Normalize() {
	if d.Items == nil {
		d.Items = make(map[string]*models.Item)
	}
	if d.Instances == nil {
		d.Instances = make(map[string]*models.Instance)
	}
	if d.Logs == nil {
		d.Logs = make(map[string][]models.WebhookLog)
	}
	for id, inst := range d.Instances {
		if inst == nil {
			delete(d.Instances, id)
			continue
		}
		if inst.Items == nil {
			inst.Items = []models.Item{}
		}
	}
}

// decodeDocument parses raw bytes; empty input yields an empty document
func decodeDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	doc.Normalize()
	return doc, nil
}

func encodeDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		doc = NewDocument()
	}
	doc.Normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}
