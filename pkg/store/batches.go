package store

import (
	"sort"
	"strconv"
	"sync"

	"github.com/kfsoftware/agritrace/pkg/batch"
	"github.com/kfsoftware/agritrace/pkg/failure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const BatchesKey = "batches"

// Document is the single logical record holding every batch and the
// document-wide inspection trail.
type Document struct {
	NextID     int                       `json:"next_id" yaml:"next_id"`
	Batches    []*batch.Batch            `json:"batches" yaml:"batches"`
	Conditions []*batch.InspectionRecord `json:"conditions" yaml:"conditions"`
}

// BatchStore serializes every read-modify-write of the document through one
// commit lock. Concurrent updates therefore never interleave, whichever
// identifiers they touch.
type BatchStore struct {
	mu      sync.Mutex
	backend Backend
}

func NewBatchStore(backend Backend) *BatchStore {
	return &BatchStore{backend: backend}
}

func (s *BatchStore) load() (*Document, error) {
	doc := &Document{}
	err := s.backend.Load(BatchesKey, doc)
	if errors.Is(err, ErrNotFound) {
		doc = &Document{}
	} else if err != nil {
		return nil, failure.Storage(err, "could not read batch document")
	}
	if doc.Batches == nil {
		doc.Batches = []*batch.Batch{}
	}
	if doc.Conditions == nil {
		doc.Conditions = []*batch.InspectionRecord{}
	}
	if doc.NextID <= len(doc.Batches) {
		doc.NextID = len(doc.Batches) + 1
	}
	// identifiers are never reused, even for documents written elsewhere
	for _, b := range doc.Batches {
		if key := int(batch.SortKey(b.ID)); key >= doc.NextID {
			doc.NextID = key + 1
		}
	}
	return doc, nil
}

func (s *BatchStore) commit(doc *Document) error {
	err := s.backend.Save(BatchesKey, doc)
	if err != nil {
		log.Errorf("Failed to persist batch document: %v", err)
		return failure.Storage(err, "could not write batch document")
	}
	return nil
}

func (d *Document) find(id string) (*batch.Batch, bool) {
	for _, b := range d.Batches {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// Create assigns the next dense identifier to the batch and persists it.
func (s *BatchStore) Create(b *batch.Batch) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	created := b.Clone()
	created.ID = strconv.Itoa(doc.NextID)
	doc.NextID++
	doc.Batches = append(doc.Batches, created)
	err = s.commit(doc)
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

func (s *BatchStore) Get(id string) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	b, ok := doc.find(id)
	if !ok {
		return nil, failure.NotFound("Batch %s not found", id)
	}
	return b.Clone(), nil
}

// Update applies the mutator to the stored batch and persists the document.
// Nothing is written when the mutator fails.
func (s *BatchStore) Update(id string, mutate func(*batch.Batch) error) (*batch.Batch, error) {
	return s.Record(id, nil, mutate)
}

// Record appends an inspection record to the batch history and to the
// document trail, then applies the mutator, all in one commit.
func (s *BatchStore) Record(id string, rec *batch.InspectionRecord, mutate func(*batch.Batch) error) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	b, ok := doc.find(id)
	if !ok {
		return nil, failure.NotFound("Batch %s not found", id)
	}
	if mutate != nil {
		err = mutate(b)
		if err != nil {
			return nil, err
		}
	}
	if rec != nil {
		b.History = append(b.History, rec.Clone())
		doc.Conditions = append(doc.Conditions, rec.Clone())
	}
	err = s.commit(doc)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// List returns every batch ordered by the numeric portion of its identifier.
func (s *BatchStore) List() ([]*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	batches := make([]*batch.Batch, 0, len(doc.Batches))
	for _, b := range doc.Batches {
		batches = append(batches, b.Clone())
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return batch.SortKey(batches[i].ID) < batch.SortKey(batches[j].ID)
	})
	return batches, nil
}

func (s *BatchStore) Conditions() ([]*batch.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	records := make([]*batch.InspectionRecord, 0, len(doc.Conditions))
	for _, rec := range doc.Conditions {
		records = append(records, rec.Clone())
	}
	return records, nil
}
