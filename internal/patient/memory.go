package patient

import (
	"context"
	"sync"
)

// MemoryRepository keeps patients in a map. Safe for concurrent use.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewMemoryRepository returns a repository holding patients.
func NewMemoryRepository(patients ...Patient) *MemoryRepository {
	r := &MemoryRepository{patients: make(map[string]*Patient, len(patients))}

	for i := range patients {
		r.put(&patients[i])
	}

	return r
}

// Get returns a copy of the patient with the given ID.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[NormalizeID(id)]
	if !ok {
		return nil, ErrNotFound
	}

	return p.clone(), nil
}

// Put inserts or replaces a patient.
func (r *MemoryRepository) Put(_ context.Context, p Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.put(&p)

	return nil
}

func (r *MemoryRepository) put(p *Patient) {
	cp := p.clone()
	cp.ID = NormalizeID(cp.ID)
	r.patients[cp.ID] = cp
}
