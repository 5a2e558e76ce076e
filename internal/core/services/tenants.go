package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// maxClosedRetries bounds how often a writer re-resolves a tenant that
// was wiped while it waited for the write lock.
const maxClosedRetries = 3

// Partition holds one tenant's catalog and indices.
//
// writeMu serialises mutations, including their slow embedding step.
// viewMu guards the catalog and indices: queries hold it shared and a
// mutation takes it exclusively only to commit.
type Partition struct {
	tenant string

	writeMu sync.Mutex
	viewMu  sync.RWMutex

	catalog *Catalog
	lexical driven.LexicalIndex
	vectors driven.VectorIndex
	nextSeq uint64
	closed  bool
}

// Tenant returns the tenant identifier of the partition.
func (p *Partition) Tenant() string {
	return p.tenant
}

// load populates the catalog from the store and rebuilds both indices.
// Callers must hold viewMu exclusively or own the partition privately.
func (p *Partition) load(ctx context.Context) error {
	chunks, err := p.catalog.Load(ctx)
	if err != nil {
		return err
	}

	p.lexical.Reset()
	p.vectors.Reset()
	p.nextSeq = 1
	for _, chunk := range chunks {
		if chunk.Seq >= p.nextSeq {
			p.nextSeq = chunk.Seq + 1
		}
	}

	if err := p.lexical.Index(ctx, chunks); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}
	for i := range chunks {
		if err := p.vectors.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
			return fmt.Errorf("rebuild vector index: %w", err)
		}
	}
	return p.verify()
}

// verify compares index sizes against the catalog.
func (p *Partition) verify() error {
	want := p.catalog.ChunkCount()
	if got := p.lexical.Len(); got != want {
		return fmt.Errorf("%w: lexical index has %d chunks, store has %d", domain.ErrIndexCorrupt, got, want)
	}
	if got := p.vectors.Len(); got != want {
		return fmt.Errorf("%w: vector index has %d chunks, store has %d", domain.ErrIndexCorrupt, got, want)
	}
	return nil
}

// TenantRegistry resolves tenant identifiers to their partitions.
// Partitions are loaded lazily on first use and discarded on wipe.
// There is no global lock on the data path; the registry mutex only
// guards the partition map.
type TenantRegistry struct {
	store   driven.DocumentStore
	indexes driven.IndexFactory

	mu    sync.Mutex
	slots map[string]*slot
}

// slot is a partition that is loading or loaded.
type slot struct {
	ready chan struct{}
	p     *Partition
	err   error
}

// NewTenantRegistry creates an empty registry.
func NewTenantRegistry(store driven.DocumentStore, indexes driven.IndexFactory) *TenantRegistry {
	return &TenantRegistry{
		store:   store,
		indexes: indexes,
		slots:   make(map[string]*slot),
	}
}

// validateTenant rejects blank tenant identifiers. Others are used verbatim.
func validateTenant(tenant string) error {
	if strings.TrimSpace(tenant) == "" {
		return fmt.Errorf("%w: tenant is required", domain.ErrValidation)
	}
	return nil
}

// Get returns the tenant's partition, loading it on first use.
// Concurrent callers for the same tenant share one load.
func (r *TenantRegistry) Get(ctx context.Context, tenant string) (*Partition, error) {
	if err := validateTenant(tenant); err != nil {
		return nil, err
	}

	r.mu.Lock()
	s, ok := r.slots[tenant]
	if !ok {
		s = &slot{ready: make(chan struct{})}
		r.slots[tenant] = s
		r.mu.Unlock()

		s.p, s.err = r.open(ctx, tenant)
		if s.err != nil {
			r.mu.Lock()
			if r.slots[tenant] == s {
				delete(r.slots, tenant)
			}
			r.mu.Unlock()
		}
		close(s.ready)
		return s.p, s.err
	}
	r.mu.Unlock()

	select {
	case <-s.ready:
		return s.p, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// open builds and loads a partition. An index that disagrees with the
// store after loading is rebuilt once before giving up.
func (r *TenantRegistry) open(ctx context.Context, tenant string) (*Partition, error) {
	logger.Debug("Opening tenant %s", tenant)

	p := r.newPartition(tenant)
	err := p.load(ctx)
	if errors.Is(err, domain.ErrIndexCorrupt) {
		logger.Warn("Tenant %s: %v; rebuilding", tenant, err)
		err = p.load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant, err)
	}

	logger.Debug("Tenant %s ready: %d documents, %d chunks",
		tenant, p.catalog.DocumentCount(), p.catalog.ChunkCount())
	return p, nil
}

func (r *TenantRegistry) newPartition(tenant string) *Partition {
	lexical := r.indexes.NewLexicalIndex()
	vectors := r.indexes.NewVectorIndex()
	return &Partition{
		tenant:  tenant,
		lexical: lexical,
		vectors: vectors,
		catalog: NewCatalog(tenant, r.store, lexicalObserver{index: lexical}, vectorObserver{index: vectors}),
		nextSeq: 1,
	}
}

// lockWrite returns the tenant's partition with writeMu held.
// A partition wiped while the caller waited is replaced by a fresh one.
func (r *TenantRegistry) lockWrite(ctx context.Context, tenant string) (*Partition, func(), error) {
	for range maxClosedRetries {
		p, err := r.Get(ctx, tenant)
		if err != nil {
			return nil, nil, err
		}
		p.writeMu.Lock()
		if !p.closed {
			return p, p.writeMu.Unlock, nil
		}
		p.writeMu.Unlock()
	}
	return nil, nil, fmt.Errorf("tenant %s: %w", tenant, domain.ErrTenantClosed)
}

// Rebuild discards the tenant's indices and rebuilds them from the store.
func (r *TenantRegistry) Rebuild(ctx context.Context, tenant string) error {
	p, unlock, err := r.lockWrite(ctx, tenant)
	if err != nil {
		return err
	}
	defer unlock()

	p.viewMu.Lock()
	defer p.viewMu.Unlock()

	logger.Info("Rebuilding indices of tenant %s", tenant)
	if err := p.load(ctx); err != nil {
		// The indices may be half built; the next Get reopens from the store.
		r.discard(p)
		return fmt.Errorf("rebuild tenant %s: %w", tenant, err)
	}
	return nil
}

// Wipe deletes every document of the tenant and drops its partition.
// Writers waiting on the old partition re-resolve to a fresh one;
// readers still holding it see an empty collection.
func (r *TenantRegistry) Wipe(ctx context.Context, tenant string) (int, error) {
	p, unlock, err := r.lockWrite(ctx, tenant)
	if err != nil {
		return 0, err
	}
	defer unlock()

	p.viewMu.Lock()
	defer p.viewMu.Unlock()

	n, err := r.store.DeleteTenant(ctx, tenant)
	if err != nil {
		return 0, fmt.Errorf("wipe tenant %s: %w", tenant, err)
	}

	r.discard(p)
	return n, nil
}

// discard empties and closes p and removes it from the registry.
// Callers must hold p.writeMu and p.viewMu exclusively.
func (r *TenantRegistry) discard(p *Partition) {
	p.closed = true
	p.catalog.Forget()
	p.lexical.Reset()
	p.vectors.Reset()

	r.mu.Lock()
	if s, ok := r.slots[p.tenant]; ok && s.p == p {
		delete(r.slots, p.tenant)
	}
	r.mu.Unlock()
}

// Tenants lists tenants known to the store.
func (r *TenantRegistry) Tenants(ctx context.Context) ([]string, error) {
	tenants, err := r.store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}
