package publish

import (
	"os"
	"sync"
)

// Lease pins a published generation. The tree is not deleted while any
// lease on it is held.
type Lease struct {
	Generation uint64
	release    func()
}

// Release drops the lease. It is safe to call more than once.
func (l *Lease) Release() {
	if l != nil && l.release != nil {
		l.release()
	}
}

// Acquire leases the current generation.
func (p *Publisher) Acquire() *Lease {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquireLocked()
}

func (p *Publisher) acquireLocked() *Lease {
	gen := p.gen
	p.leases[gen]++
	var once sync.Once
	return &Lease{
		Generation: gen,
		release: func() {
			once.Do(func() { p.release(gen) })
		},
	}
}

func (p *Publisher) release(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.leases[gen]--
	if p.leases[gen] > 0 {
		return
	}
	delete(p.leases, gen)
	if path, ok := p.retired[gen]; ok {
		delete(p.retired, gen)
		p.removeLater(path)
	}
}

// Snapshot is a read handle on one published generation. Close releases the
// lease along with the directory handle.
type Snapshot struct {
	*os.Root
	lease *Lease
}

// Generation returns the generation the snapshot pins.
func (s *Snapshot) Generation() uint64 {
	return s.lease.Generation
}

// Close closes the root handle and releases the lease.
func (s *Snapshot) Close() error {
	err := s.Root.Close()
	s.lease.Release()
	return err
}

// Open opens the serving path and leases its generation in one step. It
// returns an error wrapping fs.ErrNotExist when nothing is published.
func (p *Publisher) Open() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	root, err := os.OpenRoot(p.root)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Root: root, lease: p.acquireLocked()}, nil
}
