// Package tenant tracks the running bot instances cloned for tenant
// owners. The registry exclusively owns every running handle.
package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"botfoundry/internal/telegram"
	"botfoundry/internal/types"
)

// Instance is one running tenant bot bound to one credential and one
// owner.
type Instance struct {
	Owner     types.UserID
	Identity  telegram.Identity
	StartedAt time.Time

	token  string
	handle telegram.Instance
}

// Send relays a message through the tenant's bot.
func (i *Instance) Send(user types.UserID, text string) error {
	return i.handle.Send(user, text)
}

// Token returns the bound bot credential. Used only to compare
// replacement semantics in tests; never logged.
func (i *Instance) Token() string {
	return i.token
}

// HandlerFactory builds the update handler a new instance is started
// with, bound to its owner. Every tenant carries the same command
// surface as the master.
type HandlerFactory func(owner types.UserID) telegram.Handler

// Registry maps owner identity to its single live instance. Creation
// and replacement are serialized per owner; different owners never
// block each other.
type Registry struct {
	mu        sync.Mutex
	instances map[types.UserID]*Instance
	creating  map[types.UserID]*ownerLock

	client   telegram.Client
	handlers HandlerFactory
	log      *zap.Logger
}

// ownerLock serializes creates for one owner. refs counts holders and
// waiters so the entry can be dropped once no create is pending.
type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// New builds an empty registry.
func New(client telegram.Client, handlers HandlerFactory, log *zap.Logger) *Registry {
	return &Registry{
		instances: make(map[types.UserID]*Instance),
		creating:  make(map[types.UserID]*ownerLock),
		client:    client,
		handlers:  handlers,
		log:       log,
	}
}

// Create starts an instance for owner with the given credential. An
// existing instance for the same owner is stopped first; stop failures
// are logged and do not abort the replacement.
func (r *Registry) Create(ctx context.Context, owner types.UserID, token string) (*Instance, error) {
	lock := r.lockOwner(owner)
	defer r.unlockOwner(owner, lock)

	r.mu.Lock()
	old := r.instances[owner]
	delete(r.instances, owner)
	r.mu.Unlock()

	if old != nil {
		if err := old.handle.Stop(); err != nil {
			r.log.Error("stopping previous tenant instance",
				zap.String("owner", owner.String()), zap.Error(err))
		}
	}

	handle, err := r.client.Start(token, r.handlers(owner))
	if err != nil {
		return nil, fmt.Errorf("tenant: start instance for owner %s: %w", owner, err)
	}

	inst := &Instance{
		Owner:     owner,
		Identity:  handle.Identity(),
		StartedAt: time.Now(),
		token:     token,
		handle:    handle,
	}

	r.mu.Lock()
	r.instances[owner] = inst
	r.mu.Unlock()

	r.log.Info("tenant instance started",
		zap.String("owner", owner.String()),
		zap.String("bot", inst.Identity.Username))
	return inst, nil
}

// Get returns the live instance for owner, if any.
func (r *Registry) Get(owner types.UserID) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[owner]
	return inst, ok
}

// Owns reports whether owner has a live instance.
func (r *Registry) Owns(owner types.UserID) bool {
	_, ok := r.Get(owner)
	return ok
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// ShutdownAll stops every tracked instance concurrently and clears the
// registry. Individual failures are logged and do not stop the sweep:
// no instance may end up neither serving nor forgotten.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.mu.Lock()
	snapshot := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		snapshot = append(snapshot, inst)
	}
	r.instances = make(map[types.UserID]*Instance)
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, inst := range snapshot {
		inst := inst
		g.Go(func() error {
			if err := inst.handle.Stop(); err != nil {
				r.log.Error("stopping tenant instance at shutdown",
					zap.String("owner", inst.Owner.String()), zap.Error(err))
				return nil // best effort, keep going
			}
			r.log.Info("tenant instance stopped",
				zap.String("owner", inst.Owner.String()))
			return nil
		})
	}
	_ = g.Wait()
}

// lockOwner acquires the serialization lock for one owner.
func (r *Registry) lockOwner(owner types.UserID) *ownerLock {
	r.mu.Lock()
	lock, ok := r.creating[owner]
	if !ok {
		lock = &ownerLock{}
		r.creating[owner] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockOwner releases the lock and removes the entry once no create is
// pending for the owner.
func (r *Registry) unlockOwner(owner types.UserID, lock *ownerLock) {
	lock.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.creating, owner)
	}
}
