package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"

	"xdao.co/didkey/did"
	"xdao.co/didkey/logger"
)

// ManagerOptions configures a Manager. The zero value is usable.
type ManagerOptions struct {
	// Name labels the backend in log lines.
	Name    string
	Logger  *logger.Logger
	Metrics *Metrics
}

// Manager drives one store through provision and initialize.
//
// A Manager is safe for concurrent use. Provision is serialized: a second
// call while one is in flight fails with ErrBusy.
type Manager struct {
	backend Backend
	name    string
	log     *logger.Logger
	metrics *Metrics

	mu    sync.Mutex
	state State
}

func NewManager(backend Backend, opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		backend: backend,
		name:    opts.Name,
		log:     log,
		metrics: opts.Metrics,
		state:   StateUnprovisioned,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle is proof that a store was provisioned by a Manager.
type Handle struct {
	m       *Manager
	cfg     Config
	outcome Outcome
}

func (h *Handle) Outcome() Outcome { return h.outcome }

// StoreID returns the id of the provisioned store.
func (h *Handle) StoreID() string { return h.cfg.ID }

func (m *Manager) begin() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateProvisioning:
		return m.state, provisionError("cannot provision", ErrBusy)
	case StateFailed:
		return m.state, provisionError("cannot provision", ErrFailed)
	}
	prev := m.state
	m.state = StateProvisioning
	return prev, nil
}

func (m *Manager) settle(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Provision creates the store described by cfg. A store that already exists
// is accepted as-is and reported through Handle.Outcome.
//
// Provision is allowed from Unprovisioned and Ready. A cancelled context
// returns the manager to the state it was in before the call. Any other
// failure leaves it Failed.
func (m *Manager) Provision(ctx context.Context, cfg Config) (*Handle, error) {
	prev, err := m.begin()
	if err != nil {
		return nil, err
	}
	// Panics propagate with the manager left Failed.
	final := StateFailed
	defer func() { m.settle(final) }()

	fields := logger.Fields{"store": cfg.ID, "backend": m.name}
	m.log.Debug("provisioning store", fields)

	if err := ctx.Err(); err != nil {
		final = prev
		m.metrics.observeProvision(outcomeCancelled)
		return nil, provisionError("provisioning cancelled", err)
	}
	if err := cfg.Validate(); err != nil {
		m.metrics.observeProvision(outcomeFailed)
		m.log.Error("store provisioning failed", fields, logger.Fields{"error": err.Error()})
		return nil, provisionError("invalid store config", err)
	}

	h := &Handle{m: m, cfg: cfg}
	perr := m.backend.Provision(ctx, cfg)
	switch {
	case perr == nil:
		h.outcome = OutcomeCreated
		m.metrics.observeProvision(outcomeCreated)
		m.log.Info("store provisioned", fields)
	case IsAlreadyExists(perr):
		h.outcome = OutcomeExisting
		m.metrics.observeProvision(outcomeExisting)
		m.log.Info("store already exists, continuing", fields)
	case ctx.Err() != nil:
		final = prev
		m.metrics.observeProvision(outcomeCancelled)
		m.log.Warn("store provisioning cancelled", fields)
		return nil, provisionError("provisioning cancelled", errors.Join(ctx.Err(), perr))
	default:
		m.metrics.observeProvision(outcomeFailed)
		m.log.Error("store provisioning failed", fields, logger.Fields{"error": perr.Error(), "code": string(CodeOf(perr))})
		return nil, provisionError("failed to provision store", perr)
	}
	final = StateReady
	return h, nil
}

// Initialize opens the store behind h. It never provisions.
func (m *Manager) Initialize(ctx context.Context, h *Handle) (*Runtime, error) {
	if h == nil || h.m != m {
		m.metrics.observeInitialize(outcomeFailed)
		return nil, initializationError("invalid handle", ErrNotProvisioned)
	}
	if s := m.State(); s != StateReady {
		m.metrics.observeInitialize(outcomeFailed)
		return nil, initializationError("store is "+s.String(), notReady(s))
	}
	fields := logger.Fields{"store": h.cfg.ID, "backend": m.name}
	store, err := m.backend.Open(ctx, h.cfg)
	if err != nil {
		m.metrics.observeInitialize(outcomeFailed)
		m.log.Error("store initialization failed", fields, logger.Fields{"error": err.Error(), "code": string(CodeOf(err))})
		return nil, initializationError("failed to open store", err)
	}
	// Provision may have run while the store was opening.
	if s := m.State(); s != StateReady {
		_ = store.Close()
		m.metrics.observeInitialize(outcomeFailed)
		m.log.Warn("store left ready state during initialization", fields, logger.Fields{"state": s.String()})
		return nil, initializationError("store is "+s.String(), notReady(s))
	}
	rt := &Runtime{
		session: uuid.NewString(),
		storeID: h.cfg.ID,
		store:   store,
		log:     m.log,
		metrics: m.metrics,
	}
	m.metrics.observeInitialize(outcomeOK)
	m.log.Info("store initialized", fields, logger.Fields{"session": rt.session})
	return rt, nil
}

func notReady(s State) error {
	if s == StateFailed {
		return ErrFailed
	}
	return ErrNotProvisioned
}

// Runtime is an opened store ready for identity creation.
type Runtime struct {
	session string
	storeID string
	store   Store
	log     *logger.Logger
	metrics *Metrics

	mu     sync.Mutex
	closed bool
}

// Session returns the random id assigned to this runtime.
func (r *Runtime) Session() string { return r.session }

func (r *Runtime) Store() Store { return r.store }

// Engine returns a synthesis engine that persists keys into the store.
// Zero fields of cfg are filled from the runtime.
func (r *Runtime) Engine(cfg did.EngineConfig) *did.Engine {
	if cfg.Keys == nil {
		cfg.Keys = r.store
	}
	if cfg.Logger == nil {
		cfg.Logger = r.log
	}
	return did.NewEngine(cfg)
}

// CreateDID synthesizes a new identity and stores its key and document.
// If the document cannot be stored the key record is removed again, so a
// failed call leaves no key behind.
func (r *Runtime) CreateDID(ctx context.Context, opts did.Options) (*did.Document, cid.Cid, error) {
	if r.isClosed() {
		return nil, cid.Undef, ErrClosed
	}
	doc, err := r.Engine(did.EngineConfig{}).Synthesize(ctx, opts)
	if err != nil {
		return nil, cid.Undef, err
	}
	id, err := r.store.PutDocument(ctx, doc)
	if err != nil {
		kid := did.SelfKeyID(doc.ID())
		if derr := r.store.DeleteKey(context.WithoutCancel(ctx), kid); derr != nil {
			r.log.Warn("orphaned key record", logger.Fields{"kid": kid.String(), "store": r.storeID, "error": derr.Error()})
			return nil, cid.Undef, errors.Join(err, derr)
		}
		return nil, cid.Undef, err
	}
	r.log.Info("created did", logger.Fields{"did": string(doc.ID()), "cid": id.String(), "store": r.storeID})
	return doc, id, nil
}

func (r *Runtime) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Shutdown closes the store. Calls after the first return nil.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.store.Close()
	r.metrics.observeShutdown()
	if err != nil {
		r.log.Warn("store close failed", logger.Fields{"store": r.storeID, "error": err.Error()})
		return err
	}
	r.log.Debug("store shut down", logger.Fields{"store": r.storeID, "session": r.session})
	return nil
}
