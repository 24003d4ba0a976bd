package api

// ManagerOption configures a Manager at construction time. The concrete
// Manager lives in internal/engine; the option type is declared here so
// both internal/engine and user code share one vocabulary.
type ManagerOption func(*ManagerConfig)

// ManagerConfig collects the options a Manager accepts, decoupled from
// the Manager struct itself so internal/engine can embed it without
// pkg/api importing internal/engine.
type ManagerConfig struct {
	Observer   Observer
	Workers    int
	OnMissing  OnMissing
	StoreNames map[string]string
}

// DefaultManagerConfig returns the configuration a Manager uses when no
// options are supplied: sequential execution, a NoopObserver, and
// OnMissing set to OnMissingError.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		Observer:  NoopObserver{},
		Workers:   1,
		OnMissing: OnMissingError,
	}
}

// WithObserver attaches an Observer to the Manager.
func WithObserver(o Observer) ManagerOption {
	return func(c *ManagerConfig) { c.Observer = o }
}

// WithWorkerPool sets the worker count in ManagerConfig. RunLocally reads
// it: n > 1 runs the bounded-parallel Manager with n concurrent workers,
// n <= 1 the sequential one. A Manager built directly with engine.New
// ignores it.
func WithWorkerPool(n int) ManagerOption {
	return func(c *ManagerConfig) { c.Workers = n }
}

// WithOnMissing records m in ManagerConfig.OnMissing. The Manager does not
// read that field: a Job that references a uuid the store has no record
// for always fails with a ReferenceResolutionError.
func WithOnMissing(m OnMissing) ManagerOption {
	return func(c *ManagerConfig) { c.OnMissing = m }
}

// WithDefaultStoreNames sets the store-routing table applied to Jobs that
// don't declare their own StoreNames.
func WithDefaultStoreNames(names map[string]string) ManagerOption {
	return func(c *ManagerConfig) { c.StoreNames = names }
}
