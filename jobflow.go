package jobflow

import "github.com/jobflow-io/jobflow/pkg/api"

// Type aliases so callers can write jobflow.Job, jobflow.Flow, etc.
// without importing pkg/api directly.
type (
	Job             = api.Job
	Flow            = api.Flow
	Node            = api.Node
	Response        = api.Response
	OutputReference = api.OutputReference
	JobStore        = api.JobStore
	Store           = api.Store
	Record          = api.Record
	Filter          = api.Filter
	Registry        = api.Registry
	Handler         = api.Handler
	Schema          = api.Schema
	Kind            = api.Kind
	Observer        = api.Observer
	Report          = api.Report
	Outcome         = api.Outcome
	JobStatus       = api.JobStatus
	OnMissing       = api.OnMissing
	JobOption       = api.JobOption
	ManagerOption   = api.ManagerOption
)

const (
	StatusDone      = api.StatusDone
	StatusCancelled = api.StatusCancelled
	StatusFailed    = api.StatusFailed

	OnMissingError = api.OnMissingError
	OnMissingNone  = api.OnMissingNone
	OnMissingPass  = api.OnMissingPass

	KindAny    = api.KindAny
	KindString = api.KindString
	KindNumber = api.KindNumber
	KindBool   = api.KindBool
	KindMap    = api.KindMap
	KindSlice  = api.KindSlice
)

var (
	NewFlow            = api.NewFlow
	NewJob             = api.NewJob
	NewResponse        = api.NewResponse
	NewOutputReference = api.NewOutputReference
	NewRegistry        = api.NewRegistry
	DefaultRegistry    = api.DefaultRegistry

	WithName          = api.WithName
	WithOutputSchema  = api.WithOutputSchema
	WithJobStoreNames = api.WithStoreNames
	WithMetadata      = api.WithMetadata
	WithRegistry      = api.WithRegistry

	WithObserver           = api.WithObserver
	WithWorkerPool         = api.WithWorkerPool
	WithOnMissing          = api.WithOnMissing
	WithDefaultStoreNames  = api.WithDefaultStoreNames

	NewNoopObserver      = func() Observer { return api.NoopObserver{} }
	NewCompositeObserver = api.NewCompositeObserver
	NewLoggingObserver   = api.NewLoggingObserver
	NewBasicMetrics      = func() *api.BasicMetrics { return &api.BasicMetrics{} }
)
