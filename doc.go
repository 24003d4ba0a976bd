// Package jobflow implements a workflow engine for deferred,
// data-dependent computations.
//
// A Job is a suspended call to a function registered through Maker;
// its arguments may hold OutputReference values pointing at the
// not-yet-computed output of other Jobs. Jobs are composed into a
// Flow and executed by a Manager, which resolves references against a
// JobStore, invokes each Job's function once its inputs are ready,
// persists the result, and applies any dynamic directives (Detour,
// Addition, Replace, StopChildren, StopJobflow) the function's
// Response carries.
//
// The engine types themselves live in pkg/api; this package is a thin
// façade that re-exports them alongside Maker and RunLocally, the two
// entry points most callers need.
package jobflow
