// Package handlers implements the thirteen pipeline handlers that drive
// a project's lifecycle: creation, container startup, session
// bootstrap, the initial prompt, production deploys, and teardown.
//
// Each handler is a doceq.Handler: it receives a *doceq.JobContext,
// does its work against the external collaborators defined in
// collaborators.go, and on success enqueues the next job in its chain
// via an Engine helper. Handlers never talk to the store directly
// beyond what JobContext exposes; all queue mutation happens through
// Engine.
//
// Collaborators (ProjectStore, ContainerRuntime, SessionServer) are
// interfaces so tests can supply fakes instead of a real database,
// Docker daemon or HTTP session server.
package handlers
