// Package engine provides the asynchronous workflow execution engine.
// Submit classifies, routes and plans a task synchronously, then runs the
// planned steps in dependency order in a goroutine, resolving a backend for
// each step's platform. Every state change is published to per-workflow
// subscribers, and finished workflows are appended to the store.
package engine
