//go:build tools
// +build tools

// Package tools documents development tool dependencies for the agent API.
// Tools run through `go run` or a global `go install`; none are tracked in go.mod.
package tools

// mockgen - gomock doubles for the ports in internal/core
//   Regenerate: go generate ./internal/mocks
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//
// Air - live reload while iterating on the HTTP surface
//   Install: go install github.com/air-verse/air@v1.63.0
//   Run:     DEV=true AGENT_API_BASE=http://localhost:7788 air -- ./cmd/agent-api
