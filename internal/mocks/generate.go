// Package mocks provides gomock implementations of the ports in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	exec := mocks.NewMockExecutor(ctrl)
//	exec.EXPECT().Execute(gomock.Any(), "task", gomock.Any()).Return(model.Success(nil))
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=executor_mock.go github.com/target/mmk-agent-api/internal/core Executor
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=artifact_store_mock.go github.com/target/mmk-agent-api/internal/core ArtifactStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_archive_mock.go github.com/target/mmk-agent-api/internal/core JobArchive
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=agent_params_source_mock.go github.com/target/mmk-agent-api/internal/core AgentParamsSource
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatcher_mock.go github.com/target/mmk-agent-api/internal/core Dispatcher
