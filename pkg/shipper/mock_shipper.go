package shipper

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bacalhau-project/piwakawaka/pkg/progress"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) PutFile(ctx context.Context, localPath, remotePath string, report progress.Func) error {
	args := m.Called(ctx, localPath, remotePath, report)
	return args.Error(0)
}

func (m *MockUploader) EnsureRemoteDir(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

type MockCommandExecutor struct {
	mock.Mock
}

func (m *MockCommandExecutor) Execute(ctx context.Context, command string, echo bool) error {
	args := m.Called(ctx, command, echo)
	return args.Error(0)
}

var (
	_ Uploader        = &MockUploader{}
	_ CommandExecutor = &MockCommandExecutor{}
)
