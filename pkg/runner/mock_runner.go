package runner

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

type MockCommandSession struct {
	mock.Mock
}

func (m *MockCommandSession) RunCommand(ctx context.Context, command string) (*models.CommandResult, error) {
	args := m.Called(ctx, command)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommandResult), nil
}

var _ CommandSession = &MockCommandSession{}
