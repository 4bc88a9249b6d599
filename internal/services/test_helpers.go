package services

import (
	"github.com/stretchr/testify/mock"

	"github.com/k-laffite/water-quality-visualizer/pkg/contracts/events"
)

// MockDatasetNotifier is a mock for the DatasetNotifier interface
type MockDatasetNotifier struct {
	mock.Mock
}

func (m *MockDatasetNotifier) BroadcastDatasetLoadedWithTrace(snapshot events.DatasetSnapshot, traceID string) {
	m.Called(snapshot, traceID)
}

func (m *MockDatasetNotifier) BroadcastDatasetRejectedWithTrace(rejection events.DatasetRejection, traceID string) {
	m.Called(rejection, traceID)
}
