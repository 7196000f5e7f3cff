package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/swaraj/complaints-backend/internal/core/domain"
	"github.com/swaraj/complaints-backend/internal/core/ports"
)

// MockComplaintRepository is a mock implementation of ports.ComplaintRepository
type MockComplaintRepository struct {
	mock.Mock
}

func NewMockComplaintRepository() *MockComplaintRepository {
	return &MockComplaintRepository{}
}

func (m *MockComplaintRepository) GetForEngagement(ctx context.Context, complaintID uuid.UUID) (*domain.Complaint, error) {
	args := m.Called(ctx, complaintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) SetUpvoteCount(ctx context.Context, complaintID uuid.UUID, count int) error {
	args := m.Called(ctx, complaintID, count)
	return args.Error(0)
}

// MockUpvoteRepository is a mock implementation of ports.UpvoteRepository
type MockUpvoteRepository struct {
	mock.Mock
}

func NewMockUpvoteRepository() *MockUpvoteRepository {
	return &MockUpvoteRepository{}
}

func (m *MockUpvoteRepository) Exists(ctx context.Context, userID, complaintID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, complaintID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUpvoteRepository) Insert(ctx context.Context, userID, complaintID uuid.UUID) error {
	args := m.Called(ctx, userID, complaintID)
	return args.Error(0)
}

func (m *MockUpvoteRepository) Delete(ctx context.Context, userID, complaintID uuid.UUID) error {
	args := m.Called(ctx, userID, complaintID)
	return args.Error(0)
}

func (m *MockUpvoteRepository) CountForComplaint(ctx context.Context, complaintID uuid.UUID) (int, error) {
	args := m.Called(ctx, complaintID)
	return args.Int(0), args.Error(1)
}

// MockTransactionManager is a mock implementation of ports.TransactionManager.
// It runs the callback directly against the same context so service logic can
// be exercised without a database.
type MockTransactionManager struct {
	mock.Mock
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Publish(event domain.EngagementEvent) {
	m.Called(event)
}

// MockEngagementService is a mock implementation of ports.EngagementService
type MockEngagementService struct {
	mock.Mock
}

func NewMockEngagementService() *MockEngagementService {
	return &MockEngagementService{}
}

func (m *MockEngagementService) ToggleUpvote(ctx context.Context, params ports.ToggleUpvoteParams) (*domain.UpvoteStatus, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UpvoteStatus), args.Error(1)
}

func (m *MockEngagementService) GetUpvoteStatus(ctx context.Context, params ports.UpvoteStatusParams) (*domain.UpvoteStatus, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UpvoteStatus), args.Error(1)
}
