// Package mocks provides mock implementations of the attestation use cases for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
)

// MockAttestationLog is a mock implementation of AttestationLog.
type MockAttestationLog struct {
	mock.Mock
}

// AppendEvent mocks AppendEvent.
func (m *MockAttestationLog) AppendEvent(ctx context.Context, event attestationDomain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// DailyMerkleRoot mocks DailyMerkleRoot.
func (m *MockAttestationLog) DailyMerkleRoot(ctx context.Context) (*attestationDomain.DailyMerkleRoot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attestationDomain.DailyMerkleRoot), args.Error(1)
}

// Flush mocks Flush.
func (m *MockAttestationLog) Flush(ctx context.Context) (*attestationDomain.DailyMerkleRoot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attestationDomain.DailyMerkleRoot), args.Error(1)
}

// VerifyMerkleRoot mocks VerifyMerkleRoot.
func (m *MockAttestationLog) VerifyMerkleRoot(
	ctx context.Context,
	stored *attestationDomain.DailyMerkleRoot,
	events []attestationDomain.Event,
) (bool, error) {
	args := m.Called(ctx, stored, events)
	return args.Bool(0), args.Error(1)
}

// GetRoot mocks GetRoot.
func (m *MockAttestationLog) GetRoot(
	ctx context.Context,
	date string,
	segment int,
) (*attestationDomain.DailyMerkleRoot, error) {
	args := m.Called(ctx, date, segment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attestationDomain.DailyMerkleRoot), args.Error(1)
}

// ListRoots mocks ListRoots.
func (m *MockAttestationLog) ListRoots(
	ctx context.Context,
	offset, limit int,
) ([]*attestationDomain.DailyMerkleRoot, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*attestationDomain.DailyMerkleRoot), args.Error(1)
}

// Snapshot mocks Snapshot.
func (m *MockAttestationLog) Snapshot() []attestationDomain.Event {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]attestationDomain.Event)
}

// Run mocks Run.
func (m *MockAttestationLog) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Shutdown mocks Shutdown.
func (m *MockAttestationLog) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
