package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/storage"
)

type mockCapsuleStore struct {
	mock.Mock
}

func (m *mockCapsuleStore) CreateCapsule(ctx context.Context, c *model.Capsule) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCapsuleStore) ListCapsulesByOwner(ctx context.Context, ownerID string) ([]*model.Capsule, error) {
	args := m.Called(ctx, ownerID)
	capsules, _ := args.Get(0).([]*model.Capsule)
	return capsules, args.Error(1)
}

func (m *mockCapsuleStore) GetCapsuleForOwner(ctx context.Context, ownerID, id string) (*model.Capsule, error) {
	args := m.Called(ctx, ownerID, id)
	capsule, _ := args.Get(0).(*model.Capsule)
	return capsule, args.Error(1)
}

func (m *mockCapsuleStore) GetCapsuleByMedia(ctx context.Context, ownerID, ref string) (*model.Capsule, error) {
	args := m.Called(ctx, ownerID, ref)
	capsule, _ := args.Get(0).(*model.Capsule)
	return capsule, args.Error(1)
}

func (m *mockCapsuleStore) UpdateCapsule(ctx context.Context, c *model.Capsule) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCapsuleStore) DeleteCapsuleForOwner(ctx context.Context, ownerID, id string) (*model.Capsule, error) {
	args := m.Called(ctx, ownerID, id)
	capsule, _ := args.Get(0).(*model.Capsule)
	return capsule, args.Error(1)
}

type mockMediaStore struct {
	mock.Mock
}

func (m *mockMediaStore) Open(ctx context.Context, name string) (*storage.Object, error) {
	args := m.Called(ctx, name)
	obj, _ := args.Get(0).(*storage.Object)
	return obj, args.Error(1)
}

func (m *mockMediaStore) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) CreateUser(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Verify(password, encodedHash string) (bool, error) {
	args := m.Called(password, encodedHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockHasher) VerifyDummy(password string) {
	m.Called(password)
}

type mockTokenIssuer struct {
	mock.Mock
}

func (m *mockTokenIssuer) Issue(userID string) (auth.Token, error) {
	args := m.Called(userID)
	token, _ := args.Get(0).(auth.Token)
	return token, args.Error(1)
}
