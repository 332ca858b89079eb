package user

import (
	"context"
	"errors"
	"testing"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/platform/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUserRepository is a mock type for user.Repository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) FindWithStats(ctx context.Context, email string) (*WithStats, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WithStats), args.Error(1)
}

func (m *MockUserRepository) ListWithStats(ctx context.Context, search string, offset, limit int) ([]WithStats, error) {
	args := m.Called(ctx, search, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]WithStats), args.Error(1)
}

func (m *MockUserRepository) CountMatching(ctx context.Context, search string) (int64, error) {
	args := m.Called(ctx, search)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) TopSellers(ctx context.Context, n int) ([]WithStats, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]WithStats), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, email string, changes map[string]interface{}) error {
	args := m.Called(ctx, email, changes)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockListings is a mock type for user.Listings
type MockListings struct {
	mock.Mock
}

func (m *MockListings) DeleteSellerProducts(ctx context.Context, sellerEmail string) (int64, error) {
	args := m.Called(ctx, sellerEmail)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListings) ReindexSeller(ctx context.Context, sellerEmail string) error {
	args := m.Called(ctx, sellerEmail)
	return args.Error(0)
}

func newTestService(repo Repository) *ServiceImplementation {
	return newTestServiceWithListings(repo, nil)
}

func newTestServiceWithListings(repo Repository, listings Listings) *ServiceImplementation {
	cfg := &config.Config{UsersPerPage: 10}
	return NewService(repo, listings, common.NewValidator(), cfg, zap.NewNop())
}

func storedUser(t *testing.T, email, password string, role common.Role) *User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	return &User{Email: email, FirstName: "Alice", LastName: "Smith", Gender: GenderFemale, Password: hash, Role: role}
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:     "  Alice@Example.COM ",
		FirstName: "Alice",
		LastName:  "Smith",
		Gender:    GenderFemale,
		Password:  "s3cret-pass",
	}
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes email, hashes password, defaults role", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("Create", ctx, mock.MatchedBy(func(u *User) bool {
			ok, _ := crypto.CheckPassword(u.Password, "s3cret-pass")
			return u.Email == "alice@example.com" && u.Role == common.RoleUser && ok
		})).Return(nil).Once()

		u, err := newTestService(repo).Register(ctx, validRegistration())
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", u.Email)
		assert.NotEqual(t, "s3cret-pass", u.Password)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("Create", ctx, mock.Anything).Return(common.ErrAlreadyExists).Once()

		_, err := newTestService(repo).Register(ctx, validRegistration())
		assert.ErrorIs(t, err, common.ErrAlreadyExists)
	})

	t.Run("validation failures never reach the repository", func(t *testing.T) {
		cases := map[string]func(r *RegisterRequest){
			"bad email":      func(r *RegisterRequest) { r.Email = "not-an-email" },
			"short password": func(r *RegisterRequest) { r.Password = "short" },
			"bad gender":     func(r *RegisterRequest) { r.Gender = "robot" },
			"bad role":       func(r *RegisterRequest) { r.Role = "root" },
			"missing name":   func(r *RegisterRequest) { r.FirstName = "" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				repo := new(MockUserRepository)
				req := validRegistration()
				mutate(&req)

				_, err := newTestService(repo).Register(ctx, req)
				assert.ErrorIs(t, err, common.ErrValidation)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			})
		}
	})
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	repo.On("FindByEmail", ctx, "alice@example.com").Return(storedUser(t, "alice@example.com", "s3cret-pass", common.RoleUser), nil)
	repo.On("FindByEmail", ctx, "ghost@example.com").Return(nil, common.ErrNotFound)
	svc := newTestService(repo)

	u, err := svc.Authenticate(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "ghost@example.com", "whatever1")
	require.ErrorIs(t, err, common.ErrNotFound)
	appErr, ok := common.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "User does not exist.", appErr.Details)
}

func TestUserService_ListUsersWithStats(t *testing.T) {
	ctx := context.Background()
	admin := common.Actor{Email: "admin@example.com", Role: common.RoleAdmin}

	t.Run("admin only", func(t *testing.T) {
		repo := new(MockUserRepository)
		_, _, err := newTestService(repo).ListUsersWithStats(ctx, common.Actor{Email: "bob@example.com", Role: common.RoleUser}, ListUsersRequest{})
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		repo.AssertNotCalled(t, "CountMatching", mock.Anything, mock.Anything)
	})

	t.Run("paginates with configured page size", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("CountMatching", ctx, "ali").Return(int64(23), nil).Once()
		repo.On("ListWithStats", ctx, "ali", 20, 10).Return([]WithStats{{User: User{Email: "alice@example.com"}}}, nil).Once()

		rows, page, err := newTestService(repo).ListUsersWithStats(ctx, admin, ListUsersRequest{Search: "ali", Page: 3})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, int64(23), page.TotalItems)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 3, page.CurrentPage)
		repo.AssertExpectations(t)
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	actor := common.Actor{Email: "alice@example.com", Role: common.RoleUser}
	newEmail := "Alice.New@Example.com"
	newName := "Alicia"

	t.Run("renames after verifying password", func(t *testing.T) {
		repo := new(MockUserRepository)
		listings := new(MockListings)
		listings.On("ReindexSeller", ctx, "alice.new@example.com").Return(nil).Once()
		repo.On("FindByEmail", ctx, "alice@example.com").Return(storedUser(t, "alice@example.com", "s3cret-pass", common.RoleUser), nil).Once()
		repo.On("Update", ctx, "alice@example.com", map[string]interface{}{
			"email":      "alice.new@example.com",
			"first_name": "Alicia",
		}).Return(nil).Once()
		repo.On("FindByEmail", ctx, "alice.new@example.com").Return(&User{Email: "alice.new@example.com", FirstName: "Alicia"}, nil).Once()

		u, err := newTestServiceWithListings(repo, listings).UpdateProfile(ctx, actor, UpdateProfileRequest{
			CurrentPassword: "s3cret-pass",
			NewEmail:        &newEmail,
			FirstName:       &newName,
		})
		require.NoError(t, err)
		assert.Equal(t, "alice.new@example.com", u.Email)
		repo.AssertExpectations(t)
		listings.AssertExpectations(t)
	})

	t.Run("name change keeps the index as is", func(t *testing.T) {
		repo := new(MockUserRepository)
		listings := new(MockListings)
		repo.On("FindByEmail", ctx, "alice@example.com").Return(storedUser(t, "alice@example.com", "s3cret-pass", common.RoleUser), nil)
		repo.On("Update", ctx, "alice@example.com", map[string]interface{}{"first_name": "Alicia"}).Return(nil).Once()

		_, err := newTestServiceWithListings(repo, listings).UpdateProfile(ctx, actor, UpdateProfileRequest{CurrentPassword: "s3cret-pass", FirstName: &newName})
		require.NoError(t, err)
		listings.AssertNotCalled(t, "ReindexSeller", mock.Anything, mock.Anything)
	})

	t.Run("re-index failure does not fail the rename", func(t *testing.T) {
		repo := new(MockUserRepository)
		listings := new(MockListings)
		listings.On("ReindexSeller", ctx, "alice.new@example.com").Return(errors.New("cluster unavailable")).Once()
		repo.On("FindByEmail", ctx, "alice@example.com").Return(storedUser(t, "alice@example.com", "s3cret-pass", common.RoleUser), nil).Once()
		repo.On("Update", ctx, "alice@example.com", map[string]interface{}{"email": "alice.new@example.com"}).Return(nil).Once()
		repo.On("FindByEmail", ctx, "alice.new@example.com").Return(&User{Email: "alice.new@example.com"}, nil).Once()

		_, err := newTestServiceWithListings(repo, listings).UpdateProfile(ctx, actor, UpdateProfileRequest{CurrentPassword: "s3cret-pass", NewEmail: &newEmail})
		require.NoError(t, err)
		listings.AssertExpectations(t)
	})

	t.Run("wrong current password", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("FindByEmail", ctx, "alice@example.com").Return(storedUser(t, "alice@example.com", "s3cret-pass", common.RoleUser), nil).Once()

		_, err := newTestService(repo).UpdateProfile(ctx, actor, UpdateProfileRequest{CurrentPassword: "nope-nope", FirstName: &newName})
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("email taken", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("FindByEmail", ctx, "alice@example.com").Return(storedUser(t, "alice@example.com", "s3cret-pass", common.RoleUser), nil).Once()
		repo.On("Update", ctx, "alice@example.com", mock.Anything).Return(common.ErrAlreadyExists).Once()

		_, err := newTestService(repo).UpdateProfile(ctx, actor, UpdateProfileRequest{CurrentPassword: "s3cret-pass", NewEmail: &newEmail})
		require.ErrorIs(t, err, common.ErrAlreadyExists)
		appErr, _ := common.AsError(err)
		assert.Equal(t, "Email is already taken.", appErr.Details)
	})
}

func TestUserService_AdminUpdateUser(t *testing.T) {
	ctx := context.Background()
	role := "admin"

	repo := new(MockUserRepository)
	_, err := newTestService(repo).AdminUpdateUser(ctx, common.Actor{Email: "bob@example.com", Role: common.RoleUser}, "alice@example.com", AdminUpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	listings := new(MockListings)
	repo.On("FindByEmail", ctx, "alice@example.com").Return(&User{Email: "alice@example.com"}, nil)
	repo.On("Update", ctx, "alice@example.com", map[string]interface{}{"role": "admin"}).Return(nil).Once()
	_, err = newTestServiceWithListings(repo, listings).AdminUpdateUser(ctx, common.Actor{Email: "root@example.com", Role: common.RoleAdmin}, "alice@example.com", AdminUpdateUserRequest{Role: &role})
	require.NoError(t, err)
	repo.AssertExpectations(t)
	listings.AssertNotCalled(t, "ReindexSeller", mock.Anything, mock.Anything)

	renamed := "ally@example.com"
	repo.On("Update", ctx, "alice@example.com", map[string]interface{}{"email": "ally@example.com"}).Return(nil).Once()
	repo.On("FindByEmail", ctx, "ally@example.com").Return(&User{Email: "ally@example.com"}, nil).Once()
	listings.On("ReindexSeller", ctx, "ally@example.com").Return(nil).Once()
	_, err = newTestServiceWithListings(repo, listings).AdminUpdateUser(ctx, common.Actor{Email: "root@example.com", Role: common.RoleAdmin}, "alice@example.com", AdminUpdateUserRequest{NewEmail: &renamed})
	require.NoError(t, err)
	listings.AssertExpectations(t)
}

func TestUserService_DeleteUser(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   common.Actor
		target  string
		findErr error
		wantErr error
	}{
		{name: "self", actor: common.Actor{Email: "alice@example.com"}, target: "Alice@example.com"},
		{name: "admin", actor: common.Actor{Email: "root@example.com", Role: common.RoleAdmin}, target: "alice@example.com"},
		{name: "stranger", actor: common.Actor{Email: "bob@example.com"}, target: "alice@example.com", wantErr: common.ErrUnauthorized},
		{name: "missing", actor: common.Actor{Email: "root@example.com", Role: common.RoleAdmin}, target: "ghost@example.com", findErr: common.ErrNotFound, wantErr: common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			listings := new(MockListings)
			if tt.findErr != nil {
				repo.On("FindByEmail", ctx, tt.target).Return(nil, tt.findErr).Maybe()
			} else {
				repo.On("FindByEmail", ctx, tt.target).Return(&User{Email: "alice@example.com"}, nil).Maybe()
			}
			listings.On("DeleteSellerProducts", ctx, "alice@example.com").Return(int64(2), nil).Maybe()
			repo.On("Delete", ctx, tt.target).Return(nil).Maybe()

			err := newTestServiceWithListings(repo, listings).DeleteUser(ctx, tt.actor, tt.target)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				listings.AssertNotCalled(t, "DeleteSellerProducts", mock.Anything, mock.Anything)
				repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
				return
			}
			assert.NoError(t, err)
			listings.AssertCalled(t, "DeleteSellerProducts", ctx, "alice@example.com")
			repo.AssertCalled(t, "Delete", ctx, tt.target)
		})
	}

	t.Run("products go before the account", func(t *testing.T) {
		repo := new(MockUserRepository)
		listings := new(MockListings)
		var order []string
		repo.On("FindByEmail", ctx, "alice@example.com").Return(&User{Email: "alice@example.com"}, nil)
		listings.On("DeleteSellerProducts", ctx, "alice@example.com").Return(int64(1), nil).
			Run(func(mock.Arguments) { order = append(order, "products") }).Once()
		repo.On("Delete", ctx, "alice@example.com").Return(nil).
			Run(func(mock.Arguments) { order = append(order, "user") }).Once()

		require.NoError(t, newTestServiceWithListings(repo, listings).DeleteUser(ctx, common.Actor{Email: "alice@example.com"}, "alice@example.com"))
		assert.Equal(t, []string{"products", "user"}, order)
	})

	t.Run("product cleanup failure keeps the account", func(t *testing.T) {
		repo := new(MockUserRepository)
		listings := new(MockListings)
		repo.On("FindByEmail", ctx, "alice@example.com").Return(&User{Email: "alice@example.com"}, nil)
		listings.On("DeleteSellerProducts", ctx, "alice@example.com").Return(int64(0), common.ErrStorage).Once()

		err := newTestServiceWithListings(repo, listings).DeleteUser(ctx, common.Actor{Email: "alice@example.com"}, "alice@example.com")
		assert.ErrorIs(t, err, common.ErrStorage)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestUserService_IsAdmin(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	repo.On("FindByEmail", ctx, "root@example.com").Return(&User{Email: "root@example.com", Role: common.RoleAdmin}, nil)
	repo.On("FindByEmail", ctx, "alice@example.com").Return(&User{Email: "alice@example.com", Role: common.RoleUser}, nil)
	svc := newTestService(repo)

	isAdmin, err := svc.IsAdmin(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = svc.IsAdmin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}
