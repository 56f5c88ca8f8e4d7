package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"intranet/internal/auth/models"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
	ctx   context.Context
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) newUser(email string, role models.Role) *models.User {
	u, err := models.NewUser(uuid.New(), email, "", "Operations", role, time.Now())
	s.Require().NoError(err)
	return u
}

func (s *InMemoryUserStoreSuite) TestLookupBehavior() {
	u := s.newUser("jane.doe@example.com", models.RoleStaff)
	s.Require().NoError(s.store.Create(s.ctx, u))

	s.Run("returns user by ID", func() {
		found, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(u, found)
	})

	s.Run("email lookup is case-insensitive", func() {
		found, err := s.store.FindByEmail(s.ctx, "Jane.Doe@Example.com")
		s.Require().NoError(err)
		s.Equal(u.ID, found.ID)
	})

	s.Run("missing user is ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned users are copies", func() {
		found, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		found.Name = "Mutated"
		again, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal("Jane Doe", again.Name)
	})
}

func (s *InMemoryUserStoreSuite) TestUniqueness() {
	a := s.newUser("a@example.com", models.RoleStaff)
	b := s.newUser("b@example.com", models.RoleStaff)
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NoError(s.store.Create(s.ctx, b))

	s.Run("duplicate email on create conflicts", func() {
		dup := s.newUser("A@example.com", models.RoleStaff)
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("changing email to a taken one conflicts", func() {
		b.Email = "a@example.com"
		s.ErrorIs(s.store.Update(s.ctx, b), sentinel.ErrConflict)
	})

	s.Run("changing email frees the old one", func() {
		a.Email = "a2@example.com"
		s.Require().NoError(s.store.Update(s.ctx, a))
		_, err := s.store.FindByEmail(s.ctx, "a@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryUserStoreSuite) TestCountsAndListing() {
	admin := s.newUser("admin@example.com", models.RoleAdmin)
	inactiveAdmin := s.newUser("old.admin@example.com", models.RoleAdmin)
	inactiveAdmin.Active = false
	staff := s.newUser("zoe.zulu@example.com", models.RoleStaff)
	for _, u := range []*models.User{admin, inactiveAdmin, staff} {
		s.Require().NoError(s.store.Create(s.ctx, u))
	}

	admins, err := s.store.CountActiveAdmins(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, admins)

	active, err := s.store.CountActive(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, active)

	users, total, err := s.store.List(s.ctx, models.UserFilter{Role: models.RoleAdmin}, paging.Default())
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal("Admin", users[0].Name)

	users, total, err = s.store.List(s.ctx, models.UserFilter{Query: "zulu"}, paging.Default())
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(staff.ID, users[0].ID)

	s.Require().NoError(s.store.Delete(s.ctx, staff.ID))
	s.ErrorIs(s.store.Delete(s.ctx, staff.ID), sentinel.ErrNotFound)
}
