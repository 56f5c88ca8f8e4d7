package applink

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "intranet/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store *InMemoryStore
	svc   *Service
	ctx   context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	svc, err := NewService(s.store)
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = context.Background()
}

func (s *ServiceSuite) create(name, category string, visible bool) *AppLink {
	l, err := s.svc.Create(s.ctx, &AppLinkRequest{
		Name:     name,
		URL:      "https://" + uuid.NewString()[:8] + ".example.com",
		Category: category,
		Visible:  &visible,
	})
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) names(links []*AppLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Name
	}
	return out
}

func (s *ServiceSuite) TestCreate_AppendsAndDefaultsVisible() {
	first, err := s.svc.Create(s.ctx, &AppLinkRequest{Name: " Payroll ", URL: "https://payroll.example.com"})
	s.Require().NoError(err)
	s.Equal("Payroll", first.Name)
	s.True(first.Visible)
	s.Equal(0, first.SortOrder)

	second := s.create("Timesheets", "HR", true)
	s.Equal(1, second.SortOrder)
}

func (s *ServiceSuite) TestCreate_RejectsNonHTTPURLs() {
	for _, u := range []string{"", "ftp://files.example.com", "/relative", "javascript:alert(1)"} {
		_, err := s.svc.Create(s.ctx, &AppLinkRequest{Name: "Bad", URL: u})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), u)
	}
	_, err := s.svc.Create(s.ctx, &AppLinkRequest{Name: "Bad icon", URL: "https://ok.example.com", IconURL: "data:image/png"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestLauncher_GroupsAndOrders() {
	s.create("Zendesk", "Support", true)
	s.create("Benefits", "HR", true)
	s.create("Wiki", "", true)
	s.create("Hidden", "HR", false)
	order := 0
	_, err := s.svc.Create(s.ctx, &AppLinkRequest{Name: "Absence", URL: "https://absence.example.com", Category: "HR", SortOrder: &order})
	s.Require().NoError(err)

	groups, err := s.svc.Launcher(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 3)
	s.Equal("HR", groups[0].Category)
	s.Equal([]string{"Absence", "Benefits"}, s.names(groups[0].Links))
	s.Equal("Support", groups[1].Category)
	s.Equal(UncategorisedLabel, groups[2].Category)
	s.Equal([]string{"Wiki"}, s.names(groups[2].Links))
}

func (s *ServiceSuite) TestLauncher_SameOrderSortsByName() {
	zero := 0
	for _, name := range []string{"beta", "Alpha", "gamma"} {
		_, err := s.svc.Create(s.ctx, &AppLinkRequest{Name: name, URL: "https://x.example.com", SortOrder: &zero})
		s.Require().NoError(err)
	}
	groups, err := s.svc.Launcher(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Alpha", "beta", "gamma"}, s.names(groups[0].Links))
}

func (s *ServiceSuite) TestReorder() {
	a := s.create("A", "", true)
	b := s.create("B", "", true)
	c := s.create("C", "", true)

	links, err := s.svc.Reorder(s.ctx, []uuid.UUID{c.ID, a.ID})
	s.Require().NoError(err)
	s.Equal([]string{"C", "A", "B"}, s.names(links))
	s.Equal(2, links[2].SortOrder)
	s.Equal(b.ID, links[2].ID)

	_, err = s.svc.Reorder(s.ctx, []uuid.UUID{a.ID, a.ID})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Reorder(s.ctx, []uuid.UUID{uuid.New()})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Reorder(s.ctx, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestUpdateAndDelete() {
	l := s.create("Old", "IT", true)
	hidden := false
	updated, err := s.svc.Update(s.ctx, l.ID, &AppLinkRequest{Name: "New", URL: "https://new.example.com", Visible: &hidden})
	s.Require().NoError(err)
	s.False(updated.Visible)
	s.Equal(l.SortOrder, updated.SortOrder)

	n, err := s.store.CountVisible(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	s.Require().NoError(s.svc.Delete(s.ctx, l.ID))
	_, err = s.svc.Get(s.ctx, l.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.svc.Delete(s.ctx, l.ID), dErrors.CodeNotFound))
}
