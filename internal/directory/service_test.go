package directory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
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
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) add(req EmployeeRequest) *Employee {
	e, err := s.svc.Create(s.ctx, &req)
	s.Require().NoError(err)
	return e
}

func (s *ServiceSuite) TestCreate_DerivesNames() {
	e := s.add(EmployeeRequest{Email: " Jane.Doe@Corp.Example "})
	s.Equal("jane.doe@corp.example", e.Email)
	s.Equal("Jane", e.FirstName)
	s.Equal("Doe", e.LastName)
	s.True(e.Active)

	single := s.add(EmployeeRequest{Email: "reception@corp.example"})
	s.Equal("Reception", single.FirstName)
	s.Empty(single.LastName)
}

func (s *ServiceSuite) TestCreate_Errors() {
	s.add(EmployeeRequest{Email: "a@corp.example"})

	_, err := s.svc.Create(s.ctx, &EmployeeRequest{Email: "A@corp.example"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.Create(s.ctx, &EmployeeRequest{Email: "not-an-email"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	missing := uuid.New()
	_, err = s.svc.Create(s.ctx, &EmployeeRequest{Email: "b@corp.example", ManagerID: &missing})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSearch_ActiveSortedByName() {
	inactive := false
	s.add(EmployeeRequest{FirstName: "Zoe", LastName: "Adams", Email: "zoe@corp.example", Department: "Finance"})
	s.add(EmployeeRequest{FirstName: "Amy", LastName: "Adams", Email: "amy@corp.example", Department: "IT", Location: "Leeds"})
	s.add(EmployeeRequest{FirstName: "Bob", LastName: "Brown", Email: "bob@corp.example", Department: "IT"})
	s.add(EmployeeRequest{FirstName: "Gone", LastName: "Aaron", Email: "gone@corp.example", Active: &inactive})

	result, err := s.svc.Search(s.ctx, Filter{}, paging.Default())
	s.Require().NoError(err)
	s.Require().Equal(3, result.Total)
	s.Equal([]string{"Amy Adams", "Zoe Adams", "Bob Brown"}, []string{
		result.Items[0].FullName(), result.Items[1].FullName(), result.Items[2].FullName(),
	})

	byDept, err := s.svc.Search(s.ctx, Filter{Department: "it"}, paging.Default())
	s.Require().NoError(err)
	s.Equal(2, byDept.Total)

	byLocation, err := s.svc.Search(s.ctx, Filter{Location: "LEEDS"}, paging.Default())
	s.Require().NoError(err)
	s.Equal(1, byLocation.Total)

	byQuery, err := s.svc.Search(s.ctx, Filter{Query: "bob"}, paging.Default())
	s.Require().NoError(err)
	s.Equal(1, byQuery.Total)

	all, err := s.svc.List(s.ctx, Filter{}, paging.Default())
	s.Require().NoError(err)
	s.Equal(4, all.Total)

	deps, err := s.svc.Departments(s.ctx)
	s.Require().NoError(err)
	s.Equal([]DepartmentCount{{Name: "Finance", Count: 1}, {Name: "IT", Count: 2}}, deps)
}

func (s *ServiceSuite) TestManagers() {
	boss := s.add(EmployeeRequest{FirstName: "Boss", Email: "boss@corp.example"})
	lead := s.add(EmployeeRequest{FirstName: "Lead", Email: "lead@corp.example", ManagerID: &boss.ID})
	dev := s.add(EmployeeRequest{FirstName: "Dev", Email: "dev@corp.example", ManagerID: &lead.ID})

	reports, err := s.svc.DirectReports(s.ctx, boss.ID)
	s.Require().NoError(err)
	s.Require().Len(reports, 1)
	s.Equal(lead.ID, reports[0].ID)

	s.Run("cycle rejected", func() {
		_, err := s.svc.Update(s.ctx, boss.ID, &EmployeeRequest{Email: boss.Email, ManagerID: &dev.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("self rejected", func() {
		_, err := s.svc.Update(s.ctx, dev.ID, &EmployeeRequest{Email: dev.Email, ManagerID: &dev.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("delete detaches reports", func() {
		s.Require().NoError(s.svc.Delete(s.ctx, lead.ID))
		got, err := s.svc.Get(s.ctx, dev.ID)
		s.Require().NoError(err)
		s.Nil(got.ManagerID)
	})

	_, err = s.svc.DirectReports(s.ctx, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestImport() {
	existing := s.add(EmployeeRequest{FirstName: "Old", LastName: "Name", Email: "carol@corp.example", Phone: "111"})

	csvData := strings.Join([]string{
		"\ufeffFirst Name,Surname,Email,Department,Manager,Active",
		"Alice,Smith,alice@corp.example,IT,carol@corp.example,yes",
		"Carol,Jones,CAROL@corp.example,Finance,,",
		",,dave.king@corp.example,IT,alice@corp.example,",
		"Bad,Row,not-an-email,IT,,",
		"Dup,Alice,alice@corp.example,IT,,",
		"Eve,Stone,eve@corp.example,IT,nobody@corp.example,",
		"Flag,Bad,flag@corp.example,IT,,maybe",
		",,,,,",
	}, "\n")

	report, err := s.svc.Import(s.ctx, strings.NewReader(csvData))
	s.Require().NoError(err)

	s.Equal(3, report.Created)
	s.Equal(1, report.Updated)
	s.Equal(3, report.Skipped)
	s.Require().Len(report.Errors, 4)
	s.Equal(5, report.Errors[0].Line)
	s.Equal(6, report.Errors[1].Line)
	s.Contains(report.Errors[1].Message, "duplicate of line 2")
	s.Equal(8, report.Errors[2].Line)
	s.Equal(7, report.Errors[3].Line)
	s.Contains(report.Errors[3].Message, "nobody@corp.example")

	carol, err := s.svc.Get(s.ctx, existing.ID)
	s.Require().NoError(err)
	s.Equal("Carol", carol.FirstName)
	s.Equal("Finance", carol.Department)
	s.Empty(carol.Phone, "import replaces the whole record")

	alice, err := s.store.FindByEmail(s.ctx, "alice@corp.example")
	s.Require().NoError(err)
	s.Require().NotNil(alice.ManagerID)
	s.Equal(existing.ID, *alice.ManagerID)

	dave, err := s.store.FindByEmail(s.ctx, "dave.king@corp.example")
	s.Require().NoError(err)
	s.Equal("Dave", dave.FirstName)
	s.Equal("King", dave.LastName)
	s.Require().NotNil(dave.ManagerID)
	s.Equal(alice.ID, *dave.ManagerID)
}

func (s *ServiceSuite) TestImport_BadHeader() {
	_, err := s.svc.Import(s.ctx, strings.NewReader("name,phone\nA,1\n"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Import(s.ctx, strings.NewReader(""))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
