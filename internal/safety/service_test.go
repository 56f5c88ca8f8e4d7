package safety

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"intranet/internal/auth/models"
	"intranet/internal/mail"
	"intranet/internal/safety/mocks"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
	"intranet/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserLister,Mailer

type ServiceSuite struct {
	suite.Suite
	store  *InMemoryStore
	users  *mocks.MockUserLister
	mailer *mocks.MockMailer
	svc    *Service
	ctx    context.Context
	now    time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.users = mocks.NewMockUserLister(ctrl)
	s.mailer = mocks.NewMockMailer(ctrl)
	s.store = NewInMemoryStore()
	svc, err := NewService(s.store, s.store, WithCriticalAlertMail(s.users, s.mailer, "https://intranet.example.com"))
	s.Require().NoError(err)
	s.svc = svc
	s.now = time.Date(2026, 6, 10, 7, 30, 0, 0, time.UTC)
	ctx, _ := testutil.AdminContext()
	s.ctx = requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) ptr(t time.Time) *time.Time {
	return &t
}

func (s *ServiceSuite) alert(title string, sev Severity, start time.Time, end *time.Time) *Alert {
	a, err := s.svc.CreateAlert(s.ctx, &AlertRequest{Title: title, Message: "Details", Severity: sev, StartsAt: &start, EndsAt: end})
	s.Require().NoError(err)
	return a
}

func (s *ServiceSuite) TestActiveAlerts_WindowAndOrdering() {
	s.users.EXPECT().ListActive(gomock.Any()).Return(nil, nil).AnyTimes()

	info := s.alert("Car park resurfacing", SeverityInfo, s.now.Add(-time.Hour), nil)
	critical := s.alert("Gas leak in B block", SeverityCritical, s.now.Add(-2*time.Hour), nil)
	warning := s.alert("Icy paths", SeverityWarning, s.now.Add(-30*time.Minute), s.ptr(s.now.Add(time.Hour)))
	s.alert("Future drill", SeverityInfo, s.now.Add(time.Hour), nil)
	s.alert("Expired", SeverityWarning, s.now.Add(-3*time.Hour), s.ptr(s.now.Add(-time.Minute)))
	deactivated := s.alert("Cancelled", SeverityCritical, s.now.Add(-time.Hour), nil)
	_, err := s.svc.DeactivateAlert(s.ctx, deactivated.ID)
	s.Require().NoError(err)

	alerts, err := s.svc.ActiveAlerts(s.ctx, uuid.Nil)
	s.Require().NoError(err)
	s.Require().Len(alerts, 3)
	s.Equal([]uuid.UUID{critical.ID, warning.ID, info.ID}, []uuid.UUID{alerts[0].ID, alerts[1].ID, alerts[2].ID})
}

func (s *ServiceSuite) TestCreateAlert_Validation() {
	start := s.now
	_, err := s.svc.CreateAlert(s.ctx, &AlertRequest{Title: "x", Message: "y", Severity: SeverityInfo, StartsAt: &start, EndsAt: s.ptr(start.Add(-time.Minute))})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.CreateAlert(s.ctx, &AlertRequest{Title: "x", Message: "y", Severity: "apocalyptic"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	a, err := s.svc.CreateAlert(s.ctx, &AlertRequest{Title: "x", Message: "y", Severity: "INFO"})
	s.Require().NoError(err)
	s.Equal(s.now, a.StartsAt, "start defaults to now")
	s.Equal(SeverityInfo, a.Severity)
	s.Require().NotNil(a.CreatedBy)
}

func (s *ServiceSuite) TestCreateAlert_CriticalEmailsActiveUsers() {
	users := []*models.User{
		{ID: uuid.New(), Email: "a@corp.example", Active: true},
		{ID: uuid.New(), Email: "b@corp.example", Active: true},
	}
	s.users.EXPECT().ListActive(gomock.Any()).Return(users, nil)

	var sent []mail.Message
	s.mailer.EXPECT().EnqueueWait(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg mail.Message) error {
		sent = append(sent, msg)
		return nil
	}).Times(2)

	s.alert("Evacuate site", SeverityCritical, s.now, nil)

	s.Require().Len(sent, 2)
	s.Equal([]string{"a@corp.example"}, sent[0].To)
	s.Contains(sent[0].Subject, "Evacuate site")
	s.Contains(sent[0].Text, "https://intranet.example.com/safety")
}

func (s *ServiceSuite) TestCreateAlert_NonCriticalDoesNotEmail() {
	s.alert("Wet floor", SeverityWarning, s.now, nil)
}

func (s *ServiceSuite) TestCreateAlert_MailFailuresDoNotFail() {
	s.users.EXPECT().ListActive(gomock.Any()).Return([]*models.User{{Email: "a@corp.example"}}, nil)
	s.mailer.EXPECT().EnqueueWait(gomock.Any(), gomock.Any()).Return(errors.New("queue full"))
	s.alert("Fire", SeverityCritical, s.now, nil)

	s.users.EXPECT().ListActive(gomock.Any()).Return(nil, errors.New("db down"))
	s.alert("Flood", SeverityCritical, s.now, nil)
}

func (s *ServiceSuite) TestAcknowledgeAlert() {
	a := s.alert("Noise", SeverityInfo, s.now.Add(-time.Minute), nil)
	userID := uuid.New()

	s.Require().NoError(s.svc.AcknowledgeAlert(s.ctx, userID, a.ID))
	s.Require().NoError(s.svc.AcknowledgeAlert(s.ctx, userID, a.ID))

	n, err := s.svc.AlertAcknowledgementCount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	alerts, err := s.svc.ActiveAlerts(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.True(alerts[0].Acknowledged)

	others, err := s.svc.ActiveAlerts(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.False(others[0].Acknowledged)

	future := s.alert("Later", SeverityInfo, s.now.Add(time.Hour), nil)
	err = s.svc.AcknowledgeAlert(s.ctx, userID, future.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	err = s.svc.AcknowledgeAlert(s.ctx, userID, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateAndDeleteAlert() {
	a := s.alert("Old", SeverityInfo, s.now.Add(-time.Hour), nil)

	updated, err := s.svc.UpdateAlert(s.ctx, a.ID, &AlertRequest{Title: "New", Message: "m", Severity: SeverityWarning})
	s.Require().NoError(err)
	s.Equal("New", updated.Title)
	s.Equal(a.StartsAt, updated.StartsAt, "start is kept when omitted")

	_, err = s.svc.UpdateAlert(s.ctx, a.ID, &AlertRequest{Title: "New", Message: "m", Severity: SeverityWarning, EndsAt: s.ptr(s.now.Add(-2 * time.Hour))})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.svc.DeleteAlert(s.ctx, a.ID))
	s.True(dErrors.HasCode(s.svc.DeleteAlert(s.ctx, a.ID), dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTalks() {
	talk := func(title, topic string, day int, published bool) *Talk {
		t, err := s.svc.CreateTalk(s.ctx, &TalkRequest{
			Title:     title,
			Topic:     topic,
			Body:      "Always wear **gloves**.",
			TalkDate:  time.Date(2026, 6, day, 8, 0, 0, 0, time.UTC),
			Published: published,
		})
		s.Require().NoError(err)
		return t
	}
	gloves := talk("Hand safety", "PPE", 1, true)
	ladders := talk("Ladder use", "Working at height", 5, true)
	draft := talk("Forklifts", "Vehicles", 9, false)

	s.Contains(gloves.BodyHTML, "<strong>gloves</strong>")
	s.NotEmpty(gloves.Summary)

	latest, err := s.svc.LatestTalk(s.ctx)
	s.Require().NoError(err)
	s.Equal(ladders.ID, latest.ID)

	list, err := s.svc.ListTalks(s.ctx, "", paging.Default())
	s.Require().NoError(err)
	s.Equal(2, list.Total)

	byTopic, err := s.svc.ListTalks(s.ctx, "ppe", paging.Default())
	s.Require().NoError(err)
	s.Equal(1, byTopic.Total)

	all, err := s.svc.ListAllTalks(s.ctx, "", paging.Default())
	s.Require().NoError(err)
	s.Equal(3, all.Total)

	_, err = s.svc.GetTalk(s.ctx, draft.ID, false)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.svc.GetTalk(s.ctx, draft.ID, true)
	s.Require().NoError(err)

	_, err = s.svc.CreateTalk(s.ctx, &TalkRequest{Title: "No date"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.svc.DeleteTalk(s.ctx, gloves.ID))
	_, err = s.svc.UpdateTalk(s.ctx, gloves.ID, &TalkRequest{Title: "x", TalkDate: s.now})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLatestTalk_None() {
	latest, err := s.svc.LatestTalk(s.ctx)
	s.Require().NoError(err)
	s.Nil(latest)
}

func (s *ServiceSuite) TestAlertsBySeverity() {
	s.users.EXPECT().ListActive(gomock.Any()).Return(nil, nil)
	s.alert("a", SeverityInfo, s.now, nil)
	s.alert("b", SeverityInfo, s.now, nil)
	s.alert("c", SeverityCritical, s.now, nil)

	counts, err := s.store.AlertsBySeverity(s.ctx)
	s.Require().NoError(err)
	s.Equal([]SeverityCount{
		{Severity: SeverityCritical, Count: 1},
		{Severity: SeverityWarning, Count: 0},
		{Severity: SeverityInfo, Count: 2},
	}, counts)
}

type countingSender struct {
	sent atomic.Int32
}

func (c *countingSender) Send(context.Context, mail.Message) error {
	c.sent.Add(1)
	return nil
}

type staticUsers []*models.User

func (u staticUsers) ListActive(context.Context) ([]*models.User, error) {
	return u, nil
}

func TestCriticalAlertReachesMoreUsersThanQueueCapacity(t *testing.T) {
	const recipients = 300
	users := make(staticUsers, recipients)
	for i := range users {
		users[i] = &models.User{ID: uuid.New(), Email: fmt.Sprintf("user%d@corp.example", i), Active: true}
	}
	sender := &countingSender{}
	queue := mail.NewQueue(sender, mail.WithCapacity(256), mail.WithRetries(0, time.Millisecond))
	queue.Start(context.Background())

	store := NewInMemoryStore()
	svc, err := NewService(store, store, WithCriticalAlertMail(users, queue, "https://intranet.example.com"))
	require.NoError(t, err)

	ctx, _ := testutil.AdminContext()
	_, err = svc.CreateAlert(ctx, &AlertRequest{Title: "Evacuate", Message: "Now", Severity: SeverityCritical})
	require.NoError(t, err)

	queue.Close()
	assert.Equal(t, int32(recipients), sender.sent.Load())
}

func TestCriticalAlertFanOutSurvivesRequestCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserLister(ctrl)
	mailer := mocks.NewMockMailer(ctrl)
	store := NewInMemoryStore()
	svc, err := NewService(store, store, WithCriticalAlertMail(users, mailer, "https://intranet.example.com"))
	require.NoError(t, err)

	base, _ := testutil.AdminContext()
	ctx, cancel := context.WithCancel(base)
	users.EXPECT().ListActive(gomock.Any()).Return([]*models.User{{Email: "a@corp.example"}, {Email: "b@corp.example"}}, nil)
	mailer.EXPECT().EnqueueWait(gomock.Any(), gomock.Any()).DoAndReturn(func(c context.Context, _ mail.Message) error {
		cancel()
		return c.Err()
	}).Times(2)

	_, err = svc.CreateAlert(ctx, &AlertRequest{Title: "Flood", Message: "Basement", Severity: SeverityCritical})
	require.NoError(t, err)
}
