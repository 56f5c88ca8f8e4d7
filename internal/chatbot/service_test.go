package chatbot

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

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) ObserveChatQuery(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	metrics *recordingMetrics
	svc     *Service
	noon    context.Context
	morning context.Context
	userID  uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.metrics = &recordingMetrics{}
	svc, err := NewService(s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.svc = svc
	s.userID = uuid.New()
	s.noon = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	s.morning = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) faq(req FAQRequest) *FAQ {
	f, err := s.svc.CreateFAQ(s.noon, &req)
	s.Require().NoError(err)
	return f
}

func (s *ServiceSuite) seed() (leave, password, canteen *FAQ) {
	leave = s.faq(FAQRequest{
		Question: "How many days of annual leave do I get?",
		Answer:   "Full-time staff get 25 days plus bank holidays.",
		Keywords: []string{"Annual Leave", "holiday", " holiday "},
		Category: "HR",
	})
	password = s.faq(FAQRequest{
		Question: "How do I reset my password?",
		Answer:   "Use the self-service portal or call the IT desk on 4000.",
		Keywords: []string{"password", "login"},
		Category: "IT",
	})
	canteen = s.faq(FAQRequest{
		Question:  "Where is the canteen menu?",
		Answer:    "Today's menu is on the screen by reception.",
		Keywords:  []string{"lunch", "canteen"},
		Condition: "hour >= 11 && hour < 14",
	})
	return leave, password, canteen
}

func (s *ServiceSuite) TestAsk_Matches() {
	leave, _, _ := s.seed()
	s.Equal([]string{"annual leave", "holiday"}, leave.Keywords)

	reply, err := s.svc.Ask(s.noon, s.userID, "How much annual leave do I have?")
	s.Require().NoError(err)
	s.True(reply.Matched)
	s.Equal(leave.Answer, reply.Answer)
	s.Require().NotNil(reply.FAQID)
	s.Equal(leave.ID, *reply.FAQID)
	s.Equal(4, reply.Score)

	got, err := s.svc.GetFAQ(s.noon, leave.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Hits)
	s.Equal([]string{"answered"}, s.metrics.outcomes)
}

func (s *ServiceSuite) TestAsk_ConditionGatesFAQ() {
	_, _, canteen := s.seed()

	reply, err := s.svc.Ask(s.noon, s.userID, "what's for lunch")
	s.Require().NoError(err)
	s.True(reply.Matched)
	s.Equal(canteen.ID, *reply.FAQID)

	reply, err = s.svc.Ask(s.morning, s.userID, "what's for lunch")
	s.Require().NoError(err)
	s.False(reply.Matched)
	s.Equal(fallbackReply, reply.Answer)
	s.Len(reply.Suggestions, 3)
}

func (s *ServiceSuite) TestAsk_BelowThresholdSuggestsPartialMatchFirst() {
	_, _, canteen := s.seed()

	reply, err := s.svc.Ask(s.noon, uuid.Nil, "menu")
	s.Require().NoError(err)
	s.False(reply.Matched)
	s.Nil(reply.FAQID)
	s.Require().NotEmpty(reply.Suggestions)
	s.Equal(canteen.ID, reply.Suggestions[0].ID)

	unanswered, err := s.svc.Unanswered(s.noon, paging.Default())
	s.Require().NoError(err)
	s.Require().Equal(1, unanswered.Total)
	s.Equal("menu", unanswered.Items[0].Message)
	s.Equal(1, unanswered.Items[0].Score)
	s.Nil(unanswered.Items[0].UserID)
}

func (s *ServiceSuite) TestAsk_PriorityBreaksTies() {
	s.faq(FAQRequest{Question: "Payslip questions", Answer: "Ask payroll.", Keywords: []string{"payslip"}})
	preferred := s.faq(FAQRequest{Question: "Payslip portal", Answer: "Use the HR portal.", Keywords: []string{"payslip"}, Priority: 5})

	reply, err := s.svc.Ask(s.noon, s.userID, "payslip")
	s.Require().NoError(err)
	s.Equal(preferred.ID, *reply.FAQID)
}

func (s *ServiceSuite) TestAsk_InactiveFAQsIgnored() {
	inactive := false
	s.faq(FAQRequest{Question: "Parking permits", Answer: "See facilities.", Keywords: []string{"parking"}, Active: &inactive})

	reply, err := s.svc.Ask(s.noon, s.userID, "parking permit")
	s.Require().NoError(err)
	s.False(reply.Matched)
	s.Empty(reply.Suggestions)
}

func (s *ServiceSuite) TestAsk_Greeting() {
	s.seed()
	reply, err := s.svc.Ask(s.noon, s.userID, "Hi there!")
	s.Require().NoError(err)
	s.True(reply.Matched)
	s.Equal(greetingReply, reply.Answer)
	s.Equal([]string{"greeting"}, s.metrics.outcomes)
}

func (s *ServiceSuite) TestAsk_Validation() {
	_, err := s.svc.Ask(s.noon, s.userID, "   ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Ask(s.noon, s.userID, strings.Repeat("x", 501))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestStats() {
	s.seed()
	for _, msg := range []string{"reset password", "hello", "printer jam", "annual leave"} {
		_, err := s.svc.Ask(s.noon, s.userID, msg)
		s.Require().NoError(err)
	}
	old := requestcontext.WithTime(context.Background(), time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	_, err := s.svc.Ask(old, s.userID, "printer jam")
	s.Require().NoError(err)

	stats, err := s.svc.Stats(s.noon, time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(4, stats.Total)
	s.Equal(3, stats.Answered)
	s.InDelta(0.75, stats.Ratio, 0.0001)
}

func (s *ServiceSuite) TestFAQCRUD() {
	_, err := s.svc.CreateFAQ(s.noon, &FAQRequest{Question: "q", Answer: "a", Condition: "hour >"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.svc.CreateFAQ(s.noon, &FAQRequest{Question: "q", Answer: "a", Condition: "department == 'HR'"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.svc.CreateFAQ(s.noon, &FAQRequest{Answer: "a"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	f := s.faq(FAQRequest{Question: "Where do I park?", Answer: "Car park B.", Keywords: []string{"parking"}})
	s.Require().NoError(s.store.IncrementHits(s.noon, f.ID))

	updated, err := s.svc.UpdateFAQ(s.noon, f.ID, &FAQRequest{Question: "Where can visitors park?", Answer: "Car park A."})
	s.Require().NoError(err)
	s.Equal([]string{}, updated.Keywords)
	got, err := s.svc.GetFAQ(s.noon, f.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Hits, "updates keep the hit counter")

	list, err := s.svc.ListFAQs(s.noon, Filter{Query: "visitors"}, paging.Default())
	s.Require().NoError(err)
	s.Equal(1, list.Total)

	s.Require().NoError(s.svc.DeleteFAQ(s.noon, f.ID))
	_, err = s.svc.UpdateFAQ(s.noon, f.ID, &FAQRequest{Question: "q", Answer: "a"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
