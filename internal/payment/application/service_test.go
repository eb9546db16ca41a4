package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/logging"
)

type fakeBackend struct {
	orders       int
	intents      int
	hosted       int
	orderID      string
	orderErr     error
	lastLocation string
	secret       string
	intentErr    error
	hostedURL    string
	hostedErr    error
}

func (f *fakeBackend) CreateOrder(_ context.Context, _ string, _ []domain.OrderItem, location string) (string, error) {
	f.orders++
	f.lastLocation = location
	if f.orderErr != nil {
		return "", f.orderErr
	}
	return f.orderID, nil
}

func (f *fakeBackend) CreateIntent(context.Context, IntentInput) (string, error) {
	f.intents++
	if f.intentErr != nil {
		return "", f.intentErr
	}
	return f.secret, nil
}

func (f *fakeBackend) HostedPay(context.Context, string, string, int64) (string, error) {
	f.hosted++
	if f.hostedErr != nil {
		return "", f.hostedErr
	}
	return f.hostedURL, nil
}

type fakeProcessor struct {
	confirms int
	err      error
}

func (f *fakeProcessor) ConfirmCard(context.Context, string, string, domain.Card) error {
	f.confirms++
	return f.err
}

type fakeLedger struct {
	attempts map[string]domain.Attempt
	beginErr error
	results  []domain.Status
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{attempts: map[string]domain.Attempt{}}
}

func (f *fakeLedger) Find(_ context.Context, sessionID string) (domain.Attempt, bool, error) {
	a, ok := f.attempts[sessionID]
	return a, ok, nil
}

func (f *fakeLedger) Begin(_ context.Context, a domain.Attempt, _ string, _ []byte, _ string) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.attempts[a.SessionID] = a
	return nil
}

func (f *fakeLedger) MarkResult(_ context.Context, sessionID string, status domain.Status, detail, _ string, _ []byte, _ string) error {
	a := f.attempts[sessionID]
	a.Status = status
	a.Detail = detail
	f.attempts[sessionID] = a
	f.results = append(f.results, status)
	return nil
}

type fakeClaims struct {
	acquired  int
	released  int
	rejectAll bool
}

func (f *fakeClaims) Key(sessionID string) string { return "claim:" + sessionID }

func (f *fakeClaims) Acquire(context.Context, string) (bool, error) {
	f.acquired++
	return !f.rejectAll, nil
}

func (f *fakeClaims) Release(context.Context, string) error {
	f.released++
	return nil
}

func request() Request {
	return Request{
		SessionID:   "sess-1",
		Token:       "tok",
		Items:       []domain.OrderItem{{ProductID: "ipa-330", Quantity: 3}},
		AmountCents: 4500,
		Currency:    "pen",
		Location:    "Jr. Asamblea 123, Ayacucho",
		CardholderName: "ROSA QUISPE",
		Card:        domain.Card{Number: "4242424242424242", ExpMonth: "12", ExpYear: "30", CVC: "123"},
	}
}

func service(b *fakeBackend, p *fakeProcessor, l *fakeLedger, c *fakeClaims) *Service {
	return NewService(logging.New(), b, p, l, c)
}

func TestPaySuccessfulHandoff(t *testing.T) {
	b := &fakeBackend{orderID: "ord-9", secret: "cs_123"}
	p := &fakeProcessor{}
	l := newFakeLedger()
	s := service(b, p, l, &fakeClaims{})

	res, err := s.Pay(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, res.Authorized)
	assert.Equal(t, "ord-9", res.OrderID)
	assert.Equal(t, 1, b.orders)
	assert.Equal(t, 1, b.intents)
	assert.Equal(t, 1, p.confirms)
	assert.Equal(t, []domain.Status{domain.StatusAuthorized}, l.results)
}

func TestNoIntentWithoutOrder(t *testing.T) {
	t.Run("order call fails", func(t *testing.T) {
		b := &fakeBackend{orderErr: errors.New("backend 500")}
		p := &fakeProcessor{}
		c := &fakeClaims{}
		s := service(b, p, newFakeLedger(), c)

		_, err := s.Pay(context.Background(), request())
		require.Error(t, err)
		assert.Zero(t, b.intents, "intent is never created without an order")
		assert.Zero(t, p.confirms)
		assert.Equal(t, 1, c.released, "claim released so a retry can run")
	})

	t.Run("empty order id", func(t *testing.T) {
		b := &fakeBackend{orderID: ""}
		s := service(b, &fakeProcessor{}, newFakeLedger(), &fakeClaims{})

		_, err := s.Pay(context.Background(), request())
		require.Error(t, err)
		assert.Zero(t, b.intents)
	})
}

func TestRetryReusesOrder(t *testing.T) {
	b := &fakeBackend{orderID: "ord-9", secret: "cs_123"}
	p := &fakeProcessor{err: &domain.ProcessorError{Message: "Your card was declined."}}
	l := newFakeLedger()
	c := &fakeClaims{}
	s := service(b, p, l, c)

	_, err := s.Pay(context.Background(), request())
	var perr *domain.ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Your card was declined.", perr.Message, "processor message verbatim")
	assert.Equal(t, domain.StatusFailed, l.attempts["sess-1"].Status)

	// retry with a working card: same order, no second creation
	p.err = nil
	res, err := s.Pay(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, res.Authorized)
	assert.Equal(t, "ord-9", res.OrderID)
	assert.Equal(t, 1, b.orders, "exactly one order across the retry")
	assert.Equal(t, 1, c.acquired, "no second claim needed once the ledger row exists")
}

func TestConcurrentSubmitRejectedByClaim(t *testing.T) {
	b := &fakeBackend{orderID: "ord-9"}
	s := service(b, &fakeProcessor{}, newFakeLedger(), &fakeClaims{rejectAll: true})

	_, err := s.Pay(context.Background(), request())
	assert.ErrorIs(t, err, ErrAttemptInFlight)
	assert.Zero(t, b.orders)
}

func TestIntentFailureLeavesOrderUnpaid(t *testing.T) {
	b := &fakeBackend{orderID: "ord-9", intentErr: errors.New("intent 500")}
	p := &fakeProcessor{}
	l := newFakeLedger()
	s := service(b, p, l, &fakeClaims{})

	res, err := s.Pay(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, "ord-9", res.OrderID)
	assert.Zero(t, p.confirms)
	assert.Equal(t, domain.StatusOrderCreated, l.attempts["sess-1"].Status, "no rollback of the order")
}

func TestHostedPath(t *testing.T) {
	b := &fakeBackend{orderID: "ord-9", hostedURL: "https://pay.example/ord-9"}
	p := &fakeProcessor{}
	l := newFakeLedger()
	s := service(b, p, l, &fakeClaims{})

	req := request()
	req.Hosted = true

	res, err := s.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/ord-9", res.RedirectURL)
	assert.False(t, res.Authorized)
	assert.Equal(t, 1, b.hosted)
	assert.Zero(t, b.intents)
	assert.Zero(t, p.confirms)
}

func TestResolveLocationChain(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "in-memory location wins",
			req:  Request{Location: "Jr. Asamblea 123", Address: "other", CachedAddress: "cached"},
			want: "Jr. Asamblea 123",
		},
		{
			name: "synthesized from address parts",
			req:  Request{Address: "Jr. Asamblea", Reference: "frente al parque", StreetNumber: "123"},
			want: "Jr. Asamblea, frente al parque, 123",
		},
		{
			name: "partial synthesis skips empties",
			req:  Request{Address: "Jr. Asamblea", StreetNumber: "123"},
			want: "Jr. Asamblea, 123",
		},
		{
			name: "cached fallback",
			req:  Request{CachedAddress: "Av. Cusco 45"},
			want: "Av. Cusco 45",
		},
		{
			name: "never empty",
			req:  Request{},
			want: fallbackLocation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLocation(tt.req))
		})
	}
}

func TestLocationSentWithOrder(t *testing.T) {
	b := &fakeBackend{orderID: "ord-9", secret: "cs"}
	s := service(b, &fakeProcessor{}, newFakeLedger(), &fakeClaims{})

	req := request()
	req.Location = ""
	req.Address = "Jr. Asamblea"
	req.StreetNumber = "123"

	_, err := s.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Jr. Asamblea, 123", b.lastLocation)
}
