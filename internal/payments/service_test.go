package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memPayStore struct {
	byReference map[string]*Payment
}

func newMemPayStore() *memPayStore {
	return &memPayStore{byReference: make(map[string]*Payment)}
}

func (m *memPayStore) CreatePending(_ context.Context, p *Payment) (*Payment, error) {
	stored := *p
	stored.ID = uuid.New()
	stored.Status = StatusPending
	stored.CreatedAt = time.Now().UTC()
	m.byReference[stored.Reference] = &stored
	return &stored, nil
}

func (m *memPayStore) GetByReference(_ context.Context, reference string) (*Payment, error) {
	p, ok := m.byReference[reference]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memPayStore) MarkCompleted(_ context.Context, reference string, paidAt time.Time) (bool, error) {
	p, ok := m.byReference[reference]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = StatusCompleted
	p.PaidAt = &paidAt
	return true, nil
}

func (m *memPayStore) MarkFailed(_ context.Context, reference string) (bool, error) {
	p, ok := m.byReference[reference]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = StatusFailed
	return true, nil
}

func (m *memPayStore) MarkRefundRequested(_ context.Context, id uuid.UUID) (bool, error) {
	for _, p := range m.byReference {
		if p.ID == id && p.Status == StatusCompleted && p.RefundRequestedAt == nil {
			now := time.Now().UTC()
			p.RefundRequestedAt = &now
			return true, nil
		}
	}
	return false, nil
}

var _ Store = (*memPayStore)(nil)

type fakeGateway struct {
	initCalls   int
	verifyCalls int
	initErr     error
	verifyErr   error
	tx          *GatewayTransaction
}

func (f *fakeGateway) Initialize(_ context.Context, req GatewayInitRequest) (*GatewayInitResponse, error) {
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &GatewayInitResponse{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "access_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (f *fakeGateway) Verify(_ context.Context, reference string) (*GatewayTransaction, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	tx := *f.tx
	tx.Reference = reference
	return &tx, nil
}

type fakeConfirmer struct {
	calls      int
	err        error
	lastApptID uuid.UUID
}

func (f *fakeConfirmer) Confirm(_ context.Context, appointmentID, _ uuid.UUID) error {
	f.calls++
	f.lastApptID = appointmentID
	return f.err
}

func initParams(appointmentID *uuid.UUID) InitializeParams {
	return InitializeParams{
		UserID:        uuid.New(),
		Type:          TypeAppointment,
		AmountCents:   500000,
		Currency:      "NGN",
		Method:        "card",
		Email:         "patient@example.com",
		AppointmentID: appointmentID,
	}
}

func TestInitializeOpensGatewayTransaction(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{}
	svc := NewService(store, gateway, nil, nil, nil)

	result, err := svc.Initialize(context.Background(), initParams(nil))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if result.Reference == "" || result.AuthorizationURL == "" {
		t.Fatalf("expected checkout details, got %+v", result)
	}
	p, err := store.GetByReference(context.Background(), result.Reference)
	if err != nil {
		t.Fatalf("pending payment missing: %v", err)
	}
	if p.Status != StatusPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}
}

func TestInitializeGatewayFailureLeavesPendingRecord(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{initErr: ErrGatewayUnreachable}
	svc := NewService(store, gateway, nil, nil, nil)

	_, err := svc.Initialize(context.Background(), initParams(nil))
	if !errors.Is(err, ErrGatewayUnreachable) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	// The local record was written first and survives for later verify.
	if len(store.byReference) != 1 {
		t.Fatalf("expected one pending record, got %d", len(store.byReference))
	}
	for _, p := range store.byReference {
		if p.Status != StatusPending {
			t.Fatalf("expected pending, got %s", p.Status)
		}
	}
}

func TestInitializeRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newMemPayStore(), &fakeGateway{}, nil, nil, nil)
	params := initParams(nil)
	params.AmountCents = 0
	if _, err := svc.Initialize(context.Background(), params); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestVerifySuccessConfirmsAppointmentOnce(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{tx: &GatewayTransaction{Status: "success", AmountCents: 500000}}
	confirmer := &fakeConfirmer{}
	svc := NewService(store, gateway, confirmer, nil, nil)
	ctx := context.Background()

	appointmentID := uuid.New()
	result, err := svc.Initialize(ctx, initParams(&appointmentID))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	p, err := svc.Verify(ctx, result.Reference)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if p.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", p.Status)
	}
	if confirmer.calls != 1 || confirmer.lastApptID != appointmentID {
		t.Fatalf("expected one confirm for %s, got %d calls", appointmentID, confirmer.calls)
	}

	// A duplicate verify (webhook racing client polling) short-circuits
	// before the gateway and never re-confirms.
	if _, err := svc.Verify(ctx, result.Reference); err != nil {
		t.Fatalf("duplicate verify failed: %v", err)
	}
	if gateway.verifyCalls != 1 {
		t.Fatalf("expected one gateway verify, got %d", gateway.verifyCalls)
	}
	if confirmer.calls != 1 {
		t.Fatalf("expected confirm not repeated, got %d calls", confirmer.calls)
	}
}

func TestVerifyFailedChargeMarksFailed(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{tx: &GatewayTransaction{Status: "failed"}}
	svc := NewService(store, gateway, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.Initialize(ctx, initParams(nil))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	p, err := svc.Verify(ctx, result.Reference)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if p.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", p.Status)
	}
}

func TestVerifyPendingAtGatewayStaysPending(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{tx: &GatewayTransaction{Status: "pending"}}
	svc := NewService(store, gateway, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.Initialize(ctx, initParams(nil))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	p, err := svc.Verify(ctx, result.Reference)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if p.Status != StatusPending {
		t.Fatalf("expected still pending, got %s", p.Status)
	}
}

func TestVerifyGatewayErrorIsTransient(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{verifyErr: ErrGatewayUnreachable}
	svc := NewService(store, gateway, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.Initialize(ctx, initParams(nil))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	_, err = svc.Verify(ctx, result.Reference)
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	p, _ := store.GetByReference(ctx, result.Reference)
	if p.Status != StatusPending {
		t.Fatalf("expected pending after transient failure, got %s", p.Status)
	}
}

func TestVerifyUnknownReference(t *testing.T) {
	svc := NewService(newMemPayStore(), &fakeGateway{}, nil, nil, nil)
	if _, err := svc.Verify(context.Background(), "TM-missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestRequestRefundIsIdempotent(t *testing.T) {
	store := newMemPayStore()
	gateway := &fakeGateway{tx: &GatewayTransaction{Status: "success"}}
	svc := NewService(store, gateway, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.Initialize(ctx, initParams(nil))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := svc.Verify(ctx, result.Reference); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	p, _ := store.GetByReference(ctx, result.Reference)

	if err := svc.RequestRefund(ctx, p.ID); err != nil {
		t.Fatalf("refund request failed: %v", err)
	}
	refreshed, _ := store.GetByReference(ctx, result.Reference)
	if refreshed.RefundRequestedAt == nil {
		t.Fatalf("expected refund request recorded")
	}
	first := *refreshed.RefundRequestedAt

	if err := svc.RequestRefund(ctx, p.ID); err != nil {
		t.Fatalf("repeat refund request failed: %v", err)
	}
	refreshed, _ = store.GetByReference(ctx, result.Reference)
	if !refreshed.RefundRequestedAt.Equal(first) {
		t.Fatalf("expected refund timestamp unchanged on replay")
	}
}
