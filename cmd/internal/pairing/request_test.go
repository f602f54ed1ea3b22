package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func pairedSession(t *testing.T, svc *Service) PairingInfo {
	t.Helper()

	info := mustCreatePairing(t, svc)
	mustConnect(t, svc, info.PairCode)
	return info
}

func TestCreateRequest_Validations(t *testing.T) {
	t.Parallel()

	svc, clock, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateRequest(ctx, "missing", "sign_tx", nil, 0); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("unknown session: err = %v, want ErrInvalidSession", err)
	}

	unpaired := mustCreatePairing(t, svc)
	if _, err := svc.CreateRequest(ctx, unpaired.SessionID, "sign_tx", nil, 0); !errors.Is(err, ErrNoDeviceConnected) {
		t.Fatalf("unpaired session: err = %v, want ErrNoDeviceConnected", err)
	}

	paired := pairedSession(t, svc)
	clock.Advance(6 * time.Minute)
	if _, err := svc.CreateRequest(ctx, paired.SessionID, "sign_tx", nil, 0); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired session: err = %v, want ErrSessionExpired", err)
	}
}

func TestCreateRequest_NotifiesSigner(t *testing.T) {
	t.Parallel()

	svc, _, sink := newTestService(t)
	info := pairedSession(t, svc)

	payload := json.RawMessage(`{"tx":"deadbeef"}`)
	reqID, err := svc.CreateRequest(context.Background(), info.SessionID, "sign_transaction", payload, 0)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	got := sink.snapshot()
	if len(got.created) != 1 {
		t.Fatalf("created events = %d, want 1", len(got.created))
	}
	ev := got.created[0]
	if ev.RequestID != reqID || ev.SessionID != info.SessionID {
		t.Fatalf("event ids: %+v", ev)
	}
	if ev.Type != "sign_transaction" || string(ev.Payload) != string(payload) {
		t.Fatalf("event content: %+v", ev)
	}
	if ev.Status != StatusPending {
		t.Fatalf("status = %q, want pending", ev.Status)
	}

	if st := svc.Status(info.SessionID); st.PendingRequests != 1 {
		t.Fatalf("PendingRequests = %d, want 1", st.PendingRequests)
	}
}

func TestRespond_CompletedAndFailed(t *testing.T) {
	t.Parallel()

	svc, _, sink := newTestService(t)
	info := pairedSession(t, svc)
	ctx := context.Background()

	okID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, 0)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	failID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, 0)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	view, err := svc.Respond(ctx, info.SessionID, okID, json.RawMessage(`{"sig":"ab"}`), "")
	if err != nil {
		t.Fatalf("Respond ok: %v", err)
	}
	if view.Status != StatusCompleted || string(view.Response) != `{"sig":"ab"}` {
		t.Fatalf("completed view: %+v", view)
	}

	view, err = svc.Respond(ctx, info.SessionID, failID, nil, "user declined")
	if err != nil {
		t.Fatalf("Respond fail: %v", err)
	}
	if view.Status != StatusFailed || view.Error != "user declined" {
		t.Fatalf("failed view: %+v", view)
	}

	got := sink.snapshot()
	if len(got.responded) != 2 {
		t.Fatalf("responded events = %d, want 2", len(got.responded))
	}
}

func TestRespond_Errors(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := pairedSession(t, svc)
	b := pairedSession(t, svc)

	reqA, err := svc.CreateRequest(ctx, a.SessionID, "sign_tx", nil, 0)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if _, err := svc.Respond(ctx, "missing", reqA, nil, ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("unknown session: err = %v", err)
	}
	if _, err := svc.Respond(ctx, a.SessionID, "missing", nil, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("unknown request: err = %v", err)
	}
	if _, err := svc.Respond(ctx, b.SessionID, reqA, nil, ""); !errors.Is(err, ErrRequestNotOwned) {
		t.Fatalf("cross-session respond: err = %v", err)
	}

	if _, err := svc.Respond(ctx, a.SessionID, reqA, nil, ""); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	if _, err := svc.Respond(ctx, a.SessionID, reqA, nil, ""); !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("double respond: err = %v, want ErrRequestNotPending", err)
	}
}

func TestListPending_SweepsExpiredAndOrders(t *testing.T) {
	t.Parallel()

	svc, clock, sink := newTestService(t)
	info := pairedSession(t, svc)
	ctx := context.Background()

	shortID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, 10*time.Second)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	clock.Advance(time.Second)
	firstID, err := svc.CreateRequest(ctx, info.SessionID, "sign_msg", nil, 5*time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	clock.Advance(time.Second)
	secondID, err := svc.CreateRequest(ctx, info.SessionID, "sign_msg", nil, 5*time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	// Push the short-lived request past its deadline, but not the session.
	clock.Advance(30 * time.Second)

	pending, err := svc.ListPending(ctx, info.SessionID)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].RequestID != firstID || pending[1].RequestID != secondID {
		t.Fatalf("order: got %q, %q", pending[0].RequestID, pending[1].RequestID)
	}

	got := sink.snapshot()
	if len(got.timedOut) != 1 || got.timedOut[0].RequestID != shortID {
		t.Fatalf("timedOut events = %+v", got.timedOut)
	}
	if got.timedOut[0].Status != StatusExpired {
		t.Fatalf("timed-out status = %q", got.timedOut[0].Status)
	}
}

func TestListPending_Errors(t *testing.T) {
	t.Parallel()

	svc, clock, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ListPending(ctx, "missing"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("unknown session: err = %v", err)
	}

	info := pairedSession(t, svc)
	clock.Advance(6 * time.Minute)
	if _, err := svc.ListPending(ctx, info.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired session: err = %v", err)
	}
}

func TestWaitForResult_WakesOnRespond(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	info := pairedSession(t, svc)
	ctx := context.Background()

	reqID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = svc.Respond(ctx, info.SessionID, reqID, json.RawMessage(`{"sig":"cd"}`), "")
	}()

	start := time.Now()
	view, err := svc.WaitForResult(ctx, reqID, 10*time.Second)
	if err != nil {
		t.Fatalf("WaitForResult: %v", err)
	}
	if view.Status != StatusCompleted || string(view.Response) != `{"sig":"cd"}` {
		t.Fatalf("view: %+v", view)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("waiter did not wake promptly")
	}
}

func TestWaitForResult_TerminalReturnsImmediately(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	info := pairedSession(t, svc)
	ctx := context.Background()

	reqID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := svc.Respond(ctx, info.SessionID, reqID, nil, "nope"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	view, err := svc.WaitForResult(ctx, reqID, time.Second)
	if err != nil {
		t.Fatalf("WaitForResult: %v", err)
	}
	if view.Status != StatusFailed || view.Error != "nope" {
		t.Fatalf("view: %+v", view)
	}
}

func TestWaitForResult_TimeoutExpiresRequest(t *testing.T) {
	t.Parallel()

	svc, _, sink := newTestService(t)
	info := pairedSession(t, svc)
	ctx := context.Background()

	reqID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	view, err := svc.WaitForResult(ctx, reqID, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForResult: %v", err)
	}
	if view.Status != StatusExpired {
		t.Fatalf("status = %q, want expired", view.Status)
	}

	got := sink.snapshot()
	if len(got.timedOut) != 1 || got.timedOut[0].RequestID != reqID {
		t.Fatalf("timedOut events = %+v", got.timedOut)
	}

	// The forced expiry is committed: a late response must be rejected.
	if _, err := svc.Respond(ctx, info.SessionID, reqID, nil, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("late respond: err = %v, want ErrInvalidRequest", err)
	}
}

func TestWaitForResult_UnknownRequest(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	if _, err := svc.WaitForResult(context.Background(), "missing", time.Second); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestWaitForResult_ContextCanceled(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	info := pairedSession(t, svc)

	reqID, err := svc.CreateRequest(context.Background(), info.SessionID, "sign_tx", nil, time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.WaitForResult(ctx, reqID, 10*time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// Cancellation must not consume the request.
	if _, err := svc.Respond(context.Background(), info.SessionID, reqID, nil, ""); err != nil {
		t.Fatalf("respond after canceled wait: %v", err)
	}
}

func TestRespond_ExpiredSessionBeforeSweep(t *testing.T) {
	t.Parallel()

	svc, clock, sink := newTestService(t)
	info := pairedSession(t, svc)
	ctx := context.Background()

	// The request outlives its session: only the session TTL must gate it.
	reqID, err := svc.CreateRequest(ctx, info.SessionID, "sign_tx", nil, 10*time.Minute)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	clock.Advance(6 * time.Minute)

	if _, err := svc.Respond(ctx, info.SessionID, reqID, json.RawMessage(`{"sig":"ab"}`), ""); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Respond on expired session: err = %v, want ErrSessionExpired", err)
	}
	if got := sink.snapshot(); len(got.responded) != 0 {
		t.Fatalf("responded events = %d, want 0", len(got.responded))
	}
}
