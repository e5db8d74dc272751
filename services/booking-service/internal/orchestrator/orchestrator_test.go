package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/classifier"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/dialog"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/knowledge"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/memory"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/storage"
)

type nopNotifier struct{}

func (nopNotifier) Go(events.OutboundMessage)                           {}
func (nopNotifier) Send(context.Context, events.OutboundMessage) error { return nil }

var nairobi, _ = time.LoadLocation("Africa/Nairobi")

type env struct {
	store *storage.Memory
	log   *storage.MemoryLog
	mem   *memory.Tiered
	orch  *Orchestrator
}

func newEnv(t *testing.T, d Dialog) *env {
	t.Helper()
	now := time.Date(2026, time.November, 2, 8, 0, 0, 0, nairobi)
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := &env{store: storage.NewMemory(), log: storage.NewMemoryLog()}
	biz := storage.DefaultBusiness("biz")
	require.NoError(t, e.store.UpsertBusiness(context.Background(), biz))

	e.mem = memory.NewTiered(memory.NewLocalCache(time.Hour, 100), nil, e.log, logger, memory.Options{})
	if d == nil {
		l := ledger.New(e.store, nopNotifier{}, logger).WithClock(clock)
		kw := classifier.NewKeyword(biz.ServiceNames(), classifier.Calendar{Location: nairobi, Now: clock})
		d = dialog.New(kw, l, l.Availability(), knowledge.NewStatic(), logger).WithClock(clock)
	}
	e.orch = New(biz.ID, e.store, e.mem, d, logger).WithClock(clock)
	return e
}

func TestHandleTurnBooksAcrossTurns(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	phone := "+254700000001"

	for _, msg := range []string{"I'd like to book a haircut", "tomorrow", "10am"} {
		_, err := e.orch.HandleTurn(ctx, phone, "Amina", msg)
		require.NoError(t, err)
	}

	state, src := e.mem.Load(ctx, phone)
	assert.Equal(t, memory.SourceLocal, src)
	assert.Equal(t, model.StepCompleted, state.Step)
	require.Len(t, state.RecentMessages, 6)
	assert.Equal(t, model.RoleUser, state.RecentMessages[4].Role)
	assert.Equal(t, "10am", state.RecentMessages[4].Content)
	assert.Contains(t, state.RecentMessages[5].Content, "Confirmation Code")

	cold, err := e.log.Recent(ctx, phone, 20)
	require.NoError(t, err)
	assert.Len(t, cold, 6)

	customer, err := e.store.FindCustomerByPhone(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, "Amina", customer.Name)
	appts, err := e.store.CustomerAppointments(ctx, customer.ID, model.Date{Year: 2026, Month: time.November, Day: 2})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, model.NewTimeOfDay(10, 0), appts[0].StartTime)
}

type dialogFunc func(ctx context.Context, state *model.ConversationState, turn dialog.Turn) (string, error)

func (f dialogFunc) Handle(ctx context.Context, state *model.ConversationState, turn dialog.Turn) (string, error) {
	return f(ctx, state, turn)
}

func TestDialogFailureKeepsPreviousState(t *testing.T) {
	fail := false
	e := newEnv(t, dialogFunc(func(_ context.Context, state *model.ConversationState, _ dialog.Turn) (string, error) {
		state.Step = model.StepBookingTime
		if fail {
			return "", apperr.Dependency("list slots", errors.New("db down"))
		}
		return "ok", nil
	}))
	ctx := context.Background()

	reply, err := e.orch.HandleTurn(ctx, "+254700000002", "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	fail = true
	state, _ := e.mem.Load(ctx, "+254700000002")
	state.Step = model.StepBookingDate
	e.mem.Save(ctx, state, nil)

	reply, err = e.orch.HandleTurn(ctx, "+254700000002", "", "tomorrow")
	require.NoError(t, err)
	assert.Equal(t, Apology, reply)

	state, _ = e.mem.Load(ctx, "+254700000002")
	assert.Equal(t, model.StepBookingDate, state.Step)
	last := state.RecentMessages[len(state.RecentMessages)-2:]
	assert.Equal(t, "tomorrow", last[0].Content)
	assert.Equal(t, Apology, last[1].Content)
}

func TestHandleTurnValidatesInput(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.orch.HandleTurn(context.Background(), "", "", "hi")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = e.orch.HandleTurn(context.Background(), "+254700000003", "", "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestMissingBusinessIsAnError(t *testing.T) {
	e := newEnv(t, nil)
	e.orch.businessID = "nope"

	_, err := e.orch.CheckBusiness(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = e.orch.HandleTurn(context.Background(), "+254700000004", "", "hi")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTurnsForOnePhoneAreSerialized(t *testing.T) {
	var active, peak int32
	e := newEnv(t, dialogFunc(func(context.Context, *model.ConversationState, dialog.Turn) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return "ok", nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.orch.HandleTurn(context.Background(), "+254700000005", "", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, 0, e.orch.locks.len())

	state, _ := e.mem.Load(context.Background(), "+254700000005")
	assert.Len(t, state.RecentMessages, min(16, e.mem.HistoryLimit()))
}

func TestKeyedLockHonorsContext(t *testing.T) {
	locks := newKeyedLocks()
	unlock, err := locks.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, locks.len())
}
