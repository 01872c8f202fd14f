package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Taskly/internal/cli/store"
	"Taskly/internal/record"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) FetchRecords(ctx context.Context, userID string) ([]json.RawMessage, error) {
	args := m.Called(ctx, userID)
	raws, _ := args.Get(0).([]json.RawMessage)
	return raws, args.Error(1)
}

func (m *mockRemote) UpsertRecord(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, raw)
	out, _ := args.Get(0).(json.RawMessage)
	return out, args.Error(1)
}

func (m *mockRemote) DeleteRecord(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func raw(t *testing.T, r record.Record) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return b
}

func setup(t *testing.T) (*store.Store, *mockRemote, *MemoryQueue, *Reconciler) {
	t.Helper()
	s := store.New()
	s.SetUser("alice")
	rm := &mockRemote{}
	q := NewMemoryQueue()
	rc := New(s, rm, q, Config{Interval: time.Hour, Timeout: time.Second}, zap.NewNop().Sugar())
	return s, rm, q, rc
}

func ids(rs []record.Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestPull_ReplacesWithRemoteOrder(t *testing.T) {
	s, rm, _, rc := setup(t)
	rm.On("FetchRecords", mock.Anything, "alice").Return([]json.RawMessage{
		raw(t, record.Record{ID: "2", Title: "newer"}),
		raw(t, record.Record{ID: "1", Title: "older"}),
	}, nil)

	require.NoError(t, rc.Pull(context.Background()))
	assert.Equal(t, []string{"2", "1"}, ids(s.List(store.Filter{})))
	assert.False(t, rc.Status().LastPull.IsZero())
	rm.AssertExpectations(t)
}

func TestPull_FailureKeepsLocalState(t *testing.T) {
	s, rm, _, rc := setup(t)
	_, err := s.Add(record.Record{ID: "1", Title: "keep me"})
	require.NoError(t, err)
	before := s.List(store.Filter{})

	rm.On("FetchRecords", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

	err = rc.Pull(context.Background())
	var unavailable *RemoteUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "pull", unavailable.Op)
	assert.Equal(t, before, s.List(store.Filter{}))
	assert.Error(t, rc.Status().LastError)
}

func TestPull_SkipsInvalidRecordsWithoutEvictingThem(t *testing.T) {
	s, rm, _, rc := setup(t)
	require.NoError(t, s.Restore("alice", []record.Record{{ID: "bad", Title: "cached"}}, nil, nil))

	rm.On("FetchRecords", mock.Anything, "alice").Return([]json.RawMessage{
		json.RawMessage(`{"id":"bad","title":"x","startDate":"not-a-date"}`),
		json.RawMessage(`{"title":"no id"}`),
		raw(t, record.Record{ID: "ok", Title: "fine"}),
	}, nil)

	require.NoError(t, rc.Pull(context.Background()))
	assert.Equal(t, []string{"ok", "bad"}, ids(s.List(store.Filter{})))
}

func TestPull_DiscardedWhenUserChanged(t *testing.T) {
	s, rm, _, rc := setup(t)
	rm.On("FetchRecords", mock.Anything, "alice").
		Run(func(mock.Arguments) { s.SetUser("bob") }).
		Return([]json.RawMessage{raw(t, record.Record{ID: "a1", Title: "alice's"})}, nil)

	err := rc.Pull(context.Background())
	assert.ErrorIs(t, err, store.ErrUserMismatch)
	assert.Empty(t, s.List(store.Filter{}))
}

func TestPull_NoUser(t *testing.T) {
	s, _, _, rc := setup(t)
	s.SetUser("")
	assert.ErrorIs(t, rc.Pull(context.Background()), store.ErrNoUser)
}

func TestPull_TimeoutIsUnavailable(t *testing.T) {
	s, rm, _, _ := setup(t)
	rc := New(s, rm, NewMemoryQueue(), Config{Timeout: 10 * time.Millisecond}, nil)
	rm.On("FetchRecords", mock.Anything, "alice").
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.DeadlineExceeded)

	err := rc.Pull(context.Background())
	var unavailable *RemoteUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrack_QueuesOnlyLocalChanges(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	rc.Track()

	_, err := s.Add(record.Record{ID: "1", Title: "a"})
	require.NoError(t, err)
	_, err = s.ToggleCompleted("1")
	require.NoError(t, err)
	_, err = s.Add(record.Record{ID: "2", Title: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Remove("2"))

	rm.On("FetchRecords", mock.Anything, "alice").Return([]json.RawMessage{}, nil)
	require.NoError(t, rc.Pull(context.Background()))

	ops, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpUpsert, ops[0].Kind)
	assert.Equal(t, "1", ops[0].RecordID)
	assert.Equal(t, OpDelete, ops[1].Kind)
	assert.Equal(t, "2", ops[1].RecordID)

	var sent record.Record
	require.NoError(t, json.Unmarshal(ops[0].Payload, &sent))
	assert.True(t, sent.Completed)

	// dirty запись пережила pull с пустым сервером
	_, ok := s.Get("1")
	assert.True(t, ok)
}

func TestPush_SettlesAndAcks(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "1", Title: "a"})
	require.NoError(t, err)
	_, err = s.Add(record.Record{ID: "2", Title: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Remove("2"))

	rm.On("UpsertRecord", mock.Anything, mock.Anything).Return(json.RawMessage(`{}`), nil).Once()
	rm.On("DeleteRecord", mock.Anything, "2").Return(ErrRemoteNotFound).Once()

	require.NoError(t, rc.Push(context.Background()))
	ops, _ := q.Pending()
	assert.Empty(t, ops)
	dirty, tomb := s.Pending()
	assert.Empty(t, dirty)
	assert.Empty(t, tomb)
	rm.AssertExpectations(t)
}

func TestPush_UnavailableKeepsQueueAndLocalChange(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "1", Title: "a"})
	require.NoError(t, err)
	_, err = s.Add(record.Record{ID: "2", Title: "b"})
	require.NoError(t, err)

	rm.On("UpsertRecord", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

	err = rc.Push(context.Background())
	var unavailable *RemoteUnavailableError
	require.ErrorAs(t, err, &unavailable)

	ops, _ := q.Pending()
	assert.Len(t, ops, 2)
	assert.Equal(t, 2, rc.Status().Pending)
	_, ok := s.Get("1")
	assert.True(t, ok)
	rm.AssertNumberOfCalls(t, "UpsertRecord", 1)
}

func TestPush_ConflictAdoptsRemoteCopy(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "1", Title: "mine"})
	require.NoError(t, err)

	theirs := record.Record{ID: "1", Title: "theirs", UpdatedAt: time.Now().Add(time.Hour).UTC()}
	rm.On("UpsertRecord", mock.Anything, mock.Anything).
		Return(nil, &ConflictError{RecordID: "1", Remote: raw(t, theirs)}).Once()

	require.NoError(t, rc.Push(context.Background()))
	r, _ := s.Get("1")
	assert.Equal(t, "theirs", r.Title)
	ops, _ := q.Pending()
	assert.Empty(t, ops)
}

func TestPush_RejectedSettlesRecord(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "1", Title: "a"})
	require.NoError(t, err)

	rm.On("UpsertRecord", mock.Anything, mock.Anything).Return(nil, ErrRejected).Once()

	require.NoError(t, rc.Push(context.Background()))
	ops, _ := q.Pending()
	assert.Empty(t, ops)
	_, ok := s.Get("1")
	assert.True(t, ok)
	dirty, _ := s.Pending()
	assert.Empty(t, dirty)

	// копия сервера побеждает: без записи на сервере pull её убирает,
	// так же как после перезапуска, когда пометка dirty не восстанавливается
	rm.On("FetchRecords", mock.Anything, "alice").Return([]json.RawMessage{
		raw(t, record.Record{ID: "2", Title: "server"}),
	}, nil).Once()
	require.NoError(t, rc.Pull(context.Background()))
	assert.Equal(t, []string{"2"}, ids(s.List(store.Filter{})))
	rm.AssertExpectations(t)
}

func TestPush_EditDuringFlightStaysQueued(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "1", Title: "v1"})
	require.NoError(t, err)

	title := "v2"
	rm.On("UpsertRecord", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, err := s.Update("1", record.Partial{Title: &title})
			require.NoError(t, err)
		}).
		Return(json.RawMessage(`{}`), nil).Once()

	require.NoError(t, rc.Push(context.Background()))
	ops, _ := q.Pending()
	require.Len(t, ops, 1)
	dirty, _ := s.Pending()
	assert.Equal(t, []string{"1"}, dirty)
}

func TestSync_PushThenPull(t *testing.T) {
	s, rm, _, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "1", Title: "a"})
	require.NoError(t, err)

	var order []string
	var mu sync.Mutex
	note := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	local, _ := s.Get("1")
	rm.On("UpsertRecord", mock.Anything, mock.Anything).Run(note("push")).Return(json.RawMessage(`{}`), nil)
	rm.On("FetchRecords", mock.Anything, "alice").Run(note("pull")).
		Return([]json.RawMessage{raw(t, local)}, nil)

	require.NoError(t, rc.Sync(context.Background()))
	assert.Equal(t, []string{"push", "pull"}, order)
}

func TestReset_DropsQueueAndReplaces(t *testing.T) {
	s, rm, q, rc := setup(t)
	rc.Track()
	_, err := s.Add(record.Record{ID: "local", Title: "a"})
	require.NoError(t, err)

	rm.On("FetchRecords", mock.Anything, "alice").
		Return([]json.RawMessage{raw(t, record.Record{ID: "r", Title: "remote"})}, nil)

	require.NoError(t, rc.Reset(context.Background()))
	assert.Equal(t, []string{"r"}, ids(s.List(store.Filter{})))
	ops, _ := q.Pending()
	assert.Empty(t, ops)
}

func TestStartStop_BackgroundLoop(t *testing.T) {
	s := store.New()
	s.SetUser("alice")
	rm := &mockRemote{}
	pulled := make(chan struct{}, 10)
	rm.On("FetchRecords", mock.Anything, "alice").
		Run(func(mock.Arguments) {
			select {
			case pulled <- struct{}{}:
			default:
			}
		}).
		Return([]json.RawMessage{}, nil)

	rc := New(s, rm, NewMemoryQueue(), Config{Interval: 5 * time.Millisecond}, nil)
	rc.Start(context.Background())
	rc.Start(context.Background())
	assert.True(t, rc.Status().Running)

	select {
	case <-pulled:
	case <-time.After(2 * time.Second):
		t.Fatal("background pull did not run")
	}
	rc.Stop()
	assert.False(t, rc.Status().Running)

	// после Stop тиков больше нет
	for len(pulled) > 0 {
		<-pulled
	}
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, pulled)
	rc.Stop()
}

func TestForeground_SkipsTicks(t *testing.T) {
	s := store.New()
	s.SetUser("alice")
	rm := &mockRemote{}
	rc := New(s, rm, NewMemoryQueue(), Config{Interval: 5 * time.Millisecond}, nil)
	rc.SetForeground(true)
	assert.True(t, rc.Foreground())

	rc.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	rc.Stop()
	rm.AssertNotCalled(t, "FetchRecords", mock.Anything, mock.Anything)
}

func TestMemoryQueue_Coalesces(t *testing.T) {
	q := NewMemoryQueue()
	first, _ := q.Enqueue(Op{Kind: OpUpsert, RecordID: "1"})
	_, _ = q.Enqueue(Op{Kind: OpUpsert, RecordID: "2"})
	last, _ := q.Enqueue(Op{Kind: OpDelete, RecordID: "1"})

	ops, _ := q.Pending()
	require.Len(t, ops, 2)
	assert.Equal(t, "2", ops[0].RecordID)
	assert.Equal(t, OpDelete, ops[1].Kind)

	require.NoError(t, q.Ack("1", first.Seq))
	ops, _ = q.Pending()
	assert.Len(t, ops, 2)
	require.NoError(t, q.Ack("1", last.Seq))
	ops, _ = q.Pending()
	assert.Len(t, ops, 1)

	require.NoError(t, q.Clear())
	ops, _ = q.Pending()
	assert.Empty(t, ops)
}

func TestPeekID(t *testing.T) {
	assert.Equal(t, "x", peekID(json.RawMessage(`{"id":"x"}`)))
	assert.Equal(t, "", peekID(json.RawMessage(`{"id":5}`)))
	assert.Equal(t, "", peekID(json.RawMessage(`[`)))
}
