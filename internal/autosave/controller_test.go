package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/local"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/timing/timingtest"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const delay = 500 * time.Millisecond

// recorder is a save function that logs every call and can be gated.
type recorder struct {
	mu        sync.Mutex
	calls     []string
	active    int
	maxActive int
	errs      map[int]error
	panics    map[int]bool
	started   chan string
	gate      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{errs: map[int]error{}, panics: map[int]bool{}}
}

func (r *recorder) gated() *recorder {
	r.started = make(chan string, 16)
	r.gate = make(chan struct{})
	return r
}

func (r *recorder) save(_ context.Context, doc string) error {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	n := len(r.calls)
	r.calls = append(r.calls, doc)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.started != nil {
		r.started <- doc
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.panics[n] {
		panic("boom")
	}
	return r.errs[n]
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) MaxActive() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxActive
}

func wait(t *testing.T, c *Controller[string]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestConstructionDoesNotSave(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("initial", rec.save, Options[string]{Delay: delay, Clock: clock})

	clock.Advance(10 * delay)
	wait(t, c)

	status := c.Status()
	assert.False(t, status.IsSaving)
	assert.Nil(t, status.LastSaved)
	assert.Nil(t, status.LastError)
	assert.Equal(t, Idle, status.State)
	assert.False(t, status.HasUnsavedChanges)
	assert.Empty(t, rec.Calls())
}

func TestBurstCollapsesToOneSaveWithLastValue(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	for _, v := range []string{"a", "ab", "abc", "abcd"} {
		c.Update(v)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, PendingSave, c.Status().State)

	clock.Advance(delay - 100*time.Millisecond - time.Millisecond)
	assert.Empty(t, rec.Calls(), "window restarts on every change")

	clock.Advance(time.Millisecond)
	wait(t, c)

	assert.Equal(t, []string{"abcd"}, rec.Calls())
	status := c.Status()
	require.NotNil(t, status.LastSaved)
	assert.Equal(t, clock.Now(), *status.LastSaved)
	assert.False(t, status.HasUnsavedChanges)
	assert.Equal(t, Idle, status.State)
}

func TestUnchangedUpdateIsIgnored(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("same", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("same")
	assert.Equal(t, Idle, c.Status().State)
	clock.Advance(delay)
	wait(t, c)
	assert.Empty(t, rec.Calls())
}

func TestCloseBeforeWindowDropsSave(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("draft")
	c.Close()
	clock.Advance(2 * delay)
	wait(t, c)

	assert.Empty(t, rec.Calls())
	assert.Zero(t, clock.Pending())

	c.Update("after close")
	c.SaveNow()
	wait(t, c)
	assert.Empty(t, rec.Calls(), "closed controller ignores everything")
}

func TestSaveNowWhileInFlightQueuesOneFollowUp(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder().gated()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("v1")
	c.SaveNow()
	assert.Equal(t, "v1", <-rec.started)
	assert.True(t, c.Status().IsSaving)

	c.Update("v2")
	c.SaveNow()
	c.Update("v3")
	c.SaveNow()
	assert.Equal(t, Saving, c.Status().State)

	close(rec.gate)
	wait(t, c)

	assert.Equal(t, []string{"v1", "v3"}, rec.Calls())
	assert.Equal(t, 1, rec.MaxActive(), "never two attempts in flight")
	assert.False(t, c.Status().HasUnsavedChanges)
}

func TestDebounceFiringDuringInFlightQueuesFollowUp(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder().gated()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("v1")
	clock.Advance(delay)
	assert.Equal(t, "v1", <-rec.started)

	c.Update("v2")
	clock.Advance(delay)
	c.Update("v3")

	close(rec.gate)
	wait(t, c)

	assert.Equal(t, []string{"v1", "v3"}, rec.Calls())
	assert.Equal(t, 1, rec.MaxActive())
	assert.Equal(t, Idle, c.Status().State, "follow-up already saved v3")
	assert.Zero(t, clock.Pending())
}

func TestChangeDuringInFlightIsSavedNextCycle(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder().gated()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("v1")
	c.SaveNow()
	<-rec.started
	c.Update("v2")
	assert.True(t, c.Status().HasUnsavedChanges)

	close(rec.gate)
	wait(t, c)
	assert.Equal(t, []string{"v1"}, rec.Calls())
	assert.Equal(t, PendingSave, c.Status().State)
	assert.True(t, c.Status().HasUnsavedChanges)

	clock.Advance(delay)
	wait(t, c)
	assert.Equal(t, []string{"v1", "v2"}, rec.Calls())
	assert.False(t, c.Status().HasUnsavedChanges)
}

func TestFailureThenSuccess(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	rec.errs[0] = &persistence.LocalWriteError{Key: "resume", Err: persistence.ErrQuotaExceeded}
	events := &telemetry.Recorder{}
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock, Reporter: events, Key: "resume"})

	c.Update("one")
	clock.Advance(delay)
	wait(t, c)

	status := c.Status()
	assert.Equal(t, Idle, status.State)
	assert.Nil(t, status.LastSaved)
	require.Error(t, status.LastError)
	assert.ErrorIs(t, status.LastError, persistence.ErrQuotaExceeded)
	assert.True(t, status.HasUnsavedChanges)
	assert.Equal(t, []telemetry.Kind{telemetry.KindLocalWrite}, events.Kinds())
	assert.Equal(t, "resume", events.Events()[0].Key)

	c.Update("two")
	clock.Advance(delay)
	wait(t, c)

	status = c.Status()
	require.NotNil(t, status.LastSaved)
	assert.Equal(t, clock.Now(), *status.LastSaved)
	assert.NoError(t, status.LastError)
	assert.False(t, status.HasUnsavedChanges)
	assert.Equal(t, []string{"one", "two"}, rec.Calls())
}

func TestPanicIsRecovered(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	rec.panics[0] = true
	events := &telemetry.Recorder{}
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock, Reporter: events})

	c.Update("one")
	c.SaveNow()
	wait(t, c)

	var perr *PanicError
	require.True(t, errors.As(c.Status().LastError, &perr))
	assert.Equal(t, "boom", perr.Value)
	assert.Equal(t, []telemetry.Kind{telemetry.KindUnknown}, events.Kinds())

	c.SaveNow()
	wait(t, c)
	assert.NoError(t, c.Status().LastError)
	assert.NotNil(t, c.Status().LastSaved)
}

func TestDisabledSkipsAutomaticButAllowsManual(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock, Disabled: true})

	c.Update("draft")
	assert.Equal(t, Idle, c.Status().State)
	clock.Advance(2 * delay)
	wait(t, c)
	assert.Empty(t, rec.Calls())

	c.SaveNow()
	wait(t, c)
	assert.Equal(t, []string{"draft"}, rec.Calls())
}

func TestSetEnabled(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("draft")
	c.SetEnabled(false)
	assert.Equal(t, Idle, c.Status().State)
	assert.False(t, c.Status().Enabled)
	clock.Advance(2 * delay)
	wait(t, c)
	assert.Empty(t, rec.Calls(), "disabling cancels the pending save")

	c.SetEnabled(true)
	assert.Equal(t, PendingSave, c.Status().State, "unsaved changes re-arm")
	clock.Advance(delay)
	wait(t, c)
	assert.Equal(t, []string{"draft"}, rec.Calls())
}

func TestCloseDuringInFlight(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder().gated()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("v1")
	c.SaveNow()
	<-rec.started
	c.Update("v2")
	c.SaveNow()
	c.Close()

	close(rec.gate)
	wait(t, c)

	assert.Equal(t, []string{"v1"}, rec.Calls(), "queued follow-up is dropped")
	status := c.Status()
	assert.Nil(t, status.LastSaved, "no state updates after close")
	assert.Equal(t, Saving, status.State)
}

func TestFlushSavesWithoutWaitingForWindow(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("", rec.save, Options[string]{Delay: delay, Clock: clock})

	require.NoError(t, c.Flush(context.Background()))
	assert.Empty(t, rec.Calls(), "nothing to flush")

	c.Update("draft")
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, []string{"draft"}, rec.Calls())
	assert.Zero(t, clock.Pending())
}

func TestTransitions(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	rec.errs[1] = errors.New("disk full")

	var mu sync.Mutex
	var got []string
	c := New("", rec.save, Options[string]{
		Delay: delay,
		Clock: clock,
		OnTransition: func(from, to State) {
			mu.Lock()
			got = append(got, from.String()+">"+to.String())
			mu.Unlock()
		},
	})

	c.Update("a")
	clock.Advance(delay)
	wait(t, c)
	c.Update("b")
	clock.Advance(delay)
	wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"idle>pending_save", "pending_save>saving", "saving>saved", "saved>idle",
		"idle>pending_save", "pending_save>saving", "saving>failed", "failed>idle",
	}, got)
}

func TestAttemptContext(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts []telemetry.Attempt
	)
	save := func(ctx context.Context, _ string) error {
		a, ok := telemetry.AttemptFrom(ctx)
		assert.True(t, ok)
		mu.Lock()
		attempts = append(attempts, a)
		mu.Unlock()
		return nil
	}
	clock := timingtest.New(epoch)
	c := New("", save, Options[string]{Delay: delay, Clock: clock})

	c.Update("a")
	clock.Advance(delay)
	wait(t, c)
	c.SaveNow()
	wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, attempts, 2)
	assert.Equal(t, string(SourceDebounce), attempts[0].Source)
	assert.Equal(t, string(SourceManual), attempts[1].Source)
	assert.NotEmpty(t, attempts[0].ID)
	assert.NotEqual(t, attempts[0].ID, attempts[1].ID)
}

func TestTimeoutBoundsAttempt(t *testing.T) {
	save := func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}
	c := New("", save, Options[string]{Delay: delay, Timeout: 10 * time.Millisecond})

	c.SaveNow()
	wait(t, c)
	assert.ErrorIs(t, c.Status().LastError, context.DeadlineExceeded)
}

type resumeDoc struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
}

func TestControllerWithFacade(t *testing.T) {
	ctx := context.Background()
	clock := timingtest.New(epoch)
	store, err := local.Open(t.TempDir(), local.Options{})
	require.NoError(t, err)
	facade := persistence.New[resumeDoc](store, persistence.Options[resumeDoc]{Now: clock.Now})

	c := New(resumeDoc{}, facade.Saver("resume"), Options[resumeDoc]{Delay: delay, Clock: clock})
	c.Update(resumeDoc{Name: "Ada"})
	c.Update(resumeDoc{Name: "Ada", Skills: []string{"analysis"}})
	c.Update(resumeDoc{Name: "Ada", Skills: []string{"analysis"}})
	clock.Advance(delay)
	require.NoError(t, c.Wait(ctx))

	got, err := facade.Load(ctx, "resume")
	require.NoError(t, err)
	assert.Equal(t, resumeDoc{Name: "Ada", Skills: []string{"analysis"}}, got)
	assert.NoError(t, c.Status().LastError)
}

func TestResetDropsPendingSave(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("v0", rec.save, Options[string]{Delay: delay, Clock: clock})

	c.Update("local edit")
	require.Equal(t, PendingSave, c.Status().State)

	c.Reset("pulled")
	clock.Advance(2 * delay)
	wait(t, c)

	assert.Empty(t, rec.Calls())
	assert.Equal(t, "pulled", c.Document())
	status := c.Status()
	assert.Equal(t, Idle, status.State)
	assert.False(t, status.HasUnsavedChanges)

	c.Update("pulled")
	assert.Equal(t, Idle, c.Status().State, "reset document is the new baseline")
}

func TestResetIfUnchangedKeepsNewerEdits(t *testing.T) {
	clock := timingtest.New(epoch)
	rec := newRecorder()
	c := New("v0", rec.save, Options[string]{Delay: delay, Clock: clock})

	rev := c.Revision()
	c.Update("typed during pull")

	assert.False(t, c.ResetIfUnchanged(rev, "pulled"))
	assert.Equal(t, "typed during pull", c.Document())
	assert.True(t, c.Status().HasUnsavedChanges)

	clock.Advance(delay)
	wait(t, c)
	assert.Equal(t, []string{"typed during pull"}, rec.Calls())

	assert.True(t, c.ResetIfUnchanged(c.Revision(), "pulled"))
	assert.Equal(t, "pulled", c.Document())
	assert.False(t, c.Status().HasUnsavedChanges)
}
