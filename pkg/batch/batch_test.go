// pkg/batch/batch_test.go

package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/audit"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/checkpoint"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/progress"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/vault"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap/zaptest"
)

type fakeStore struct {
	mu     sync.Mutex
	labels map[string]winsec.ObjectLabel
	setErr map[string]error
	sets   int
	gets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{labels: map[string]winsec.ObjectLabel{}, setErr: map[string]error{}}
}

func (f *fakeStore) GetLabel(path string) (winsec.ObjectLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if l, ok := f.labels[path]; ok {
		return l, nil
	}
	return winsec.ObjectLabel{Level: label.Medium, Policy: label.DefaultPolicy, Raw: "S:"}, nil
}

func (f *fakeStore) SetLabel(ctx context.Context, path string, lvl label.Level, pol label.Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setErr[path]; err != nil {
		return err
	}
	f.sets++
	f.labels[path] = winsec.ObjectLabel{
		Level:    lvl,
		Policy:   pol,
		Raw:      label.BuildSDDL(lvl, pol),
		Explicit: true,
	}
	return nil
}

func (f *fakeStore) RemoveLabel(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.labels, path)
	return nil
}

func (f *fakeStore) labelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.labels)
}

type fakeProber struct {
	cap    winsec.Capability
	probes int
}

func (p *fakeProber) Probe(ctx context.Context) (winsec.Capability, error) {
	p.probes++
	return p.cap, nil
}

func adminProber() *fakeProber {
	return &fakeProber{cap: winsec.Capability{
		CallerLevel:  label.High,
		CanTouchSACL: true,
		CanSetSystem: false,
		UserIdentity: "S-1-5-21-1000",
	}}
}

func testCtx(t *testing.T) context.Context {
	otelzap.ReplaceGlobals(otelzap.New(zaptest.NewLogger(t)))
	return context.Background()
}

func TestLockAppliesLabels(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	sink := &audit.MemorySink{}
	orch := NewOrchestrator(store, adminProber(), sink, nil)

	paths := []string{`C:\data\a.txt`, `C:\data\b.txt`}
	result, err := orch.Lock(ctx, paths, DefaultOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.True(t, result.IsSuccess())
	assert.Equal(t, label.High, result.EffectiveLevel)

	for _, p := range paths {
		got, err := store.GetLabel(p)
		require.NoError(t, err)
		assert.True(t, got.Explicit)
		assert.Equal(t, label.High, got.Level)
		assert.Equal(t, label.NoWriteUp, got.Policy)
	}

	records := sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "success", records[0].Status)
	assert.Equal(t, "S:", records[0].SDDLBefore)
	assert.Equal(t, "S:(ML;;NW;;;HI)", records[0].SDDLAfter)
	assert.Equal(t, "S-1-5-21-1000", records[0].UserSID)
}

func TestLockDowngradesSystemWithoutRelabel(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	opts := DefaultOptions()
	opts.DesiredLevel = label.System

	result, err := orch.Lock(ctx, []string{"a"}, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Downgraded)
	assert.Equal(t, label.High, result.EffectiveLevel)

	got, _ := store.GetLabel("a")
	assert.Equal(t, label.High, got.Level)
}

func TestLockIdempotentSecondRunSkips(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	paths := []string{"a", "b", "c"}
	first, err := orch.Lock(ctx, paths, DefaultOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, first.Succeeded)

	setsAfterFirst := store.sets

	second, err := orch.Lock(ctx, paths, DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 0, second.Succeeded)
	assert.Equal(t, setsAfterFirst, store.sets)
}

func TestLockDryRunMutatesNothing(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	opts := DefaultOptions()
	opts.DryRun = true

	result, err := orch.Lock(ctx, []string{"a", "b"}, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, store.sets)
	assert.Equal(t, 0, store.labelCount())
}

func TestLockRollsBackOnFailure(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	store.setErr["c"] = cerr.New("access denied")
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	opts := DefaultOptions()
	opts.Parallelism = 1

	result, err := orch.Lock(ctx, []string{"a", "b", "c"}, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.IsPartialSuccess())

	require.NotNil(t, result.Rollback)
	assert.Equal(t, 3, result.Rollback.Total)
	assert.Equal(t, 3, result.Rollback.Succeeded)

	// All objects started without explicit labels, so rollback removes
	// everything the batch applied.
	assert.Equal(t, 0, store.labelCount())
}

func TestLockCommitsWhenNothingFails(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	result, err := orch.Lock(ctx, []string{"a"}, DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Nil(t, result.Rollback)
	assert.Equal(t, 1, store.labelCount())
}

func TestLockStopOnErrorCancelsRemainder(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	store.setErr["b"] = cerr.New("sharing violation")
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	opts := DefaultOptions()
	opts.Parallelism = 1
	opts.StopOnError = true
	opts.EnableRollback = false

	result, err := orch.Lock(ctx, []string{"a", "b", "c", "d"}, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Cancelled)
	assert.Equal(t, Cancelled, result.PerPath[3].Outcome)
}

func TestLockChecksFailedErrorText(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	store.setErr["x"] = cerr.New("access denied")
	sink := &audit.MemorySink{}
	orch := NewOrchestrator(store, adminProber(), sink, nil)

	opts := DefaultOptions()
	opts.EnableRollback = false

	result, err := orch.Lock(ctx, []string{"x"}, opts, nil)
	require.NoError(t, err)
	require.Equal(t, Failed, result.PerPath[0].Outcome)
	assert.Contains(t, result.PerPath[0].Error, "access denied")

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "error", records[0].Status)
	require.Len(t, records[0].Errors, 1)
	assert.Contains(t, records[0].Errors[0], "access denied")
}

func TestLockSavesCheckpointAndResumes(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	store.setErr["b"] = cerr.New("transient failure")

	mgr, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)
	orch := NewOrchestrator(store, adminProber(), nil, mgr)

	opts := DefaultOptions()
	opts.Parallelism = 1
	opts.StopOnError = true
	opts.EnableRollback = false
	opts.EnableCheckpoint = true

	result, err := orch.Lock(ctx, []string{"a", "b", "c", "d"}, opts, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.CheckpointID)
	assert.Equal(t, 2, result.Cancelled)

	ck, err := mgr.Load(result.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ck.PendingPaths)
	assert.Equal(t, 2, ck.ProcessedIndex)
	assert.False(t, ck.IsComplete())

	// The transient failure clears; resume finishes the pending paths.
	store.mu.Lock()
	delete(store.setErr, "b")
	store.mu.Unlock()

	opts.StopOnError = false
	opts.EnableCheckpoint = false
	resumed, err := orch.ResumeLock(ctx, result.CheckpointID, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Succeeded)

	_, err = mgr.Load(result.CheckpointID)
	assert.Error(t, err)
}

func TestResumeCompletedCheckpointIsNoop(t *testing.T) {
	ctx := testCtx(t)
	mgr, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)
	orch := NewOrchestrator(newFakeStore(), adminProber(), nil, mgr)

	ck := checkpoint.New("lock", 2, nil)
	ck.UpdateProgress(2, 2, 0, nil)
	require.NoError(t, mgr.Save(ck))

	result, err := orch.ResumeLock(ctx, ck.ID, DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)

	_, err = mgr.Load(ck.ID)
	assert.Error(t, err)
}

func TestUnlockRemovesLabels(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	sink := &audit.MemorySink{}
	orch := NewOrchestrator(store, adminProber(), sink, nil)

	_, err := orch.Lock(ctx, []string{"a", "b"}, DefaultOptions(), nil)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Idempotent = false
	result, err := orch.Unlock(ctx, []string{"a", "b"}, opts, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, store.labelCount())

	var unlocked int
	for _, rec := range sink.Records() {
		if rec.Status == "unlocked" {
			unlocked++
		}
	}
	assert.Equal(t, 2, unlocked)
}

func TestUnlockIdempotentSkipsUnlabeled(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	result, err := orch.Unlock(ctx, []string{"never-locked"}, DefaultOptions(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context) error {
	return cerr.Mark(cerr.New("password rejected"), amberr.ErrAuthFailed)
}

func TestUnlockAbortsOnFailedVerification(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	_, err := orch.Lock(ctx, []string{"a"}, DefaultOptions(), nil)
	require.NoError(t, err)

	_, err = orch.Unlock(ctx, []string{"a"}, DefaultOptions(), rejectingVerifier{}, nil)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, amberr.ErrAuthFailed))

	// Nothing was touched.
	got, _ := store.GetLabel("a")
	assert.True(t, got.Explicit)
}

type plainEnvelope struct{}

func (plainEnvelope) Protect(b []byte) ([]byte, error)   { return b, nil }
func (plainEnvelope) Unprotect(b []byte) ([]byte, error) { return b, nil }

func TestVaultVerifier(t *testing.T) {
	auth := vault.NewAuth(plainEnvelope{})
	auth.BackoffFloor = 0

	vstore := vault.NewStore(t.TempDir() + "/vault.bin")

	// No vault yet: unlock is ungated.
	v := NewVaultVerifier(auth, vstore, "anything")
	assert.NoError(t, v.Verify(context.Background()))

	blob, err := auth.CreateVault("TestP@ss")
	require.NoError(t, err)
	require.NoError(t, vstore.Write(blob))

	assert.NoError(t, NewVaultVerifier(auth, vstore, "TestP@ss").Verify(context.Background()))

	err = NewVaultVerifier(auth, vstore, "Wrong").Verify(context.Background())
	require.Error(t, err)
	assert.True(t, cerr.Is(err, amberr.ErrAuthFailed))
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, label.NoWriteUp, PolicyFor(ReadOnly, false))
	assert.Equal(t, label.NoWriteUp, PolicyFor(ReadOnly, true))
	assert.Equal(t, label.NoWriteUp, PolicyFor(Seal, false))
	assert.Equal(t, label.NoWriteUp|label.NoReadUp|label.NoExecuteUp, PolicyFor(Seal, true))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Seal")
	require.NoError(t, err)
	assert.Equal(t, Seal, m)

	m, err = ParseMode("read-only")
	require.NoError(t, err)
	assert.Equal(t, ReadOnly, m)

	_, err = ParseMode("paranoid")
	assert.Error(t, err)
}

func TestLockConcurrentManyPaths(t *testing.T) {
	ctx := testCtx(t)
	store := newFakeStore()
	orch := NewOrchestrator(store, adminProber(), nil, nil)

	paths := make([]string, 100)
	for i := range paths {
		paths[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
	}

	opts := DefaultOptions()
	opts.Parallelism = 8

	var mu sync.Mutex
	var callbacks int
	result, err := orch.Lock(ctx, paths, opts, func(path string, snap progress.Snapshot) {
		mu.Lock()
		callbacks++
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, 100, result.Succeeded)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 100, callbacks)
}
