package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/launchcraft/internal/fsutil"
	"github.com/vk/launchcraft/internal/plan"
	"github.com/vk/launchcraft/internal/remote"
	"github.com/vk/launchcraft/internal/verify"
)

// artifactServer serves named payloads over HTTP and counts hits per path.
type artifactServer struct {
	mu       sync.Mutex
	hits     map[string]int
	payloads map[string][]byte
	failures map[string]int // remaining 500s to serve before succeeding; -1 = always fail
	server   *httptest.Server
}

func newArtifactServer(t *testing.T) *artifactServer {
	t.Helper()
	as := &artifactServer{
		hits:     make(map[string]int),
		payloads: make(map[string][]byte),
		failures: make(map[string]int),
	}
	as.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		as.mu.Lock()
		defer as.mu.Unlock()
		as.hits[r.URL.Path]++
		if remaining, ok := as.failures[r.URL.Path]; ok && remaining != 0 {
			if remaining > 0 {
				as.failures[r.URL.Path]--
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		payload, ok := as.payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(payload)
	}))
	t.Cleanup(as.server.Close)
	return as
}

func (as *artifactServer) hitCount(path string) int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.hits[path]
}

func (as *artifactServer) totalHits() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	total := 0
	for _, n := range as.hits {
		total += n
	}
	return total
}

// ref registers a payload under urlPath and returns a matching plan ref
// targeting root.
func (as *artifactServer) ref(root, urlPath string, payload []byte, kind plan.Kind) plan.Ref {
	as.mu.Lock()
	as.payloads["/"+urlPath] = payload
	as.mu.Unlock()
	return plan.Ref{
		Name: urlPath,
		Kind: kind,
		Path: filepath.Join(root, urlPath),
		URL:  as.server.URL + "/" + urlPath,
		SHA1: fsutil.SHA1Bytes(payload),
		Size: int64(len(payload)),
	}
}

func planOf(refs ...plan.Ref) *plan.Plan {
	p := plan.NewPlan()
	for _, ref := range refs {
		p.Add(ref, plan.DedupChildWins)
	}
	return p
}

func testOrchestrator(opts ...Option) *Orchestrator {
	base := []Option{
		WithWorkers(4),
		WithMaxAttempts(3),
		WithBackoffBase(time.Millisecond),
	}
	return NewOrchestrator(remote.NewClient(5*time.Second), append(base, opts...)...)
}

func TestRunFetchesMissingThenReusesCache(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	refA := as.ref(root, "lib-a.jar", []byte("payload-a"), plan.KindLibrary)
	refB := as.ref(root, "lib-b.jar", []byte("payload-b"), plan.KindLibrary)

	o := testOrchestrator()
	report, err := o.Run(context.Background(), planOf(refA, refB), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 0, report.Verified)
	assert.Equal(t, 2, as.totalHits())

	// Second run over an intact install does zero network I/O.
	report, err = o.Run(context.Background(), planOf(refA, refB), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
	assert.Equal(t, 2, report.Verified)
	assert.Equal(t, 2, as.totalHits(), "verification short-circuit must avoid all fetches")
}

func TestCorruptCacheEntryIsRefetched(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	payload := []byte("correct-bytes")
	ref := as.ref(root, "lib.jar", payload, plan.KindLibrary)

	// Same size, different content: size check passes, digest must not.
	require.NoError(t, os.MkdirAll(filepath.Dir(ref.Path), 0o755))
	require.NoError(t, os.WriteFile(ref.Path, []byte("corrupt-bytes"), 0o644))

	report, err := testOrchestrator().Run(context.Background(), planOf(ref), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, as.hitCount("/lib.jar"))
	assert.NoError(t, verify.File(ref.Path, ref.Size, ref.SHA1))
}

func TestTransientFailureRetriesWithBackoff(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	ref := as.ref(root, "flaky.jar", []byte("eventually"), plan.KindLibrary)
	as.failures["/flaky.jar"] = 2

	report, err := testOrchestrator().Run(context.Background(), planOf(ref), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 3, as.hitCount("/flaky.jar"))
}

func TestExhaustedRetriesYieldAggregateError(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	ref1 := as.ref(root, "ok-1.jar", []byte("one"), plan.KindLibrary)
	ref2 := as.ref(root, "doomed.jar", []byte("two"), plan.KindLibrary)
	ref3 := as.ref(root, "ok-3.jar", []byte("three"), plan.KindLibrary)
	as.failures["/doomed.jar"] = -1

	_, err := testOrchestrator(WithMaxAttempts(2)).Run(context.Background(), planOf(ref1, ref2, ref3), nil)

	var dlErr *DownloadFailedError
	require.ErrorAs(t, err, &dlErr)
	require.Len(t, dlErr.Failed, 1, "only the doomed artifact may be reported")
	assert.Equal(t, ref2.ID(), dlErr.Failed[0].ID)
	assert.Equal(t, 2, as.hitCount("/doomed.jar"))

	// Healthy siblings stay on disk for the next attempt.
	assert.NoError(t, verify.File(ref1.Path, ref1.Size, ref1.SHA1))
	assert.NoError(t, verify.File(ref3.Path, ref3.Size, ref3.SHA1))
}

func TestCancelledContextIsDistinctFromFailure(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()
	ref := as.ref(root, "never.jar", []byte("nope"), plan.KindLibrary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testOrchestrator().Run(ctx, planOf(ref), nil)
	require.ErrorIs(t, err, context.Canceled)
	var dlErr *DownloadFailedError
	assert.False(t, errors.As(err, &dlErr), "cancellation must not masquerade as a download failure")
}

func TestAssetPhaseRunsAfterIndexVerifies(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	indexPayload, err := json.Marshal(map[string]any{
		"objects": map[string]any{"asset-one": map[string]any{"hash": "abc", "size": 3}},
	})
	require.NoError(t, err)
	indexRef := as.ref(root, "indexes/8.json", indexPayload, plan.KindAssetIndex)
	assetRef := as.ref(root, "objects/asset-one", []byte("aa1"), plan.KindAsset)

	var expandedFrom []byte
	expand := func(ctx context.Context, indexData []byte) ([]plan.Ref, error) {
		expandedFrom = indexData
		return []plan.Ref{assetRef}, nil
	}

	report, err := testOrchestrator().Run(context.Background(), planOf(indexRef), expand)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched, "index plus one expanded asset")
	assert.JSONEq(t, string(indexPayload), string(expandedFrom), "expansion sees the verified index bytes")
	assert.NoError(t, verify.File(assetRef.Path, assetRef.Size, assetRef.SHA1))
}

func TestFailedIndexSkipsAssetPhase(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	indexRef := as.ref(root, "indexes/8.json", []byte("{}"), plan.KindAssetIndex)
	as.failures["/indexes/8.json"] = -1

	expandCalled := false
	expand := func(ctx context.Context, indexData []byte) ([]plan.Ref, error) {
		expandCalled = true
		return nil, nil
	}

	_, err := testOrchestrator(WithMaxAttempts(1)).Run(context.Background(), planOf(indexRef), expand)
	var dlErr *DownloadFailedError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, indexRef.ID(), dlErr.Failed[0].ID)
	assert.False(t, expandCalled, "index never verified, so no asset tasks may be scheduled")
}

func TestMirrorCopiesForLegacyAssets(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()

	ref := as.ref(root, "objects/ab/abcdef", []byte("sound"), plan.KindAsset)
	ref.CopyTo = []string{filepath.Join(root, "virtual", "legacy", "music", "s.ogg")}

	_, err := testOrchestrator().Run(context.Background(), planOf(ref), nil)
	require.NoError(t, err)
	data, err := os.ReadFile(ref.CopyTo[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("sound"), data)
}

func TestProgressEventsCoverLifecycle(t *testing.T) {
	as := newArtifactServer(t)
	root := t.TempDir()
	ref := as.ref(root, "tracked.jar", []byte("x"), plan.KindLibrary)

	var mu sync.Mutex
	var states []State
	progress := func(ev Event) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	}

	_, err := testOrchestrator(WithProgress(progress)).Run(context.Background(), planOf(ref), nil)
	require.NoError(t, err)
	assert.Equal(t, []State{Verifying, Fetching, Verified}, states)
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		Pending: "pending", Verifying: "verifying", Fetching: "fetching",
		Verified: "verified", Failed: "failed", State(99): "unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}

func TestDownloadFailedErrorMessage(t *testing.T) {
	err := &DownloadFailedError{Failed: []FailedArtifact{
		{ID: "library:a", Err: fmt.Errorf("boom")},
		{ID: "asset:b", Err: fmt.Errorf("bust")},
	}}
	assert.Contains(t, err.Error(), "2 artifact(s)")
	assert.Contains(t, err.Error(), "library:a")
	assert.Contains(t, err.Error(), "asset:b")
}
