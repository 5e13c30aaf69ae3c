package analyzer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesentinel/codesentinel/internal/llm"
	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// fakeSource serves blob content from a map.
type fakeSource struct {
	blobs map[string]string
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Resolve(context.Context) (string, string, error) {
	return "main", "deadbeef", nil
}
func (f *fakeSource) ListFiles(context.Context, string) ([]source.RemoteFile, error) {
	return nil, nil
}
func (f *fakeSource) FetchBlob(_ context.Context, blobID string) ([]byte, error) {
	return []byte(f.blobs[blobID]), nil
}
func (f *fakeSource) Clone(context.Context, string, string) error { return nil }

// fakeProvider replays a scripted sequence of responses per path.
type fakeProvider struct {
	mu       sync.Mutex
	name     string
	calls    int
	perPath  map[string][]fakeReply
	fallback *llm.Classification
}

type fakeReply struct {
	c   *llm.Classification
	err error
}

func (f *fakeProvider) Name() string                            { return f.name }
func (f *fakeProvider) Model() string                           { return "fake-model" }
func (f *fakeProvider) TestConnection(context.Context) error    { return nil }
func (f *fakeProvider) Classify(_ context.Context, req llm.ClassifyRequest) (*llm.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if replies, ok := f.perPath[req.Path]; ok && len(replies) > 0 {
		r := replies[0]
		f.perPath[req.Path] = replies[1:]
		return r.c, r.err
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return ok(req.Path), nil
}

func ok(path string) *llm.Classification {
	return &llm.Classification{
		Purpose:           "does " + path,
		Category:          "other",
		Confidence:        0.9,
		SecurityRelevance: "low",
		Provider:          "fake",
		Model:             "fake-model",
		InputTokens:       400,
		OutputTokens:      100,
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Analysis.BatchSize = 2
	return cfg
}

func testManifest(paths ...string) *manifest.Manifest {
	m := manifest.New(manifest.Repository{CommitSHA: "deadbeef"})
	for _, p := range paths {
		m.Files = append(m.Files, manifest.FileEntry{
			Path: p, BlobID: "blob-" + p, Size: 100, Extension: ".py",
		})
	}
	return m
}

func newTestAnalyzer(p llm.Provider, cfg *config.Config, blobs map[string]string, opts Options) *Analyzer {
	if blobs == nil {
		blobs = map[string]string{}
	}
	a := New(&fakeSource{blobs: blobs}, p, cfg, opts, hclog.NewNullLogger())
	a.sleep = func(time.Duration) {}
	return a
}

func noCheckpoint(*manifest.Manifest) error { return nil }

func TestCandidates(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py", "b.py")
	m.Files = append(m.Files,
		manifest.FileEntry{Path: "big.py", Extension: ".py", Size: cfg.Analysis.MaxFileSize + 1},
		manifest.FileEntry{Path: "image.png", Extension: ".png", Size: 10},
		manifest.FileEntry{Path: "done.py", Extension: ".py", Size: 10, Purpose: "already classified"},
	)

	a := newTestAnalyzer(&fakeProvider{name: "fake"}, cfg, nil, Options{})
	got := a.Candidates(m)
	paths := make([]string, len(got))
	for i, e := range got {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"a.py", "b.py"}, paths)

	a.opts.Reanalyze = true
	assert.Len(t, a.Candidates(m), 3, "reanalyze includes classified files")
}

func TestEnrichClassifiesAllInOrder(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py", "b.py", "c.py", "d.py", "e.py")
	p := &fakeProvider{name: "fake", perPath: map[string][]fakeReply{}}

	checkpoints := 0
	a := newTestAnalyzer(p, cfg, nil, Options{})
	err := a.Enrich(context.Background(), m, func(*manifest.Manifest) error {
		checkpoints++
		return nil
	})

	require.NoError(t, err)
	for _, e := range m.Files {
		assert.Equal(t, "does "+e.Path, e.Purpose)
		assert.Equal(t, "fake", e.Provider)
	}
	assert.Equal(t, 3, checkpoints, "one checkpoint per batch of 2")
}

func TestEnrichThrottleRecovers(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py")
	p := &fakeProvider{name: "fake", perPath: map[string][]fakeReply{
		"a.py": {
			{err: &errors.RateLimitedError{}},
			{err: &errors.RateLimitedError{}},
			{c: ok("a.py")},
		},
	}}

	a := newTestAnalyzer(p, cfg, nil, Options{})
	require.NoError(t, a.Enrich(context.Background(), m, noCheckpoint))
	assert.Equal(t, "does a.py", m.Files[0].Purpose)
}

func TestEnrichMalformedGetsPlaceholder(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py")
	malformed := &errors.MalformedResponseError{Provider: "fake", Reason: "no JSON"}
	p := &fakeProvider{name: "fake", perPath: map[string][]fakeReply{
		"a.py": {{err: malformed}, {err: malformed}},
	}}

	a := newTestAnalyzer(p, cfg, nil, Options{})
	require.NoError(t, a.Enrich(context.Background(), m, noCheckpoint))

	e := m.Files[0]
	assert.Equal(t, "other", e.Category)
	assert.Equal(t, "low", e.SecurityRelevance)
	assert.Equal(t, 0.0, *e.Confidence)
	assert.Equal(t, "analysis_failed:malformed_response", e.Reasoning)
}

func TestEnrichReportsPlaceholderCount(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py", "b.py")
	malformed := &errors.MalformedResponseError{Provider: "fake", Reason: "no JSON"}
	p := &fakeProvider{name: "fake", perPath: map[string][]fakeReply{
		"a.py": {{err: malformed}, {err: malformed}},
	}}

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info})
	a := New(&fakeSource{blobs: map[string]string{}}, p, cfg, Options{}, logger)
	a.sleep = func(time.Duration) {}

	require.NoError(t, a.Enrich(context.Background(), m, noCheckpoint))
	assert.Contains(t, buf.String(), "placeholders=1")
	assert.Contains(t, buf.String(), "classified=1")
}

func TestEnrichFallsBackToSecondary(t *testing.T) {
	cfg := testConfig()
	cfg.SecondaryProvider.Name = "backup"
	m := testManifest("a.py", "b.py")

	throttled := make([]fakeReply, throttleMaxAttempts)
	for i := range throttled {
		throttled[i] = fakeReply{err: &errors.RateLimitedError{}}
	}
	primary := &fakeProvider{name: "fake", perPath: map[string][]fakeReply{
		"a.py": throttled, "b.py": throttled,
	}}
	secondary := &fakeProvider{name: "backup"}

	a := newTestAnalyzer(primary, cfg, nil, Options{})
	a.newProvider = func(name string, _ *config.Config, _ hclog.Logger) (llm.Provider, error) {
		require.Equal(t, "backup", name)
		return secondary, nil
	}

	require.NoError(t, a.Enrich(context.Background(), m, noCheckpoint))
	assert.Equal(t, "does a.py", m.Files[0].Purpose)
	assert.Equal(t, "does b.py", m.Files[1].Purpose)
	assert.Equal(t, "backup", a.provider.Name())
}

func TestEnrichBothProvidersExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.SecondaryProvider.Name = "fake" // same as primary: nowhere to go
	m := testManifest("a.py")

	throttled := make([]fakeReply, throttleMaxAttempts)
	for i := range throttled {
		throttled[i] = fakeReply{err: &errors.RateLimitedError{}}
	}
	p := &fakeProvider{name: "fake", perPath: map[string][]fakeReply{"a.py": throttled}}

	checkpoints := 0
	a := newTestAnalyzer(p, cfg, nil, Options{})
	err := a.Enrich(context.Background(), m, func(*manifest.Manifest) error {
		checkpoints++
		return nil
	})

	require.Error(t, err)
	var pe *errors.ProviderExhaustedError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, checkpoints, "partial progress is saved before failing")
}

func TestEnrichCancelledBeforeBatch(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py", "b.py")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAnalyzer(&fakeProvider{name: "fake"}, cfg, nil, Options{})
	checkpoints := 0
	err := a.Enrich(ctx, m, func(*manifest.Manifest) error {
		checkpoints++
		return nil
	})

	var ce *errors.CancelledError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, checkpoints)
	assert.Empty(t, m.Files[0].Purpose, "no work scheduled after cancellation")
}

func TestPreviewCost(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py", "b.py", "c.py", "d.py", "e.py", "f.py")
	p := &fakeProvider{name: "openai"}

	a := newTestAnalyzer(p, cfg, nil, Options{SampleSize: 3})
	preview, err := a.PreviewCost(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, "openai", preview.Provider)
	assert.Equal(t, 3, preview.SampleSize)
	assert.Equal(t, 6, preview.TotalFiles)
	assert.Greater(t, preview.EstimatedTotal, 0.0)
	assert.GreaterOrEqual(t, preview.HighTotal, preview.LowTotal)

	// Every fake reply reports 400/100 tokens, so the projection is exact
	// no matter which files were drawn.
	assert.Equal(t, 2400, preview.ProjectedInputTokens)
	assert.Equal(t, 600, preview.ProjectedOutputTokens)

	// Sampled files keep their real classifications.
	classified := 0
	for _, e := range m.Files {
		if e.Purpose != "" {
			classified++
		}
	}
	assert.Equal(t, 3, classified)
	assert.Len(t, a.Candidates(m), 3, "sampled files are not re-queued")
}

func TestPreviewCostDrawsFromWholeCandidateSet(t *testing.T) {
	cfg := testConfig()
	m := testManifest("a.py", "b.py", "c.py", "d.py", "e.py", "f.py")

	a := newTestAnalyzer(&fakeProvider{name: "openai"}, cfg, nil, Options{SampleSize: 3})
	a.sample = func(n, k int) []int {
		require.Equal(t, 6, n)
		require.Equal(t, 3, k)
		return []int{1, 3, 5}
	}

	_, err := a.PreviewCost(context.Background(), m)
	require.NoError(t, err)

	assert.Empty(t, m.Files[0].Purpose)
	assert.Equal(t, "does b.py", m.Files[1].Purpose)
	assert.Equal(t, "does d.py", m.Files[3].Purpose)
	assert.Equal(t, "does f.py", m.Files[5].Purpose)
}

func TestConfirm(t *testing.T) {
	preview := &CostPreview{
		Provider: "openai", SampleSize: 3, TotalFiles: 10, EstimatedTotal: 0.05,
		ProjectedInputTokens: 4000, ProjectedOutputTokens: 1000,
	}

	t.Run("yes proceeds", func(t *testing.T) {
		var out strings.Builder
		err := Confirm(preview, strings.NewReader("y\n"), &out)
		assert.NoError(t, err)
		assert.Contains(t, out.String(), "with openai")
		assert.Contains(t, out.String(), "4000 input, 1000 output")
		assert.Contains(t, out.String(), "Proceed with analysis?")
	})

	t.Run("anything else cancels", func(t *testing.T) {
		var out strings.Builder
		err := Confirm(preview, strings.NewReader("n\n"), &out)
		var ce *errors.CancelledError
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("empty input cancels", func(t *testing.T) {
		var out strings.Builder
		err := Confirm(preview, strings.NewReader(""), &out)
		var ce *errors.CancelledError
		assert.ErrorAs(t, err, &ce)
	})
}
