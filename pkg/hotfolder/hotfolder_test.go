package hotfolder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/spool"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n"

type recorder struct {
	mu   sync.Mutex
	reqs []*job.Request
	err  error
	got  chan *job.Request
}

func newRecorder() *recorder {
	return &recorder{got: make(chan *job.Request, 8)}
}

func (r *recorder) AddJob(req *job.Request) error {
	r.mu.Lock()
	err := r.err
	if err == nil {
		r.reqs = append(r.reqs, req)
	}
	r.mu.Unlock()
	r.got <- req
	return err
}

func startWatcher(t *testing.T, dir string, sub Submitter) *spool.Store {
	t.Helper()
	store, err := spool.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	w, err := New(dir, sub, store, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return store
}

func waitRequest(t *testing.T, r *recorder) *job.Request {
	t.Helper()
	select {
	case req := <-r.got:
		return req
	case <-time.After(3 * time.Second):
		t.Fatal("no job submitted")
		return nil
	}
}

func TestWatcher_SubmitsDroppedDocument(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	store := startWatcher(t, dir, rec)

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	src := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(src, []byte(samplePDF), 0o600))

	req := waitRequest(t, rec)
	assert.Equal(t, "report.pdf", req.Name)
	assert.Equal(t, User, req.User)
	assert.Equal(t, job.FormatPDF, req.Format)
	assert.Equal(t, store.Path(req.ID), req.DocumentPath)

	data, err := os.ReadFile(req.DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, string(data))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(src)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_PicksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "early.ps"), []byte("%!PS-Adobe-3.0\n%%Page: 1 1\n"), 0o600))

	rec := newRecorder()
	startWatcher(t, dir, rec)

	req := waitRequest(t, rec)
	assert.Equal(t, "early.ps", req.Name)
	assert.Equal(t, job.FormatPostScript, req.Format)
}

func TestWatcher_RejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain text"), 0o600))

	rec := newRecorder()
	startWatcher(t, dir, rec)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, RejectedDir, "notes.txt"))
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, rec.got)
}

func TestWatcher_RejectsWhenNotAdmitted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full.pdf"), []byte(samplePDF), 0o600))

	rec := newRecorder()
	rec.err = errors.New("queue full")
	store := startWatcher(t, dir, rec)

	req := waitRequest(t, rec)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, RejectedDir, "full.pdf"))
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	_, err := os.Stat(store.Path(req.ID))
	assert.True(t, os.IsNotExist(err), "spool file should be removed")
}

func TestWatcher_IgnoresPartialAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{dir: dir}

	assert.True(t, w.ignored(filepath.Join(dir, ".hidden.pdf")))
	assert.True(t, w.ignored(filepath.Join(dir, "upload.pdf.part")))
	assert.True(t, w.ignored(filepath.Join(dir, "upload.tmp")))
	assert.True(t, w.ignored(filepath.Join(dir, RejectedDir, "old.pdf")))
	assert.False(t, w.ignored(filepath.Join(dir, "ok.pdf")))
}

func TestNew_RequiresSubmitterAndStore(t *testing.T) {
	_, err := New(t.TempDir(), nil, nil)
	require.Error(t, err)
}
