package listener

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/dispatch"
	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/pipeline"
	"github.com/vprint/vprint/pkg/queue"
	"github.com/vprint/vprint/pkg/server/jobs"
	"github.com/vprint/vprint/pkg/spool"
)

func startServer(t *testing.T, cfg Config, h Handler) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(cfg, h, zerolog.Nop())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background(), ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		assert.ErrorIs(t, <-errCh, ErrServerClosed)
	})
	return srv, ln.Addr().String()
}

// exchange writes payload, half-closes and reads the whole answer.
func exchange(addr string, payload string) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(payload)); err != nil {
		return "", err
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		return "", err
	}
	out, err := io.ReadAll(conn)
	return string(out), err
}

func roundTrip(t *testing.T, addr string, payload string) string {
	t.Helper()
	out, err := exchange(addr, payload)
	require.NoError(t, err)
	return out
}

func echo() Handler {
	return HandlerFunc(func(_ context.Context, r io.Reader, w io.Writer) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		_, err = w.Write(append([]byte("echo:"), b...))
		return err
	})
}

func TestOneExchangePerConnection(t *testing.T) {
	_, addr := startServer(t, Config{ReadTimeout: time.Second, WriteTimeout: time.Second}, echo())

	assert.Equal(t, "echo:hello", roundTrip(t, addr, "hello"))
	assert.Equal(t, "echo:again", roundTrip(t, addr, "again"))
}

func TestConnectionsAreIndependent(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	h := HandlerFunc(func(_ context.Context, r io.Reader, w io.Writer) error {
		b, _ := io.ReadAll(r)
		if string(b) == "slow" {
			calls.Add(1)
			<-release
		}
		_, err := w.Write(b)
		return err
	})
	srv, addr := startServer(t, Config{ReadTimeout: 2 * time.Second}, h)

	slowDone := make(chan string, 1)
	go func() {
		out, _ := exchange(addr, "slow")
		slowDone <- out
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A stalled exchange does not block others.
	assert.Equal(t, "fast", roundTrip(t, addr, "fast"))
	assert.Eventually(t, func() bool { return srv.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	assert.Equal(t, "slow", <-slowDone)
}

func TestReadTimeoutEndsIdleConnection(t *testing.T) {
	var sawErr atomic.Bool
	h := HandlerFunc(func(_ context.Context, r io.Reader, _ io.Writer) error {
		_, err := io.ReadAll(r)
		sawErr.Store(err != nil)
		return err
	})
	_, addr := startServer(t, Config{ReadTimeout: 50 * time.Millisecond}, h)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// Never half-close: the server must give up on its own.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadAll(conn)
	require.NoError(t, err)
	assert.True(t, sawErr.Load())
}

func TestShutdownRejectsServe(t *testing.T) {
	srv := New(Config{}, echo(), zerolog.Nop())
	require.NoError(t, srv.Shutdown(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.ErrorIs(t, srv.Serve(context.Background(), ln), ErrServerClosed)
}

func TestContextCancelStopsServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := New(Config{}, echo(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestPrintOverTCP(t *testing.T) {
	q, err := queue.New(4)
	require.NoError(t, err)
	store, err := spool.New(t.TempDir(), 1<<20)
	require.NoError(t, err)
	p := pipeline.Func(func(_ context.Context, req *job.Request) (*job.Statistics, error) {
		return &job.Statistics{JobID: req.ID, PagesProcessed: 1}, nil
	})
	proc, err := jobs.NewProcessor(jobs.Config{
		MaxConcurrentJobs: 4,
		WorkerThreads:     2,
		QueueTimeout:      time.Minute,
		JobTimeout:        time.Second,
		HistoryLimit:      10,
	}, q, p)
	require.NoError(t, err)
	require.NoError(t, proc.Start(context.Background()))
	t.Cleanup(func() { _ = proc.Stop(context.Background()) })

	d, err := dispatch.New(dispatch.Config{Printer: dispatch.PrinterInfo{Name: "tcp"}}, proc, store, zerolog.Nop())
	require.NoError(t, err)
	_, addr := startServer(t, Config{ReadTimeout: time.Second, WriteTimeout: time.Second}, d)

	client := ipp.NewClient(addr, 2*time.Second)
	req := client.NewRequest(ipp.OpPrintJob)
	req.Payload = []byte("%PDF-1.4\n")
	resp, err := client.Call(context.Background(), req)
	require.NoError(t, err)

	id, err := job.ParseID(resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobUUID))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r := client.NewRequest(ipp.OpGetJobAttributes)
		r.Attributes.Set(ipp.AttrJobUUID, id.URN())
		resp, err := client.Call(context.Background(), r)
		return err == nil && resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobState) == "9"
	}, 2*time.Second, 10*time.Millisecond)

	r := client.NewRequest(ipp.OpCancelJob)
	r.Attributes.Set(ipp.AttrJobUUID, job.NewID().URN())
	_, err = client.Call(context.Background(), r)
	var se *ipp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ipp.StatusNotFound, se.Status)
}
