package udp

import (
	"net"
	"testing"
	"time"

	"github.com/datarhei/ffstats/source"

	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, datagramMode bool, bufferSize int) (Server, source.Registry) {
	registry := source.New(source.Config{})

	s, err := New(Config{
		Addr:         "127.0.0.1:0",
		BufferSize:   bufferSize,
		DatagramMode: datagramMode,
		Registry:     registry,
	})
	require.NoError(t, err)

	require.NoError(t, s.Listen())

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Serve()
	}()

	t.Cleanup(func() {
		s.Close()

		select {
		case err := <-errCh:
			require.ErrorIs(t, err, ErrServerClosed)
		case <-time.After(time.Second):
			require.Fail(t, "server didn't stop")
		}
	})

	return s, registry
}

func dial(t *testing.T, s Server) net.Conn {
	conn, err := net.Dial("udp", s.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestStream(t *testing.T) {
	s, registry := startServer(t, false, 0)

	conn := dial(t, s)
	id := source.UDPID(conn.LocalAddr().String())

	// one block split over two datagrams
	_, err := conn.Write([]byte("frame=25\ntotal_size=1024\nout_ti"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("me_us=1000000\ndup_frames=1\ndrop_frames=0\nprogress=continue\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := registry.Get(id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	src, err := registry.Get(id)
	require.NoError(t, err)
	require.Equal(t, uint64(25), src.Stats.Frame)
	require.Equal(t, uint64(1024), src.Stats.TotalSize)
	require.Equal(t, uint64(1000), src.Stats.OutTimeMs)
	require.Equal(t, source.StateRunning, src.State)

	_, err = conn.Write([]byte("frame=50\ntotal_size=2048\nout_time_us=2000000\nprogress=end\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		src, err := registry.Get(id)
		return err == nil && src.State == source.StateFinished
	}, time.Second, 10*time.Millisecond)
}

func TestDatagram(t *testing.T) {
	s, registry := startServer(t, true, 0)

	conn := dial(t, s)
	id := source.UDPID(conn.LocalAddr().String())

	_, err := conn.Write([]byte("frame=42\nfps=25.0\ntotal_size=1024\nout_time_ms=1680000\ndup_frames=0\ndrop_frames=3\nprogress=end"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := registry.Get(id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	src, err := registry.Get(id)
	require.NoError(t, err)
	require.Equal(t, "frame=42\ntotal_size=1024\nout_time_ms=1680000\ndup_frames=0\ndrop_frames=3", src.Data)
	require.Equal(t, source.StateFinished, src.State)
	require.Equal(t, uint64(1680), src.Stats.OutTimeMs)
}

func TestStreamTruncated(t *testing.T) {
	s, registry := startServer(t, false, 32)

	conn := dial(t, s)
	id := source.UDPID(conn.LocalAddr().String())

	// cut after 32 bytes, in the middle of the out_time_us line
	_, err := conn.Write([]byte("frame=100\ntotal_size=1000\nout_time_us=4000000\n"))
	require.NoError(t, err)

	_, err = conn.Write([]byte("frame=125\nprogress=continue\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := registry.Get(id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	src, err := registry.Get(id)
	require.NoError(t, err)
	require.Equal(t, uint64(125), src.Stats.Frame)
	require.Equal(t, uint64(0), src.Stats.TotalSize)
	require.Equal(t, "frame=125", src.Data)
}

func TestDatagramTruncated(t *testing.T) {
	s, registry := startServer(t, true, 32)

	conn := dial(t, s)
	id := source.UDPID(conn.LocalAddr().String())

	// the last complete line is total_size, out_time_us is cut
	_, err := conn.Write([]byte("frame=100\ntotal_size=1000\nout_time_us=4000000\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := registry.Get(id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	src, err := registry.Get(id)
	require.NoError(t, err)
	require.Equal(t, uint64(100), src.Stats.Frame)
	require.Equal(t, uint64(1000), src.Stats.TotalSize)
	require.Equal(t, uint64(0), src.Stats.OutTimeMs)
	require.Equal(t, "frame=100\ntotal_size=1000", src.Data)
}

func TestClose(t *testing.T) {
	s, err := New(Config{
		Addr:     "127.0.0.1:0",
		Registry: source.New(source.Config{}),
	})
	require.NoError(t, err)

	require.Nil(t, s.Addr())

	s.Close()
	s.Close()

	require.ErrorIs(t, s.ListenAndServe(), ErrServerClosed)
}
