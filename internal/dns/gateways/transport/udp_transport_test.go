package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-proxy/internal/dns/common/log"
)

// MockPacketHandler implements PacketHandler for testing
type MockPacketHandler struct {
	mock.Mock
}

func (m *MockPacketHandler) Serve(ctx context.Context, packet []byte, clientAddr net.Addr) ([]byte, bool) {
	args := m.Called(ctx, packet, clientAddr)
	return args.Get(0).([]byte), args.Bool(1)
}

func startTransport(t *testing.T, ctx context.Context, handler PacketHandler) *UDPTransport {
	t.Helper()
	tr := NewUDPTransport(Options{Addr: "127.0.0.1:0", Logger: log.NewNoopLogger()})
	require.NoError(t, tr.Start(ctx, handler))
	t.Cleanup(func() { _ = tr.Stop() })
	return tr
}

func dial(t *testing.T, addr string) *net.UDPConn {
	t.Helper()
	raddr, err := net.ResolveUDPAddr("udp", addr)
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, raddr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *net.UDPConn, payload []byte, wait time.Duration) ([]byte, error) {
	t.Helper()
	_, err := conn.Write(payload)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func TestNewUDPTransport_Defaults(t *testing.T) {
	tr := NewUDPTransport(Options{Addr: "127.0.0.1:5053"})
	assert.Equal(t, "127.0.0.1:5053", tr.Address())
	assert.Equal(t, DefaultReadBufferSize, tr.bufSize)
	assert.NotNil(t, tr.logger)
	assert.False(t, tr.running)
	assert.NoError(t, tr.Stop(), "stopping an idle transport is a no-op")
}

func TestUDPTransport_RepliesWithHandlerBytes(t *testing.T) {
	handler := &MockPacketHandler{}
	handler.On("Serve", mock.Anything, []byte("ping"), mock.AnythingOfType("*net.UDPAddr")).Return([]byte("pong"), true)

	tr := startTransport(t, context.Background(), handler)
	conn := dial(t, tr.Address())

	reply, err := exchange(t, conn, []byte("ping"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), reply)
	handler.AssertExpectations(t)
}

func TestUDPTransport_DropsWhenHandlerDeclines(t *testing.T) {
	handler := &MockPacketHandler{}
	handler.On("Serve", mock.Anything, mock.Anything, mock.Anything).Return([]byte(nil), false)

	tr := startTransport(t, context.Background(), handler)
	conn := dial(t, tr.Address())

	_, err := exchange(t, conn, []byte{1, 2, 3, 4, 5}, 200*time.Millisecond)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout(), "no reply is sent")
	handler.AssertNumberOfCalls(t, "Serve", 1)
}

func TestUDPTransport_SlowHandlerDoesNotBlockReception(t *testing.T) {
	release := make(chan struct{})
	handler := PacketHandlerFunc(func(_ context.Context, packet []byte, _ net.Addr) ([]byte, bool) {
		if string(packet) == "slow" {
			<-release
		}
		return append([]byte("re:"), packet...), true
	})
	tr := startTransport(t, context.Background(), handler)
	defer close(release)

	slow := dial(t, tr.Address())
	_, err := slow.Write([]byte("slow"))
	require.NoError(t, err)

	fast := dial(t, tr.Address())
	reply, err := exchange(t, fast, []byte("fast"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("re:fast"), reply)
}

func TestUDPTransport_ConcurrentClients(t *testing.T) {
	var calls atomic.Int32
	handler := PacketHandlerFunc(func(_ context.Context, packet []byte, _ net.Addr) ([]byte, bool) {
		calls.Add(1)
		return packet, true
	})
	tr := startTransport(t, context.Background(), handler)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n byte) {
			defer wg.Done()
			conn := dial(t, tr.Address())
			reply, err := exchange(t, conn, []byte{n, n, n}, time.Second)
			if assert.NoError(t, err) {
				assert.Equal(t, []byte{n, n, n}, reply)
			}
		}(byte(i))
	}
	wg.Wait()
	assert.Equal(t, int32(10), calls.Load())
}

func TestUDPTransport_StartTwice(t *testing.T) {
	tr := startTransport(t, context.Background(), &MockPacketHandler{})
	err := tr.Start(context.Background(), &MockPacketHandler{})
	assert.EqualError(t, err, "UDP transport already running")
}

func TestUDPTransport_StartErrors(t *testing.T) {
	tr := NewUDPTransport(Options{Addr: "127.0.0.1:0"})
	assert.Error(t, tr.Start(context.Background(), nil))

	tr = NewUDPTransport(Options{Addr: "not an address"})
	assert.ErrorContains(t, tr.Start(context.Background(), &MockPacketHandler{}), "failed to resolve UDP address")

	taken := startTransport(t, context.Background(), &MockPacketHandler{})
	tr = NewUDPTransport(Options{Addr: taken.Address()})
	assert.ErrorContains(t, tr.Start(context.Background(), &MockPacketHandler{}), "failed to bind UDP socket")
}

func TestUDPTransport_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := startTransport(t, ctx, &MockPacketHandler{})
	bound := tr.Address()

	cancel()
	assert.Eventually(t, func() bool { return tr.Address() != bound }, time.Second, 10*time.Millisecond)
}

func TestUDPTransport_StopWaitsForInflight(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	handler := PacketHandlerFunc(func(ctx context.Context, packet []byte, _ net.Addr) ([]byte, bool) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil, false
	})
	tr := NewUDPTransport(Options{Addr: "127.0.0.1:0"})
	require.NoError(t, tr.Start(context.Background(), handler))

	conn := dial(t, tr.Address())
	_, err := conn.Write([]byte("x"))
	require.NoError(t, err)
	<-started

	require.NoError(t, tr.Stop())
	assert.True(t, finished.Load())
}

func TestUDPTransport_Restart(t *testing.T) {
	handler := PacketHandlerFunc(func(_ context.Context, packet []byte, _ net.Addr) ([]byte, bool) {
		return packet, true
	})
	tr := NewUDPTransport(Options{Addr: "127.0.0.1:0"})
	require.NoError(t, tr.Start(context.Background(), handler))
	require.NoError(t, tr.Stop())
	require.NoError(t, tr.Start(context.Background(), handler))
	defer tr.Stop()

	reply, err := exchange(t, dial(t, tr.Address()), []byte("again"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("again"), reply)
}
