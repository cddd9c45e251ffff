package vdd

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
)

// memPipe wraps one half of a net.Pipe as the io.ReadWriteCloser a
// Dialer hands back, letting the framing test run without a real OS
// named pipe.
func memPipe(t *testing.T) (io.ReadWriteCloser, io.ReadWriteCloser) {
	t.Helper()
	a, b := net.Pipe()
	return a, b
}

func TestNamedPipeClientFramesOneCommandPerRequest(t *testing.T) {
	client, server := memPipe(t)
	defer client.Close()
	defer server.Close()

	go func() {
		r := bufio.NewReader(server)
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if line == "RELOAD_DRIVER\n" {
			io.WriteString(server, "OK\n")
		}
	}()

	c := NewPipeClient(func(ctx context.Context) (io.ReadWriteCloser, error) {
		return client, nil
	})

	resp, err := c.RequestResponse(context.Background(), "RELOAD_DRIVER")
	if err != nil {
		t.Fatalf("RequestResponse: %v", err)
	}
	if resp != "OK" {
		t.Fatalf("expected OK, got %q", resp)
	}
}

func TestNamedPipeClientPropagatesDialError(t *testing.T) {
	boom := io.ErrClosedPipe
	c := NewPipeClient(func(ctx context.Context) (io.ReadWriteCloser, error) {
		return nil, boom
	})
	if _, err := c.RequestResponse(context.Background(), "RELOAD_DRIVER"); err != boom {
		t.Fatalf("expected dial error propagated, got %v", err)
	}
}
