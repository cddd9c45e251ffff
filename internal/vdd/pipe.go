package vdd

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// PipeClient sends one command to a running driver helper and returns
// its response, mirroring execute_pipe_command's write-then-read round
// trip over \\.\pipe\MTTVirtualDisplayPipe.
type PipeClient interface {
	RequestResponse(ctx context.Context, command string) (string, error)
}

// Dialer opens the platform transport a named-pipe client talks over;
// pipe_windows.go and pipe_stub.go each provide one, the same
// windows.go/darwin.go/darwin_stub.go split the teacher uses for its
// own platform-specific code.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// namedPipeClient implements the command framing itself — a single
// newline-terminated command, a single newline-terminated reply — over
// whatever connection Dial opens. The framing is platform-independent;
// only Dial is not.
type namedPipeClient struct {
	Dial Dialer
}

// NewPipeClient builds a PipeClient that dials fresh for every command,
// matching connect_to_pipe_with_retry's per-call connect/disconnect.
func NewPipeClient(dial Dialer) PipeClient {
	return &namedPipeClient{Dial: dial}
}

func (c *namedPipeClient) RequestResponse(ctx context.Context, command string) (string, error) {
	conn, err := c.Dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, command+"\n"); err != nil {
		return "", err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}
