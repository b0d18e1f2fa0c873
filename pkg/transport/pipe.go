package transport

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrPipeRefused is returned by Connect while the pipe is set to refuse connections.
var ErrPipeRefused = errors.New("pipe refused connection")

// Pipe is an in-memory transport. The test or example side plays the broker
// through Inject, Written and Drop.
type Pipe struct {
	mu         sync.Mutex
	connected  bool
	refuse     bool
	broken     bool
	in         []byte
	out        []byte
	writeLimit int
	connects   int
}

// NewPipe creates a disconnected pipe.
func NewPipe() *Pipe {
	return &Pipe{}
}

// Connect opens the pipe. Host and port are ignored.
func (p *Pipe) Connect(ctx context.Context, host string, port uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return ErrAlreadyConnected
	}
	if p.refuse {
		return ErrPipeRefused
	}
	p.connected = true
	p.broken = false
	p.in = p.in[:0]
	p.connects++
	return nil
}

// Write records b for Written. At most the configured write limit is accepted per call.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected || p.broken {
		return 0, ErrNotConnected
	}
	n := len(b)
	if p.writeLimit > 0 && n > p.writeLimit {
		n = p.writeLimit
	}
	p.out = append(p.out, b[:n]...)
	return n, nil
}

// Read returns injected bytes, (0, nil) when there are none, or io.EOF after Drop.
func (p *Pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return 0, ErrNotConnected
	}
	if len(p.in) > 0 {
		n := copy(b, p.in)
		p.in = p.in[:copy(p.in, p.in[n:])]
		return n, nil
	}
	if p.broken {
		return 0, io.EOF
	}
	return 0, nil
}

// Stop closes the pipe.
func (p *Pipe) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	p.broken = false
	return nil
}

// Connected reports whether the pipe is open and not dropped.
func (p *Pipe) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && !p.broken
}

// Inject queues bytes for the client to read.
func (p *Pipe) Inject(b ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, chunk := range b {
		p.in = append(p.in, chunk...)
	}
}

// Written returns and clears everything the client has written.
func (p *Pipe) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.out
	p.out = nil
	return out
}

// Drop simulates the broker closing the connection.
func (p *Pipe) Drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		p.broken = true
	}
}

// Refuse makes subsequent Connect calls fail while refuse is true.
func (p *Pipe) Refuse(refuse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refuse = refuse
}

// SetWriteLimit caps the bytes accepted per Write. Zero removes the cap.
func (p *Pipe) SetWriteLimit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLimit = n
}

// Connects returns how many times Connect has succeeded.
func (p *Pipe) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}
