package testing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	stdtesting "testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Request is one command received by a Server.
type Request struct {
	Command string
	Pty     bool
	Term    string
}

// Handler produces the output and exit status for a command. Whatever it
// writes to stdout and stderr is sent to the client before the exit status.
type Handler func(req Request, stdout, stderr io.Writer) int

// Reply returns a Handler that answers every command the same way.
func Reply(stdout, stderr string, status int) Handler {
	return func(_ Request, out, errOut io.Writer) int {
		io.WriteString(out, stdout)
		io.WriteString(errOut, stderr)
		return status
	}
}

// Server is an in-process SSH server for tests. It accepts public key auth
// for the keys it generated, runs exec requests through a Handler, and
// serves the sftp subsystem from the real filesystem.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string
	// KeyDir holds id_test and id_test.pub, a key pair the server accepts.
	KeyDir string
	// KeyPath is KeyDir/id_test.
	KeyPath string
	// HostKey is the server's public host key.
	HostKey ssh.PublicKey

	tb        stdtesting.TB
	config    *ssh.ServerConfig
	handler   Handler
	rejectPty atomic.Bool

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	authorized [][]byte
	requests   []Request
	logins     []string
}

// NewServer starts a server on 127.0.0.1 that is shut down when the test ends.
func NewServer(tb stdtesting.TB, handler Handler) *Server {
	tb.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		tb.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		tb.Fatalf("host signer: %v", err)
	}

	s := &Server{
		KeyDir:  tb.TempDir(),
		tb:      tb,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
	s.config = &ssh.ServerConfig{
		PublicKeyCallback: s.checkKey,
	}
	s.config.AddHostKey(hostSigner)
	s.HostKey = hostSigner.PublicKey()

	s.KeyPath = s.WriteKeyPair(s.KeyDir, "id_test", true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}
	s.Addr = ln.Addr().String()
	s.listener = ln
	go s.serve(ln)

	tb.Cleanup(s.Stop)
	return s
}

// WriteKeyPair generates an ed25519 key pair as dir/name and dir/name.pub
// and returns the private key path. Authorized keys are accepted by the
// server; others are rejected during auth.
func (s *Server) WriteKeyPair(dir, name string, authorize bool) string {
	s.tb.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		s.tb.Fatalf("generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		s.tb.Fatalf("marshal key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		s.tb.Fatalf("public key: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		s.tb.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(path+".pub", ssh.MarshalAuthorizedKey(sshPub), 0644); err != nil {
		s.tb.Fatalf("write public key: %v", err)
	}

	if authorize {
		s.mu.Lock()
		s.authorized = append(s.authorized, sshPub.Marshal())
		s.mu.Unlock()
	}
	return path
}

// WriteEncryptedKey writes a passphrase-protected private key to dir/name.
func (s *Server) WriteEncryptedKey(dir, name, passphrase string) string {
	s.tb.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		s.tb.Fatalf("generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	if err != nil {
		s.tb.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		s.tb.Fatalf("write key: %v", err)
	}
	return path
}

// RevokeAll stops accepting every key, including KeyPath.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = nil
}

// SetRejectPty makes the server refuse pty requests.
func (s *Server) SetRejectPty(on bool) {
	s.rejectPty.Store(on)
}

// Requests returns the commands executed so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Logins returns the user names of successful authentications.
func (s *Server) Logins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logins))
	copy(out, s.logins)
	return out
}

// DropConnections closes every open client connection, as a reboot would.
// The server keeps listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Stop closes the listener and all connections. New dials are refused
// until Start.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.DropConnections()
}

// Start listens again on Addr after Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	go s.serve(ln)
	return nil
}

func (s *Server) checkKey(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.authorized {
		if bytes.Equal(k, key.Marshal()) {
			s.logins = append(s.logins, meta.User())
			return &ssh.Permissions{}, nil
		}
	}
	return nil, fmt.Errorf("unknown public key for %q", meta.User())
}

func (s *Server) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(nc net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, nc)
		s.mu.Unlock()
		nc.Close()
	}()

	sconn, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *Server) handleSession(ch ssh.Channel, in <-chan *ssh.Request) {
	defer ch.Close()

	var pty bool
	var term string
	for req := range in {
		switch req.Type {
		case "pty-req":
			var p struct {
				Term              string
				Columns, Rows     uint32
				WidthPx, HeightPx uint32
				Modes             string
			}
			if s.rejectPty.Load() || ssh.Unmarshal(req.Payload, &p) != nil {
				req.Reply(false, nil)
				continue
			}
			pty, term = true, p.Term
			req.Reply(true, nil)

		case "exec":
			var p struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &p); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			r := Request{Command: p.Command, Pty: pty, Term: term}
			s.mu.Lock()
			s.requests = append(s.requests, r)
			s.mu.Unlock()

			status := s.handler(r, ch, ch.Stderr())
			ch.CloseWrite()
			ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
			return

		case "subsystem":
			var p struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &p); err != nil || p.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			srv, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			if err := srv.Serve(); err != nil && !errors.Is(err, io.EOF) {
				s.tb.Logf("sftp server: %v", err)
			}
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}
