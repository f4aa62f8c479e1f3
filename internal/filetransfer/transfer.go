// Package filetransfer implements the file-transfer sub-protocol (spec
// §4.9): DownloadFileRequest is a Call answered immediately with the file
// size, then a dedicated task pushes FileChunk frames over the same
// Mux/Transport after a settle delay that lets the requester subscribe.
package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/mux"
	"github.com/mirrorx/endpoint/internal/wire"
)

var log = logging.L("filetransfer")

// ChunkSize is the payload size of one FileChunk push.
const ChunkSize = 1 * 1024 * 1024

// SettleDelay gives the requester time to register its chunk sink before
// the first FileChunk push arrives (spec §4.9). A var, not a const, so
// tests can shrink it.
var SettleDelay = 1 * time.Second

var (
	ErrNotRegularFile = errors.New("filetransfer: path is not a regular file")
	ErrPathTraversal  = errors.New("filetransfer: path contains a traversal element")
)

// validatePath rejects path traversal, keeping the teacher's
// filepath.Clean + strings.Contains(path, "..") check.
func validatePath(path string) (string, error) {
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("filetransfer: stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrNotRegularFile, path)
	}
	return clean, nil
}

// Server is the passive side (spec §4.9): it answers DownloadFileRequest
// calls and streams the file's bytes as pushed FileChunk frames.
type Server struct {
	m           *mux.Mux
	allowedDirs []string
}

// Serve registers the DownloadFileRequest handler on m with no allowlist
// restriction beyond path-traversal rejection. Must be called once per
// session, before the active side's first request.
func Serve(m *mux.Mux) *Server {
	return ServeWithAllowlist(m, nil)
}

// ServeWithAllowlist is Serve, additionally rejecting any request whose
// resolved path does not fall under one of allowedDirs. An empty allowlist
// permits any path that passes validatePath, matching Serve.
func ServeWithAllowlist(m *mux.Mux, allowedDirs []string) *Server {
	s := &Server{m: m, allowedDirs: allowedDirs}
	m.Handle(wire.TagDownloadFileRequest, s.handleDownload)
	return s
}

func (s *Server) handleDownload(ctx context.Context, payload wire.Message) wire.Message {
	req := payload.(wire.DownloadFileRequest)

	clean, err := validatePath(req.Path)
	if err != nil {
		return wire.Error{Message: err.Error()}
	}
	if !s.pathAllowed(clean) {
		return wire.Error{Message: fmt.Sprintf("filetransfer: %q is outside the allowed directories", req.Path)}
	}
	info, err := os.Stat(clean)
	if err != nil {
		return wire.Error{Message: err.Error()}
	}

	go s.stream(req.ID, clean, uint64(info.Size()))

	return wire.DownloadFileReply{ID: req.ID, Size: uint64(info.Size())}
}

func (s *Server) pathAllowed(clean string) bool {
	if len(s.allowedDirs) == 0 {
		return true
	}
	for _, dir := range s.allowedDirs {
		if rel, err := filepath.Rel(dir, clean); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

func (s *Server) stream(id, path string, size uint64) {
	time.Sleep(SettleDelay)

	f, err := os.Open(path)
	if err != nil {
		s.abort(id, err)
		return
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	var seq uint32
	var sent uint64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			sent += uint64(n)
			last := readErr == io.EOF || sent >= size
			chunk := wire.FileChunk{ID: id, Seq: seq, Data: append([]byte(nil), buf[:n]...), Last: last}
			if pushErr := s.m.Push(chunk); pushErr != nil {
				log.Warn("file chunk push failed", "id", id, logging.KeyError, pushErr)
				return
			}
			seq++
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			s.abort(id, readErr)
			return
		}
	}
}

func (s *Server) abort(id string, err error) {
	log.Warn("file transfer aborted", "id", id, logging.KeyError, err)
	_ = s.m.Push(wire.FileTransferError{ID: id, Message: err.Error()})
}

// Download is the active side's view of one in-flight transfer: the size
// reported by the initial Call, and a channel of chunks terminated by
// either a Last chunk or an error.
type Download struct {
	ID   string
	Size uint64

	Chunks chan wire.FileChunk
	Err    chan error
}

// Client registers the chunk/error push sinks once per session and routes
// incoming FileChunk/FileTransferError pushes to the matching Download by
// id.
type Client struct {
	m *mux.Mux

	mu     sync.Mutex
	active map[string]*Download
}

// NewClient wires the active side's push sinks into m. Must be called once
// per session before the first Download call.
func NewClient(m *mux.Mux) *Client {
	c := &Client{m: m, active: make(map[string]*Download)}
	m.Sink(wire.TagFileChunk, c.onChunk)
	m.Sink(wire.TagFileTransferError, c.onError)
	return c
}

// Download issues a DownloadFileRequest Call and returns a Download whose
// Chunks/Err channels are fed as pushes arrive.
func (c *Client) Download(ctx context.Context, id, path string) (*Download, error) {
	resp, err := c.m.Call(ctx, wire.DownloadFileRequest{ID: id, Path: path}, 0)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: download request: %w", err)
	}
	if e, ok := resp.(wire.Error); ok {
		return nil, fmt.Errorf("filetransfer: download rejected: %s", e.Message)
	}
	reply, ok := resp.(wire.DownloadFileReply)
	if !ok {
		return nil, fmt.Errorf("filetransfer: unexpected reply type %T", resp)
	}

	d := &Download{ID: id, Size: reply.Size, Chunks: make(chan wire.FileChunk, 8), Err: make(chan error, 1)}
	c.mu.Lock()
	c.active[id] = d
	c.mu.Unlock()
	return d, nil
}

func (c *Client) onChunk(msg wire.Message) {
	chunk := msg.(wire.FileChunk)
	c.mu.Lock()
	d, ok := c.active[chunk.ID]
	if ok && chunk.Last {
		delete(c.active, chunk.ID)
	}
	c.mu.Unlock()

	if !ok {
		log.Warn("file chunk for unknown transfer dropped", "id", chunk.ID)
		return
	}
	d.Chunks <- chunk
	if chunk.Last {
		close(d.Chunks)
	}
}

func (c *Client) onError(msg wire.Message) {
	fe := msg.(wire.FileTransferError)
	c.mu.Lock()
	d, ok := c.active[fe.ID]
	if ok {
		delete(c.active, fe.ID)
	}
	c.mu.Unlock()

	if !ok {
		log.Warn("file transfer error for unknown transfer dropped", "id", fe.ID)
		return
	}
	d.Err <- fmt.Errorf("filetransfer: %s", fe.Message)
	close(d.Err)
}

// WriteTo drains a Download's chunks into w in order, returning the total
// bytes written or the first error (from either the stream or w).
func (d *Download) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		select {
		case chunk, ok := <-d.Chunks:
			if !ok {
				return total, nil
			}
			n, err := w.Write(chunk.Data)
			total += int64(n)
			if err != nil {
				return total, err
			}
		case err := <-d.Err:
			return total, err
		}
	}
}
