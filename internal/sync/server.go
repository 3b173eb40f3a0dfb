package sync

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
)

// Server streams hub events to plain TCP clients, one JSON object per line.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run accepts clients until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It closes ln when ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Printf("[tcp-sync] listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[tcp-sync] accept: %v", err)
			continue
		}

		s.Hub.Add(conn)
		log.Printf("[tcp-sync] client connected: %s", conn.RemoteAddr())

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.Printf("[tcp-sync] client disconnected: %s", c.RemoteAddr())
			}()

			// clients have nothing to say; reading only detects the hangup
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
