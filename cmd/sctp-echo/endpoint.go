package main

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/sctp-proto/pkg/sctp/association"
	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/metrics"
	"github.com/datawire/sctp-proto/pkg/sctp/packet"
)

// noisyLogRate bounds how often the endpoint logs rejected inbound
// packets for any one association: a misbehaving peer shouldn't be able
// to flood the log.
const noisyLogRate = 1 // one line per second, per association

// assocEntry is one live association plus the demuxer-side bookkeeping the
// core itself doesn't know about: its log-correlation id and a limiter for
// its own noisy log lines.
type assocEntry struct {
	id     xid.ID
	remote net.Addr
	assoc  *association.Association
	noisy  *rate.Limiter
}

// Endpoint demultiplexes one UDP socket across many associations, the way
// a real SCTP listener demuxes by (source address, source port) onto
// per-peer TCBs. It owns no protocol logic itself — HandleIncoming,
// PollTransmit, HandleTimeout and friends all live on *association.Association;
// this type is purely the I/O and bookkeeping loop that drains that sans-io
// core and pumps its output back onto the socket.
type Endpoint struct {
	cfg    *EndpointConfig
	conn   *net.UDPConn
	secret []byte

	collector *metrics.AssociationCollector

	mu     sync.Mutex
	assocs map[string]*assocEntry
}

// NewEndpoint opens the UDP socket cfg.Listen.Address names and returns an
// Endpoint ready to be Run.
func NewEndpoint(cfg *EndpointConfig) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Listen.Address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		cfg:       cfg,
		conn:      conn,
		secret:    []byte(cfg.CookieSecret),
		collector: metrics.NewAssociationCollector([]string{"assoc", "remote"}, nil),
		assocs:    make(map[string]*assocEntry),
	}, nil
}

// Collector exposes the endpoint's Prometheus collector for registration.
func (e *Endpoint) Collector() prometheus.Collector { return e.collector }

// Close releases the underlying socket.
func (e *Endpoint) Close() error { return e.conn.Close() }

// Shutdown closes every live association with a locally-initiated ABORT,
// flushes whatever that queues for the wire, and then closes the
// listening socket. Any one association's outbound write failing, or the
// final socket close failing, shouldn't stop the others from being given
// the chance to notify their peer, so failures are collected rather than
// returned on the first one.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	entries := make([]*assocEntry, 0, len(e.assocs))
	for _, entry := range e.assocs {
		entries = append(entries, entry)
	}
	e.mu.Unlock()

	var result *multierror.Error
	for _, entry := range entries {
		entry.assoc.Close()
		if err := e.flushOutbound(entry); err != nil {
			result = multierror.Append(result, fmt.Errorf("assoc=%s: %w", entry.id, err))
		}
		e.collector.Remove(entry.id)
	}

	if err := e.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing listener: %w", err))
	}
	return result.ErrorOrNil()
}

// ReadLoop never returns until the socket is closed or ctx is cancelled,
// reading one datagram at a time and feeding it to the owning association
// (or creating one, if the packet is an unrecognized peer's opening INIT).
func (e *Endpoint) ReadLoop(ctx context.Context) error {
	buf := make([]byte, 1<<16)
	for {
		_ = e.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, remote, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		e.handleDatagram(ctx, remote, raw)
	}
}

func (e *Endpoint) handleDatagram(ctx context.Context, remote *net.UDPAddr, raw []byte) {
	key := remote.String()
	now := time.Now()

	e.mu.Lock()
	entry, ok := e.assocs[key]
	if !ok {
		if pd, err := packet.Decode(raw); err != nil || pd.FirstChunkType != chunk.CTInit {
			e.mu.Unlock()
			return // only an opening INIT creates an association
		}
		id := xid.New()
		log := association.NewDlogLogger(dlog.WithField(ctx, "assoc", id.String()))
		entry = &assocEntry{
			id:     id,
			remote: remote,
			assoc:  association.NewServer(e.cfg.AssociationConfig(), remote, log, e.secret),
			noisy:  rate.NewLimiter(rate.Limit(noisyLogRate), 1),
		}
		e.assocs[key] = entry
		e.collector.Add(entry.id, entry.assoc, []string{entry.id.String(), key})
		dlog.Infof(ctx, "assoc=%s new association from %s", id, key)
	}
	e.mu.Unlock()

	if err := entry.assoc.HandleIncoming(raw, now); err != nil {
		if entry.noisy.Allow() {
			dlog.Debugf(ctx, "assoc=%s inbound packet rejected: %v", entry.id, err)
		}
	}
	e.drain(ctx, entry)
}

// TimerLoop drives every live association's HandleTimeout once its next
// deadline passes. This polling loop is the sans-io core's stand-in for
// timers a stateful connection handler would arm directly against a
// runtime clock.
func (e *Endpoint) TimerLoop(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			e.mu.Lock()
			entries := make([]*assocEntry, 0, len(e.assocs))
			for _, entry := range e.assocs {
				entries = append(entries, entry)
			}
			e.mu.Unlock()

			for _, entry := range entries {
				if deadline, ok := entry.assoc.PollTimeout(); ok && !now.Before(deadline) {
					entry.assoc.HandleTimeout(now)
					e.drain(ctx, entry)
				}
			}
		}
	}
}

// flushOutbound writes every datagram the core has queued via PollTransmit
// for entry and returns the last write error seen, if any, instead of
// logging it directly, so callers that need to aggregate failures across
// many associations (Shutdown) can do so.
func (e *Endpoint) flushOutbound(entry *assocEntry) error {
	var lastErr error
	for {
		t, ok := entry.assoc.PollTransmit()
		if !ok {
			return lastErr
		}
		if _, err := e.conn.WriteToUDP(t.Payload, entry.remote.(*net.UDPAddr)); err != nil {
			lastErr = err
		}
	}
}

// drain flushes everything the last core call queued: outbound datagrams
// go back out the socket, application events drive the echo behavior, and
// EndpointDrained removes the association's bookkeeping.
func (e *Endpoint) drain(ctx context.Context, entry *assocEntry) {
	if err := e.flushOutbound(entry); err != nil {
		dlog.Errorf(ctx, "assoc=%s write failed: %v", entry.id, err)
	}

	for {
		ev, ok := entry.assoc.Poll()
		if !ok {
			break
		}
		e.handleEvent(ctx, entry, ev)
	}

	for {
		ee, ok := entry.assoc.PollEndpointEvent()
		if !ok {
			break
		}
		if ee.Kind == association.EndpointDrained {
			dlog.Infof(ctx, "assoc=%s drained, releasing", entry.id)
			e.collector.Remove(entry.id)
			e.mu.Lock()
			delete(e.assocs, entry.remote.String())
			e.mu.Unlock()
		}
	}
}

// handleEvent implements the echo behavior: every stream the peer opens
// gets accepted, and every message received on it is sent straight back
// on the same stream with the same payload protocol id.
func (e *Endpoint) handleEvent(ctx context.Context, entry *assocEntry, ev association.Event) {
	switch ev.Kind {
	case association.EventConnected:
		dlog.Infof(ctx, "assoc=%s established", entry.id)
	case association.EventStreamOpened:
		_ = entry.assoc.HandleEvent(association.AssociationEvent{
			Kind:     association.EventAcceptStream,
			StreamID: ev.StreamID,
		}, time.Now())
	case association.EventStreamReadable:
		for {
			msg, ok := entry.assoc.ReadMessage(ev.StreamID)
			if !ok {
				break
			}
			err := entry.assoc.HandleEvent(association.AssociationEvent{
				Kind:              association.EventSendPayloadData,
				StreamID:          ev.StreamID,
				PayloadProtocolID: msg.PayloadProtocolID,
				Data:              msg.UserData,
				Unordered:         msg.Unordered,
			}, time.Now())
			if err != nil {
				dlog.Errorf(ctx, "assoc=%s echo failed: %v", entry.id, err)
			}
		}
	case association.EventAssociationLost:
		if ev.Lost != nil {
			dlog.Infof(ctx, "assoc=%s lost: %s", entry.id, ev.Lost.Reason)
		}
	}
}
