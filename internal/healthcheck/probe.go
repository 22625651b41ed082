// Package healthcheck implements the active probe chain described in
// §4.5: TCP/UDP/HTTP detectors that run on a fixed cadence and feed
// synthetic call outcomes back into the metric store, letting the
// Error-Rate evaluator drive HalfOpen recovery without a separate code
// path. Grounded on context-based net.Dialer probing and
// original_source/polaris/plugin/health_checker for exact TCP/UDP/HTTP
// semantics.
package healthcheck

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/polaris-governance/core/internal/errs"
)

// DetectResult is the outcome of one probe run (§4.5: "detect(instance)
// -> {return_code, elapse_ms, detect_type}").
type DetectResult struct {
	Kind       errs.Kind
	DetectType string
	ElapseMs   int64
}

// Ok reports whether the detection succeeded.
func (r DetectResult) Ok() bool {
	return r.Kind == errs.Ok
}

// Prober is one entry in the health-check chain.
type Prober interface {
	Name() string
	Detect(ctx context.Context, host string, port int) DetectResult
}

func elapseMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// TCPProbe succeeds iff a TCP connect completes within TimeoutMs (§4.5
// "TCP: connect with timeout_ms; success iff connect completes").
type TCPProbe struct {
	TimeoutMs int64
}

func (p TCPProbe) Name() string { return "tcp" }

func (p TCPProbe) Detect(ctx context.Context, host string, port int) DetectResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.TimeoutMs)*time.Millisecond)
	defer cancel()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return DetectResult{Kind: errs.NetworkFailed, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	conn.Close()
	return DetectResult{Kind: errs.Ok, DetectType: p.Name(), ElapseMs: elapseMs(start)}
}

// UDPProbe sends Send and, if Receive is configured, compares the
// response byte-for-byte within TimeoutMs; otherwise the send alone is
// taken as success (§4.5). An empty Send is a configuration error,
// matching udp_detector.cpp's DetectInstance precondition.
type UDPProbe struct {
	Send      []byte
	Receive   []byte
	TimeoutMs int64
}

func (p UDPProbe) Name() string { return "udp" }

func (p UDPProbe) Detect(ctx context.Context, host string, port int) DetectResult {
	start := time.Now()
	if len(p.Send) == 0 {
		return DetectResult{Kind: errs.InvalidConfig, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	deadline := start.Add(time.Duration(p.TimeoutMs) * time.Millisecond)

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return DetectResult{Kind: errs.NetworkFailed, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return DetectResult{Kind: errs.NetworkFailed, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	if _, err := conn.Write(p.Send); err != nil {
		return DetectResult{Kind: errs.NetworkFailed, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	if len(p.Receive) == 0 {
		return DetectResult{Kind: errs.Ok, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}

	buf := make([]byte, len(p.Receive))
	n, err := conn.Read(buf)
	if err != nil {
		return DetectResult{Kind: errs.NetworkFailed, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	if !bytes.Equal(buf[:n], p.Receive) {
		return DetectResult{Kind: errs.ServerError, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	return DetectResult{Kind: errs.Ok, DetectType: p.Name(), ElapseMs: elapseMs(start)}
}

// HTTPProbe issues Method against Path and succeeds iff the response
// status is in ExpectStatus (§4.5).
type HTTPProbe struct {
	Method       string
	Path         string
	TimeoutMs    int64
	ExpectStatus map[int]struct{}
}

func (p HTTPProbe) Name() string { return "http" }

func (p HTTPProbe) Detect(ctx context.Context, host string, port int) DetectResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.TimeoutMs)*time.Millisecond)
	defer cancel()

	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(host, fmt.Sprintf("%d", port)), p.Path)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return DetectResult{Kind: errs.InvalidConfig, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}

	client := &http.Client{Timeout: time.Duration(p.TimeoutMs) * time.Millisecond}
	resp, err := client.Do(req)
	if err != nil {
		return DetectResult{Kind: errs.NetworkFailed, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	defer resp.Body.Close()

	expect := p.ExpectStatus
	if len(expect) == 0 {
		expect = map[int]struct{}{http.StatusOK: {}}
	}
	if _, ok := expect[resp.StatusCode]; !ok {
		return DetectResult{Kind: errs.ServerError, DetectType: p.Name(), ElapseMs: elapseMs(start)}
	}
	return DetectResult{Kind: errs.Ok, DetectType: p.Name(), ElapseMs: elapseMs(start)}
}
