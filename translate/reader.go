package translate

import (
	"bufio"
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

// lineResult is one line read from the upstream body, or the terminal error
// (io.EOF on a clean close).
type lineResult struct {
	line []byte
	err  error
}

// lineSource runs a single background reader goroutine that feeds lines
// onto a buffered channel, so the timeout machine can race a read against a
// timer without blocking on the underlying connection. Stop releases the
// goroutine even when the consumer abandons the stream mid-way.
type lineSource struct {
	ch   chan lineResult
	stop chan struct{}
	body io.ReadCloser
	g    *errgroup.Group
}

func newLineSource(body io.ReadCloser) *lineSource {
	ls := &lineSource{
		ch:   make(chan lineResult, 1),
		stop: make(chan struct{}),
		body: body,
	}

	ls.g = &errgroup.Group{}
	ls.g.Go(func() error {
		defer close(ls.ch)

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)

			select {
			case ls.ch <- lineResult{line: line}:
			case <-ls.stop:
				return nil
			}
		}

		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}

		select {
		case ls.ch <- lineResult{err: err}:
		case <-ls.stop:
		}

		return nil
	})

	return ls
}

// Stop unblocks and joins the reader goroutine and closes the body.
func (ls *lineSource) Stop() error {
	close(ls.stop)

	err := ls.body.Close()

	_ = ls.g.Wait()

	return err
}

// timeoutMachine tracks the three per-stream bounds: time to the first
// parsed frame, idle time between frames after that, and the absolute
// wall-clock bound. A bound of zero is disabled.
type timeoutMachine struct {
	first         time.Duration
	chunk         time.Duration
	total         time.Duration
	start         time.Time
	firstReceived bool
}

func newTimeoutMachine(s Settings, start time.Time) *timeoutMachine {
	return &timeoutMachine{first: s.FirstTimeout, chunk: s.ChunkTimeout, total: s.TotalTimeout, start: start}
}

// markFirst records that the first frame has been parsed, switching the
// per-read bound from first to chunk.
func (m *timeoutMachine) markFirst() {
	m.firstReceived = true
}

// effective returns the duration to wait for the next read, and ok=false
// when no bound applies (wait forever). A zero duration with ok=true means
// the total bound has already elapsed.
func (m *timeoutMachine) effective(now time.Time) (time.Duration, bool) {
	var (
		bound time.Duration
		has   bool
	)

	per := m.first
	if m.firstReceived {
		per = m.chunk
	}

	if per > 0 {
		bound, has = per, true
	}

	if m.total > 0 {
		remaining := m.total - now.Sub(m.start)
		if remaining < 0 {
			remaining = 0
		}

		if !has || remaining < bound {
			bound, has = remaining, true
		}
	}

	return bound, has
}

// next reads the next line, respecting the current effective bound.
// done=true with a nil error means the stream is over, either cleanly
// (EOF, cancellation) or because a bound tripped; both terminate gracefully.
func (m *timeoutMachine) next(ctx context.Context, src *lineSource, now time.Time) (line []byte, done bool, err error) {
	bound, hasBound := m.effective(now)

	var timerCh <-chan time.Time

	if hasBound {
		timer := time.NewTimer(bound)
		defer timer.Stop()

		timerCh = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, true, nil
	case <-timerCh:
		return nil, true, nil
	case res, ok := <-src.ch:
		if !ok {
			return nil, true, nil
		}

		if res.err != nil {
			if res.err == io.EOF {
				return nil, true, nil
			}

			return nil, true, res.err
		}

		return res.line, false, nil
	}
}
