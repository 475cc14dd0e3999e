package stalk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roadrunner-server/errors"
	"github.com/stalk-mq/stalk/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultTube is where a fresh connection submits and watches.
	DefaultTube = "default"

	// tube names are capped by the server
	maxNameLen = 200

	tracerName = "stalk"
)

// Tube drives the full command surface of one connection: which tube new
// jobs are submitted to, which tubes are watched for reservations, and
// every job lifecycle command. A Tube owns its Conn's socket; two Tubes
// must never share a Conn, and a Tube is not safe for concurrent use.
type Tube struct {
	conn    *Conn
	log     *zap.Logger
	metrics *statsExporter
	tracer  trace.Tracer

	using    string
	watching map[string]struct{}
}

// NewTube wraps conn. A fresh tube submits to "default" and watches only
// "default", mirroring the server's view of a new connection.
func NewTube(conn *Conn) *Tube {
	return &Tube{
		conn:     conn,
		log:      conn.log.Named("tube"),
		metrics:  newStatsExporter(),
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
		using:    DefaultTube,
		watching: map[string]struct{}{DefaultTube: {}},
	}
}

// SetTracerProvider replaces the tracer used for per-command spans. The
// global otel provider is used until this is called.
func (t *Tube) SetTracerProvider(tp trace.TracerProvider) {
	t.tracer = tp.Tracer(tracerName)
}

// Conn returns the connection this tube drives.
func (t *Tube) Conn() *Conn {
	return t.conn
}

// Using returns the tube new jobs are submitted to.
func (t *Tube) Using() string {
	return t.using
}

// Watching returns the watched tube names, sorted; the set is never empty.
func (t *Tube) Watching() []string {
	out := make([]string, 0, len(t.watching))
	for name := range t.watching {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Use selects the tube subsequent Put calls submit to.
func (t *Tube) Use(name string) (err error) {
	const op = errors.Op("stalk_tube_use")

	if verr := validName(name); verr != nil {
		return errors.E(op, verr)
	}

	done := t.track("use")
	defer func() { done(err) }()

	fields, ferr := t.simple([]string{"use", name}, nil)
	if ferr != nil {
		err = errors.E(op, ferr)
		return err
	}

	if len(fields) == 0 || fields[0] != protocol.StatusUsing {
		err = errors.E(op, unexpected(fields))
		return err
	}

	t.using = name
	return nil
}

// Watch adds names to the watch set. Names already watched are skipped
// without a server round trip.
func (t *Tube) Watch(names ...string) (err error) {
	const op = errors.Op("stalk_tube_watch")

	done := t.track("watch")
	defer func() { done(err) }()

	for _, name := range names {
		if _, ok := t.watching[name]; ok {
			continue
		}

		if verr := validName(name); verr != nil {
			err = errors.E(op, verr)
			return err
		}

		fields, ferr := t.simple([]string{"watch", name}, nil)
		if ferr != nil {
			err = errors.E(op, ferr)
			return err
		}

		if len(fields) == 0 || fields[0] != protocol.StatusWatching {
			err = errors.E(op, unexpected(fields))
			return err
		}

		t.watching[name] = struct{}{}
	}

	return nil
}

// Ignore removes names from the watch set; names not being watched are
// skipped. The server refuses to drop the last watched tube: that answer
// surfaces as ErrNotIgnored and the set is left exactly as it was.
func (t *Tube) Ignore(names ...string) (err error) {
	const op = errors.Op("stalk_tube_ignore")

	done := t.track("ignore")
	defer func() { done(err) }()

	for _, name := range names {
		if _, ok := t.watching[name]; !ok {
			continue
		}

		fields, ferr := t.simple([]string{"ignore", name}, nil)
		if ferr != nil {
			err = errors.E(op, ferr)
			return err
		}

		if len(fields) == 0 {
			err = errors.E(op, protocol.ErrMalformed)
			return err
		}

		switch fields[0] {
		case protocol.StatusWatching:
			delete(t.watching, name)
		case protocol.StatusNotIgnored:
			err = errors.E(op, ErrNotIgnored)
			return err
		default:
			err = errors.E(op, unexpected(fields))
			return err
		}
	}

	return nil
}

// Put submits job's payload to the used tube and returns a fresh bound Job
// carrying the assigned id. A BURIED answer means the job was stored but
// the server is low on memory: the bound job is returned together with
// ErrBuried so the caller can still kick it later.
func (t *Tube) Put(job *Job, priority uint32, delay, ttr time.Duration) (bound *Job, err error) {
	const op = errors.Op("stalk_tube_put")

	done := t.track("put")
	defer func() { done(err) }()

	body := job.Body()
	if body == nil {
		body = []byte{}
	}

	params := []string{
		"put",
		strconv.FormatUint(uint64(priority), 10),
		formatSeconds(delay),
		formatSeconds(ttr),
		strconv.Itoa(len(body)),
	}

	fields, ferr := t.simple(params, body)
	if ferr != nil {
		err = errors.E(op, ferr)
		return nil, err
	}

	if len(fields) == 0 {
		err = errors.E(op, protocol.ErrMalformed)
		return nil, err
	}

	switch fields[0] {
	case protocol.StatusInserted, protocol.StatusBuried:
		if len(fields) < 2 {
			err = errors.E(op, protocol.ErrMalformed)
			return nil, err
		}

		id, perr := strconv.ParseUint(fields[1], 10, 32)
		if perr != nil {
			err = errors.E(op, protocol.ErrMalformed)
			return nil, err
		}

		bound = boundJob(t, uint32(id), body)
		if fields[0] == protocol.StatusBuried {
			err = errors.E(op, ErrBuried)
			return bound, err
		}
		return bound, nil
	case protocol.StatusJobTooBig:
		err = errors.E(op, ErrJobTooBig)
	case protocol.StatusDraining:
		err = errors.E(op, ErrDraining)
	case protocol.StatusExpectedCRLF:
		err = errors.E(op, ErrExpectedCRLF)
	default:
		err = errors.E(op, unexpected(fields))
	}

	return nil, err
}

// Reserve claims the next job from the watched tubes. A zero timeout
// blocks until the server hands one back; otherwise the server gives up
// after timeout and found is false. There is no client-side cancellation:
// a blocked reserve only returns when the transport is closed externally.
func (t *Tube) Reserve(timeout time.Duration) (job *Job, found bool, err error) {
	const op = errors.Op("stalk_tube_reserve")

	done := t.track("reserve")
	defer func() { done(err) }()

	params := []string{"reserve"}
	if timeout > 0 {
		params = []string{"reserve-with-timeout", formatSeconds(timeout)}
	}

	frame, ferr := t.frame(params)
	if ferr != nil {
		err = errors.E(op, ferr)
		return nil, false, err
	}

	switch frame.Status {
	case protocol.StatusReserved:
		return boundJob(t, frame.ID, frame.Body), true, nil
	case protocol.StatusTimedOut:
		return nil, false, nil
	case protocol.StatusDeadlineSoon:
		err = errors.E(op, ErrDeadlineSoon)
		return nil, false, err
	default:
		err = errors.E(op, &UnexpectedResponseError{Status: frame.Status})
		return nil, false, err
	}
}

// Kick moves at most bound buried jobs (or, with none buried, delayed
// jobs) back to ready and returns how many were moved.
func (t *Tube) Kick(bound uint32) (n uint32, err error) {
	const op = errors.Op("stalk_tube_kick")

	done := t.track("kick")
	defer func() { done(err) }()

	fields, ferr := t.simple([]string{"kick", strconv.FormatUint(uint64(bound), 10)}, nil)
	if ferr != nil {
		err = errors.E(op, ferr)
		return 0, err
	}

	if len(fields) < 2 || fields[0] != protocol.StatusKicked {
		err = errors.E(op, unexpected(fields))
		return 0, err
	}

	count, perr := strconv.ParseUint(fields[1], 10, 32)
	if perr != nil {
		err = errors.E(op, protocol.ErrMalformed)
		return 0, err
	}

	return uint32(count), nil
}

// KickJob moves one specific buried or delayed job back to ready.
func (t *Tube) KickJob(id uint32) (err error) {
	const op = errors.Op("stalk_tube_kick_job")

	done := t.track("kick-job")
	defer func() { done(err) }()

	err = t.confirm(op, []string{"kick-job", formatID(id)}, protocol.StatusKicked)
	return err
}

// Delete removes a job from the server entirely.
func (t *Tube) Delete(id uint32) (err error) {
	const op = errors.Op("stalk_tube_delete")

	done := t.track("delete")
	defer func() { done(err) }()

	err = t.confirm(op, []string{"delete", formatID(id)}, protocol.StatusDeleted)
	return err
}

// Release puts a reserved job back into the ready queue, after delay when
// one is given. A server answering BURIED stored the job in the buried
// state instead; that surfaces as ErrBuried.
func (t *Tube) Release(id, priority uint32, delay time.Duration) (err error) {
	const op = errors.Op("stalk_tube_release")

	done := t.track("release")
	defer func() { done(err) }()

	params := []string{
		"release",
		formatID(id),
		strconv.FormatUint(uint64(priority), 10),
		formatSeconds(delay),
	}
	err = t.confirm(op, params, protocol.StatusReleased)
	return err
}

// Bury moves a reserved job into the buried state.
func (t *Tube) Bury(id, priority uint32) (err error) {
	const op = errors.Op("stalk_tube_bury")

	done := t.track("bury")
	defer func() { done(err) }()

	params := []string{"bury", formatID(id), strconv.FormatUint(uint64(priority), 10)}
	err = t.confirm(op, params, protocol.StatusBuried)
	return err
}

// Touch extends the reservation of a job close to its TTR.
func (t *Tube) Touch(id uint32) (err error) {
	const op = errors.Op("stalk_tube_touch")

	done := t.track("touch")
	defer func() { done(err) }()

	err = t.confirm(op, []string{"touch", formatID(id)}, protocol.StatusTouched)
	return err
}

// simple issues one command and splits the single-line reply into fields,
// the first being the status keyword.
func (t *Tube) simple(params []string, body []byte) ([]string, error) {
	sock, err := t.conn.socket()
	if err != nil {
		return nil, err
	}

	if err := t.conn.write(protocol.Encode(params, body)); err != nil {
		return nil, err
	}

	line, err := protocol.ReadLine(sock, t.conn.cfg.ReadBufferSize)
	if err != nil {
		return nil, err
	}

	return strings.Fields(line), nil
}

// frame issues one command whose reply may carry a job body.
func (t *Tube) frame(params []string) (*protocol.Frame, error) {
	sock, err := t.conn.socket()
	if err != nil {
		return nil, err
	}

	if err := t.conn.write(protocol.Encode(params, nil)); err != nil {
		return nil, err
	}

	return protocol.ReadFrame(sock, t.conn.cfg.ReadBufferSize)
}

// confirm issues a command that answers with a bare keyword.
func (t *Tube) confirm(op errors.Op, params []string, want string) error {
	fields, err := t.simple(params, nil)
	if err != nil {
		return errors.E(op, err)
	}

	if len(fields) == 0 {
		return errors.E(op, protocol.ErrMalformed)
	}

	switch fields[0] {
	case want:
		return nil
	case protocol.StatusNotFound:
		return errors.E(op, ErrNotFound)
	case protocol.StatusBuried:
		return errors.E(op, ErrBuried)
	default:
		return errors.E(op, unexpected(fields))
	}
}

// track opens a span for one command and returns the callback recording
// its outcome in the logs and the metrics exporter.
func (t *Tube) track(cmd string) func(err error) {
	start := time.Now()
	_, span := t.tracer.Start(context.Background(), cmd,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tube.using", t.using)))

	return func(err error) {
		elapsed := time.Since(start)
		if err != nil {
			span.RecordError(err)
			t.metrics.countErr(cmd)
			t.log.Error("command failed", zap.String("command", cmd), zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			t.metrics.countOK(cmd, elapsed)
			t.log.Debug("command done", zap.String("command", cmd), zap.Duration("elapsed", elapsed))
		}
		span.End()
	}
}

func unexpected(fields []string) error {
	if len(fields) == 0 {
		return protocol.ErrMalformed
	}
	return &UnexpectedResponseError{Status: fields[0]}
}

func validName(name string) error {
	if name == "" {
		return &NameError{Name: name, Reason: "empty"}
	}
	if len(name) > maxNameLen {
		return &NameError{Name: name, Reason: "longer than 200 characters"}
	}
	if name[0] == '-' {
		return &NameError{Name: name, Reason: "starts with a hyphen"}
	}
	for i := 0; i < len(name); i++ {
		if !nameChar(name[i]) {
			return &NameError{Name: name, Reason: fmt.Sprintf("character %q not allowed", name[i])}
		}
	}
	return nil
}

// nameChar reports whether c may appear in a tube name: ASCII letters,
// digits and -+/;.$_() are the characters the server accepts.
func nameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '+', '/', ';', '.', '$', '_', '(', ')':
		return true
	}
	return false
}

// formatSeconds renders a duration as the whole seconds the wire expects.
func formatSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}

func formatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
