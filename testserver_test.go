package stalk

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// testServer is a minimal in-memory queue server speaking just enough of
// the wire protocol to drive the client end to end over a real socket.
type testServer struct {
	ln net.Listener

	mu     sync.Mutex
	nextID uint32
	jobs   map[uint32]*srvJob
}

type srvJob struct {
	id      uint32
	pri     uint32
	tube    string
	body    []byte
	state   string // ready, delayed, reserved, buried
	delay   int
	ttr     int
	readyAt time.Time

	reserves int
	releases int
	buries   int
	kicks    int
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &testServer{ln: ln, jobs: map[uint32]*srvJob{}}
	go s.acceptLoop()
	t.Cleanup(func() { _ = ln.Close() })

	return s
}

func (s *testServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *testServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *testServer) handle(conn net.Conn) {
	defer conn.Close() //nolint:errcheck

	r := bufio.NewReader(conn)
	used := "default"
	watched := map[string]bool{"default": true}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		fields := strings.Fields(strings.TrimRight(line, "\r\n"))
		if len(fields) == 0 {
			continue
		}

		var reply string
		switch fields[0] {
		case "use":
			used = fields[1]
			reply = "USING " + used
		case "watch":
			watched[fields[1]] = true
			reply = fmt.Sprintf("WATCHING %d", len(watched))
		case "ignore":
			name := fields[1]
			if watched[name] && len(watched) == 1 {
				reply = "NOT_IGNORED"
			} else {
				delete(watched, name)
				reply = fmt.Sprintf("WATCHING %d", len(watched))
			}
		case "put":
			pri, _ := strconv.ParseUint(fields[1], 10, 32)
			delay, _ := strconv.Atoi(fields[2])
			ttr, _ := strconv.Atoi(fields[3])
			size, _ := strconv.Atoi(fields[4])

			body := make([]byte, size+2)
			if _, err := io.ReadFull(r, body); err != nil {
				return
			}

			id := s.addJob(used, uint32(pri), delay, ttr, body[:size])
			reply = fmt.Sprintf("INSERTED %d", id)
		case "reserve", "reserve-with-timeout":
			var deadline time.Time
			if fields[0] == "reserve-with-timeout" {
				secs, _ := strconv.Atoi(fields[1])
				deadline = time.Now().Add(time.Duration(secs) * time.Second)
			}

			if job := s.reserveNext(watched, deadline); job != nil {
				reply = fmt.Sprintf("RESERVED %d %d\r\n%s", job.id, len(job.body), job.body)
			} else {
				reply = "TIMED_OUT"
			}
		case "delete":
			reply = s.withJob(fields[1], func(job *srvJob) string {
				delete(s.jobs, job.id)
				return "DELETED"
			})
		case "release":
			reply = s.withJob(fields[1], func(job *srvJob) string {
				job.state = "ready"
				job.releases++
				return "RELEASED"
			})
		case "bury":
			reply = s.withJob(fields[1], func(job *srvJob) string {
				job.state = "buried"
				job.buries++
				return "BURIED"
			})
		case "touch":
			reply = s.withJob(fields[1], func(job *srvJob) string {
				return "TOUCHED"
			})
		case "kick":
			bound, _ := strconv.Atoi(fields[1])
			reply = fmt.Sprintf("KICKED %d", s.kick(used, bound))
		case "kick-job":
			reply = s.withJob(fields[1], func(job *srvJob) string {
				job.state = "ready"
				job.kicks++
				return "KICKED"
			})
		case "peek-ready", "peek-delayed", "peek-buried":
			state := strings.TrimPrefix(fields[0], "peek-")
			reply = foundReply(s.peekState(used, state))
		case "peek":
			id, _ := strconv.ParseUint(fields[1], 10, 32)
			reply = foundReply(s.lookup(uint32(id)))
		case "stats-job":
			reply = s.withJob(fields[1], func(job *srvJob) string {
				return okReply(fmt.Sprintf(
					"---\nid: %d\ntube: %s\nstate: %s\npri: %d\nage: 0\ndelay: %d\nttr: %d\ntime-left: 0\nreserves: %d\ntimeouts: 0\nreleases: %d\nburies: %d\nkicks: %d\n",
					job.id, job.tube, job.state, job.pri, job.delay, job.ttr,
					job.reserves, job.releases, job.buries, job.kicks))
			})
		case "stats-tube":
			reply = s.statsTube(fields[1])
		case "stats":
			reply = s.stats()
		case "list-tubes":
			reply = okReply(yamlList(s.tubeNames(used)))
		case "list-tubes-watched":
			names := make([]string, 0, len(watched))
			for name := range watched {
				names = append(names, name)
			}
			sort.Strings(names)
			reply = okReply(yamlList(names))
		case "list-tube-used":
			reply = "USING " + used
		case "pause-tube":
			reply = "PAUSED"
		default:
			reply = "UNKNOWN_COMMAND"
		}

		if _, err := conn.Write([]byte(reply + "\r\n")); err != nil {
			return
		}
	}
}

func (s *testServer) addJob(tube string, pri uint32, delay, ttr int, body []byte) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	job := &srvJob{
		id:    s.nextID,
		pri:   pri,
		tube:  tube,
		body:  append([]byte(nil), body...),
		state: "ready",
		delay: delay,
		ttr:   ttr,
	}
	if delay > 0 {
		job.state = "delayed"
		job.readyAt = time.Now().Add(time.Duration(delay) * time.Second)
	}
	s.jobs[job.id] = job

	return job.id
}

// reserveNext polls until a ready job shows up in a watched tube or the
// deadline passes. A zero deadline blocks until the client goes away.
func (s *testServer) reserveNext(watched map[string]bool, deadline time.Time) *srvJob {
	for {
		s.mu.Lock()
		s.promote()
		var best *srvJob
		for _, job := range s.jobs {
			if job.state != "ready" || !watched[job.tube] {
				continue
			}
			if best == nil || job.pri < best.pri || (job.pri == best.pri && job.id < best.id) {
				best = job
			}
		}
		if best != nil {
			best.state = "reserved"
			best.reserves++
			s.mu.Unlock()
			return best
		}
		s.mu.Unlock()

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *testServer) peekState(tube, state string) *srvJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.promote()
	var best *srvJob
	for _, job := range s.jobs {
		if job.tube != tube || job.state != state {
			continue
		}
		if best == nil || job.pri < best.pri || (job.pri == best.pri && job.id < best.id) {
			best = job
		}
	}
	return best
}

func (s *testServer) lookup(id uint32) *srvJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.promote()
	return s.jobs[id]
}

func (s *testServer) kick(tube string, bound int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := s.kickState(tube, "buried", bound)
	if moved == 0 {
		moved = s.kickState(tube, "delayed", bound)
	}
	return moved
}

func (s *testServer) kickState(tube, state string, bound int) int {
	moved := 0
	for _, job := range s.jobs {
		if moved == bound {
			break
		}
		if job.tube == tube && job.state == state {
			job.state = "ready"
			job.kicks++
			moved++
		}
	}
	return moved
}

// promote moves delayed jobs whose delay elapsed to ready. Callers hold mu.
func (s *testServer) promote() {
	now := time.Now()
	for _, job := range s.jobs {
		if job.state == "delayed" && !job.readyAt.After(now) {
			job.state = "ready"
		}
	}
}

// withJob runs fn on the named job under the lock, answering NOT_FOUND for
// unknown ids.
func (s *testServer) withJob(idField string, fn func(job *srvJob) string) string {
	id, _ := strconv.ParseUint(idField, 10, 32)

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[uint32(id)]
	if !ok {
		return "NOT_FOUND"
	}
	return fn(job)
}

func (s *testServer) statsTube(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{}
	total := 0
	for _, job := range s.jobs {
		if job.tube == name {
			counts[job.state]++
			total++
		}
	}

	return okReply(fmt.Sprintf(
		"---\nname: %s\ncurrent-jobs-urgent: 0\ncurrent-jobs-ready: %d\ncurrent-jobs-reserved: %d\ncurrent-jobs-delayed: %d\ncurrent-jobs-buried: %d\ntotal-jobs: %d\ncurrent-using: 1\ncurrent-watching: 1\ncurrent-waiting: 0\npause: 0\npause-time-left: 0\n",
		name, counts["ready"], counts["reserved"], counts["delayed"], counts["buried"], total))
}

func (s *testServer) stats() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{}
	for _, job := range s.jobs {
		counts[job.state]++
	}

	return okReply(fmt.Sprintf(
		"---\ncurrent-jobs-urgent: 0\ncurrent-jobs-ready: %d\ncurrent-jobs-reserved: %d\ncurrent-jobs-delayed: %d\ncurrent-jobs-buried: %d\ntotal-jobs: %d\ncurrent-tubes: 1\ncurrent-connections: 1\nuptime: 1\nversion: \"1.13\"\n",
		counts["ready"], counts["reserved"], counts["delayed"], counts["buried"], len(s.jobs)))
}

func (s *testServer) tubeNames(used string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := map[string]bool{"default": true, used: true}
	for _, job := range s.jobs {
		set[job.tube] = true
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func foundReply(job *srvJob) string {
	if job == nil {
		return "NOT_FOUND"
	}
	return fmt.Sprintf("FOUND %d %d\r\n%s", job.id, len(job.body), job.body)
}

func okReply(body string) string {
	return fmt.Sprintf("OK %d\r\n%s", len(body), body)
}

func yamlList(names []string) string {
	var b strings.Builder
	b.WriteString("---\n")
	for _, name := range names {
		b.WriteString("- " + name + "\n")
	}
	return b.String()
}
