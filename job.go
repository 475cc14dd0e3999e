package stalk

import (
	"time"

	"github.com/roadrunner-server/errors"
)

// Job is a unit of work: an opaque byte payload plus, once the server has
// seen it, an id and the Tube it came through.
//
// A Job starts life as a bare buffer and its payload may grow until it is
// submitted. Put, Reserve and the peek operations return fresh bound Jobs;
// they never mutate a Job the caller already holds.
type Job struct {
	id   uint32
	tube *Tube
	body []byte
}

// NewJob returns an empty, unbound job.
func NewJob() *Job {
	return &Job{}
}

// NewJobBytes returns an unbound job seeded with a copy of body.
func NewJobBytes(body []byte) *Job {
	j := &Job{body: make([]byte, len(body))}
	copy(j.body, body)
	return j
}

// Write appends p to the payload. Job implements io.Writer so payloads can
// be streamed in before submission.
func (j *Job) Write(p []byte) (int, error) {
	j.body = append(j.body, p...)
	return len(p), nil
}

// WriteString appends s to the payload.
func (j *Job) WriteString(s string) (int, error) {
	return j.Write([]byte(s))
}

// Body returns the payload bytes.
func (j *Job) Body() []byte {
	return j.body
}

// Size returns the payload length in bytes.
func (j *Job) Size() int {
	return len(j.body)
}

// Bound reports whether the job has been submitted, reserved or peeked and
// therefore carries a server-assigned id.
func (j *Job) Bound() bool {
	return j.tube != nil
}

// Tube returns the owning tube, nil for an unbound job.
func (j *Job) Tube() *Tube {
	return j.tube
}

// ID returns the server-assigned id. It fails with ErrNotBound for a job
// the server has never seen.
func (j *Job) ID() (uint32, error) {
	const op = errors.Op("stalk_job_id")

	if j.tube == nil {
		return 0, errors.E(op, ErrNotBound)
	}

	return j.id, nil
}

// Delete removes the job from the server.
func (j *Job) Delete() error {
	const op = errors.Op("stalk_job_delete")

	if j.tube == nil {
		return errors.E(op, ErrNotBound)
	}

	return j.tube.Delete(j.id)
}

// Release puts the reserved job back into the ready (or delayed) queue.
func (j *Job) Release(priority uint32, delay time.Duration) error {
	const op = errors.Op("stalk_job_release")

	if j.tube == nil {
		return errors.E(op, ErrNotBound)
	}

	return j.tube.Release(j.id, priority, delay)
}

// Bury moves the reserved job into the buried state.
func (j *Job) Bury(priority uint32) error {
	const op = errors.Op("stalk_job_bury")

	if j.tube == nil {
		return errors.E(op, ErrNotBound)
	}

	return j.tube.Bury(j.id, priority)
}

// Touch asks the server for more time on the reservation.
func (j *Job) Touch() error {
	const op = errors.Op("stalk_job_touch")

	if j.tube == nil {
		return errors.E(op, ErrNotBound)
	}

	return j.tube.Touch(j.id)
}

// boundJob is how the protocol layer assigns an id and owning tube;
// nothing outside it ever sets those fields.
func boundJob(t *Tube, id uint32, body []byte) *Job {
	return &Job{
		id:   id,
		tube: t,
		body: body,
	}
}
