package stalk

import (
	"github.com/roadrunner-server/errors"
	"github.com/stalk-mq/stalk/protocol"
)

// Peek returns the next ready job in the used tube without reserving it:
// a subsequent Reserve can still claim the same job.
func (t *Tube) Peek() (*Job, bool, error) {
	return t.peek(errors.Op("stalk_tube_peek"), "peek-ready", []string{"peek-ready"})
}

// PeekDelayed returns the delayed job with the shortest remaining delay.
func (t *Tube) PeekDelayed() (*Job, bool, error) {
	return t.peek(errors.Op("stalk_tube_peek_delayed"), "peek-delayed", []string{"peek-delayed"})
}

// PeekBuried returns the next job in the buried queue.
func (t *Tube) PeekBuried() (*Job, bool, error) {
	return t.peek(errors.Op("stalk_tube_peek_buried"), "peek-buried", []string{"peek-buried"})
}

// PeekJob returns the job with the given id regardless of its state.
func (t *Tube) PeekJob(id uint32) (*Job, bool, error) {
	return t.peek(errors.Op("stalk_tube_peek_job"), "peek", []string{"peek", formatID(id)})
}

func (t *Tube) peek(op errors.Op, cmd string, params []string) (job *Job, found bool, err error) {
	done := t.track(cmd)
	defer func() { done(err) }()

	frame, ferr := t.frame(params)
	if ferr != nil {
		err = errors.E(op, ferr)
		return nil, false, err
	}

	switch frame.Status {
	case protocol.StatusFound:
		return boundJob(t, frame.ID, frame.Body), true, nil
	case protocol.StatusNotFound:
		return nil, false, nil
	default:
		err = errors.E(op, &UnexpectedResponseError{Status: frame.Status})
		return nil, false, err
	}
}
