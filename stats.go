package stalk

import (
	"time"

	"github.com/roadrunner-server/errors"
	"github.com/stalk-mq/stalk/protocol"
	"gopkg.in/yaml.v3"
)

// JobStats mirrors the per-job counters of a stats-job reply. Unknown keys
// in the reply are ignored.
type JobStats struct {
	ID       uint32 `yaml:"id"`
	Tube     string `yaml:"tube"`
	State    string `yaml:"state"`
	Priority uint32 `yaml:"pri"`
	Age      int    `yaml:"age"`
	Delay    int    `yaml:"delay"`
	TTR      int    `yaml:"ttr"`
	TimeLeft int    `yaml:"time-left"`
	Reserves int    `yaml:"reserves"`
	Timeouts int    `yaml:"timeouts"`
	Releases int    `yaml:"releases"`
	Buries   int    `yaml:"buries"`
	Kicks    int    `yaml:"kicks"`
}

// TubeStats mirrors a stats-tube reply.
type TubeStats struct {
	Name            string `yaml:"name"`
	JobsUrgent      int    `yaml:"current-jobs-urgent"`
	JobsReady       int    `yaml:"current-jobs-ready"`
	JobsReserved    int    `yaml:"current-jobs-reserved"`
	JobsDelayed     int    `yaml:"current-jobs-delayed"`
	JobsBuried      int    `yaml:"current-jobs-buried"`
	TotalJobs       int    `yaml:"total-jobs"`
	CurrentUsing    int    `yaml:"current-using"`
	CurrentWatching int    `yaml:"current-watching"`
	CurrentWaiting  int    `yaml:"current-waiting"`
	Pause           int    `yaml:"pause"`
	PauseTimeLeft   int    `yaml:"pause-time-left"`
}

// ServerStats carries the server-wide counters this client cares about.
type ServerStats struct {
	JobsUrgent         int    `yaml:"current-jobs-urgent"`
	JobsReady          int    `yaml:"current-jobs-ready"`
	JobsReserved       int    `yaml:"current-jobs-reserved"`
	JobsDelayed        int    `yaml:"current-jobs-delayed"`
	JobsBuried         int    `yaml:"current-jobs-buried"`
	TotalJobs          int    `yaml:"total-jobs"`
	CurrentTubes       int    `yaml:"current-tubes"`
	CurrentConnections int    `yaml:"current-connections"`
	CurrentProducers   int    `yaml:"current-producers"`
	CurrentWorkers     int    `yaml:"current-workers"`
	CurrentWaiting     int    `yaml:"current-waiting"`
	TotalConnections   int    `yaml:"total-connections"`
	Uptime             int    `yaml:"uptime"`
	Version            string `yaml:"version"`
}

// StatsJob fetches the server-side counters for one job.
func (t *Tube) StatsJob(id uint32) (stats *JobStats, err error) {
	const op = errors.Op("stalk_tube_stats_job")

	done := t.track("stats-job")
	defer func() { done(err) }()

	stats = &JobStats{}
	if err = t.statsInto(op, []string{"stats-job", formatID(id)}, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// StatsTube fetches the counters of one tube.
func (t *Tube) StatsTube(name string) (stats *TubeStats, err error) {
	const op = errors.Op("stalk_tube_stats_tube")

	if verr := validName(name); verr != nil {
		return nil, errors.E(op, verr)
	}

	done := t.track("stats-tube")
	defer func() { done(err) }()

	stats = &TubeStats{}
	if err = t.statsInto(op, []string{"stats-tube", name}, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Stats fetches the server-wide counters.
func (t *Tube) Stats() (stats *ServerStats, err error) {
	const op = errors.Op("stalk_tube_stats")

	done := t.track("stats")
	defer func() { done(err) }()

	stats = &ServerStats{}
	if err = t.statsInto(op, []string{"stats"}, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ListTubes returns the names of all tubes existing on the server.
func (t *Tube) ListTubes() (names []string, err error) {
	const op = errors.Op("stalk_tube_list_tubes")

	done := t.track("list-tubes")
	defer func() { done(err) }()

	if err = t.statsInto(op, []string{"list-tubes"}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ListTubesWatched returns the server's view of the watch set.
func (t *Tube) ListTubesWatched() (names []string, err error) {
	const op = errors.Op("stalk_tube_list_tubes_watched")

	done := t.track("list-tubes-watched")
	defer func() { done(err) }()

	if err = t.statsInto(op, []string{"list-tubes-watched"}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ListTubeUsed returns the server's view of the tube in use.
func (t *Tube) ListTubeUsed() (name string, err error) {
	const op = errors.Op("stalk_tube_list_tube_used")

	done := t.track("list-tube-used")
	defer func() { done(err) }()

	fields, ferr := t.simple([]string{"list-tube-used"}, nil)
	if ferr != nil {
		err = errors.E(op, ferr)
		return "", err
	}

	if len(fields) < 2 || fields[0] != protocol.StatusUsing {
		err = errors.E(op, unexpected(fields))
		return "", err
	}

	return fields[1], nil
}

// PauseTube stops the server from handing out jobs from the named tube for
// the given delay.
func (t *Tube) PauseTube(name string, delay time.Duration) (err error) {
	const op = errors.Op("stalk_tube_pause_tube")

	if verr := validName(name); verr != nil {
		return errors.E(op, verr)
	}

	done := t.track("pause-tube")
	defer func() { done(err) }()

	err = t.confirm(op, []string{"pause-tube", name, formatSeconds(delay)}, protocol.StatusPaused)
	return err
}

// statsInto runs one stats-family command and decodes the YAML body of its
// OK reply into out.
func (t *Tube) statsInto(op errors.Op, params []string, out any) error {
	frame, err := t.frame(params)
	if err != nil {
		return errors.E(op, err)
	}

	switch frame.Status {
	case protocol.StatusOK:
		if uerr := yaml.Unmarshal(frame.Body, out); uerr != nil {
			return errors.E(op, uerr)
		}
		return nil
	case protocol.StatusNotFound:
		return errors.E(op, ErrNotFound)
	default:
		return errors.E(op, &UnexpectedResponseError{Status: frame.Status})
	}
}
