// Command stalk is a thin console client for tube-protocol queue servers.
// It only ever calls the public operations of the stalk package.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-json"
	"github.com/stalk-mq/stalk"
)

type cli struct {
	Addr string `help:"Queue server address." default:"127.0.0.1:11300"`

	Put     putCmd     `cmd:"" help:"Submit a job to a tube."`
	Reserve reserveCmd `cmd:"" help:"Reserve the next job from the watched tubes."`
	Peek    peekCmd    `cmd:"" help:"Peek at a queue head without reserving."`
	Kick    kickCmd    `cmd:"" help:"Kick buried (or delayed) jobs back to ready."`
	Stats   statsCmd   `cmd:"" help:"Print statistics as JSON."`
	Tubes   tubesCmd   `cmd:"" help:"List tubes on the server."`
}

type putCmd struct {
	Tube     string        `help:"Tube to submit to." default:"default"`
	Priority uint32        `help:"Job priority, lower runs first." default:"1024"`
	Delay    time.Duration `help:"Delay before the job becomes ready." default:"0"`
	TTR      time.Duration `help:"Time to run." default:"60s"`
	Body     string        `arg:"" help:"Job payload."`
}

func (c *putCmd) Run(tube *stalk.Tube) error {
	if err := tube.Use(c.Tube); err != nil {
		return err
	}

	job, err := tube.Put(stalk.NewJobBytes([]byte(c.Body)), c.Priority, c.Delay, c.TTR)
	if err != nil {
		return err
	}

	id, err := job.ID()
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

type reserveCmd struct {
	Tube    string        `help:"Tube to watch." default:"default"`
	Timeout time.Duration `help:"Give up after this long; 0 blocks forever." default:"5s"`
	Delete  bool          `help:"Delete the job after printing it."`
}

func (c *reserveCmd) Run(tube *stalk.Tube) error {
	if err := tube.Watch(c.Tube); err != nil {
		return err
	}

	job, found, err := tube.Reserve(c.Timeout)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(os.Stderr, "no job available")
		return nil
	}

	id, err := job.ID()
	if err != nil {
		return err
	}

	fmt.Printf("%d %s\n", id, job.Body())
	if c.Delete {
		return job.Delete()
	}
	return nil
}

type peekCmd struct {
	State string `help:"Queue class to peek: ready, delayed or buried." enum:"ready,delayed,buried" default:"ready"`
	ID    uint32 `help:"Peek a specific job id instead of a queue head."`
}

func (c *peekCmd) Run(tube *stalk.Tube) error {
	var (
		job   *stalk.Job
		found bool
		err   error
	)

	switch {
	case c.ID != 0:
		job, found, err = tube.PeekJob(c.ID)
	case c.State == "delayed":
		job, found, err = tube.PeekDelayed()
	case c.State == "buried":
		job, found, err = tube.PeekBuried()
	default:
		job, found, err = tube.Peek()
	}
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(os.Stderr, "no job")
		return nil
	}

	id, err := job.ID()
	if err != nil {
		return err
	}

	fmt.Printf("%d %s\n", id, job.Body())
	return nil
}

type kickCmd struct {
	Bound uint32 `arg:"" help:"Maximum number of jobs to kick."`
}

func (c *kickCmd) Run(tube *stalk.Tube) error {
	n, err := tube.Kick(c.Bound)
	if err != nil {
		return err
	}

	fmt.Println(n)
	return nil
}

type statsCmd struct {
	Tube string `help:"Stats for one tube instead of the whole server."`
	Job  uint32 `help:"Stats for one job id."`
}

func (c *statsCmd) Run(tube *stalk.Tube) error {
	var (
		out any
		err error
	)

	switch {
	case c.Job != 0:
		out, err = tube.StatsJob(c.Job)
	case c.Tube != "":
		out, err = tube.StatsTube(c.Tube)
	default:
		out, err = tube.Stats()
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type tubesCmd struct{}

func (c *tubesCmd) Run(tube *stalk.Tube) error {
	names, err := tube.ListTubes()
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("stalk"),
		kong.Description("Console client for tube-protocol queue servers."))

	conn, err := stalk.Dial(c.Addr)
	ctx.FatalIfErrorf(err)
	defer conn.Close() //nolint:errcheck

	ctx.FatalIfErrorf(ctx.Run(stalk.NewTube(conn)))
}
