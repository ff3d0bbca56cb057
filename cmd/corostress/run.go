package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/dispatchrun/corostack"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var flagConfig config

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run nested coroutine activations on a worker group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("workers") {
				c.Workers = flagConfig.Workers
			}
			if flags.Changed("queue-size") {
				c.QueueSize = flagConfig.QueueSize
			}
			if flags.Changed("tasks") {
				c.Tasks = flagConfig.Tasks
			}
			if flags.Changed("depth") {
				c.Depth = flagConfig.Depth
			}
			if flags.Changed("yields") {
				c.Yields = flagConfig.Yields
			}
			if flags.Changed("verbose") {
				c.Verbose = flagConfig.Verbose
			}
			if err := c.validate(); err != nil {
				return err
			}

			logger := log.New(cmd.ErrOrStderr(), "corostress: ", log.LstdFlags|log.Lmicroseconds)
			r, err := stress(cmd.Context(), c, logger)
			r.print(cmd.OutOrStdout())
			return err
		},
	}

	defaults := defaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	flags.IntVar(&flagConfig.Workers, "workers", defaults.Workers, "number of workers")
	flags.IntVar(&flagConfig.QueueSize, "queue-size", defaults.QueueSize, "number of queued tasks")
	flags.IntVar(&flagConfig.Tasks, "tasks", defaults.Tasks, "number of tasks to run")
	flags.IntVar(&flagConfig.Depth, "depth", defaults.Depth, "nesting depth of coroutine activations")
	flags.IntVar(&flagConfig.Yields, "yields", defaults.Yields, "number of yields of each nested coroutine")
	flags.BoolVarP(&flagConfig.Verbose, "verbose", "v", false, "log every invariant violation")
	return cmd
}

type report struct {
	tasks       int64
	activations int64
	violations  int64
	elapsed     time.Duration
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "tasks:       %d\n", r.tasks)
	fmt.Fprintf(w, "activations: %d\n", r.activations)
	fmt.Fprintf(w, "violations:  %d\n", r.violations)
	fmt.Fprintf(w, "elapsed:     %s\n", r.elapsed.Round(time.Microsecond))
}

type stresser struct {
	config
	logger      *log.Logger
	tasks       atomic.Int64
	activations atomic.Int64
	violations  atomic.Int64
}

func stress(ctx context.Context, c config, logger *log.Logger) (report, error) {
	s := &stresser{config: c, logger: logger}
	g := corostack.NewGroup(ctx,
		corostack.WithWorkers(c.Workers),
		corostack.WithQueueSize(c.QueueSize),
		corostack.WithLogger(logger),
	)

	start := time.Now()
	var err error
	for i := 0; i < c.Tasks && err == nil; i++ {
		h := corostack.NewHandle(i)
		err = g.Go(h, func(context.Context) error {
			s.tasks.Add(1)
			s.activate(h, 1)
			return nil
		})
		h.Release()
	}
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}

	r := report{
		tasks:       s.tasks.Load(),
		activations: s.activations.Load(),
		violations:  s.violations.Load(),
		elapsed:     time.Since(start),
	}
	if err == nil && r.violations != 0 {
		err = fmt.Errorf("%d execution context stack invariant violations", r.violations)
	}
	return r, err
}

// activate verifies that self is the current coroutine at the given depth,
// then resumes a nested coroutine until it completes.
func (s *stresser) activate(self *corostack.Handle, level int) {
	s.activations.Add(1)
	s.check(self, level)
	if level >= s.Depth {
		return
	}

	var co corostack.Coroutine[int, any]
	co = corostack.New[int, any](func() {
		s.activate(co.Handle(), level+1)
		for i := 0; i < s.Yields; i++ {
			corostack.Yield[int, any](i)
			s.check(co.Handle(), level+1)
		}
	})
	for co.Next() {
		s.check(self, level)
	}
	s.check(self, level)

	if h := co.Handle(); h.Alive() {
		s.violation("%v alive after completion with %d references", h, h.Refs())
	}
}

func (s *stresser) check(self *corostack.Handle, level int) {
	if current := corostack.CurrentCoroutine(); current != self {
		s.violation("current coroutine is %v, want %v", current, self)
	}
	if stack := corostack.Local(); stack == nil || stack.Depth() != level {
		depth := 0
		if stack != nil {
			depth = stack.Depth()
		}
		s.violation("%v: stack depth is %d, want %d", self, depth, level)
	}
}

func (s *stresser) violation(msg string, args ...any) {
	s.violations.Add(1)
	if s.Verbose {
		s.logger.Printf(msg, args...)
	}
}
