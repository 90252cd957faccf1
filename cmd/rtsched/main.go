// Command rtsched is a small demonstration of the scheduler: it loads a
// config file (or defaults), registers a periodic task and an event-driven
// task, runs them briefly, then prints the periodic task's stats. It plays the same role
// as the teacher's cmd/ticksched/main.go.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/knightchaser/rtsched/pkg/rtsched"
)

func main() {
	configPath := flag.String("config", "", "path to a scheduler config YAML file")
	flag.Parse()

	cfg, err := rtsched.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return
	}
	fmt.Printf("loaded config: %+v\n", cfg)

	sched, err := rtsched.NewScheduler(cfg)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		return
	}

	heartbeat := rtsched.NewTask("heartbeat", func() error {
		fmt.Println("heartbeat tick")
		return nil
	}, rtsched.WithPeriod(200*time.Millisecond), rtsched.WithBasePriority(1))

	alarm := rtsched.NewTask("alarm", func() error {
		fmt.Println("alarm triggered")
		return nil
	}, rtsched.WithEventDriven(true), rtsched.WithBasePriority(5))

	if err := sched.AddTask(heartbeat); err != nil {
		slog.Error("add task failed", "error", err)
		return
	}
	if err := sched.AddTask(alarm); err != nil {
		slog.Error("add task failed", "error", err)
		return
	}

	if err := sched.Start(); err != nil {
		slog.Error("start failed", "error", err)
		return
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = sched.TriggerTask("alarm")
	}()

	time.Sleep(1 * time.Second)

	if stats, err := sched.GetStats("heartbeat"); err == nil {
		fmt.Printf("heartbeat stats: %+v\n", stats)
	}

	if err := sched.StopAll(); err != nil {
		slog.Error("stop failed", "error", err)
	}
}
