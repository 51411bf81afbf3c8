package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"go.viam.com/rdk/logging"

	"armsim"
)

// RunCommand plays a script: a JSON array of DoCommand maps, for example
// [{"command": "home"}, {"command": "move_cartesian", "x": 300, "y": 0, "z": 200}].
type RunCommand struct {
	Events bool    `long:"events" description:"Print every engine event"`
	Mirror bool    `long:"mirror" description:"Replay each move on a mirrored follower arm"`
	Scale  float64 `long:"scale" default:"1.0" description:"Follower scale factor"`
	Args   struct {
		Script string `positional-arg-name:"script" required:"yes"`
	} `positional-args:"yes"`
}

func (c *RunCommand) Execute(args []string) error {
	logger := logging.NewLogger("armsim")

	data, err := os.ReadFile(c.Args.Script)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	var script []map[string]interface{}
	if err := json.Unmarshal(data, &script); err != nil {
		return fmt.Errorf("failed to parse script JSON: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	leader, err := armsim.GetSharedEngine("leader", loadConfig(logger), logger)
	if err != nil {
		return err
	}
	defer armsim.ReleaseSharedEngine(context.Background(), "leader")

	if c.Events {
		unsubscribe := leader.Subscribe(armsim.ObserverFunc(func(ev armsim.Event) {
			logger.Infof("event %s: %+v", ev.Kind(), ev)
		}))
		defer unsubscribe()
	}

	if c.Mirror {
		follower, err := armsim.GetSharedEngine("follower", loadConfig(logger), logger)
		if err != nil {
			return err
		}
		defer armsim.ReleaseSharedEngine(context.Background(), "follower")
		stopFollow, err := armsim.Follow(leader, follower, armsim.FollowOptions{Mirror: true, ScaleFactor: c.Scale}, logger)
		if err != nil {
			return err
		}
		defer stopFollow()
	}

	for i, cmd := range script {
		// Ctrl-C halts the arm rather than leaving a move half queued.
		if ctx.Err() != nil {
			leader.EmergencyStop()
			return ctx.Err()
		}
		res, err := leader.DoCommand(ctx, cmd)
		if err != nil {
			logger.Errorf("step %d (%v) failed: %v", i+1, cmd["command"], err)
			continue
		}
		out, _ := json.Marshal(res)
		fmt.Printf("step %d %v: %s\n", i+1, cmd["command"], out)
	}

	refs, _, summary := armsim.SharedEngineStatus("leader")
	logger.Infof("leader engine refs=%d %s", refs, summary)
	return nil
}
