package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"go.viam.com/rdk/logging"

	"armsim"
)

type Options struct {
	Config string `short:"c" long:"config" description:"JSON engine config (defaults when omitted)"`

	FK   FKCommand   `command:"fk" description:"Print the flange pose for six joint angles"`
	IK   IKCommand   `command:"ik" description:"Solve joint angles for a Cartesian target"`
	Run  RunCommand  `command:"run" description:"Play a JSON script of commands through the simulator"`
	Init InitCommand `command:"init" description:"Write the default config to a file"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armsim - 6-axis arm simulator"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig resolves the --config option shared by every command.
func loadConfig(logger logging.Logger) *armsim.Config {
	cfg, _ := armsim.LoadConfig(opts.Config, logger)
	return cfg
}

type InitCommand struct {
	Args struct {
		Path string `positional-arg-name:"path" required:"yes"`
	} `positional-args:"yes"`
}

func (c *InitCommand) Execute(args []string) error {
	return armsim.SaveConfig(c.Args.Path, armsim.DefaultConfig())
}
