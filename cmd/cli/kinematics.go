package main

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"

	"armsim"
)

type FKCommand struct {
	Links bool `long:"links" description:"Also print every joint frame origin"`
	Args  struct {
		Angles []float64 `positional-arg-name:"angle" description:"six joint angles in degrees"`
	} `positional-args:"yes"`
}

func (c *FKCommand) Execute(args []string) error {
	if len(c.Args.Angles) != armsim.NumJoints {
		return fmt.Errorf("fk needs %d angles, got %d", armsim.NumJoints, len(c.Args.Angles))
	}
	var joints armsim.Joints
	copy(joints[:], c.Args.Angles)

	cfg := loadConfig(logging.NewLogger("armsim-fk"))
	solver := armsim.NewSolver(cfg.Model(), cfg.IK)
	fk := solver.Forward(joints)

	fmt.Printf("position:    x=%.3f y=%.3f z=%.3f mm\n", fk.Position.X, fk.Position.Y, fk.Position.Z)
	fmt.Printf("orientation: rx=%.3f ry=%.3f rz=%.3f deg\n", fk.Orientation.RX, fk.Orientation.RY, fk.Orientation.RZ)
	if c.Links {
		for i, p := range solver.LinkOrigins(joints) {
			fmt.Printf("frame %d:     (%.3f, %.3f, %.3f)\n", i, p.X, p.Y, p.Z)
		}
	}
	return nil
}

type IKCommand struct {
	X       float64   `short:"x" required:"yes" description:"target x in mm"`
	Y       float64   `short:"y" required:"yes" description:"target y in mm"`
	Z       float64   `short:"z" required:"yes" description:"target z in mm"`
	Elbow   string    `long:"elbow" default:"up" choice:"up" choice:"down" description:"elbow configuration"`
	Numeric bool      `long:"numeric" description:"Use the iterative solver only"`
	Seed    []float64 `long:"seed" description:"Seed angle for the iterative solver, repeat six times"`
}

func (c *IKCommand) Execute(args []string) error {
	cfg := loadConfig(logging.NewLogger("armsim-ik"))
	model := cfg.Model()
	solver := armsim.NewSolver(model, cfg.IK)
	target := r3.Vector{X: c.X, Y: c.Y, Z: c.Z}

	if report := armsim.NewLimits(model).ValidatePosition(target); !report.Valid {
		fmt.Printf("warning: target is outside the workspace (axes %v, zone %q)\n", report.ViolatedAxes, report.KeepOutZone)
	}

	seed := model.HomeJoints
	if len(c.Seed) > 0 {
		if len(c.Seed) != armsim.NumJoints {
			return fmt.Errorf("--seed must be given %d times, got %d", armsim.NumJoints, len(c.Seed))
		}
		copy(seed[:], c.Seed)
	}

	var (
		joints armsim.Joints
		err    error
	)
	if c.Numeric {
		joints, err = solver.InverseNumeric(target, seed)
	} else {
		joints, err = solver.Inverse(target, seed, armsim.GeometricOptions{Elbow: armsim.ParseElbow(c.Elbow)})
	}

	var nc *armsim.NotConvergedError
	if errors.As(err, &nc) {
		fmt.Printf("not converged, residual %.4f mm after %d iterations\n", nc.Residual, nc.Iterations)
	} else if err != nil {
		return err
	}
	fmt.Printf("joints: %.3f\n", joints[:])
	fk := solver.Forward(joints)
	fmt.Printf("check:  x=%.3f y=%.3f z=%.3f mm\n", fk.Position.X, fk.Position.Y, fk.Position.Z)
	return nil
}
