package armsim

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
)

// kinematicsName is the name given to the referenceframe model of the arm.
const kinematicsName = "armsim"

type dhFrameJSON struct {
	ID     string  `json:"id"`
	Parent string  `json:"parent"`
	A      float64 `json:"a"`
	D      float64 `json:"d"`
	Alpha  float64 `json:"alpha"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type kinematicsJSON struct {
	Name         string        `json:"name"`
	KinParamType string        `json:"kinematic_param_type"`
	DHParams     []dhFrameJSON `json:"dhParams"`
}

// Kinematics builds a referenceframe model of the DH chain. The model has no
// theta offsets, so its inputs come from FrameInputs.
func (m *RobotModel) Kinematics() (referenceframe.Model, error) {
	doc := kinematicsJSON{Name: kinematicsName, KinParamType: "DH"}
	parent := referenceframe.World
	for i, p := range m.DH {
		id := fmt.Sprintf("link%d", i+1)
		doc.DHParams = append(doc.DHParams, dhFrameJSON{
			ID:     id,
			Parent: parent,
			A:      p.LinkLength,
			D:      p.LinkOffset,
			Alpha:  degToRad(p.LinkTwist),
			Min:    m.Joints[i].MinAngleDeg + p.AngleOffset,
			Max:    m.Joints[i].MaxAngleDeg + p.AngleOffset,
		})
		parent = id
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode kinematics")
	}

	cfg := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{
			Bytes:     data,
			Extension: "json",
		},
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal kinematics")
	}
	return cfg.ParseConfig(kinematicsName)
}

// FrameInputs converts joint angles to inputs for the model returned by
// Kinematics: radians with each link's theta offset added.
func (m *RobotModel) FrameInputs(j Joints) []referenceframe.Input {
	rad := make([]float64, NumJoints)
	for i, a := range j {
		rad[i] = degToRad(a + m.DH[i].AngleOffset)
	}
	return referenceframe.FloatsToInputs(rad)
}
