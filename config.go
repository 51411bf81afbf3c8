package armsim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.viam.com/rdk/logging"
)

// DataDirEnv names the directory relative config paths are resolved against.
const DataDirEnv = "ARMSIM_DATA"

type Config struct {
	Name string `json:"name,omitempty"`

	// Model overrides. Empty fields keep the default model.
	Joints       []JointSpec `json:"joints,omitempty"`
	DH           []DHParams  `json:"dh,omitempty"`
	Workspace    *Workspace  `json:"workspace,omitempty"`
	KeepOut      []Box       `json:"keep_out,omitempty"`
	HomeJoints   []float64   `json:"home_joints,omitempty"`
	ToolPitchDeg *float64    `json:"tool_pitch_deg,omitempty"`

	IK IKConfig `json:"ik"`

	DefaultCartesianSpeed float64       `json:"default_cartesian_speed_mm_per_sec,omitempty"`
	DefaultJointSpeed     float64       `json:"default_joint_speed_degs_per_sec,omitempty"`
	DefaultAcceleration   float64       `json:"default_acceleration_mm_per_sec_per_sec,omitempty"`
	InterpolationSteps    int           `json:"interpolation_steps,omitempty"`
	MinMoveDuration       time.Duration `json:"min_move_duration,omitempty"`
	GripperActuationTime  time.Duration `json:"gripper_actuation_time,omitempty"`
	MaxGripperForce       float64       `json:"max_gripper_force,omitempty"`
	MaxQueueDepth         int           `json:"max_queue_depth,omitempty"`

	// ValidatePath checks the straight segment of a Cartesian move against
	// the workspace before it starts.
	ValidatePath   bool `json:"validate_path,omitempty"`
	PathCheckSteps int  `json:"path_check_steps,omitempty"`

	// Not serialized
	Logger logging.Logger `json:"-"`
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() *Config {
	cfg := &Config{}
	if _, _, err := cfg.Validate(""); err != nil {
		panic(err)
	}
	return cfg
}

// Validate fills defaults and checks ranges.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	fail := func(format string, args ...interface{}) ([]string, []string, error) {
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		return nil, nil, fmt.Errorf("%s", msg)
	}

	if len(cfg.Joints) != 0 && len(cfg.Joints) != NumJoints {
		return fail("joints must list %d entries, got %d", NumJoints, len(cfg.Joints))
	}
	if len(cfg.DH) != 0 && len(cfg.DH) != NumJoints {
		return fail("dh must list %d entries, got %d", NumJoints, len(cfg.DH))
	}
	if len(cfg.HomeJoints) != 0 && len(cfg.HomeJoints) != NumJoints {
		return fail("home_joints must list %d angles, got %d", NumJoints, len(cfg.HomeJoints))
	}

	if cfg.DefaultCartesianSpeed == 0 {
		cfg.DefaultCartesianSpeed = 100
	}
	if cfg.DefaultJointSpeed == 0 {
		cfg.DefaultJointSpeed = 30
	}
	if cfg.DefaultAcceleration == 0 {
		cfg.DefaultAcceleration = 500
	}
	if cfg.InterpolationSteps == 0 {
		cfg.InterpolationSteps = 20
	}
	if cfg.MinMoveDuration == 0 {
		cfg.MinMoveDuration = 500 * time.Millisecond
	}
	if cfg.GripperActuationTime == 0 {
		cfg.GripperActuationTime = 300 * time.Millisecond
	}
	if cfg.MaxGripperForce == 0 {
		cfg.MaxGripperForce = 100
	}
	if cfg.PathCheckSteps == 0 {
		cfg.PathCheckSteps = 10
	}
	cfg.IK.setDefaults()

	if cfg.DefaultCartesianSpeed < 0 {
		return fail("default_cartesian_speed_mm_per_sec must be positive, got %.1f", cfg.DefaultCartesianSpeed)
	}
	if cfg.DefaultJointSpeed < 0 {
		return fail("default_joint_speed_degs_per_sec must be positive, got %.1f", cfg.DefaultJointSpeed)
	}
	if cfg.DefaultAcceleration < 0 {
		return fail("default_acceleration_mm_per_sec_per_sec must be positive, got %.1f", cfg.DefaultAcceleration)
	}
	if cfg.InterpolationSteps < 1 || cfg.InterpolationSteps > 1000 {
		return fail("interpolation_steps must be between 1 and 1000, got %d", cfg.InterpolationSteps)
	}
	if cfg.MinMoveDuration < 0 || cfg.GripperActuationTime < 0 {
		return fail("durations must not be negative")
	}
	if cfg.MaxGripperForce < 0 {
		return fail("max_gripper_force must be positive, got %.1f", cfg.MaxGripperForce)
	}
	if cfg.MaxQueueDepth < 0 {
		return fail("max_queue_depth must not be negative, got %d", cfg.MaxQueueDepth)
	}

	if err := cfg.Model().validate(); err != nil {
		return fail("%v", err)
	}
	return nil, nil, nil
}

// Clone returns a copy of cfg that shares no slices or pointers with it.
func (cfg *Config) Clone() *Config {
	c := *cfg
	c.Joints = append([]JointSpec(nil), cfg.Joints...)
	c.DH = append([]DHParams(nil), cfg.DH...)
	c.KeepOut = append([]Box(nil), cfg.KeepOut...)
	c.HomeJoints = append([]float64(nil), cfg.HomeJoints...)
	if cfg.Workspace != nil {
		ws := *cfg.Workspace
		c.Workspace = &ws
	}
	if cfg.ToolPitchDeg != nil {
		pitch := *cfg.ToolPitchDeg
		c.ToolPitchDeg = &pitch
	}
	return &c
}

// Model builds the robot model described by the config.
func (cfg *Config) Model() *RobotModel {
	m := DefaultModel()
	if len(cfg.Joints) == NumJoints {
		copy(m.Joints[:], cfg.Joints)
	}
	if len(cfg.DH) == NumJoints {
		copy(m.DH[:], cfg.DH)
	}
	if cfg.Workspace != nil {
		m.Workspace = *cfg.Workspace
	}
	if len(cfg.KeepOut) > 0 {
		m.KeepOut = append([]Box(nil), cfg.KeepOut...)
	}
	if len(cfg.HomeJoints) == NumJoints {
		copy(m.HomeJoints[:], cfg.HomeJoints)
	}
	if cfg.ToolPitchDeg != nil {
		m.ToolPitchDeg = *cfg.ToolPitchDeg
	}
	return m
}

// LoadConfig loads a config file or returns the default config.
// Returns (config, fromFile) where fromFile indicates if loaded from file.
func LoadConfig(path string, logger logging.Logger) (*Config, bool) {
	if path == "" {
		if logger != nil {
			logger.Debug("No config file specified, using default config")
		}
		return DefaultConfig(), false
	}

	if !filepath.IsAbs(path) {
		dataDir := os.Getenv(DataDirEnv)
		if dataDir == "" {
			dataDir = "."
		}
		path = filepath.Join(dataDir, path)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		if logger != nil {
			logger.Warnf("Failed to load config from %s: %v, using default config", path, err)
		}
		return DefaultConfig(), false
	}

	if logger != nil {
		logger.Infof("Successfully loaded config from %s", path)
	}
	return cfg, true
}

// LoadConfigFromFile reads and validates a JSON config.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if _, _, err := cfg.Validate(path); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg as indented JSON.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configsEqual compares the serialized form, ignoring the logger.
func configsEqual(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
