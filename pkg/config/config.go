package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log          LogConfig                   `yaml:"log"`
	DB           DBConfig                    `yaml:"db"`
	Server       ServerConfig                `yaml:"server"`
	Ticker       TickerConfig                `yaml:"ticker"`
	Clock        ClockConfig                 `yaml:"clock"`
	Observer     string                      `yaml:"observer"`
	Features     FeaturesConfig              `yaml:"features"`
	Ephemeris    EphemerisConfig             `yaml:"ephemeris"`
	Anchors      map[string]AnchorConfig     `yaml:"anchors"`
	Trajectories map[string]TrajectoryConfig `yaml:"trajectories"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	Trace    bool        `yaml:"trace"` // per-sample DEBUG logs; very noisy
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// TickerConfig holds ticker settings.
type TickerConfig struct {
	FrameInterval   Duration `yaml:"frame_interval"`
	PersistInterval Duration `yaml:"persist_interval"`
}

// ClockConfig holds the simulation clock settings.
type ClockConfig struct {
	Start   string  `yaml:"start"` // UTC, empty means wall time at startup
	Speed   float64 `yaml:"speed"` // simulation seconds per wall second
	Restore bool    `yaml:"restore"`
}

// FeaturesConfig holds the default feature toggles.
type FeaturesConfig struct {
	Trajectories bool `yaml:"enable_trajectories"`
	PlanetMarks  bool `yaml:"enable_planet_marks"`
	SunFlares    bool `yaml:"enable_sun_flares"`
}

// EphemerisConfig holds the position provider settings.
type EphemerisConfig struct {
	Root    string                 `yaml:"root"`
	Frames  []string               `yaml:"frames"`
	Sources []string               `yaml:"sources"` // "table", "kepler"; first match wins
	Bodies  map[string]OrbitConfig `yaml:"bodies"`
}

// OrbitConfig holds Keplerian elements. Angles are in degrees.
type OrbitConfig struct {
	Parent        string   `yaml:"parent"`
	SemiMajorAxis Distance `yaml:"semi_major_axis"`
	Eccentricity  float64  `yaml:"eccentricity"`
	Inclination   float64  `yaml:"inclination"`
	AscendingNode float64  `yaml:"ascending_node"`
	Period        Duration `yaml:"period"`
	MeanAnomaly   float64  `yaml:"mean_anomaly"`
	Coverage      []string `yaml:"coverage,omitempty"`
}

// AnchorConfig places a named object in the scene.
type AnchorConfig struct {
	Center    string   `yaml:"center"`
	Frame     string   `yaml:"frame"`
	Existence []string `yaml:"existence,omitempty"`
}

// TrajectoryConfig holds the per-body drawing settings.
type TrajectoryConfig struct {
	Color     [3]float32   `yaml:"color,flow"`
	DrawDot   bool         `yaml:"draw_dot"`
	DrawFlare bool         `yaml:"draw_flare"`
	Trail     *TrailConfig `yaml:"trail,omitempty"`
}

// TrailConfig holds the trail settings of one body.
type TrailConfig struct {
	Length       Duration `yaml:"length"`
	Samples      int      `yaml:"samples"`
	ParentCenter string   `yaml:"parent_center"`
	ParentFrame  string   `yaml:"parent_frame"`
}

const eclip = "ECLIPJ2000"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/trailgo.db",
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
		Ticker: TickerConfig{
			FrameInterval:   Duration(50 * time.Millisecond),
			PersistInterval: Duration(30 * time.Second),
		},
		Clock: ClockConfig{
			Speed:   1,
			Restore: true,
		},
		Observer: "Earth",
		Features: FeaturesConfig{
			Trajectories: true,
			PlanetMarks:  true,
			SunFlares:    true,
		},
		Ephemeris: EphemerisConfig{
			Root:    "Sun",
			Frames:  []string{eclip},
			Sources: []string{"table", "kepler"},
			Bodies: map[string]OrbitConfig{
				"Earth": {
					Parent:        "Sun",
					SemiMajorAxis: Distance(1.00000261 * AU),
					Eccentricity:  0.01671123,
					Period:        Duration(365.256 * float64(Day)),
					MeanAnomaly:   357.529,
				},
				"Moon": {
					Parent:        "Earth",
					SemiMajorAxis: Distance(384400e3),
					Eccentricity:  0.0549,
					Inclination:   5.145,
					AscendingNode: 125.08,
					Period:        Duration(27.321661 * float64(Day)),
					MeanAnomaly:   134.963,
				},
				"Mars": {
					Parent:        "Sun",
					SemiMajorAxis: Distance(1.52371034 * AU),
					Eccentricity:  0.0933941,
					Inclination:   1.84969142,
					AscendingNode: 49.55953891,
					Period:        Duration(686.98 * float64(Day)),
					MeanAnomaly:   19.39,
				},
				"Jupiter": {
					Parent:        "Sun",
					SemiMajorAxis: Distance(5.202887 * AU),
					Eccentricity:  0.04838624,
					Inclination:   1.30439695,
					AscendingNode: 100.47390909,
					Period:        Duration(4332.59 * float64(Day)),
					MeanAnomaly:   20.02,
				},
			},
		},
		Anchors: map[string]AnchorConfig{
			"Sun":     {Center: "Sun", Frame: eclip},
			"Earth":   {Center: "Earth", Frame: eclip},
			"Moon":    {Center: "Moon", Frame: eclip},
			"Mars":    {Center: "Mars", Frame: eclip},
			"Jupiter": {Center: "Jupiter", Frame: eclip},
		},
		Trajectories: map[string]TrajectoryConfig{
			"Sun": {
				Color:     [3]float32{1, 1, 0.8},
				DrawFlare: true,
			},
			"Earth": {
				Color:   [3]float32{0.2, 0.4, 1},
				DrawDot: true,
				Trail:   &TrailConfig{Length: Duration(Year), Samples: 360, ParentCenter: "Sun", ParentFrame: eclip},
			},
			"Moon": {
				Color: [3]float32{0.7, 0.7, 0.7},
				Trail: &TrailConfig{Length: Duration(27 * Day), Samples: 100, ParentCenter: "Earth", ParentFrame: eclip},
			},
			"Mars": {
				Color:   [3]float32{1, 0.4, 0.2},
				DrawDot: true,
				Trail:   &TrailConfig{Length: Duration(687 * Day), Samples: 360, ParentCenter: "Sun", ParentFrame: eclip},
			},
			"Jupiter": {
				Color:   [3]float32{0.9, 0.7, 0.5},
				DrawDot: true,
				Trail:   &TrailConfig{Length: Duration(12 * Year), Samples: 512, ParentCenter: "Sun", ParentFrame: eclip},
			},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
// Environment overrides are applied last and never written to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Maps from the file replace the default maps rather than merging into them.
		bodies, anchors, trajectories := cfg.Ephemeris.Bodies, cfg.Anchors, cfg.Trajectories
		cfg.Ephemeris.Bodies, cfg.Anchors, cfg.Trajectories = nil, nil, nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if cfg.Ephemeris.Bodies == nil {
			cfg.Ephemeris.Bodies = bodies
		}
		if cfg.Anchors == nil {
			cfg.Anchors = anchors
		}
		if cfg.Trajectories == nil {
			cfg.Trajectories = trajectories
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DB.Path = os.ExpandEnv(cfg.DB.Path)
	cfg.Log.Server.Path = os.ExpandEnv(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = os.ExpandEnv(cfg.Log.Requests.Path)
	cfg.Log.Events.Path = os.ExpandEnv(cfg.Log.Events.Path)

	if v := os.Getenv("TRAILGO_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("TRAILGO_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("TRAILGO_LOG_LEVEL"); v != "" {
		cfg.Log.Server.Level = v
	}
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# TrailGo Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week), y (julian year)
#   Distance: m (meters), km (kilometers), au (astronomical units)
# Times are UTC, e.g. "2000-01-01 12:00:00.000"

`)
	data = append(header, data...)

	reSources := regexp.MustCompile(`(?m)^(\s+)sources:`)
	data = reSources.ReplaceAll(data, []byte("${1}# Options: table, kepler (first source that knows a body wins)\n${1}sources:"))

	reExistence := regexp.MustCompile(`(?m)^(\s+)existence:`)
	data = reExistence.ReplaceAll(data, []byte("${1}# [start, end] UTC; omit for always\n${1}existence:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write default config
	return Save(path, DefaultConfig())
}
