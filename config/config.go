// Package config 校准参数：内置默认 YAML，可选配置文件，.env 与环境变量覆盖仪器设置。
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"hvcalibrate/maths"
)

// 环境变量
const (
	EnvOscopeAddress = "HVCAL_OSCOPE_ADDRESS" // VISA 资源地址
	EnvSettle        = "HVCAL_SETTLE"         // 示波器稳定等待，如 750ms
)

var defcfg = `
sweep:
  resistors: 3
  probe_voltage: 0.1
  ladder_floor: 0.005
  ladder_points: 100
  headroom: 0.8
probe:
  samples: 10
  sampling_ms: 10
  delay_ms: 0
  retries: 3
fit:
  r1: 1.0e+7
  max_iterations: 200
  tolerance: 1.0e-10
frequencies:
  min: 100
  max: 10000
  points: 10
oscope:
  address: ""
  settle: 750ms
`

// Sweep 条件扫描参数
type Sweep struct {
	Resistors    int     `yaml:"resistors"`
	ProbeVoltage float64 `yaml:"probe_voltage"`
	LadderFloor  float64 `yaml:"ladder_floor"`
	LadderPoints int     `yaml:"ladder_points"`
	Headroom     float64 `yaml:"headroom"`
}

// Probe 单次测量参数
type Probe struct {
	Samples    int     `yaml:"samples"`
	SamplingMs float64 `yaml:"sampling_ms"`
	DelayMs    float64 `yaml:"delay_ms"`
	Retries    int     `yaml:"retries"`
}

// Fit 拟合参数
type Fit struct {
	R1            float64 `yaml:"r1"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
}

// Frequencies 扫描频率，List 非空时直接使用，否则在 [Min, Max] 上取 Points 个对数间隔点
type Frequencies struct {
	Min    float64   `yaml:"min"`
	Max    float64   `yaml:"max"`
	Points int       `yaml:"points"`
	List   []float64 `yaml:"list,omitempty"`
}

// Oscope 示波器设置
type Oscope struct {
	Address string        `yaml:"address"`
	Settle  time.Duration `yaml:"settle"`
}

// Config 校准参数
type Config struct {
	Sweep       Sweep       `yaml:"sweep"`
	Probe       Probe       `yaml:"probe"`
	Fit         Fit         `yaml:"fit"`
	Frequencies Frequencies `yaml:"frequencies"`
	Oscope      Oscope      `yaml:"oscope"`
	DryRun      bool        `yaml:"dry_run"`
}

// Default 内置默认参数
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defcfg), &cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load 在默认参数上叠加配置文件 path (为空则跳过)，再应用环境变量
//
// envFiles 中存在的 .env 文件先载入环境，已设置的环境变量不会被覆盖。
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := loadEnv(envFiles); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadEnv(files []string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return errors.Wrap(godotenv.Load(present...), "load env")
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvOscopeAddress); ok {
		c.Oscope.Address = v
	}
	if v, ok := os.LookupEnv(EnvSettle); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvSettle)
		}
		c.Oscope.Settle = d
	}
	return nil
}

// Validate 检查参数范围
func (c Config) Validate() error {
	switch {
	case c.Sweep.Resistors < 1:
		return errors.Errorf("sweep.resistors %d", c.Sweep.Resistors)
	case !(c.Sweep.ProbeVoltage > 0):
		return errors.Errorf("sweep.probe_voltage %g", c.Sweep.ProbeVoltage)
	case !(c.Sweep.LadderFloor > 0):
		return errors.Errorf("sweep.ladder_floor %g", c.Sweep.LadderFloor)
	case c.Sweep.LadderPoints < 2:
		return errors.Errorf("sweep.ladder_points %d", c.Sweep.LadderPoints)
	case !(c.Sweep.Headroom > 0 && c.Sweep.Headroom <= 1):
		return errors.Errorf("sweep.headroom %g", c.Sweep.Headroom)
	case c.Probe.Samples < 1:
		return errors.Errorf("probe.samples %d", c.Probe.Samples)
	case c.Probe.Retries < 0:
		return errors.Errorf("probe.retries %d", c.Probe.Retries)
	case !(c.Fit.R1 > 0):
		return errors.Errorf("fit.r1 %g", c.Fit.R1)
	case c.Fit.MaxIterations < 1:
		return errors.Errorf("fit.max_iterations %d", c.Fit.MaxIterations)
	case c.Oscope.Settle < 0:
		return errors.Errorf("oscope.settle %s", c.Oscope.Settle)
	}
	return nil
}

// FrequencyList 扫描频率
func (c Config) FrequencyList() ([]float64, error) {
	if len(c.Frequencies.List) > 0 {
		return append([]float64(nil), c.Frequencies.List...), nil
	}
	return maths.LogSpace(c.Frequencies.Min, c.Frequencies.Max, c.Frequencies.Points)
}
