package fit

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"hvcalibrate/feedback"
	"hvcalibrate/maths"
	"hvcalibrate/types"
)

// synthetic 由传递函数生成带噪声的校准数据
func synthetic(t *testing.T, hw int, r types.ResistorIndex, r2, c2, noise float64, seed int64) []types.ConditionResult {
	t.Helper()
	freqs, err := maths.LogSpace(10, 1e4, 20)
	if err != nil {
		t.Fatalf("LogSpace failed: %v", err)
	}
	rnd := rand.New(rand.NewSource(seed))
	rows := make([]types.ConditionResult, len(freqs))
	for i, f := range freqs {
		a, err := feedback.Attenuation(hw, types.ReferenceR1, r2, c2, f)
		if err != nil {
			t.Fatalf("Attenuation failed: %v", err)
		}
		const scope = 100.0
		rows[i] = types.ConditionResult{
			Resistor:         r,
			Frequency:        f,
			ActuationIndex:   50,
			BoardVoltage:     scope * a * (1 + noise*rnd.NormFloat64()),
			ReferenceVoltage: scope,
		}
	}
	return rows
}

func within(got, want, rel float64) bool { return math.Abs(got-want) <= rel*math.Abs(want) }

// TestFitRoundTrip 从带噪声的合成数据恢复 R2=1e6、C2=1e-9，误差在 5% 以内
func TestFitRoundTrip(t *testing.T) {
	for _, hw := range []int{1, 2} {
		rows := synthetic(t, hw, 0, 1e6, 1e-9, 0.005, int64(hw))
		priors := types.Calibration{HardwareMajor: hw, Resistances: []float64{0.7e6}, Capacitances: []float64{1.4e-9}}
		fitted, err := Fit(context.Background(), rows, priors, golog.NewTestLogger(t))
		if err != nil {
			t.Fatalf("hw %d: Fit failed: %v", hw, err)
		}
		if len(fitted) != 1 {
			t.Fatalf("hw %d: expected 1 fitted resistor, got %d", hw, len(fitted))
		}
		p := fitted[0]
		if !within(p.FittedResistance, 1e6, 0.05) || !within(p.FittedCapacitance, 1e-9, 0.05) {
			t.Errorf("hw %d: fitted (R=%g, C=%g), expected (1e6, 1e-9)", hw, p.FittedResistance, p.FittedCapacitance)
		}
		if p.OriginalResistance != 0.7e6 || p.OriginalCapacitance != 1.4e-9 {
			t.Errorf("hw %d: priors not carried through: %+v", hw, p)
		}
	}
}

// TestFitPerResistor 某个电阻失败不影响其它电阻，无效电阻行被忽略
func TestFitPerResistor(t *testing.T) {
	var rows []types.ConditionResult
	rows = append(rows, synthetic(t, 2, 2, 4.5e6, 3e-12, 0, 1)...)
	rows = append(rows, synthetic(t, 2, 0, 9e4, 1.2e-10, 0, 2)...)
	rows = append(rows, types.ConditionResult{Resistor: 1, Frequency: 100, BoardVoltage: 1, ReferenceVoltage: 10})
	rows = append(rows, types.ConditionResult{Resistor: types.NoResistor, Frequency: 100, BoardVoltage: 1, ReferenceVoltage: 10})
	priors := types.Calibration{
		HardwareMajor: 2,
		Resistances:   []float64{1e5, 6e5, 4e6},
		Capacitances:  []float64{1e-10, 1.5e-11, 3.5e-12},
	}
	fitted, err := Fit(context.Background(), rows, priors, golog.NewTestLogger(t))
	if !errors.Is(err, types.ErrInsufficientData) {
		t.Fatalf("Expected ErrInsufficientData for R1, got %v", err)
	}
	if errs := multierr.Errors(err); len(errs) != 1 {
		t.Errorf("Expected exactly one resistor error, got %v", errs)
	} else {
		var re *ResistorError
		if !errors.As(errs[0], &re) || re.Resistor != 1 {
			t.Errorf("Expected error for R1, got %v", errs[0])
		}
	}
	if len(fitted) != 2 || fitted[0].Resistor != 0 || fitted[1].Resistor != 2 {
		t.Fatalf("Expected fits for R0 and R2 in order, got %+v", fitted)
	}
	if !within(fitted[0].FittedResistance, 9e4, 1e-3) || !within(fitted[1].FittedResistance, 4.5e6, 1e-3) {
		t.Errorf("Noise-free fits inaccurate: %+v", fitted)
	}
}

// TestFitSkipsNonFinite NaN 读数不参与拟合
func TestFitSkipsNonFinite(t *testing.T) {
	rows := synthetic(t, 1, 0, 1e6, 1e-9, 0, 3)
	rows[3].BoardVoltage = math.NaN()
	rows[7].ReferenceVoltage = 0
	priors := types.Calibration{HardwareMajor: 1, Resistances: []float64{1.2e6}, Capacitances: []float64{0.9e-9}}
	fitted, err := Fit(context.Background(), rows, priors, golog.NewTestLogger(t))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !within(fitted[0].FittedResistance, 1e6, 1e-3) || !within(fitted[0].FittedCapacitance, 1e-9, 1e-3) {
		t.Errorf("Fit inaccurate: %+v", fitted[0])
	}
}

// TestFitNonconvergence 迭代不足时报告不收敛
func TestFitNonconvergence(t *testing.T) {
	rows := synthetic(t, 1, 0, 1e6, 1e-9, 0, 4)
	priors := types.Calibration{HardwareMajor: 1, Resistances: []float64{3e6}, Capacitances: []float64{0.2e-9}}
	f := New(golog.NewTestLogger(t))
	f.Settings.MaxIterations = 1
	fitted, err := f.Fit(context.Background(), rows, priors)
	if !errors.Is(err, types.ErrFitNonconvergence) {
		t.Errorf("Expected ErrFitNonconvergence, got %v", err)
	}
	if len(fitted) != 0 {
		t.Errorf("Expected the failed resistor to be omitted, got %+v", fitted)
	}
}

// TestFitUnknownHardware 未知硬件版本按电阻报错
func TestFitUnknownHardware(t *testing.T) {
	rows := synthetic(t, 1, 0, 1e6, 1e-9, 0, 5)
	priors := types.Calibration{HardwareMajor: 7, Resistances: []float64{1e6}, Capacitances: []float64{1e-9}}
	if _, err := Fit(context.Background(), rows, priors, nil); err == nil {
		t.Errorf("Expected error for unknown hardware version")
	}
}

// TestFitEmpty 没有数据时没有结果也没有错误
func TestFitEmpty(t *testing.T) {
	fitted, err := Fit(context.Background(), nil, types.Calibration{HardwareMajor: 2}, nil)
	if err != nil || len(fitted) != 0 {
		t.Errorf("Expected empty result, got %v, %v", fitted, err)
	}
}
