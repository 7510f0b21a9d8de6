package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"hvcalibrate/feedback"
	"hvcalibrate/types"
)

func record(t *testing.T) *Record {
	t.Helper()
	rec := &Record{
		RunID: uuid.MustParse("6f1c2a7e-8f43-4c52-9a0e-1d2b3c4d5e6f"),
		Priors: types.Calibration{
			HardwareMajor: 2,
			Resistances:   []float64{1e5, 5.2e5, 5.3e6},
			Capacitances:  []float64{1e-10, 1.8e-11, 2.6e-12},
		},
	}
	for _, r := range []types.ResistorIndex{1, 0} {
		for _, f := range []float64{100, 1000, 10000} {
			a, err := feedback.Attenuation(2, types.ReferenceR1, rec.Priors.Resistances[r], rec.Priors.Capacitances[r], f)
			if err != nil {
				t.Fatalf("Attenuation failed: %v", err)
			}
			rec.Readings = append(rec.Readings, types.ConditionResult{
				Resistor: r, Frequency: f, ActuationIndex: 40, BoardVoltage: 20 * a, ReferenceVoltage: 20,
			})
		}
	}
	rec.Readings = append(rec.Readings, types.ConditionResult{Resistor: 2, Frequency: 100, BoardVoltage: math.NaN(), ReferenceVoltage: 20})
	rec.Fitted = []types.FittedParameters{{
		Resistor: 1, OriginalResistance: 5.2e5, OriginalCapacitance: 1.8e-11,
		FittedResistance: 6.4e5, FittedCapacitance: 1.5e-11, Iterations: 7,
	}}
	return rec
}

// TestRecordJSON NaN 读数编码为 null
func TestRecordJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := record(t).Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out struct {
		RunID    string                   `json:"run_id"`
		Readings []map[string]interface{} `json:"readings"`
		Fitted   []types.FittedParameters `json:"fitted"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, buf.String())
	}
	if out.RunID != "6f1c2a7e-8f43-4c52-9a0e-1d2b3c4d5e6f" {
		t.Errorf("Unexpected run id %q", out.RunID)
	}
	if len(out.Readings) != 7 {
		t.Fatalf("Expected 7 readings, got %d", len(out.Readings))
	}
	if v, ok := out.Readings[6]["board_measured_v"]; !ok || v != nil {
		t.Errorf("Expected null board voltage, got %v", v)
	}
	if len(out.Fitted) != 1 || out.Fitted[0].FittedResistance != 6.4e5 {
		t.Errorf("Unexpected fitted table %+v", out.Fitted)
	}
}

// TestRecordCSV 读数表与拟合表
func TestRecordCSV(t *testing.T) {
	rec := record(t)
	var buf bytes.Buffer
	if err := rec.ReadingsCSV(&buf); err != nil {
		t.Fatalf("ReadingsCSV failed: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(rows) != 8 || rows[0][1] != "resistor_index" {
		t.Fatalf("Unexpected readings csv %v", rows)
	}
	if rows[1][1] != "1" || rows[1][2] != "100" || rows[7][4] != "NaN" {
		t.Errorf("Unexpected rows %v / %v", rows[1], rows[7])
	}
	buf.Reset()
	if err := rec.FittedCSV(&buf); err != nil {
		t.Fatalf("FittedCSV failed: %v", err)
	}
	if rows, _ := csv.NewReader(&buf).ReadAll(); len(rows) != 2 || rows[1][5] != "640000" {
		t.Errorf("Unexpected fitted csv %v", rows)
	}
}

// TestPlotAttenuation 衰减图包含测量点与两条模型曲线
func TestPlotAttenuation(t *testing.T) {
	rec := record(t)
	if _, err := PlotAttenuation(rec, types.ReferenceR1); err != nil {
		t.Fatalf("PlotAttenuation failed: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteAttenuation(&buf, rec, types.ReferenceR1, "svg"); err != nil {
		t.Fatalf("WriteAttenuation failed: %v", err)
	}
	svg := buf.String()
	if !strings.Contains(svg, "<svg") {
		t.Fatalf("Expected svg output")
	}
	// 两个电阻的测量点加 R1 的两条曲线
	for _, s := range []string{"R0 measured", "R1 measured", "R1 previous fit", "R1 new fit"} {
		if !strings.Contains(svg, s) {
			t.Errorf("Expected legend %q", s)
		}
	}
	if strings.Contains(svg, "R2 measured") {
		t.Errorf("R2 has no usable points and must not be drawn")
	}
}

// TestPlotEmpty 没有数据时仍能输出
func TestPlotEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAttenuation(&buf, &Record{}, types.ReferenceR1, "svg"); err != nil {
		t.Fatalf("WriteAttenuation failed: %v", err)
	}
}

// TestCharts 网页包含每条数据序列
func TestCharts(t *testing.T) {
	c := &Charts{Record: *record(t), R1: types.ReferenceR1}
	w := httptest.NewRecorder()
	c.Handler(w, httptest.NewRequest("GET", "/", nil))
	body := w.Body.String()
	if w.Code != 200 {
		t.Fatalf("Unexpected status %d", w.Code)
	}
	for _, s := range []string{"echarts", "R0 measured", "R1 new fit", "R1 previous fit", "R2 oscope"} {
		if !strings.Contains(body, s) {
			t.Errorf("Expected %q in page", s)
		}
	}
	if strings.Contains(body, "R0 new fit") {
		t.Errorf("R0 has no fit and must not have a curve")
	}
}
