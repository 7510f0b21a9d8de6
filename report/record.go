// Package report 输出校准运行的读数表与拟合表。
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hvcalibrate/types"
)

// Record 一次校准运行的全部数据
type Record struct {
	RunID    uuid.UUID
	Priors   types.Calibration
	Readings []types.ConditionResult  // 条件扫描读数
	Fitted   []types.FittedParameters // 拟合结果
}

// number 非有限值编码为 null
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

type reading struct {
	Resistor         types.ResistorIndex `json:"resistor_index"`
	Frequency        float64             `json:"frequency"`
	ActuationIndex   int                 `json:"actuation_index"`
	BoardVoltage     number              `json:"board_measured_v"`
	ReferenceVoltage number              `json:"oscope_measured_v"`
	Attenuation      number              `json:"attenuation"`
}

// Render 输出 JSON
func (r *Record) Render(w io.Writer) error {
	readings := make([]reading, len(r.Readings))
	for i, c := range r.Readings {
		readings[i] = reading{
			Resistor:         c.Resistor,
			Frequency:        c.Frequency,
			ActuationIndex:   c.ActuationIndex,
			BoardVoltage:     number(c.BoardVoltage),
			ReferenceVoltage: number(c.ReferenceVoltage),
			Attenuation:      number(c.Attenuation()),
		}
	}
	fitted := r.Fitted
	if fitted == nil {
		fitted = []types.FittedParameters{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		RunID    uuid.UUID                `json:"run_id"`
		Priors   types.Calibration        `json:"priors"`
		Readings []reading                `json:"readings"`
		Fitted   []types.FittedParameters `json:"fitted"`
	}{r.RunID, r.Priors, readings, fitted})
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// ReadingsCSV 输出读数表，NaN 原样保留
func (r *Record) ReadingsCSV(w io.Writer) error {
	rows := [][]string{{"run_id", "resistor_index", "frequency", "actuation_index", "board_measured_v", "oscope_measured_v", "attenuation"}}
	for _, c := range r.Readings {
		rows = append(rows, []string{
			r.RunID.String(),
			strconv.Itoa(int(c.Resistor)),
			format(c.Frequency),
			strconv.Itoa(c.ActuationIndex),
			format(c.BoardVoltage),
			format(c.ReferenceVoltage),
			format(c.Attenuation()),
		})
	}
	return writeAll(w, rows)
}

// FittedCSV 输出拟合表
func (r *Record) FittedCSV(w io.Writer) error {
	rows := [][]string{{"run_id", "resistor_index", "original_c", "original_r", "fitted_c", "fitted_r", "iterations", "cost"}}
	for _, p := range r.Fitted {
		rows = append(rows, []string{
			r.RunID.String(),
			strconv.Itoa(int(p.Resistor)),
			format(p.OriginalCapacitance),
			format(p.OriginalResistance),
			format(p.FittedCapacitance),
			format(p.FittedResistance),
			strconv.Itoa(p.Iterations),
			format(p.Cost),
		})
	}
	return writeAll(w, rows)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}
