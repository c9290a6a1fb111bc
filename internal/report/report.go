// Package report writes harness results: per-message rows, the battery sweep
// and the per-failure-rate comparison as CSV, and the aggregate report as
// JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/signalsfoundry/mesh-simulator/internal/harness"
)

// Header is the CSV column order.
var Header = []string{
	"message_id",
	"origin",
	"target",
	"priority",
	"origin_battery_level",
	"origin_is_charging",
	"network_density",
	"adaptive_max_hops",
	"baseline_max_hops",
	"adaptive_success",
	"baseline_success",
	"adaptive_hops_used",
	"baseline_hops_used",
	"adaptive_path_length",
	"baseline_path_length",
}

// SweepHeader is the column order of the battery sweep CSV.
var SweepHeader = []string{
	"battery_level",
	"is_charging",
	"avrai_max_hops",
	"baseline_max_hops",
	"adaptive_advantage",
}

// RatesHeader is the column order of the failure-rate CSV.
var RatesHeader = []string{
	"failure_rate",
	"failed_nodes",
	"avrai_success_rate",
	"baseline_success_rate",
	"improvement",
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []harness.DeliveryRecord) error {
	return writeTable(w, Header, len(records), func(i int) []string { return row(records[i]) })
}

// WriteSweepCSV writes one row per battery sweep point.
func WriteSweepCSV(w io.Writer, sweep []harness.SweepPoint) error {
	return writeTable(w, SweepHeader, len(sweep), func(i int) []string {
		p := sweep[i]
		return []string{
			formatFloat(p.BatteryLevel),
			strconv.FormatBool(p.IsCharging),
			strconv.Itoa(p.AdaptiveMaxHops),
			strconv.Itoa(p.BaselineMaxHops),
			strconv.Itoa(p.Advantage),
		}
	})
}

// WriteRatesCSV writes one row per swept failure rate.
func WriteRatesCSV(w io.Writer, rates []harness.RateResult) error {
	return writeTable(w, RatesHeader, len(rates), func(i int) []string {
		r := rates[i]
		return []string{
			formatFloat(r.FailureRate),
			strconv.Itoa(r.FailedNodes),
			formatFloat(r.AdaptiveSuccessRate),
			formatFloat(r.BaselineSuccessRate),
			formatFloat(r.Improvement),
		}
	})
}

func writeTable(w io.Writer, header []string, n int, rowAt func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range n {
		if err := cw.Write(rowAt(i)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func row(r harness.DeliveryRecord) []string {
	return []string{
		r.MessageID,
		r.Origin,
		r.Target,
		r.Priority.String(),
		formatFloat(r.OriginBatteryLevel),
		strconv.FormatBool(r.OriginIsCharging),
		strconv.Itoa(r.NetworkDensity),
		strconv.Itoa(r.AdaptiveMaxHops),
		strconv.Itoa(r.BaselineMaxHops),
		strconv.FormatBool(r.AdaptiveSuccess),
		strconv.FormatBool(r.BaselineSuccess),
		strconv.Itoa(r.AdaptiveHopsUsed),
		strconv.Itoa(r.BaselineHopsUsed),
		strconv.Itoa(r.AdaptivePathLength),
		strconv.Itoa(r.BaselinePathLength),
	}
}

// WriteJSON writes rep as indented JSON followed by a newline.
func WriteJSON(w io.Writer, rep harness.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteCSVFile writes records to path, creating parent directories.
func WriteCSVFile(path string, records []harness.DeliveryRecord) error {
	return writeFile(path, func(w io.Writer) error { return WriteCSV(w, records) })
}

// WriteSweepCSVFile writes the battery sweep to path.
func WriteSweepCSVFile(path string, sweep []harness.SweepPoint) error {
	return writeFile(path, func(w io.Writer) error { return WriteSweepCSV(w, sweep) })
}

// WriteRatesCSVFile writes the failure-rate comparison to path.
func WriteRatesCSVFile(path string, rates []harness.RateResult) error {
	return writeFile(path, func(w io.Writer) error { return WriteRatesCSV(w, rates) })
}

// WriteJSONFile writes rep to path, creating parent directories.
func WriteJSONFile(path string, rep harness.Report) error {
	return writeFile(path, func(w io.Writer) error { return WriteJSON(w, rep) })
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}
