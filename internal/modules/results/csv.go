package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
)

const (
	// DateLayout is the minute-resolution timestamp of the date column.
	DateLayout = "2006-01-02 15:04"
	// FileTimeLayout is the timestamp suffix of result file names.
	FileTimeLayout = "2006-01-02-15-04"
)

var (
	leadingColumns  = []string{"date", "precision_in_bits", "pphys", "dx", "dz", "dm"}
	trailingColumns = []string{"error_rate", "qubits", "code_cycles"}
)

// Columns returns the CSV header for a protocol. Level-2 distances and the
// level-1 factory count are inserted before error_rate when the protocol
// reads them.
func Columns(proto distillation.Protocol) []string {
	cols := append([]string{}, leadingColumns...)
	switch proto {
	case distillation.TwoLevel15to1:
		cols = append(cols, "dx2", "dz2", "dm2")
	case distillation.TwoLevel20to4:
		cols = append(cols, "dx2", "dz2", "dm2", "n1")
	}
	return append(cols, trailingColumns...)
}

// FileStem is the file name prefix used for a protocol's search output.
func FileStem(proto distillation.Protocol) string {
	switch proto {
	case distillation.SmallFootprint15to1:
		return "small_footprint_one_level_15to1_simulations"
	case distillation.Compact15to1:
		return "compact_one_level_15to1_simulations"
	case distillation.Standard15to1:
		return "one_level_15to1_simulations"
	case distillation.TwoLevel15to1:
		return "two_level_15to1_simulations"
	case distillation.TwoLevel20to4:
		return "two_level_20to4_simulations"
	}
	return strings.ReplaceAll(string(proto), "-", "_") + "_simulations"
}

// FileName is stem-YYYY-MM-DD-HH-MM.csv.
func FileName(stem string, t time.Time) string {
	return fmt.Sprintf("%s-%s.csv", stem, t.Format(FileTimeLayout))
}

// WriteCSV writes the header and every successful row. Rows without an
// estimate have no error_rate to report and are skipped. It returns the number
// of rows written.
func WriteCSV(w io.Writer, proto distillation.Protocol, rows []Row) (int, error) {
	cols := Columns(proto)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}

	n := 0
	record := make([]string, len(cols))
	for _, r := range rows {
		if !r.OK() {
			continue
		}
		for i, col := range cols {
			record[i] = r.field(col)
		}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("failed to write csv row %d: %w", r.Seq, err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("failed to flush csv: %w", err)
	}
	return n, nil
}

func (r Row) field(col string) string {
	p := r.Params
	switch col {
	case "date":
		return r.Date.Format(DateLayout)
	case "precision_in_bits":
		return strconv.FormatUint(uint64(r.Precision), 10)
	case "pphys":
		return FormatFloat(p.PPhys)
	case "dx":
		return strconv.Itoa(p.DX)
	case "dz":
		return strconv.Itoa(p.DZ)
	case "dm":
		return strconv.Itoa(p.DM)
	case "dx2":
		return strconv.Itoa(p.DX2)
	case "dz2":
		return strconv.Itoa(p.DZ2)
	case "dm2":
		return strconv.Itoa(p.DM2)
	case "n1":
		return strconv.Itoa(p.NL1)
	case "error_rate":
		return FormatFloat(r.ErrorRate)
	case "qubits":
		return strconv.Itoa(r.Qubits)
	case "code_cycles":
		return FormatFloat(r.Cycles)
	}
	return ""
}

// FormatFloat renders v as the shortest round-tripping decimal, in positional
// notation for exponents in [-4, 16) and scientific notation otherwise.
// Integral values keep a trailing ".0".
func FormatFloat(v float64) string {
	switch {
	case v == 0:
		return "0.0"
	case math.IsInf(v, 0) || math.IsNaN(v):
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ReadCSV parses a file written by WriteCSV for proto. The header must match
// Columns(proto) exactly. Every returned row has StatusOK.
func ReadCSV(rd io.Reader, proto distillation.Protocol) ([]Row, error) {
	cr := csv.NewReader(rd)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	want := Columns(proto)
	if strings.Join(header, ",") != strings.Join(want, ",") {
		return nil, fmt.Errorf("header %q does not match %s layout %q: %w",
			strings.Join(header, ","), proto, strings.Join(want, ","), domain.ErrInvalidInput)
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		row := Row{Protocol: proto, Seq: len(rows), Status: StatusOK}
		for i, col := range want {
			if err := row.setField(col, record[i]); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, col, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Row) setField(col, v string) error {
	var err error
	atoi := func(dst *int) {
		if err == nil {
			*dst, err = strconv.Atoi(v)
		}
	}
	parse := func(dst *float64) {
		if err == nil {
			*dst, err = strconv.ParseFloat(v, 64)
		}
	}

	switch col {
	case "date":
		r.Date, err = time.Parse(DateLayout, v)
	case "precision_in_bits":
		var prec uint64
		prec, err = strconv.ParseUint(v, 10, 32)
		r.Precision = uint(prec)
	case "pphys":
		parse(&r.Params.PPhys)
	case "dx":
		atoi(&r.Params.DX)
	case "dz":
		atoi(&r.Params.DZ)
	case "dm":
		atoi(&r.Params.DM)
	case "dx2":
		atoi(&r.Params.DX2)
	case "dz2":
		atoi(&r.Params.DZ2)
	case "dm2":
		atoi(&r.Params.DM2)
	case "n1":
		atoi(&r.Params.NL1)
	case "error_rate":
		parse(&r.ErrorRate)
	case "qubits":
		atoi(&r.Qubits)
	case "code_cycles":
		parse(&r.Cycles)
	}
	if err != nil {
		return fmt.Errorf("%q: %w", v, domain.ErrInvalidInput)
	}
	return nil
}
