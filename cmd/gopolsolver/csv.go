package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kacperjurak/gopolcore"
)

// loadCSV reads an oscilloscope CSV export into samples. The first skipRows
// lines are dropped (scope exports carry a preamble). Rows are expected as
// time,voltage; when the leading cell is empty the columns shift right, and
// single-column files are treated as voltage-only with times synthesized
// from the fallback interval.
func loadCSV(path string, skipRows int, fallbackInterval float64) ([]gopolcore.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var samples []gopolcore.Sample
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", path, row, err)
		}
		row++
		if row <= skipRows {
			continue
		}

		timeCol, voltCol := 0, 1
		if len(record) > 1 && record[timeCol] == "" {
			timeCol++
			voltCol++
		}
		if voltCol < len(record) && record[voltCol] == "" {
			voltCol++
		}

		if voltCol >= len(record) {
			// voltage-only export
			v, err := strconv.ParseFloat(record[timeCol], 64)
			if err != nil {
				continue // trailing metadata line
			}
			samples = append(samples, gopolcore.Sample{
				Time:    float64(len(samples)) * fallbackInterval,
				Voltage: v,
			})
			continue
		}

		t, errT := strconv.ParseFloat(record[timeCol], 64)
		v, errV := strconv.ParseFloat(record[voltCol], 64)
		if errT != nil || errV != nil {
			continue
		}
		samples = append(samples, gopolcore.Sample{Time: t, Voltage: v})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: no data rows after skipping %d lines", path, skipRows)
	}
	return samples, nil
}
