package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charlie0129/vbat/pkg/types"
)

func TestComputeStats(t *testing.T) {
	var readings []types.Reading
	for _, v := range []float64{3.5, 3.7, 3.6, 3.6} {
		readings = append(readings, types.Reading{Voltage: v})
	}

	s := computeStats(readings)
	if s.min != 3.5 || s.max != 3.7 {
		t.Errorf("min/max = %v/%v", s.min, s.max)
	}
	if math.Abs(s.mean-3.6) > 1e-9 {
		t.Errorf("mean = %v, want 3.6", s.mean)
	}
	if want := math.Sqrt(0.005); math.Abs(s.stddev-want) > 1e-9 {
		t.Errorf("stddev = %v, want %v", s.stddev, want)
	}

	if got := computeStats(nil); got != (sampleStats{}) {
		t.Errorf("computeStats(nil) = %+v", got)
	}
}

func TestParseIntArg(t *testing.T) {
	if v, err := parseIntArg([]string{"26"}, "gpio"); err != nil || v != 26 {
		t.Errorf("parseIntArg(26) = %d, %v", v, err)
	}
	if _, err := parseIntArg(nil, "gpio"); err == nil {
		t.Errorf("parseIntArg accepted no arguments")
	}
	if _, err := parseIntArg([]string{"x"}, "gpio"); err == nil {
		t.Errorf("parseIntArg accepted a non-number")
	}
}

func TestWriteChart(t *testing.T) {
	dir := t.TempDir()
	readings := []types.Reading{
		{Time: time.Now(), Voltage: 3.7, PinMillivolts: 1850},
		{Time: time.Now().Add(time.Second), Voltage: 3.69, PinMillivolts: 1845},
	}

	p := filepath.Join(dir, "chart.html")
	if err := writeChart(p, readings); err != nil {
		t.Fatalf("writeChart: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Battery voltage") {
		t.Errorf("chart file is missing its title")
	}

	if err := writeChart(filepath.Join(dir, "empty.html"), nil); err == nil {
		t.Error("writeChart(nil) should fail")
	}
	if err := writeChart(dir, readings); err == nil {
		t.Error("writeChart to a directory should fail")
	}
}
