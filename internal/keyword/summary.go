package keyword

import (
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Summary describes one template for listing.
type Summary struct {
	Name    string  `json:"name" yaml:"name"`
	File    string  `json:"file" yaml:"file"`
	Rate    int     `json:"sample_rate" yaml:"sample_rate"`
	Bins    int     `json:"bins" yaml:"bins"`
	PeakBin int     `json:"peak_bin" yaml:"peak_bin"`
	Energy  float64 `json:"energy" yaml:"energy"`
}

// Summaries is a list of template summaries ordered by name.
type Summaries []Summary

// Summaries describes every template, ordered by name.
func (l *Library) Summaries() Summaries {
	out := make(Summaries, 0, l.Len())
	for _, name := range l.Names() {
		t := l.templates[name]
		s := Summary{
			Name:    name,
			File:    t.Path,
			Rate:    t.SampleRate,
			Bins:    len(t.Spectrum),
			PeakBin: t.Spectrum.Peak(),
		}
		if len(t.Spectrum) > 0 {
			s.Energy = floats.Sum(t.Spectrum)
		}
		out = append(out, s)
	}
	return out
}

func (s Summaries) Header() []string {
	return []string{"NAME", "BINS", "PEAK", "ENERGY", "FILE"}
}

func (s Summaries) Rows() [][]string {
	rows := make([][]string, len(s))
	for i, x := range s {
		rows[i] = []string{
			x.Name,
			strconv.Itoa(x.Bins),
			strconv.Itoa(x.PeakBin),
			strconv.FormatFloat(x.Energy, 'f', 2, 64),
			x.File,
		}
	}
	return rows
}
