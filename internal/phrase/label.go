// SPDX-License-Identifier: MIT
//
// Package phrase classifies the current musical section from the feature
// stream. The classifier is a scored state machine with per-label dwell,
// onset-aligned confirmation streaks and an interrupting IMPACT state.
package phrase

import (
	"fmt"
	"strings"
)

// Label names a musical section.
type Label uint8

// Labels in wire order; the numeric value is what binary transports send.
const (
	Silence Label = iota
	Build
	Fill
	Impact
	Drop
	Groove
	Breakdown
	Switchup

	labelCount
)

var labelNames = [labelCount]string{
	Silence:   "SILENCE",
	Build:     "BUILD",
	Fill:      "FILL",
	Impact:    "IMPACT",
	Drop:      "DROP",
	Groove:    "GROOVE",
	Breakdown: "BREAKDOWN",
	Switchup:  "SWITCHUP",
}

// Labels lists every label in wire order.
func Labels() []Label {
	out := make([]Label, labelCount)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

func (l Label) String() string {
	if l >= labelCount {
		return fmt.Sprintf("Label(%d)", uint8(l))
	}
	return labelNames[l]
}

// ParseLabel is the inverse of String and ignores case.
func ParseLabel(s string) (Label, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return Silence, fmt.Errorf("unknown phrase label %q", s)
}

// contenders are the labels that compete on score for a regular
// transition. IMPACT is an interrupt and FILL is the fallback.
var contenders = [...]Label{Drop, Build, Groove, Breakdown, Switchup}

// MarshalText renders the label by name in JSON and YAML.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a label name.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
