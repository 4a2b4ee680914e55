// Package charts turns category counts into pie and bar geometry. Every
// function is pure and safe to call on each render.
package charts

import "time"

// Point is a position in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Animation describes when a presentation effect starts and how long it runs.
type Animation struct {
	Delay    time.Duration `json:"delay"`
	Duration time.Duration `json:"duration"`
}

// Margin is the space reserved around a plot area.
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Enter-animation timings.
const (
	PieSweepDuration  = 700 * time.Millisecond
	PieLabelDelay     = 800 * time.Millisecond
	PieLabelFade      = 500 * time.Millisecond
	BarGrowDuration   = 600 * time.Millisecond
	BarStaggerStep    = 100 * time.Millisecond
	DefaultBarPadding = 0.3
)
