package model

import (
	"sync/atomic"
	"time"
)

// Provider holds the live forest. Scoring reads the current pointer without
// locking; a finished training run swaps the new forest in atomically so the
// previous model stays authoritative until the swap.
type Provider struct {
	current atomic.Pointer[Forest]
}

// NewProvider returns an empty provider (no trained model).
func NewProvider() *Provider { return &Provider{} }

// Current returns the live forest, or nil when nothing is trained yet.
func (p *Provider) Current() *Forest { return p.current.Load() }

// Swap installs a newly trained forest.
func (p *Provider) Swap(f *Forest) { p.current.Store(f) }

// Status describes the deployed model.
type Status struct {
	Trained   bool      `json:"trained"`
	TrainedAt time.Time `json:"trainedAt,omitempty"`
	Trees     int       `json:"trees,omitempty"`
	CalibMin  float64   `json:"calibrationMin,omitempty"`
	CalibMax  float64   `json:"calibrationMax,omitempty"`
}

// Status reports the provider's deployed model.
func (p *Provider) Status() Status {
	f := p.Current()
	if f == nil {
		return Status{Trained: false}
	}
	min, max := f.Calibration()
	return Status{
		Trained:   true,
		TrainedAt: f.TrainedAt(),
		Trees:     f.TreeCount(),
		CalibMin:  min,
		CalibMax:  max,
	}
}
