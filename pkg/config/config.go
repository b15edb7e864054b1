// Package config loads the YAML routing profile that supplies default
// query parameters: speeds, mode-switch penalties, surface preferences
// and per-surface speed factors. Request bodies may override the speeds,
// penalties and preferred surfaces per query; the speed factor tables
// always come from the profile.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"multimodal_router/pkg/routing"
	"multimodal_router/pkg/surface"
)

// Profile is the on-disk shape of a routing profile. Surfaces are
// referred to by their taxonomy names so the file stays readable.
type Profile struct {
	BikeSpeedMps         float64 `yaml:"bike_speed_mps" json:"bike_speed_mps"`
	WalkSpeedMps         float64 `yaml:"walk_speed_mps" json:"walk_speed_mps"`
	RideToWalkPenaltyS   float64 `yaml:"ride_to_walk_penalty_s" json:"ride_to_walk_penalty_s"`
	WalkToRidePenaltyS   float64 `yaml:"walk_to_ride_penalty_s" json:"walk_to_ride_penalty_s"`
	SurfacePenaltySPerKm float64 `yaml:"surface_penalty_s_per_km" json:"surface_penalty_s_per_km"`

	// PreferredSurfaces lists the bike-preferred surface names. Empty
	// means every surface is preferred (no bias anywhere).
	PreferredSurfaces []string `yaml:"preferred_surfaces" json:"preferred_surfaces,omitempty"`

	// Per-surface speed multipliers by surface name; unlisted surfaces
	// ride at factor 1.0.
	BikeSurfaceFactor map[string]float64 `yaml:"bike_surface_factor" json:"bike_surface_factor,omitempty"`
	WalkSurfaceFactor map[string]float64 `yaml:"walk_surface_factor" json:"walk_surface_factor,omitempty"`
}

// Default returns the stock profile matching routing.DefaultParams.
func Default() Profile {
	return Profile{
		BikeSpeedMps:       6.0,
		WalkSpeedMps:       1.5,
		RideToWalkPenaltyS: 5.0,
		WalkToRidePenaltyS: 3.0,
	}
}

// Load reads a profile file, layered over the defaults. Unknown surface
// names are rejected rather than silently ignored.
func Load(path string) (Profile, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.check(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) check() error {
	for _, name := range p.PreferredSurfaces {
		if !knownSurface(name) {
			return fmt.Errorf("unknown surface %q in preferred_surfaces", name)
		}
	}
	for name := range p.BikeSurfaceFactor {
		if !knownSurface(name) {
			return fmt.Errorf("unknown surface %q in bike_surface_factor", name)
		}
	}
	for name := range p.WalkSurfaceFactor {
		if !knownSurface(name) {
			return fmt.Errorf("unknown surface %q in walk_surface_factor", name)
		}
	}
	return nil
}

func knownSurface(name string) bool {
	return surface.FromTag(name) != surface.Unknown || name == "unknown"
}

// Params converts the profile into the router's parameter record.
func (p Profile) Params() routing.Params {
	out := routing.Params{
		BikeSurfaceMask:      0xFFFF,
		BikeSpeedMps:         p.BikeSpeedMps,
		WalkSpeedMps:         p.WalkSpeedMps,
		RideToWalkPenaltyS:   p.RideToWalkPenaltyS,
		WalkToRidePenaltyS:   p.WalkToRidePenaltyS,
		SurfacePenaltySPerKm: p.SurfacePenaltySPerKm,
	}

	if len(p.PreferredSurfaces) > 0 {
		var mask uint16
		for _, name := range p.PreferredSurfaces {
			mask |= 1 << surface.FromTag(name)
		}
		out.BikeSurfaceMask = mask
	}

	out.BikeSurfaceFactor = factorTable(p.BikeSurfaceFactor)
	out.WalkSurfaceFactor = factorTable(p.WalkSurfaceFactor)
	return out
}

func factorTable(byName map[string]float64) []float64 {
	if len(byName) == 0 {
		return nil
	}
	table := make([]float64, surface.Count)
	for i := range table {
		table[i] = 1.0
	}
	for name, f := range byName {
		table[surface.FromTag(name)] = f
	}
	return table
}
