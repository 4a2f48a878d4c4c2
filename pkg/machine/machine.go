// Package machine holds machine profiles and job parameters: traverse
// rates, safe rapid height, and the stock envelope a program is expected
// to stay inside. Profiles load from TOML files.
package machine

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Profile describes the machine a program would run on. Rates are mm/min,
// heights are mm.
type Profile struct {
	Name    string  `toml:"name" json:"name"`
	MaxRPM  int     `toml:"max_rpm" json:"maxRPM"`
	MaxFeed float64 `toml:"max_feed" json:"maxFeed"`
	RapidXY float64 `toml:"rapid_xy" json:"rapidXY"`
	RapidZ  float64 `toml:"rapid_z" json:"rapidZ"`
	SafeZ   float64 `toml:"safe_z" json:"safeZ"`
}

// DefaultProfile returns a generic profile with the analyzer's default
// traverse rates.
func DefaultProfile() Profile {
	return Profile{
		Name:    "generic",
		MaxRPM:  12000,
		MaxFeed: 4000,
		RapidXY: 3000,
		RapidZ:  1500,
		SafeZ:   5.0,
	}
}

// Stock is a rectangular stock envelope in millimeters. The coordinate
// convention puts the origin at the stock's top-front-left corner:
// X ∈ [0, Length], Y ∈ [0, Width], Z ∈ [-Height, 0].
type Stock struct {
	Length float64 `toml:"length" json:"length"`
	Width  float64 `toml:"width" json:"width"`
	Height float64 `toml:"height" json:"height"`
}

// Box returns the envelope as an sdfx box under the top-front-left origin
// convention.
func (s Stock) Box() sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: 0, Y: 0, Z: -s.Height},
		Max: v3.Vec{X: s.Length, Y: s.Width, Z: 0},
	}
}

// profileFile is the on-disk shape of a machine profile.
type profileFile struct {
	Machine Profile `toml:"machine"`
	Stock   *Stock  `toml:"stock"`
}

// LoadProfile reads a machine profile from a TOML file. The file must have
// a [machine] section; an optional [stock] section supplies a default
// stock envelope and is returned alongside.
func LoadProfile(path string) (Profile, *Stock, error) {
	var cfg profileFile
	cfg.Machine = DefaultProfile()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("machine") {
		return Profile{}, nil, fmt.Errorf("%s: missing [machine] section", path)
	}
	return cfg.Machine, cfg.Stock, nil
}
