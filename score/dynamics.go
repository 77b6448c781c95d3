package score

import "math"

// DynamicsConfig controls how dynamic markings are placed
type DynamicsConfig struct {
	BeatsPerMeasure   int `json:"beats_per_measure" mapstructure:"beats_per_measure"`
	MinMeasureSpacing int `json:"min_measure_spacing" mapstructure:"min_measure_spacing"`
}

// DefaultDynamicsConfig keeps markings at least 4 measures apart in 4/4
func DefaultDynamicsConfig() DynamicsConfig {
	return DynamicsConfig{
		BeatsPerMeasure:   4,
		MinMeasureSpacing: 4,
	}
}

// DynamicForVelocity maps a MIDI velocity to its loudness tier
func DynamicForVelocity(velocity float64) Dynamic {
	switch {
	case velocity <= 31:
		return DynamicPP
	case velocity <= 47:
		return DynamicP
	case velocity <= 63:
		return DynamicMP
	case velocity <= 79:
		return DynamicMF
	case velocity <= 95:
		return DynamicF
	default:
		return DynamicFF
	}
}

// ExtractDynamics emits a marking whenever the average velocity of a chord group
// changes tier, then drops markings closer than MinMeasureSpacing measures to the
// previously kept one. The first marking is always kept.
func ExtractDynamics(groups []ChordGroup, cfg DynamicsConfig) []DynamicMarking {
	beatsPerMeasure := float64(cfg.BeatsPerMeasure)
	if beatsPerMeasure <= 0 {
		beatsPerMeasure = 4
	}

	changes := make([]DynamicMarking, 0)
	var last Dynamic
	for _, group := range groups {
		if len(group.Notes) == 0 {
			continue
		}

		total := 0
		for _, n := range group.Notes {
			total += n.Velocity
		}
		tier := DynamicForVelocity(float64(total) / float64(len(group.Notes)))
		if tier == last {
			continue
		}
		last = tier

		changes = append(changes, DynamicMarking{
			Measure: int(math.Floor(group.StartBeat / beatsPerMeasure)),
			Beat:    math.Mod(group.StartBeat, beatsPerMeasure),
			Type:    tier,
			Clef:    group.Notes[0].Clef,
		})
	}

	kept := make([]DynamicMarking, 0, len(changes))
	for _, marking := range changes {
		if len(kept) == 0 || marking.Measure-kept[len(kept)-1].Measure >= cfg.MinMeasureSpacing {
			kept = append(kept, marking)
		}
	}

	return kept
}
