package gcode

import v3 "github.com/deadsy/sdfx/vec/v3"

// modalState is the parser state that persists across lines until changed
// by a modal word. It lives for exactly one pass and is never shared.
type modalState struct {
	units    Units
	absolute bool
	pos      v3.Vec  // current position, native units
	feed     float64 // mm/min

	unitsSet        bool
	distanceModeSet bool
	workOffsetSeen  bool
	spindleOn       bool
	spindleEverOn   bool
	feedSet         bool
}

// defaultFeed matches the conventional controller default when no F word
// has been seen.
const defaultFeed = 1000.0

func newModalState() *modalState {
	return &modalState{
		units:    UnitsMm,
		absolute: true,
		feed:     defaultFeed,
	}
}

// motion is the motion code active on a line, if any.
type motion int

const (
	motionNone motion = iota
	motionRapid
	motionCut
)

// applyModal consumes the modal words of one line: units, distance mode,
// work offsets, spindle, feed, and the motion code. Modal words always
// apply before axis words regardless of their order within the line, so a
// line like "X5 G91" moves incrementally. The last G0/G1 on the line wins;
// the last F word wins. Unknown G/M codes are recorded into the sets.
func (m *modalState) applyModal(words []Word, unknownG, unknownM *codeSet) motion {
	mo := motionNone
	for _, w := range words {
		switch w.Letter {
		case 'G':
			if !knownCode('G', w.Value) {
				unknownG.add(w.Value)
				continue
			}
			switch int(w.Value) {
			case 0:
				mo = motionRapid
			case 1:
				mo = motionCut
			case 20:
				m.units = UnitsInch
				m.unitsSet = true
			case 21:
				m.units = UnitsMm
				m.unitsSet = true
			case 90:
				m.absolute = true
				m.distanceModeSet = true
			case 91:
				m.absolute = false
				m.distanceModeSet = true
			case 54, 55, 56, 57, 58, 59:
				m.workOffsetSeen = true
			}
		case 'M':
			if !knownCode('M', w.Value) {
				unknownM.add(w.Value)
				continue
			}
			switch int(w.Value) {
			case 3, 4:
				m.spindleOn = true
				m.spindleEverOn = true
			case 5:
				m.spindleOn = false
			}
		case 'F':
			m.feed = w.Value
			m.feedSet = true
		}
	}
	return mo
}

// target computes the candidate position from the line's axis words under
// the distance mode in effect after modal words were applied. An axis word
// repeated on one line replaces the earlier candidate for that axis.
func (m *modalState) target(words []Word) v3.Vec {
	t := m.pos
	for _, w := range words {
		switch w.Letter {
		case 'X':
			if m.absolute {
				t.X = w.Value
			} else {
				t.X = m.pos.X + w.Value
			}
		case 'Y':
			if m.absolute {
				t.Y = w.Value
			} else {
				t.Y = m.pos.Y + w.Value
			}
		case 'Z':
			if m.absolute {
				t.Z = w.Value
			} else {
				t.Z = m.pos.Z + w.Value
			}
		}
	}
	return t
}
