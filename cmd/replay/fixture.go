package replay

import (
	"cmp"
	"os"
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/environment"
	"github.com/scanline/dsnscan/internal/errors"
)

// Fixture is a recorded scan: recognition frames and sensor samples at
// offsets from Start.
//
//	start: 2026-03-01T12:00:00Z
//	expected: controller
//	sensors:
//	  - at: 0s
//	    lux: 420
//	frames:
//	  - at: 300ms
//	    candidates:
//	      - text: G0G46K123456789
//	        confidence: 0.93
//	        bbox: {x: 40, y: 80, width: 160, height: 24}
type Fixture struct {
	Start    time.Time         `yaml:"start"`
	Expected dsn.ComponentType `yaml:"expected"`
	Sensors  []SensorEvent     `yaml:"sensors"`
	Frames   []FrameEvent      `yaml:"frames"`
}

// SensorEvent is one sensor sample in a fixture
type SensorEvent struct {
	At           time.Duration `yaml:"at"`
	Lux          *float64      `yaml:"lux"`
	Acceleration *r3.Vec       `yaml:"acceleration"`
}

// FrameEvent is one recognition frame in a fixture. An empty Expected
// inherits the fixture's.
type FrameEvent struct {
	At         time.Duration         `yaml:"at"`
	Expected   dsn.ComponentType     `yaml:"expected"`
	Candidates []processor.Candidate `yaml:"candidates"`
}

// event is a fixture entry placed on the replay timeline
type event struct {
	at     time.Time
	sensor *environment.Sample
	frame  *processor.Frame
}

// LoadFixture reads and checks a fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("replay").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.New(err).
			Component("replay").
			Category(errors.CategoryFileParsing).
			Build()
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	if f.Start.IsZero() {
		f.Start = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &f, nil
}

func (f *Fixture) check() error {
	if len(f.Frames) == 0 {
		return errors.Newf("fixture has no frames").
			Component("replay").
			Category(errors.CategoryValidation).
			Build()
	}
	types := []dsn.ComponentType{f.Expected}
	for _, fr := range f.Frames {
		types = append(types, fr.Expected)
	}
	for _, ct := range types {
		if ct != dsn.ComponentUnknown && !ct.Known() {
			return errors.Newf("unknown component type %q", string(ct)).
				Component("replay").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return nil
}

// timeline merges sensors and frames in time order. A sensor sample at the
// same offset as a frame is applied first.
func (f *Fixture) timeline() []event {
	events := make([]event, 0, len(f.Sensors)+len(f.Frames))
	for _, s := range f.Sensors {
		ts := f.Start.Add(s.At)
		events = append(events, event{at: ts, sensor: &environment.Sample{
			Lux:          s.Lux,
			Acceleration: s.Acceleration,
			Timestamp:    ts,
		}})
	}
	for _, fr := range f.Frames {
		ts := f.Start.Add(fr.At)
		expected := fr.Expected
		if expected == dsn.ComponentUnknown {
			expected = f.Expected
		}
		events = append(events, event{at: ts, frame: &processor.Frame{
			Timestamp:  ts,
			Candidates: fr.Candidates,
			Expected:   expected,
		}})
	}

	slices.SortStableFunc(events, func(a, b event) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(rank(a), rank(b))
	})
	return events
}

func rank(e event) int {
	if e.sensor != nil {
		return 0
	}
	return 1
}
