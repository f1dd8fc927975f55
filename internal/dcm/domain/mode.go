package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownMode     = errors.New("unknown mode")
	ErrInvalidSettings = errors.New("invalid settings")
)

// Mode names a pacing mode. ModeOff is only valid as a last-used marker.
type Mode string

const (
	ModeOff  Mode = "OFF"
	ModeVOO  Mode = "VOO"
	ModeAOO  Mode = "AOO"
	ModeVVI  Mode = "VVI"
	ModeAAI  Mode = "AAI"
	ModeDDDR Mode = "DDDR"
	ModeDDD  Mode = "DDD"
	ModeAOOR Mode = "AOOR"
	ModeAAIR Mode = "AAIR"
	ModeVOOR Mode = "VOOR"
	ModeVVIR Mode = "VVIR"
)

// Modes lists every programmable mode in storage order.
var Modes = []Mode{
	ModeVOO, ModeAOO, ModeVVI, ModeAAI, ModeDDDR,
	ModeDDD, ModeAOOR, ModeAAIR, ModeVOOR, ModeVVIR,
}

// DefaultActivityThreshold is the initial activity threshold of rate-adaptive modes.
const DefaultActivityThreshold = 4

func (m Mode) String() string { return string(m) }

// Valid reports whether m is a programmable mode (OFF is not).
func (m Mode) Valid() bool {
	for _, candidate := range Modes {
		if m == candidate {
			return true
		}
	}
	return false
}

// ParseMode returns the programmable mode named s. Matching is exact.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Settings is the parameter block of a single mode. The concrete types below
// are the only implementations.
type Settings interface {
	Mode() Mode
	settings()
}

type Atrial struct {
	AtrialAmplitude        float64 `json:"atrialAmplitude"`
	AtrialPulseWidth       float64 `json:"atrialPulseWidth"`
	AtrialRefractoryPeriod float64 `json:"atrialRefractoryPeriod"`
}

type Ventricular struct {
	VentricularAmplitude        float64 `json:"ventricularAmplitude"`
	VentricularPulseWidth       float64 `json:"ventricularPulseWidth"`
	VentricularRefractoryPeriod float64 `json:"ventricularRefractoryPeriod"`
}

type RateLimits struct {
	LowerRateLimit float64 `json:"lowerRateLimit"`
	UpperRateLimit float64 `json:"upperRateLimit"`
}

type RateAdaptive struct {
	RateFactor        float64 `json:"rateFactor"`
	ReactionTime      float64 `json:"reactionTime"`
	RecoveryTime      float64 `json:"recoveryTime"`
	ActivityThreshold float64 `json:"activityThreshold"`
}

type VOOSettings struct {
	Ventricular
	RateLimits
}

type AOOSettings struct {
	Atrial
	RateLimits
}

type VVISettings struct {
	Ventricular
	RateLimits
}

type AAISettings struct {
	Atrial
	RateLimits
}

type DDDRSettings struct {
	Atrial
	Ventricular
	RateLimits
	AVDelay float64 `json:"avDelay"`
	RateAdaptive
}

type DDDSettings struct {
	Atrial
	Ventricular
	RateLimits
	AVDelay float64 `json:"avDelay"`
}

type AOORSettings struct {
	Atrial
	RateLimits
	RateAdaptive
}

type AAIRSettings struct {
	Atrial
	RateLimits
	RateAdaptive
}

type VOORSettings struct {
	Ventricular
	RateLimits
	RateAdaptive
}

type VVIRSettings struct {
	Ventricular
	Atrial
	RateLimits
	RateAdaptive
}

func (VOOSettings) Mode() Mode  { return ModeVOO }
func (AOOSettings) Mode() Mode  { return ModeAOO }
func (VVISettings) Mode() Mode  { return ModeVVI }
func (AAISettings) Mode() Mode  { return ModeAAI }
func (DDDRSettings) Mode() Mode { return ModeDDDR }
func (DDDSettings) Mode() Mode  { return ModeDDD }
func (AOORSettings) Mode() Mode { return ModeAOOR }
func (AAIRSettings) Mode() Mode { return ModeAAIR }
func (VOORSettings) Mode() Mode { return ModeVOOR }
func (VVIRSettings) Mode() Mode { return ModeVVIR }

func (VOOSettings) settings()  {}
func (AOOSettings) settings()  {}
func (VVISettings) settings()  {}
func (AAISettings) settings()  {}
func (DDDRSettings) settings() {}
func (DDDSettings) settings()  {}
func (AOORSettings) settings() {}
func (AAIRSettings) settings() {}
func (VOORSettings) settings() {}
func (VVIRSettings) settings() {}

func defaultRateAdaptive() RateAdaptive {
	return RateAdaptive{ActivityThreshold: DefaultActivityThreshold}
}

// DefaultSettings returns the factory parameter block for m.
func DefaultSettings(m Mode) (Settings, error) {
	switch m {
	case ModeVOO:
		return VOOSettings{}, nil
	case ModeAOO:
		return AOOSettings{}, nil
	case ModeVVI:
		return VVISettings{}, nil
	case ModeAAI:
		return AAISettings{}, nil
	case ModeDDDR:
		return DDDRSettings{RateAdaptive: defaultRateAdaptive()}, nil
	case ModeDDD:
		return DDDSettings{}, nil
	case ModeAOOR:
		return AOORSettings{RateAdaptive: defaultRateAdaptive()}, nil
	case ModeAAIR:
		return AAIRSettings{RateAdaptive: defaultRateAdaptive()}, nil
	case ModeVOOR:
		return VOORSettings{RateAdaptive: defaultRateAdaptive()}, nil
	case ModeVVIR:
		return VVIRSettings{RateAdaptive: defaultRateAdaptive()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
}

// DecodeSettings parses a parameter block for m. Fields that do not belong to
// the mode are rejected; absent fields are left at zero.
func DecodeSettings(m Mode, data []byte) (Settings, error) {
	return decodeSettings(m, data, true)
}

func decodeSettings(m Mode, data []byte, strict bool) (Settings, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: empty block for %s", ErrInvalidSettings, m)
	}

	var target any
	switch m {
	case ModeVOO:
		target = &VOOSettings{}
	case ModeAOO:
		target = &AOOSettings{}
	case ModeVVI:
		target = &VVISettings{}
	case ModeAAI:
		target = &AAISettings{}
	case ModeDDDR:
		target = &DDDRSettings{}
	case ModeDDD:
		target = &DDDSettings{}
	case ModeAOOR:
		target = &AOORSettings{}
	case ModeAAIR:
		target = &AAIRSettings{}
	case ModeVOOR:
		target = &VOORSettings{}
	case ModeVVIR:
		target = &VVIRSettings{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, m, err)
	}

	switch s := target.(type) {
	case *VOOSettings:
		return *s, nil
	case *AOOSettings:
		return *s, nil
	case *VVISettings:
		return *s, nil
	case *AAISettings:
		return *s, nil
	case *DDDRSettings:
		return *s, nil
	case *DDDSettings:
		return *s, nil
	case *AOORSettings:
		return *s, nil
	case *AAIRSettings:
		return *s, nil
	case *VOORSettings:
		return *s, nil
	default:
		return *target.(*VVIRSettings), nil
	}
}

// ModeTable holds one parameter block per mode, so every mode key is always
// present in the serialized record.
type ModeTable struct {
	VOO  VOOSettings  `json:"VOO"`
	AOO  AOOSettings  `json:"AOO"`
	VVI  VVISettings  `json:"VVI"`
	AAI  AAISettings  `json:"AAI"`
	DDDR DDDRSettings `json:"DDDR"`
	DDD  DDDSettings  `json:"DDD"`
	AOOR AOORSettings `json:"AOOR"`
	AAIR AAIRSettings `json:"AAIR"`
	VOOR VOORSettings `json:"VOOR"`
	VVIR VVIRSettings `json:"VVIR"`
}

func DefaultModeTable() ModeTable {
	return ModeTable{
		DDDR: DDDRSettings{RateAdaptive: defaultRateAdaptive()},
		AOOR: AOORSettings{RateAdaptive: defaultRateAdaptive()},
		AAIR: AAIRSettings{RateAdaptive: defaultRateAdaptive()},
		VOOR: VOORSettings{RateAdaptive: defaultRateAdaptive()},
		VVIR: VVIRSettings{RateAdaptive: defaultRateAdaptive()},
	}
}

// Get returns the stored block for m.
func (t ModeTable) Get(m Mode) (Settings, error) {
	switch m {
	case ModeVOO:
		return t.VOO, nil
	case ModeAOO:
		return t.AOO, nil
	case ModeVVI:
		return t.VVI, nil
	case ModeAAI:
		return t.AAI, nil
	case ModeDDDR:
		return t.DDDR, nil
	case ModeDDD:
		return t.DDD, nil
	case ModeAOOR:
		return t.AOOR, nil
	case ModeAAIR:
		return t.AAIR, nil
	case ModeVOOR:
		return t.VOOR, nil
	case ModeVVIR:
		return t.VVIR, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
}

// Set replaces the whole block of the settings' mode.
func (t *ModeTable) Set(s Settings) error {
	switch v := s.(type) {
	case VOOSettings:
		t.VOO = v
	case AOOSettings:
		t.AOO = v
	case VVISettings:
		t.VVI = v
	case AAISettings:
		t.AAI = v
	case DDDRSettings:
		t.DDDR = v
	case DDDSettings:
		t.DDD = v
	case AOORSettings:
		t.AOOR = v
	case AAIRSettings:
		t.AAIR = v
	case VOORSettings:
		t.VOOR = v
	case VVIRSettings:
		t.VVIR = v
	default:
		return fmt.Errorf("%w: unsupported settings type %T", ErrInvalidSettings, s)
	}
	return nil
}
