package solarmax

import (
	"fmt"
	"math"
)

// ValueKind tells how the raw hex integer of a field is turned into a Value.
type ValueKind int

const (
	KindRawInt ValueKind = iota
	KindScaledFloat
	KindStatusCode
	KindAlarmCode
	KindModelCode
)

func (k ValueKind) String() string {
	switch k {
	case KindRawInt:
		return "raw_int"
	case KindScaledFloat:
		return "scaled_float"
	case KindStatusCode:
		return "status_code"
	case KindAlarmCode:
		return "alarm_code"
	case KindModelCode:
		return "model_code"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

type keyDef struct {
	name     string
	kind     ValueKind
	scale    float64
	decimals int
	unit     string
}

// scale factors
const (
	scaleCurrent     = 0.01
	scalePower       = 0.5
	scaleEnergyDaily = 0.1
	scaleVoltage     = 0.1
)

var registry = map[QueryKey]keyDef{
	KeyStatus:                  {name: "Status", kind: KindStatusCode},
	KeyAlarmCode:               {name: "Alarm code", kind: KindAlarmCode},
	KeyType:                    {name: "Model", kind: KindModelCode},
	KeyACOutput:                {name: "AC output", kind: KindScaledFloat, scale: scalePower, decimals: 1, unit: UnitWatt},
	KeyInstalledCapacity:       {name: "Installed capacity", kind: KindScaledFloat, scale: scalePower, decimals: 1, unit: UnitWatt},
	KeyEnergyDay:               {name: "Energy day", kind: KindScaledFloat, scale: scaleEnergyDaily, decimals: 1, unit: UnitKiloWattH},
	KeyVoltageDC:               {name: "Voltage DC", kind: KindScaledFloat, scale: scaleVoltage, decimals: 1, unit: UnitVolt},
	KeyVoltagePhaseOne:         {name: "Voltage phase one", kind: KindScaledFloat, scale: scaleVoltage, decimals: 1, unit: UnitVolt},
	KeyCurrentDC:               {name: "Current DC", kind: KindScaledFloat, scale: scaleCurrent, decimals: 2, unit: UnitAmpere},
	KeyCurrentPhaseOne:         {name: "Current phase one", kind: KindScaledFloat, scale: scaleCurrent, decimals: 2, unit: UnitAmpere},
	KeyEnergyYear:              {name: "Energy year", kind: KindRawInt, unit: UnitKiloWattH},
	KeyEnergyMonth:             {name: "Energy month", kind: KindRawInt, unit: UnitKiloWattH},
	KeyEnergyTotal:             {name: "Energy total", kind: KindRawInt, unit: UnitKiloWattH},
	KeyOperatingHours:          {name: "Operating hours", kind: KindRawInt, unit: UnitHour},
	KeySoftwareVersion:         {name: "Software version", kind: KindRawInt},
	KeyNetworkAddress:          {name: "Network address", kind: KindRawInt},
	KeyDateYear:                {name: "Date year", kind: KindRawInt, unit: UnitYear},
	KeyDateMonth:               {name: "Date month", kind: KindRawInt, unit: UnitMonth},
	KeyDateDay:                 {name: "Date day", kind: KindRawInt, unit: UnitDay},
	KeyTimeHours:               {name: "Time hours", kind: KindRawInt, unit: UnitHour},
	KeyTimeMinutes:             {name: "Time minutes", kind: KindRawInt, unit: UnitMinute},
	KeyMainsCycleDuration:      {name: "Mains cycle duration", kind: KindRawInt, unit: UnitMicroSecond},
	KeyRelativeOutput:          {name: "Relative output", kind: KindRawInt, unit: UnitPercent},
	KeyTemperaturePowerUnitOne: {name: "Temperature power unit one", kind: KindRawInt, unit: UnitCelsius},
	KeyMainsFrequency:          {name: "Mains frequency", kind: KindRawInt},
}

// Lookup returns the decode kind, scale factor and decimals of a key.
// ok is false for keys outside the registry; those decode as raw integers.
func Lookup(key QueryKey) (kind ValueKind, scale float64, decimals int, ok bool) {
	def, ok := registry[key]
	if !ok {
		return KindRawInt, 1, 0, false
	}
	if def.kind != KindScaledFloat {
		return def.kind, 1, 0, true
	}
	return def.kind, def.scale, def.decimals, true
}

// operating states
var statusCodes = map[uint64]string{
	20000: "Keine Kommunikation",
	20001: "In Betrieb",
	20002: "Zu wenig Einstrahlung",
	20003: "Anfahren",
	20004: "Betrieb auf MPP",
	20005: "Ventilator läuft",
	20006: "Betrieb auf Maximalleistung",
	20007: "Temperaturbegrenzung",
	20008: "Netzbetrieb",
}

// Alarm codes are single bits, but the inverter reports them as one value.
// Combined bitmasks are not decomposed and fall back to the unknown label.
var alarmCodes = map[uint64]string{
	0:     "kein Fehler",
	1:     "Externer Fehler 1",
	2:     "Isolationsfehler DC-Seite",
	4:     "Fehlerstrom Erde zu Groß",
	8:     "Sicherungsbruch Mittelpunkterde",
	16:    "Externer Alarm 2",
	32:    "Langzeit-Temperaturbegrenzung",
	64:    "Fehler AC-Einspeisung",
	128:   "Externer Alarm 4",
	256:   "Ventilator defekt",
	512:   "Sicherungsbruch",
	1024:  "Ausfall Temperatursensor",
	2048:  "Alarm 12",
	4096:  "Alarm 13",
	8192:  "Alarm 14",
	16384: "Alarm 15",
	32768: "Alarm 16",
	65536: "Alarm 17",
}

type inverterModel struct {
	name         string
	maxPowerWatt uint32
}

var inverterModels = map[uint64]inverterModel{
	20010: {name: "SolarMax 2000S", maxPowerWatt: 2000},
	20020: {name: "SolarMax 3000S", maxPowerWatt: 3000},
	20030: {name: "SolarMax 4200S", maxPowerWatt: 4200},
	20040: {name: "SolarMax 6000S", maxPowerWatt: 6000},
}

func StatusLabel(code uint64) string {
	if label, ok := statusCodes[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown status '%d'", code)
}

func AlarmLabel(code uint64) string {
	if label, ok := alarmCodes[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown alarm code '%d'", code)
}

func ModelLabel(code uint64) string {
	if model, ok := inverterModels[code]; ok {
		return model.name
	}
	return fmt.Sprintf("Unknown model '%d'", code)
}

// ModelMaxPower returns the nominal AC power of a known model, 0 otherwise.
func ModelMaxPower(code uint64) uint32 {
	return inverterModels[code].maxPowerWatt
}

func decodeValue(key QueryKey, raw uint64) Value {
	kind, scale, decimals, _ := Lookup(key)
	v := Value{
		Key:  key,
		Kind: kind,
		Raw:  raw,
	}
	switch kind {
	case KindStatusCode:
		v.Label = StatusLabel(raw)
	case KindAlarmCode:
		v.Label = AlarmLabel(raw)
	case KindModelCode:
		v.Label = ModelLabel(raw)
	case KindScaledFloat:
		v.Number = round(float64(raw)*scale, decimals)
		v.Decimals = decimals
	default:
		v.Number = float64(raw)
	}
	return v
}

func round(value float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(value*p) / p
}
