package solarmax

// QueryKey is a 3-character SolarMax protocol code identifying one queryable value.
type QueryKey string

const (
	KeyStatus                  QueryKey = "SYS"
	KeyAlarmCode               QueryKey = "SAL"
	KeyACOutput                QueryKey = "PAC"
	KeyOperatingHours          QueryKey = "KHR"
	KeyDateYear                QueryKey = "DYR"
	KeyDateMonth               QueryKey = "DMT"
	KeyDateDay                 QueryKey = "DDY"
	KeyEnergyYear              QueryKey = "KYR"
	KeyEnergyMonth             QueryKey = "KMT"
	KeyEnergyDay               QueryKey = "KDY"
	KeyEnergyTotal             QueryKey = "KT0"
	KeyInstalledCapacity       QueryKey = "PIN"
	KeyMainsCycleDuration      QueryKey = "TNP"
	KeyNetworkAddress          QueryKey = "ADR"
	KeyRelativeOutput          QueryKey = "PRL"
	KeySoftwareVersion         QueryKey = "SWV"
	KeyVoltageDC               QueryKey = "UDC"
	KeyVoltagePhaseOne         QueryKey = "UL1"
	KeyCurrentDC               QueryKey = "IDC"
	KeyCurrentPhaseOne         QueryKey = "IL1"
	KeyTemperaturePowerUnitOne QueryKey = "TKK"
	KeyType                    QueryKey = "TYP"
	KeyTimeHours               QueryKey = "THR"
	KeyTimeMinutes             QueryKey = "TMI"
	KeyMainsFrequency          QueryKey = "TNF"
)

// units
const (
	UnitNone        = ""
	UnitWatt        = "W"
	UnitHour        = "h"
	UnitYear        = "a"
	UnitMonth       = "m"
	UnitDay         = "d"
	UnitKiloWattH   = "kWh"
	UnitMicroSecond = "μs"
	UnitPercent     = "%"
	UnitVolt        = "V"
	UnitAmpere      = "A"
	UnitCelsius     = "°C"
	UnitMinute      = "min"
)

// AllKeys lists every key known to the value registry, in protocol documentation order.
var AllKeys = []QueryKey{
	KeyStatus,
	KeyAlarmCode,
	KeyACOutput,
	KeyOperatingHours,
	KeyDateYear,
	KeyDateMonth,
	KeyDateDay,
	KeyEnergyYear,
	KeyEnergyMonth,
	KeyEnergyDay,
	KeyEnergyTotal,
	KeyInstalledCapacity,
	KeyMainsCycleDuration,
	KeyNetworkAddress,
	KeyRelativeOutput,
	KeySoftwareVersion,
	KeyVoltageDC,
	KeyVoltagePhaseOne,
	KeyCurrentDC,
	KeyCurrentPhaseOne,
	KeyTemperaturePowerUnitOne,
	KeyType,
	KeyTimeHours,
	KeyTimeMinutes,
	KeyMainsFrequency,
}

func (k QueryKey) String() string {
	return string(k)
}

// Known reports whether the key has an entry in the value registry.
func (k QueryKey) Known() bool {
	_, ok := registry[k]
	return ok
}

// Unit returns the unit of measurement of the decoded value, or "" when the
// value is dimensionless or the key is unknown.
func (k QueryKey) Unit() string {
	if def, ok := registry[k]; ok {
		return def.unit
	}
	return UnitNone
}

// Name returns a short human readable description of the key.
func (k QueryKey) Name() string {
	if def, ok := registry[k]; ok {
		return def.name
	}
	return string(k)
}
