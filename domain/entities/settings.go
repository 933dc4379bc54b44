package entities

import "fmt"

// SettingKind is the type tag a guest passes to defaults.set.
type SettingKind int32

const (
	SettingData SettingKind = iota
	SettingBool
	SettingInt
	SettingFloat
	SettingString
	SettingStringArray
	SettingNull
)

var settingKindNames = [...]string{
	SettingData:        "data",
	SettingBool:        "bool",
	SettingInt:         "int",
	SettingFloat:       "float",
	SettingString:      "string",
	SettingStringArray: "string_array",
	SettingNull:        "null",
}

// Valid reports whether k is one of the defined kinds.
func (k SettingKind) Valid() bool {
	return k >= SettingData && k <= SettingNull
}

func (k SettingKind) String() string {
	if k.Valid() {
		return settingKindNames[k]
	}
	return fmt.Sprintf("setting_kind(%d)", int32(k))
}
