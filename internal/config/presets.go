package config

import "sort"

var Presets = map[string]*IntentionConfig{
	"gentle": {
		Task: "move", AccelPercent: 30, VelPercent: 30,
	},
	"nominal": {
		Task: "move", AccelPercent: 50, VelPercent: 50,
	},
	"aggressive": {
		Task: "pick", AccelPercent: 95, VelPercent: 90,
	},
	"hold": {
		Task: "inspect", AccelPercent: 0, VelPercent: 0,
	},
}

func GetPreset(name string) *IntentionConfig {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
