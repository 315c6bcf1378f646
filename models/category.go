package models

type Category string

const (
	CategoryMods          Category = "mods"
	CategoryConfigs       Category = "configs"
	CategoryResourcePacks Category = "resourcepacks"
	CategoryShaderPacks   Category = "shaderpacks"
)

// Categories lists every file category in sync order.
var Categories = []Category{
	CategoryMods,
	CategoryConfigs,
	CategoryResourcePacks,
	CategoryShaderPacks,
}

// Dir returns the conventional directory of the category inside an instance.
func (c Category) Dir() string {
	switch c {
	case CategoryConfigs:
		return "config"
	default:
		return string(c)
	}
}
