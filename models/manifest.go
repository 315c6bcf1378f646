package models

// DistributionManifest is the top-level catalog served by a distribution.
type DistributionManifest struct {
	Name        string            `json:"name" validate:"required"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	BaseURL     string            `json:"base_url" validate:"required,url"`
	Instances   []InstanceSummary `json:"instances" validate:"dive"`
}

// Find returns the summary with the given instance id.
func (d *DistributionManifest) Find(id string) (InstanceSummary, bool) {
	for _, s := range d.Instances {
		if s.ID == id {
			return s, true
		}
	}
	return InstanceSummary{}, false
}

type InstanceSummary struct {
	ID               string `json:"id" validate:"required"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	MinecraftVersion string `json:"minecraft_version,omitempty"`
	Icon             string `json:"icon,omitempty"`

	// ManifestURL points to the instance manifest. It may be absolute,
	// relative to the distribution base URL or empty.
	ManifestURL string `json:"manifest_url,omitempty"`
}

type InstanceManifest struct {
	Instance InstanceInfo   `json:"instance"`
	Files    InstanceFiles  `json:"files"`
	Launch   LaunchSettings `json:"launch"`
}

type InstanceInfo struct {
	ID               string     `json:"id" validate:"required"`
	Name             string     `json:"name,omitempty"`
	MinecraftVersion string     `json:"minecraft_version" validate:"required"`
	ModLoader        *ModLoader `json:"mod_loader,omitempty"`
}

type ModLoader struct {
	Type    string `json:"type" validate:"required,oneof=fabric forge neoforge"`
	Version string `json:"version" validate:"required"`
}

// InstanceFiles groups file entries by category. Mods and Configs must be
// present in the document, the pack categories may be omitted.
type InstanceFiles struct {
	Mods          []FileEntry `json:"mods" validate:"required,dive"`
	Configs       []FileEntry `json:"configs" validate:"required,dive"`
	ResourcePacks []FileEntry `json:"resourcepacks,omitempty" validate:"omitempty,dive"`
	ShaderPacks   []FileEntry `json:"shaderpacks,omitempty" validate:"omitempty,dive"`
}

// Entries returns the entries of category c.
func (f *InstanceFiles) Entries(c Category) []FileEntry {
	switch c {
	case CategoryMods:
		return f.Mods
	case CategoryConfigs:
		return f.Configs
	case CategoryResourcePacks:
		return f.ResourcePacks
	case CategoryShaderPacks:
		return f.ShaderPacks
	}
	return nil
}

// Len returns the total number of entries.
func (f *InstanceFiles) Len() int {
	return len(f.Mods) + len(f.Configs) + len(f.ResourcePacks) + len(f.ShaderPacks)
}

type LaunchSettings struct {
	MinRAM         int      `json:"min_ram,omitempty"`
	RecommendedRAM int      `json:"recommended_ram,omitempty"`
	JVMArgs        []string `json:"jvm_args,omitempty"`
}

// FileEntry is the unit of synchronization.
type FileEntry struct {
	Name string `json:"name" validate:"required"`

	// Path is the manifest-relative virtual path, e.g. "config/modid/file.toml".
	Path string `json:"path,omitempty"`

	// URL is either absolute or relative to the distribution.
	URL string `json:"url" validate:"required"`

	SHA256 string `json:"sha256" validate:"required,len=64,hexadecimal"`
	MD5    string `json:"md5,omitempty" validate:"omitempty,len=32,hexadecimal"`
	Size   int64  `json:"size,omitempty" validate:"gte=0"`

	// Required defaults to true when absent.
	Required *bool `json:"required,omitempty"`

	// Target overrides the derived local path.
	Target string `json:"target,omitempty"`
}

func (e FileEntry) IsRequired() bool {
	return e.Required == nil || *e.Required
}

// InstanceAsset is a FileEntry resolved for fetching.
type InstanceAsset struct {
	Category Category
	Name     string

	// Path is slash separated and relative to the instance directory.
	Path string

	// URL is absolute, or uses an indirect scheme understood by the fetcher.
	URL string

	SHA256   string
	MD5      string
	Size     int64
	Required bool
}
