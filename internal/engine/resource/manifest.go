package resource

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned for manifests that decode but describe
// unusable materials.
var ErrInvalidManifest = errors.New("invalid material manifest")

type manifestFile struct {
	Materials []yaml.Node `yaml:"materials"`
}

// LoadMaterialManifest registers every material listed in a YAML manifest:
//
//	materials:
//	  - name: brick
//	    color: [1, 0.9, 0.8, 1]
//	    maps: [textures/brick.png]
//	    shader: shaders/lit.frag
//
// Fields left out keep their defaults. Nothing is registered unless the
// whole manifest is valid.
func (r *Registry) LoadMaterialManifest(path string) (map[string]MaterialSlot, error) {
	if !r.acquire("LoadMaterialManifest") {
		return nil, ErrBusy
	}
	defer r.release()

	data, err := r.source.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading manifest %s: %w", path, err)
	}

	descs, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	slots := make(map[string]MaterialSlot, len(descs))
	for _, desc := range descs {
		slots[desc.Name] = r.loadMaterial(desc)
	}
	return slots, nil
}

func parseManifest(data []byte) ([]MaterialDescriptor, error) {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	descs := make([]MaterialDescriptor, 0, len(file.Materials))
	seen := make(map[string]bool)
	for i := range file.Materials {
		desc := NewMaterialDescriptor("")
		if err := file.Materials[i].Decode(&desc); err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		if desc.Name == "" {
			return nil, fmt.Errorf("%w: material %d has no name", ErrInvalidManifest, i)
		}
		if seen[desc.Name] {
			return nil, fmt.Errorf("%w: duplicate material %q", ErrInvalidManifest, desc.Name)
		}
		seen[desc.Name] = true
		descs = append(descs, desc)
	}
	return descs, nil
}
