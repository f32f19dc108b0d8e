package route

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadFloorPlanFile loads one floor snapshot from a YAML file
func LoadFloorPlanFile(path string) (*FloorPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("floor plan file not found: %s", path)
		}
		return nil, fmt.Errorf("reading floor plan file: %w", err)
	}

	var fp FloorPlan
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("parsing floor plan YAML %s: %w", path, err)
	}
	if err := fp.Normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fp, nil
}

// LoadFloorPlans loads every *.yaml and *.yml file in dir, keyed by floor
func LoadFloorPlans(dir string) (Floors, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading floor plan dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	floors := make(Floors)
	for _, f := range files {
		fp, err := LoadFloorPlanFile(f)
		if err != nil {
			return nil, err
		}
		if _, dup := floors[fp.Floor]; dup {
			return nil, fmt.Errorf("floor %d defined more than once (%s)", fp.Floor, f)
		}
		floors[fp.Floor] = fp
	}
	return floors, nil
}

// SaveFloorPlanFile writes a floor snapshot as YAML
func SaveFloorPlanFile(path string, fp *FloorPlan) error {
	data, err := yaml.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshaling floor plan YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing floor plan file: %w", err)
	}
	return nil
}

// Normalize validates ids and drops self connections and duplicate links
func (fp *FloorPlan) Normalize() error {
	ids := make(map[string]bool, len(fp.Nodes))
	for i, n := range fp.Nodes {
		if n.ID == "" {
			return fmt.Errorf("floor %d: nodes[%d].id is required", fp.Floor, i)
		}
		if ids[n.ID] {
			return fmt.Errorf("floor %d: duplicate node id %q", fp.Floor, n.ID)
		}
		ids[n.ID] = true
		switch n.Type {
		case "":
			fp.Nodes[i].Type = NodeWalkway
		case NodeWalkway, NodeDoor, NodeElevator, NodeStairs, NodeObstacle:
		default:
			return fmt.Errorf("floor %d: node %s has unknown type %q", fp.Floor, n.ID, n.Type)
		}
	}
	for i := range fp.Nodes {
		n := &fp.Nodes[i]
		seen := make(map[string]bool, len(n.Connections))
		kept := n.Connections[:0]
		for _, c := range n.Connections {
			if c == n.ID || seen[c] {
				continue
			}
			seen[c] = true
			kept = append(kept, c)
		}
		n.Connections = kept
	}
	for i, w := range fp.Walls {
		if w.ID == "" {
			fp.Walls[i].ID = fmt.Sprintf("wall-%d-%d", fp.Floor, i)
		}
	}
	return nil
}
