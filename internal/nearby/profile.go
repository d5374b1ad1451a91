package nearby

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Profile is an operator-supplied search profile file.
type Profile struct {
	Terms  []string `yaml:"terms"`
	Radius int      `yaml:"radius"`
	Out    string   `yaml:"out"`
}

// LoadProfile reads a YAML search profile. Terms are required; radius and out
// fall back to the caller's defaults when zero.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nearby: read profile %s", path)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "nearby: parse profile %s", path)
	}
	if len(p.Terms) == 0 {
		return nil, eris.Errorf("nearby: profile %s lists no terms", path)
	}
	return &p, nil
}
