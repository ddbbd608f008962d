package ingest

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliasesYAML []byte

// Aliases maps a canonical field name to the raw header spellings known for it.
type Aliases map[string][]string

func DefaultAliases() Aliases {
	a, err := ParseAliases(defaultAliasesYAML)
	if err != nil {
		panic(errors.Wrap(err, "embedded aliases.yaml"))
	}
	return a
}

func ParseAliases(data []byte) (Aliases, error) {
	var out Aliases
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "parse aliases")
	}
	return out, nil
}

func parseAliasesTOML(data []byte) (Aliases, error) {
	var out Aliases
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "parse aliases")
	}
	return out, nil
}

// LoadAliases returns the built-in table extended with the spellings found
// in path, a YAML file or a TOML one when the extension is .toml. An empty
// path yields the built-in table.
func LoadAliases(path string) (Aliases, error) {
	base := DefaultAliases()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read aliases %s", path)
	}
	parse := ParseAliases
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = parseAliasesTOML
	}
	extra, err := parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "aliases %s", path)
	}
	return base.Extend(extra), nil
}

// Extend returns a copy of a with extra's spellings appended per field.
func (a Aliases) Extend(extra Aliases) Aliases {
	out := make(Aliases, len(a)+len(extra))
	for field, spellings := range a {
		out[field] = append([]string(nil), spellings...)
	}
	for field, spellings := range extra {
		out[field] = append(out[field], spellings...)
	}
	return out
}
