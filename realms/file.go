package realms

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type realmsFile struct {
	Realm []struct {
		Name       string  `toml:"name"`
		Address    string  `toml:"address"`
		Type       uint8   `toml:"type"`
		Locked     bool    `toml:"locked"`
		Flags      uint8   `toml:"flags"`
		Population float32 `toml:"population"`
		Region     uint8   `toml:"region"`
	} `toml:"realm"`
}

// LoadFile reads a TOML file of [[realm]] tables. Realms keep the order in
// which they appear in the file.
func LoadFile(path string) (StaticDirectory, error) {
	var f realmsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrapf(err, "reading realms from %s", path)
	}
	d := make(StaticDirectory, 0, len(f.Realm))
	for i, r := range f.Realm {
		if r.Name == "" || r.Address == "" {
			return nil, errors.Errorf("%s: realm #%d needs a name and an address", path, i)
		}
		d = append(d, Realm{
			Type:       Type(r.Type),
			Locked:     r.Locked,
			Flags:      Flags(r.Flags),
			Name:       r.Name,
			Address:    r.Address,
			Population: r.Population,
			Region:     Region(r.Region),
		})
	}
	return d, nil
}
