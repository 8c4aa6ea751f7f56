package commands

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

func checkFormat(f string) error {
	switch f {
	case formatYAML, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q, expected %s or %s", f, formatYAML, formatJSON)
	}
}

// print renders v on the command output in the selected format.
func (a *App) print(v any) error {
	w := a.out()

	if a.config.Format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("could not render output: %v", err)
		}
		return nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not render output: %v", err)
	}
	return enc.Close()
}
