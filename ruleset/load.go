package ruleset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadFromFileJSON reads a rule bundle from a JSON file. A missing or invalid
// file is a startup error; the caller is expected to treat it as fatal.
func LoadFromFileJSON(p string) (*RuleSet, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rules RuleSet
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	// pair weights may be configured in the shared weights table under the
	// pair label instead of inline
	for i, p := range rules.ProximityPairs {
		if p.Weight == 0 {
			rules.ProximityPairs[i].Weight = rules.Weight(p.Label)
		}
		if p.Window == 0 {
			rules.ProximityPairs[i].Window = rules.NearWindow()
		}
	}
	return &rules, nil
}
