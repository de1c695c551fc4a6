package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// LoadGoldenCases reads and parses a golden case set from a JSON file.
func LoadGoldenCases(path string) ([]GoldenCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden cases file: %w", err)
	}

	var cases []GoldenCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse golden cases: %w", err)
	}

	return cases, nil
}

// ValidateGoldenCases checks that all golden cases have required fields and valid values.
func ValidateGoldenCases(cases []GoldenCase) error {
	seen := make(map[string]struct{}, len(cases))

	for i, c := range cases {
		if c.ID == "" {
			return fmt.Errorf("case at index %d: missing id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("case at index %d: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = struct{}{}

		if c.Transcript == "" {
			return fmt.Errorf("case %q: missing transcript", c.ID)
		}
		if !c.Difficulty.IsValid() {
			return fmt.Errorf("case %q: invalid difficulty %q (must be easy/medium/hard)", c.ID, c.Difficulty)
		}
		for _, s := range c.ExpectedSections {
			if !slices.Contains(entities.SectionOrder, s) {
				return fmt.Errorf("case %q: unknown section %q", c.ID, s)
			}
		}
	}

	return nil
}
