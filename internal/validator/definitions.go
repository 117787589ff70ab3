package validator

import (
	"os"

	"github.com/edisonhq/edison/internal/pathio"
)

// LoadDefinitions reads the project's validator roster declaration from
// path (spec.md §4.I step 1 "Members: every validator the project
// declares"). A missing file is not an error — it yields an empty roster,
// which workflow.Service.ValidateQA treats per the orchestration's
// emptyRosterPolicy.
func LoadDefinitions(path string) ([]Definition, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var doc struct {
		Validators []Definition `yaml:"validators"`
	}
	if err := pathio.LoadYAML(path, &doc); err != nil {
		return nil, err
	}
	return doc.Validators, nil
}
