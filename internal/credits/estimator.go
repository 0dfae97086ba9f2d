package credits

import (
	"fmt"
	"os"
	"strings"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"gopkg.in/yaml.v3"
)

// SubjectCost holds the per-question cost of a subject for each question kind.
type SubjectCost struct {
	Topical int `yaml:"topical"`
	Exam    int `yaml:"exam"`
}

// CostTable drives the estimator. Unknown subjects fall back to Default.
type CostTable struct {
	Default           SubjectCost            `yaml:"default"`
	ImageSurcharge    int                    `yaml:"image_surcharge"`
	LongFormSurcharge int                    `yaml:"long_form_surcharge"`
	LongFormFormats   []string               `yaml:"long_form_formats"`
	Subjects          map[string]SubjectCost `yaml:"subjects"`
}

var DefaultTable = CostTable{
	Default:           SubjectCost{Topical: 1, Exam: 2},
	ImageSurcharge:    1,
	LongFormSurcharge: 1,
	LongFormFormats:   []string{"structured", "essay"},
	Subjects: map[string]SubjectCost{
		"mathematics":       {Topical: 1, Exam: 3},
		"physics":           {Topical: 1, Exam: 3},
		"chemistry":         {Topical: 1, Exam: 3},
		"biology":           {Topical: 1, Exam: 2},
		"english":           {Topical: 1, Exam: 2},
		"kiswahili":         {Topical: 1, Exam: 2},
		"history":           {Topical: 1, Exam: 2},
		"geography":         {Topical: 1, Exam: 2},
		"cre":               {Topical: 1, Exam: 2},
		"computer_studies":  {Topical: 1, Exam: 2},
		"business_studies":  {Topical: 1, Exam: 2},
		"agriculture":       {Topical: 1, Exam: 2},
		"general_knowledge": {Topical: 1, Exam: 1},
	},
}

// Estimator computes question costs from a CostTable. Estimate is pure and total.
type Estimator struct {
	table    CostTable
	longForm map[string]bool
}

func NewEstimator(table CostTable) *Estimator {
	normalized := CostTable{
		Default:           clampCost(table.Default),
		ImageSurcharge:    max(table.ImageSurcharge, 0),
		LongFormSurcharge: max(table.LongFormSurcharge, 0),
		Subjects:          make(map[string]SubjectCost, len(table.Subjects)),
	}
	for subject, cost := range table.Subjects {
		normalized.Subjects[NormalizeSubject(subject)] = clampCost(cost)
	}

	longForm := make(map[string]bool, len(table.LongFormFormats))
	for _, f := range table.LongFormFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		normalized.LongFormFormats = append(normalized.LongFormFormats, f)
		longForm[f] = true
	}

	return &Estimator{table: normalized, longForm: longForm}
}

// LoadEstimator reads a YAML cost table and layers it over DefaultTable.
// An empty path yields the default estimator.
func LoadEstimator(path string) (*Estimator, error) {
	if path == "" {
		return NewEstimator(DefaultTable), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cost table: %w", err)
	}

	var override CostTable
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("failed to parse cost table: %w", err)
	}

	return NewEstimator(mergeTables(DefaultTable, override)), nil
}

func (e *Estimator) Estimate(subject string, kind models.QuestionKind, isImageQuestion bool, format string) int {
	row, ok := e.table.Subjects[NormalizeSubject(subject)]
	if !ok {
		row = e.table.Default
	}

	cost := row.Topical
	if kind == models.KindExam {
		cost = row.Exam
	}
	if isImageQuestion {
		cost += e.table.ImageSurcharge
	}
	if format != "" && e.longForm[strings.ToLower(strings.TrimSpace(format))] {
		cost += e.table.LongFormSurcharge
	}
	return max(cost, 0)
}

func (e *Estimator) Table() CostTable {
	return e.table
}

var defaultEstimator = NewEstimator(DefaultTable)

// Estimate prices a question with DefaultTable.
func Estimate(subject string, kind models.QuestionKind, isImageQuestion bool, format string) int {
	return defaultEstimator.Estimate(subject, kind, isImageQuestion, format)
}

// GradingCost is charged on submission. Option answers are checked locally and are free.
func GradingCost(shape models.QuestionShape) int {
	if shape == models.ShapeOption {
		return 0
	}
	return 1
}

// NormalizeSubject maps display names such as "Computer Studies" to table keys.
func NormalizeSubject(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	return strings.Join(strings.Fields(s), "_")
}

func mergeTables(base, override CostTable) CostTable {
	merged := CostTable{
		Default:           base.Default,
		ImageSurcharge:    base.ImageSurcharge,
		LongFormSurcharge: base.LongFormSurcharge,
		LongFormFormats:   base.LongFormFormats,
		Subjects:          make(map[string]SubjectCost, len(base.Subjects)+len(override.Subjects)),
	}
	for k, v := range base.Subjects {
		merged.Subjects[k] = v
	}

	if override.Default != (SubjectCost{}) {
		merged.Default = override.Default
	}
	if override.ImageSurcharge != 0 {
		merged.ImageSurcharge = override.ImageSurcharge
	}
	if override.LongFormSurcharge != 0 {
		merged.LongFormSurcharge = override.LongFormSurcharge
	}
	if len(override.LongFormFormats) > 0 {
		merged.LongFormFormats = override.LongFormFormats
	}
	for k, v := range override.Subjects {
		merged.Subjects[k] = v
	}
	return merged
}

func clampCost(c SubjectCost) SubjectCost {
	return SubjectCost{Topical: max(c.Topical, 0), Exam: max(c.Exam, 0)}
}
