package fixture

import (
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

//go:embed testdata.yaml
var testDataYAML []byte

// TestData is the static data the UI tests assert against.
type TestData struct {
	URLs struct {
		Home  string `yaml:"home"`
		About string `yaml:"about"`
		Tools struct {
			UserData      string `yaml:"userData"`
			TextGenerator string `yaml:"textGenerator"`
			CountTool     string `yaml:"countTool"`
		} `yaml:"tools"`
		Templates struct {
			TestCases string `yaml:"testCases"`
		} `yaml:"templates"`
	} `yaml:"urls"`

	ExpectedContent struct {
		Titles   map[string]string `yaml:"titles"`
		Sections []string          `yaml:"sections"`
	} `yaml:"expectedContent"`

	TextGenerator struct {
		CharacterCounts    []int    `yaml:"characterCounts"`
		WordCounts         []int    `yaml:"wordCounts"`
		InvalidInputs      []string `yaml:"invalidInputs"`
		BoundaryValues     []int    `yaml:"boundaryValues"`
		CharacterTolerance float64  `yaml:"characterTolerance"`
	} `yaml:"textGenerator"`
}

// LoadTestData decodes the embedded test data.
func LoadTestData() (*TestData, error) {
	return ParseTestData(testDataYAML)
}

func ParseTestData(b []byte) (*TestData, error) {
	var td TestData
	if err := yaml.Unmarshal(b, &td); err != nil {
		return nil, fmt.Errorf("parse test data: %w", err)
	}
	return &td, nil
}

// Tolerance returns the allowed character count deviation for n.
func (td *TestData) Tolerance(n int) int {
	return int(math.Ceil(float64(n) * td.TextGenerator.CharacterTolerance))
}
