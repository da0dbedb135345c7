package report

import (
	"encoding/json"

	"ontolint/internal/core/ports"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDSchema      = "ONTO001"
	ruleIDXRef        = "ONTO002"
	ruleIDConstants   = "ONTO003"
	ruleIDTerminology = "ONTO004"
	ruleIDContract    = "ONTO005"

	toolName    = "ontolint"
	toolVersion = "1.0.0"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
	LogicalLocations []sarifLogicalLoc     `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifLogicalLoc struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

var checkerRuleIDs = map[string]string{
	ports.CheckerSchema:      ruleIDSchema,
	ports.CheckerXRef:        ruleIDXRef,
	ports.CheckerConstants:   ruleIDConstants,
	ports.CheckerTerminology: ruleIDTerminology,
	ports.CheckerContract:    ruleIDContract,
}

// SARIF renders the report as a SARIF v2.1.0 document for CI code-scanning
// consumers. Module URIs are bundle-relative; absolute paths are never
// included so reports are safe to share.
func (r Report) SARIF() ([]byte, error) {
	doc := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    toolName,
				Version: toolVersion,
				Rules:   sarifRules(),
			}},
			Results: sarifResults(r.Findings),
		}},
	}
	return json.MarshalIndent(doc, "", "  ")
}

func sarifRules() []sarifRule {
	return []sarifRule{
		{
			ID:               ruleIDSchema,
			Name:             "SchemaViolation",
			ShortDescription: sarifMessage{Text: "Module violates its structural schema"},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		},
		{
			ID:               ruleIDXRef,
			Name:             "CrossReference",
			ShortDescription: sarifMessage{Text: "Identifier reference does not resolve or is declared twice"},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		},
		{
			ID:               ruleIDConstants,
			Name:             "ConstantConsistency",
			ShortDescription: sarifMessage{Text: "Canonical constant restated inconsistently or out of range"},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		},
		{
			ID:               ruleIDTerminology,
			Name:             "TerminologyLifecycle",
			ShortDescription: sarifMessage{Text: "Deprecated term lacks a valid active replacement"},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		},
		{
			ID:               ruleIDContract,
			Name:             "BundleContract",
			ShortDescription: sarifMessage{Text: "Bundle content contract violated"},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		},
	}
}

func sarifResults(findings []ports.Finding) []sarifResult {
	results := make([]sarifResult, 0, len(findings))
	for _, f := range findings {
		level := "error"
		if f.Severity == ports.SeverityWarning {
			level = "warning"
		}

		result := sarifResult{
			RuleID:  checkerRuleIDs[f.Checker],
			Level:   level,
			Message: sarifMessage{Text: f.Message},
		}
		if f.Location.Module != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI:       f.Location.Module + ".yaml",
						URIBaseID: "%SRCROOT%",
					},
				},
			}
			if f.Location.FieldPath != "" {
				loc.LogicalLocations = []sarifLogicalLoc{{
					FullyQualifiedName: f.Location.Module + "." + f.Location.FieldPath,
				}}
			}
			result.Locations = []sarifLocation{loc}
		}
		results = append(results, result)
	}
	return results
}
