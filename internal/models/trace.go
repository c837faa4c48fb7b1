package models

// TraceabilityRow is one requirement with its linked non-superseded test
// cases, the requirement's aggregate status, and the union of compliance
// references across the requirement and its cases.
type TraceabilityRow struct {
	Requirement    Requirement    `json:"requirement"`
	TestCases      []TestCase     `json:"test_cases"`
	Status         TestCaseStatus `json:"status"`
	ComplianceRefs []string       `json:"compliance_refs"`
}
