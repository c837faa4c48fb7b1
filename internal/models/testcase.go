package models

import "time"

// Priority is the execution priority of a test case.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// ValidPriority reports whether p is a defined priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TestCaseStatus is the review state of a test case. Superseded marks a case
// replaced during regeneration; superseded cases are never deleted.
type TestCaseStatus string

const (
	StatusNotTested  TestCaseStatus = "NotTested"
	StatusPass       TestCaseStatus = "Pass"
	StatusFail       TestCaseStatus = "Fail"
	StatusInProgress TestCaseStatus = "InProgress"
	StatusSuperseded TestCaseStatus = "Superseded"
)

// ValidReviewStatus reports whether s is a status a reviewer may set.
// Superseded is reserved for the regeneration engine.
func ValidReviewStatus(s TestCaseStatus) bool {
	switch s {
	case StatusNotTested, StatusPass, StatusFail, StatusInProgress:
		return true
	}
	return false
}

// TestCase is a structured verification scenario linked to exactly one
// requirement. The ID (TC-REQ<n>-<m>) is scoped per requirement; OriginRunID
// records the generation run that produced the case, for lineage.
type TestCase struct {
	ID             string         `json:"id"`
	RequirementID  string         `json:"requirement_id"`
	Title          string         `json:"title"`
	Steps          []string       `json:"steps"`
	ExpectedResult string         `json:"expected_result"`
	Priority       Priority       `json:"priority"`
	ComplianceRefs []string       `json:"compliance_refs"`
	Status         TestCaseStatus `json:"status"`
	OriginRunID    string         `json:"origin_run_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
