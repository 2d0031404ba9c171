package model

import (
	"fmt"
	"strings"
)

// Category is the coarse classification of a unit of asynchronous work. It drives
// display priority and styling, never behavior.
type Category string

const (
	CategoryHealthcare Category = "healthcare"
	CategoryCompliance Category = "compliance"
	CategoryAuth       Category = "auth"
	CategoryData       Category = "data"
	CategoryNetwork    Category = "network"
	CategoryGeneral    Category = "general"
)

// Categories returns all the categories in display priority order.
func Categories() []Category {
	return []Category{
		CategoryHealthcare,
		CategoryCompliance,
		CategoryAuth,
		CategoryData,
		CategoryNetwork,
		CategoryGeneral,
	}
}

// Valid returns true if the category is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryHealthcare, CategoryCompliance, CategoryAuth, CategoryData, CategoryNetwork, CategoryGeneral:
		return true
	}
	return false
}

// Normalize returns the category or general if it's not a known one.
func (c Category) Normalize() Category {
	if c.Valid() {
		return c
	}
	return CategoryGeneral
}

// ParseCategory parses a category string (case insensitive).
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q: %w", s, ErrNotValid)
	}
	return c, nil
}

// ComplianceLevel is the informational severity of a regulated operation.
// The empty value means no compliance level.
type ComplianceLevel string

const (
	ComplianceLevelNone     ComplianceLevel = ""
	ComplianceLevelCritical ComplianceLevel = "critical"
	ComplianceLevelHigh     ComplianceLevel = "high"
	ComplianceLevelMedium   ComplianceLevel = "medium"
	ComplianceLevelLow      ComplianceLevel = "low"
)

// Valid returns true if the level is a known level or none.
func (l ComplianceLevel) Valid() bool {
	switch l {
	case ComplianceLevelNone, ComplianceLevelCritical, ComplianceLevelHigh, ComplianceLevelMedium, ComplianceLevelLow:
		return true
	}
	return false
}

// ParseComplianceLevel parses a compliance level string (case insensitive), empty is allowed.
func ParseComplianceLevel(s string) (ComplianceLevel, error) {
	l := ComplianceLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown compliance level %q: %w", s, ErrNotValid)
	}
	return l, nil
}
