// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Insights is a model answer that is passed through without inspection.
type Insights map[string]any

// Number is a numeric answer field. Models sometimes quote numbers, so a
// string holding a number is accepted too.
type Number float64

// UnmarshalJSON accepts 42, 42.5, "42" and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// LeadScore is the model's assessment of a lead.
type LeadScore struct {
	Score                 Number            `json:"score"`
	EstimatedMonthlyValue Number            `json:"estimated_monthly_value"`
	Factors               map[string]Number `json:"factors"`
	Explanation           string            `json:"explanation"`
	RecommendedActions    []string          `json:"recommended_actions"`
}

// PropertyAnalysis is the landscaping assessment of a property. The
// frequency and seasonal sections are passed through as the model wrote
// them: a season may hold one sentence or a list of tasks.
type PropertyAnalysis struct {
	PropertyCondition         string         `json:"property_condition"`
	RecommendedServices       []string       `json:"recommended_services"`
	EstimatedServiceFrequency map[string]any `json:"estimated_service_frequency"`
	SeasonalRecommendations   map[string]any `json:"seasonal_recommendations"`
	EstimatedMonthlyCost      Number         `json:"estimated_monthly_cost"`
	SpecialConsiderations     []string       `json:"special_considerations"`
}

// AdVariant is one platform's copy for a hyper-local ad.
type AdVariant struct {
	Platform     string   `json:"platform"`
	LocalFactoid string   `json:"local_factoid,omitempty"`
	Headline     string   `json:"headline"`
	Body         string   `json:"body"`
	CTA          string   `json:"cta"`
	Hashtags     []string `json:"hashtags,omitempty"`
}

// AdVariants is the ad generation answer.
type AdVariants struct {
	Variants []AdVariant `json:"variants"`
}

// ABVariant is one A/B test variation of an existing creative.
type ABVariant struct {
	VariantName string `json:"variant_name"`
	Headline    string `json:"headline"`
	Body        string `json:"body"`
	CTA         string `json:"cta"`
	ChangesMade string `json:"changes_made"`
}

// ABVariants is the variant generation answer.
type ABVariants struct {
	Variants []ABVariant `json:"variants"`
}

// NeighborhoodPerformance aggregates ad delivery for one neighborhood.
type NeighborhoodPerformance struct {
	Impressions    int     `json:"impressions"`
	Clicks         int     `json:"clicks"`
	Leads          int     `json:"leads"`
	Spend          float64 `json:"spend"`
	CTR            float64 `json:"ctr,omitempty"`
	ConversionRate float64 `json:"conversion_rate,omitempty"`
	CPA            float64 `json:"cpa,omitempty"`
}

// Add accumulates one performance record.
func (p *NeighborhoodPerformance) Add(rec AdPerformance) {
	p.Impressions += rec.Impressions
	p.Clicks += rec.Clicks
	p.Leads += rec.LeadsGenerated
	p.Spend += rec.Spend
}

// Finish computes the derived rates. Rates stay zero without clicks.
func (p *NeighborhoodPerformance) Finish() {
	if p.Clicks == 0 {
		return
	}
	if p.Impressions > 0 {
		p.CTR = Round2(float64(p.Clicks) / float64(p.Impressions) * 100)
	}
	p.ConversionRate = Round2(float64(p.Leads) / float64(p.Clicks) * 100)
	if p.Leads > 0 {
		p.CPA = Round2(p.Spend / float64(p.Leads))
	}
}

// WateringRecommendation is the weekly watering answer.
type WateringRecommendation struct {
	LawnWateringNeeded          bool     `json:"lawn_watering_needed"`
	LawnWateringHours           Number   `json:"lawn_watering_hours"`
	LawnWateringDays            []string `json:"lawn_watering_days"`
	GardenWateringNeeded        bool     `json:"garden_watering_needed"`
	GardenWateringFrequency     string   `json:"garden_watering_frequency"`
	TreesWateringNeeded         bool     `json:"trees_watering_needed"`
	TreesWateringRecommendation string   `json:"trees_watering_recommendation"`
	Reasoning                   string   `json:"reasoning"`
}

// Round2 rounds to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
