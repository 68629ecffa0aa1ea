// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "github.com/google/uuid"

// Typed views of the rows the handlers read individual fields from. Prompt
// templates receive the full rows; these structs only carry what Go code
// branches on.

// Neighborhood is a marketing area with its growing conditions.
type Neighborhood struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	City              string    `json:"city"`
	State             string    `json:"state"`
	ZipCodes          []string  `json:"zip_codes"`
	SoilType          *string   `json:"soil_type"`
	USDAHardinessZone *string   `json:"usda_hardiness_zone"`
}

// Zone returns the hardiness zone, or fallback when unknown.
func (n *Neighborhood) Zone(fallback string) string {
	if n == nil || n.USDAHardinessZone == nil || *n.USDAHardinessZone == "" {
		return fallback
	}
	return *n.USDAHardinessZone
}

// Soil returns the soil type, or fallback when unknown.
func (n *Neighborhood) Soil(fallback string) string {
	if n == nil || n.SoilType == nil || *n.SoilType == "" {
		return fallback
	}
	return *n.SoilType
}

// Property is a serviced lot.
type Property struct {
	ID               uuid.UUID `json:"id"`
	LotSizeSqft      *float64  `json:"lot_size_sqft"`
	BuildingAreaSqft *float64  `json:"building_area_sqft"`
}

// AdCreative is a stored ad.
type AdCreative struct {
	ID             uuid.UUID  `json:"id"`
	CampaignID     uuid.UUID  `json:"campaign_id"`
	NeighborhoodID *uuid.UUID `json:"neighborhood_id"`
	Name           string     `json:"name"`
	Headline       string     `json:"headline"`
	BodyText       string     `json:"body_text"`
	CallToAction   string     `json:"call_to_action"`
}

// AdPerformance is one day of delivery metrics for a creative.
type AdPerformance struct {
	CreativeID     uuid.UUID `json:"creative_id"`
	Impressions    int       `json:"impressions"`
	Clicks         int       `json:"clicks"`
	LeadsGenerated int       `json:"leads_generated"`
	Spend          float64   `json:"spend"`
}

// WeatherDay is one day of observations for a zip code.
type WeatherDay struct {
	ZipCode             string   `json:"zip_code"`
	Date                string   `json:"date"`
	TempHighF           *float64 `json:"temp_high_f"`
	PrecipitationInches float64  `json:"precipitation_inches"`
}
