// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "slices"

// Model choices accepted by ad generation.
const (
	ModelGPT4   = "gpt-4"
	ModelClaude = "claude"
)

// Closed value sets accepted by the API. Requests with values outside these
// sets are rejected before any model is called.
var (
	AdTypes          = []string{"image", "video", "carousel", "story"}
	AdPlatforms      = []string{"facebook", "instagram", "twitter", "linkedin"}
	Tones            = []string{"professional", "friendly", "urgent"}
	ModelChoices     = []string{ModelGPT4, ModelClaude}
	TipTypes         = []string{"lawn_care", "garden", "pest", "seasonal"}
	CampaignTypes    = []string{"newsletter", "promotion", "referral", "seasonal_tips"}
	TimeCommitments  = []string{"low", "moderate", "high"}
	ExperienceLevels = []string{"beginner", "intermediate", "advanced"}
	GardenSizes      = []string{"container", "small", "medium", "large"}
	AnalysisTypes    = []string{"full", "lawn_only", "garden_only"}
	SearchTables     = []string{"properties", "customers", "leads"}
)

// SocialGuidelines holds the writing guidance per social platform.
var SocialGuidelines = map[string]string{
	"facebook":  "Conversational, 1-2 paragraphs, community-focused",
	"instagram": "Visual-focused, short caption, emoji-friendly, 5-10 hashtags",
	"twitter":   "Concise, under 280 characters, 2-3 hashtags",
	"linkedin":  "Professional, educational, industry insights",
}

// OneOf reports whether v is in allowed.
func OneOf(v string, allowed []string) bool {
	return slices.Contains(allowed, v)
}
