// Copyright 2025 The email-checker authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

var ErrProfileNotFound = errors.New("scoring profile not found")

// lead factor names
const (
	FactorCompanyRelevance = "companyRelevance"
	FactorCompanySize      = "companySize"
	FactorGeography        = "geography"
	FactorLeadEngagement   = "engagement"
	FactorEmailQuality     = "emailQuality"

	// relevanceBaseline is the company-relevance value of a lead
	// whose industry matches none of the profile keywords.
	relevanceBaseline = 0.3
)

// Profile is a vertical-specific lead scoring configuration.
type Profile struct {
	Name           string             `json:"name"`
	Keywords       []string           `json:"keywords"`
	TargetGeos     []string           `json:"targetGeos"`
	MinCompanySize float64            `json:"minCompanySize"`
	Weights        map[string]float64 `json:"weights"`

	// GeoBonus and OEMBonus are multiplicative and applied after
	// the weighted sum.
	GeoBonus float64 `json:"geoBonus"`
	OEMBonus float64 `json:"oemBonus"`
}

func (p Profile) validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has empty name")
	}
	if err := validateWeights(p.Weights); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return nil
}

// Lead is the raw signal of one company/contact lead. Missing
// optional signal (engagement, email quality) falls back to the
// neutral baseline.
type Lead struct {
	ID           string   `json:"id"`
	Industry     string   `json:"industry"`
	CompanySize  float64  `json:"companySize"`
	Country      string   `json:"country"`
	IsOEM        bool     `json:"isOEM"`
	Engagement   *float64 `json:"engagement,omitempty"`
	EmailQuality *float64 `json:"emailQuality,omitempty"`
}

// LeadScorer scores leads against named profiles.
type LeadScorer struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewLeadScorer() *LeadScorer {
	ls := &LeadScorer{profiles: make(map[string]Profile)}
	for _, p := range builtinProfiles() {
		ls.profiles[p.Name] = p
	}
	return ls
}

// AddProfile registers (or replaces) a scoring profile.
func (ls *LeadScorer) AddProfile(p Profile) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("failed to add profile: %w", err)
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.profiles[p.Name] = p
	return nil
}

// Profiles lists registered profile names.
func (ls *LeadScorer) Profiles() []string {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	names := make([]string, 0, len(ls.profiles))
	for name := range ls.profiles {
		names = append(names, name)
	}
	return names
}

// Score evaluates one lead against the named profile. An unknown
// profile name is an error.
func (ls *LeadScorer) Score(profileName string, lead Lead) (ScoreResult, error) {
	ls.mu.RLock()
	profile, ok := ls.profiles[profileName]
	ls.mu.RUnlock()
	if !ok {
		return ScoreResult{}, fmt.Errorf("failed to score lead %s: profile %s: %w",
			lead.ID, profileName, ErrProfileNotFound)
	}

	factors := map[string]float64{
		FactorCompanyRelevance: relevanceFactor(lead.Industry, profile.Keywords),
		FactorCompanySize:      sizeFactor(lead.CompanySize, profile.MinCompanySize),
		FactorGeography:        geoFactor(lead.Country, profile.TargetGeos),
	}
	if lead.Engagement != nil {
		factors[FactorLeadEngagement] = clamp01(*lead.Engagement)

	} else {
		factors[FactorLeadEngagement] = neutralBaseline
	}
	if lead.EmailQuality != nil {
		factors[FactorEmailQuality] = clamp01(*lead.EmailQuality)

	} else {
		factors[FactorEmailQuality] = neutralBaseline
	}

	var weighted float64
	for factor, weight := range profile.Weights {
		weighted += weight * factors[factor]
	}
	total := weighted * 100
	if factors[FactorGeography] >= 1 && profile.GeoBonus > 0 {
		total *= profile.GeoBonus
	}
	if lead.IsOEM && profile.OEMBonus > 0 {
		total *= profile.OEMBonus
	}
	total = math.Min(100, math.Max(0, total))

	result := ScoreResult{
		EntityID: lead.ID,
		Total:    total,
		Factors:  factors,
		Tier:     leadTier(total),
		Reasons:  factorReasons(factors),
	}
	result.Recommendation = leadRecommendation(result.Tier)
	return result, nil
}

func relevanceFactor(industry string, keywords []string) float64 {
	needle := strings.ToLower(industry)
	if needle == "" {
		return relevanceBaseline
	}
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if needle == kw || strings.Contains(needle, kw) || strings.Contains(kw, needle) {
			return 0.9
		}
	}
	return relevanceBaseline
}

// sizeFactor buckets company size against the profile minimum:
// well above it, above it, or below it.
func sizeFactor(size, minSize float64) float64 {
	if minSize <= 0 {
		return neutralBaseline
	}
	switch {
	case size >= minSize*10:
		return 1.0
	case size >= minSize:
		return 0.7
	}
	return 0.3
}

func geoFactor(country string, targetGeos []string) float64 {
	if country == "" {
		return neutralBaseline
	}
	for _, geo := range targetGeos {
		if strings.EqualFold(geo, country) {
			return 1.0
		}
	}
	return 0.4
}

func leadTier(total float64) string {
	switch {
	case total >= 85:
		return "platinum"
	case total >= 70:
		return "gold"
	case total >= 55:
		return "silver"
	case total >= 40:
		return "bronze"
	}
	return "unqualified"
}

func leadRecommendation(tier string) string {
	switch tier {
	case "platinum":
		return "route to sales immediately"
	case "gold":
		return "prioritize outreach"
	case "silver":
		return "add to nurture sequence"
	case "bronze":
		return "low-touch campaign only"
	}
	return "do not pursue"
}
