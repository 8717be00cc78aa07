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

// builtinProfiles returns the vertical profiles shipped with the
// engine. Callers can add or replace profiles at runtime.
func builtinProfiles() []Profile {
	return []Profile{
		{
			Name:           "b2b-saas",
			Keywords:       []string{"software", "saas", "technology", "it services", "cloud"},
			TargetGeos:     []string{"US", "CA", "GB", "DE"},
			MinCompanySize: 50,
			Weights: map[string]float64{
				FactorCompanyRelevance: 0.3,
				FactorCompanySize:      0.2,
				FactorGeography:        0.2,
				FactorLeadEngagement:   0.15,
				FactorEmailQuality:     0.15,
			},
			GeoBonus: 1.1,
			OEMBonus: 1.05,
		},
		{
			Name:           "manufacturing",
			Keywords:       []string{"manufacturing", "industrial", "automotive", "machinery", "oem"},
			TargetGeos:     []string{"US", "DE", "JP", "CN"},
			MinCompanySize: 200,
			Weights: map[string]float64{
				FactorCompanyRelevance: 0.35,
				FactorCompanySize:      0.25,
				FactorGeography:        0.15,
				FactorLeadEngagement:   0.1,
				FactorEmailQuality:     0.15,
			},
			GeoBonus: 1.05,
			OEMBonus: 1.2,
		},
		{
			Name:           "ecommerce",
			Keywords:       []string{"retail", "ecommerce", "e-commerce", "consumer goods", "marketplace"},
			TargetGeos:     []string{"US", "GB", "FR", "AU"},
			MinCompanySize: 10,
			Weights: map[string]float64{
				FactorCompanyRelevance: 0.25,
				FactorCompanySize:      0.15,
				FactorGeography:        0.2,
				FactorLeadEngagement:   0.25,
				FactorEmailQuality:     0.15,
			},
			GeoBonus: 1.1,
		},
	}
}
