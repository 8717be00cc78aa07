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

package feats

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	freeProviders = map[string]bool{
		"gmail.com":      true,
		"yahoo.com":      true,
		"hotmail.com":    true,
		"outlook.com":    true,
		"aol.com":        true,
		"icloud.com":     true,
		"protonmail.com": true,
		"mail.com":       true,
		"gmx.com":        true,
		"zoho.com":       true,
	}

	disposableDomains = map[string]bool{
		"mailinator.com":    true,
		"guerrillamail.com": true,
		"10minutemail.com":  true,
		"tempmail.com":      true,
		"temp-mail.org":     true,
		"throwaway.email":   true,
		"yopmail.com":       true,
		"trashmail.com":     true,
		"getnada.com":       true,
		"maildrop.cc":       true,
		"sharklasers.com":   true,
		"dispostable.com":   true,
		"fakeinbox.com":     true,
		"mintemail.com":     true,
		"mytemp.email":      true,
	}

	roleAccountRx = regexp.MustCompile(
		`^(admin|info|support|sales|contact|office|help|noreply|no-reply|postmaster|webmaster|abuse|marketing|billing|hr|jobs)$`)
	consonantRunRx = regexp.MustCompile(`[bcdfghjklmnpqrstvwxz]{5,}`)
)

// IsFreeProvider reports whether the given domain belongs to
// a well known free mailbox provider.
func IsFreeProvider(domain string) bool {
	return freeProviders[strings.ToLower(domain)]
}

// IsDisposableDomain reports whether the given domain belongs to
// a known disposable/temporary mailbox service.
func IsDisposableDomain(domain string) bool {
	return disposableDomains[strings.ToLower(domain)]
}

// SplitEmail splits an address into its local part and domain.
// A malformed address yields ok == false.
func SplitEmail(email string) (local, domain string, ok bool) {
	idx := strings.LastIndex(email, "@")
	if idx <= 0 || idx == len(email)-1 {
		return "", "", false
	}
	return email[:idx], email[idx+1:], true
}

func emailFeatureDefs() []FeatureDef {
	return []FeatureDef{
		{Name: "localLength", Type: FeatureNumeric, Required: true, Min: 0, Max: 64},
		{Name: "domainLength", Type: FeatureNumeric, Required: true, Min: 0, Max: 253},
		{Name: "digitRatio", Type: FeatureNumeric, Required: true, Min: 0, Max: 1},
		{Name: "specialRatio", Type: FeatureNumeric, Required: true, Min: 0, Max: 1},
		{Name: "consonantRun", Type: FeatureBinary, Required: false},
		{Name: "isFreeProvider", Type: FeatureBinary, Required: false},
		{Name: "isDisposable", Type: FeatureBinary, Required: false},
		{Name: "isRoleAccount", Type: FeatureBinary, Required: false},
		{Name: "hasNonASCII", Type: FeatureBinary, Required: false},
		{Name: "subdomainDepth", Type: FeatureNumeric, Required: false, Min: 0, Max: 10},
		{Name: "tldLength", Type: FeatureNumeric, Required: false, Min: 0, Max: 24},
	}
}

func companyFeatureDefs() []FeatureDef {
	return []FeatureDef{
		{Name: "companySize", Type: FeatureNumeric, Required: true, Min: 0, Max: 1000000},
		{Name: "industryCode", Type: FeatureCategorical, Required: false},
		{Name: "domainAge", Type: FeatureNumeric, Required: false, Min: 0, Max: 50},
		{Name: "employeeGrowth", Type: FeatureNumeric, Required: false, Min: -1, Max: 10},
		{Name: "hasWebsite", Type: FeatureBinary, Required: false},
		{Name: "isOEM", Type: FeatureBinary, Required: false},
	}
}

func campaignFeatureDefs() []FeatureDef {
	return []FeatureDef{
		{Name: "subjectLength", Type: FeatureNumeric, Required: true, Min: 0, Max: 200},
		{Name: "listSize", Type: FeatureNumeric, Required: true, Min: 0, Max: 10000000},
		{Name: "ctaCount", Type: FeatureNumeric, Required: false, Min: 0, Max: 20},
		{Name: "imageCount", Type: FeatureNumeric, Required: false, Min: 0, Max: 50},
		{Name: "personalized", Type: FeatureBinary, Required: false},
		{Name: "segmented", Type: FeatureBinary, Required: false},
	}
}

// industryCodes is a fixed categorical encoding; unknown industries
// map to code 0.
var industryCodes = map[string]float64{
	"software":      1,
	"finance":       2,
	"healthcare":    3,
	"manufacturing": 4,
	"retail":        5,
	"education":     6,
	"automotive":    7,
	"energy":        8,
	"media":         9,
	"logistics":     10,
}

// ExtractFeatures maps a raw field-keyed record into a feature vector
// using the registered definition set of the record's entity type.
// Unknown fields are ignored; missing non-required fields simply do
// not appear in the vector (the batch post-processing imputes them).
// A missing required signal is handled the same way - the missing
// value path is a data-quality concern, not an error.
func (p *Pipeline) ExtractFeatures(entityType string, record map[string]any) (Vector, error) {
	p.mu.RLock()
	_, ok := p.defs[entityType]
	p.mu.RUnlock()
	if !ok {
		return Vector{}, fmt.Errorf("failed to extract features: unknown entity type %s", entityType)
	}
	switch entityType {
	case EntityEmail:
		return p.extractEmail(record), nil
	case EntityCompany:
		return p.extractCompany(record), nil
	case EntityCampaign:
		return p.extractCampaign(record), nil
	}
	return p.extractGeneric(entityType, record), nil
}

func recordString(record map[string]any, key string) (string, bool) {
	v, ok := record[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func recordNumber(record map[string]any, key string) (float64, bool) {
	v, ok := record[key]
	if !ok {
		return 0, false
	}
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	}
	return 0, false
}

func recordBool(record map[string]any, key string) (float64, bool) {
	v, ok := record[key]
	if !ok {
		return 0, false
	}
	b, ok := v.(bool)
	if !ok {
		return 0, false
	}
	if b {
		return 1, true
	}
	return 0, true
}

func boolFeat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func (p *Pipeline) extractEmail(record map[string]any) Vector {
	email, _ := recordString(record, "email")
	vec := NewVector(email)
	local, domain, ok := SplitEmail(email)
	if !ok {
		// a malformed address still produces a (mostly empty) vector;
		// the pipeline counts it as a missing-values case
		return vec
	}
	vec.Values["localLength"] = float64(len(local))
	vec.Values["domainLength"] = float64(len(domain))

	var digits, specials, nonASCII int
	for _, ch := range local {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case !unicode.IsLetter(ch) && !unicode.IsDigit(ch):
			specials++
		}
		if ch > unicode.MaxASCII {
			nonASCII++
		}
	}
	for _, ch := range domain {
		if ch > unicode.MaxASCII {
			nonASCII++
		}
	}
	vec.Values["digitRatio"] = float64(digits) / float64(len(local))
	vec.Values["specialRatio"] = float64(specials) / float64(len(local))
	vec.Values["consonantRun"] = boolFeat(consonantRunRx.MatchString(strings.ToLower(local)))
	vec.Values["isFreeProvider"] = boolFeat(IsFreeProvider(domain))
	vec.Values["isDisposable"] = boolFeat(IsDisposableDomain(domain))
	vec.Values["isRoleAccount"] = boolFeat(roleAccountRx.MatchString(strings.ToLower(local)))
	vec.Values["hasNonASCII"] = boolFeat(nonASCII > 0)
	vec.Values["subdomainDepth"] = float64(strings.Count(domain, ".") - 1)
	if idx := strings.LastIndex(domain, "."); idx >= 0 {
		vec.Values["tldLength"] = float64(len(domain) - idx - 1)
	}
	return vec
}

func (p *Pipeline) extractCompany(record map[string]any) Vector {
	id, _ := recordString(record, "id")
	if id == "" {
		id, _ = recordString(record, "name")
	}
	vec := NewVector(id)
	if size, ok := recordNumber(record, "companySize"); ok {
		vec.Values["companySize"] = size
	} else if sizeLabel, ok := recordString(record, "companySize"); ok {
		vec.Values["companySize"] = CompanySizeCode(sizeLabel)
	}
	if industry, ok := recordString(record, "industry"); ok {
		vec.Values["industryCode"] = industryCodes[strings.ToLower(industry)]
	}
	if age, ok := recordNumber(record, "domainAge"); ok {
		vec.Values["domainAge"] = age
	}
	if growth, ok := recordNumber(record, "employeeGrowth"); ok {
		vec.Values["employeeGrowth"] = growth
	}
	if v, ok := recordBool(record, "hasWebsite"); ok {
		vec.Values["hasWebsite"] = v
	}
	if v, ok := recordBool(record, "isOEM"); ok {
		vec.Values["isOEM"] = v
	}
	return vec
}

// CompanySizeCode converts a textual company size bucket into
// an approximate headcount so that size can enter numeric models.
func CompanySizeCode(label string) float64 {
	switch strings.ToLower(label) {
	case "micro":
		return 5
	case "small":
		return 30
	case "medium":
		return 150
	case "large":
		return 1000
	case "enterprise":
		return 10000
	}
	return 0
}

func (p *Pipeline) extractCampaign(record map[string]any) Vector {
	id, _ := recordString(record, "id")
	vec := NewVector(id)
	if subject, ok := recordString(record, "subject"); ok {
		vec.Values["subjectLength"] = float64(len([]rune(subject)))
	}
	if v, ok := recordNumber(record, "listSize"); ok {
		vec.Values["listSize"] = v
	}
	if v, ok := recordNumber(record, "ctaCount"); ok {
		vec.Values["ctaCount"] = v
	}
	if v, ok := recordNumber(record, "imageCount"); ok {
		vec.Values["imageCount"] = v
	}
	if v, ok := recordBool(record, "personalized"); ok {
		vec.Values["personalized"] = v
	}
	if v, ok := recordBool(record, "segmented"); ok {
		vec.Values["segmented"] = v
	}
	return vec
}

// extractGeneric handles caller-defined entity types: every defined
// feature is read directly from the record by its name.
func (p *Pipeline) extractGeneric(entityType string, record map[string]any) Vector {
	id, _ := recordString(record, "id")
	vec := NewVector(id)
	p.mu.RLock()
	defs := p.defs[entityType]
	p.mu.RUnlock()
	for _, def := range defs {
		if v, ok := recordNumber(record, def.Name); ok {
			vec.Values[def.Name] = v

		} else if v, ok := recordBool(record, def.Name); ok {
			vec.Values[def.Name] = v
		}
	}
	return vec
}
