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

package anomaly

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/timujinne/email-checker-sub004/feats"
)

// Pattern checks run on the raw entity identifier (an email address
// for email entities) regardless of which statistical algorithm the
// caller picked. They catch signatures statistics cannot see in a
// single batch: seeded spam traps, burner domains, machine-generated
// locals and look-alike domains.

type patternHit struct {
	reason      string
	score       float64
	anomalyType string
}

var spamTrapLocals = map[string]bool{
	"test":     true,
	"spamtrap": true,
	"trap":     true,
	"seed":     true,
	"honeypot": true,
}

var spamTrapDomains = map[string]bool{
	"example.com": true,
	"example.org": true,
	"example.net": true,
}

// majorProviders is the typo-squat reference set: a domain within
// edit distance 1-2 of one of these, without being one, is almost
// certainly a look-alike.
var majorProviders = []string{
	"gmail.com",
	"yahoo.com",
	"outlook.com",
	"hotmail.com",
	"icloud.com",
	"aol.com",
	"protonmail.com",
}

var botLocalRx = regexp.MustCompile(`^[a-z]{1,3}\d{5,}$|^user\d+$|^[0-9a-f]{16,}$`)

func checkPatterns(entityID string) []patternHit {
	local, domain, ok := feats.SplitEmail(entityID)
	if !ok {
		return nil
	}
	local = strings.ToLower(local)
	domain = strings.ToLower(domain)
	var hits []patternHit

	if spamTrapLocals[local] || spamTrapDomains[domain] {
		hits = append(hits, patternHit{
			reason:      "address matches known spam trap pattern",
			score:       0.8,
			anomalyType: TypeSpamTrap,
		})
	}
	if feats.IsDisposableDomain(domain) {
		hits = append(hits, patternHit{
			reason:      fmt.Sprintf("domain %s is a disposable email provider", domain),
			score:       0.8,
			anomalyType: TypeDisposable,
		})
	}
	if botLocalRx.MatchString(local) {
		hits = append(hits, patternHit{
			reason:      "local part looks machine-generated",
			score:       0.6,
			anomalyType: TypeBotPattern,
		})
	}
	for _, r := range entityID {
		if r > 127 {
			hits = append(hits, patternHit{
				reason:      "address contains non-ASCII characters",
				score:       0.5,
				anomalyType: TypeNonASCII,
			})
			break
		}
	}
	if squatted := typoSquatTarget(domain); squatted != "" {
		hits = append(hits, patternHit{
			reason:      fmt.Sprintf("domain %s is a near-match of %s", domain, squatted),
			score:       0.5,
			anomalyType: TypeTypoSquat,
		})
	}
	return hits
}

// typoSquatTarget returns the provider the domain imitates, or ""
// when the domain is either a provider itself or unrelated to all
// of them.
func typoSquatTarget(domain string) string {
	domain = strings.ToLower(domain)
	for _, provider := range majorProviders {
		if domain == provider {
			return ""
		}
	}
	for _, provider := range majorProviders {
		dist := levenshtein.ComputeDistance(domain, provider)
		if dist >= 1 && dist <= 2 {
			return provider
		}
	}
	return ""
}
