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

package forecast

import (
	"math"
	"strings"
)

// industryBenchmarks are baseline open/click/conversion rates per
// industry, applied before content adjustments.
var industryBenchmarks = map[string]CampaignRates{
	"software":      {OpenRate: 0.22, ClickRate: 0.032, ConversionRate: 0.012},
	"finance":       {OpenRate: 0.24, ClickRate: 0.028, ConversionRate: 0.010},
	"ecommerce":     {OpenRate: 0.18, ClickRate: 0.025, ConversionRate: 0.015},
	"healthcare":    {OpenRate: 0.23, ClickRate: 0.030, ConversionRate: 0.009},
	"manufacturing": {OpenRate: 0.21, ClickRate: 0.027, ConversionRate: 0.008},
	"education":     {OpenRate: 0.26, ClickRate: 0.035, ConversionRate: 0.010},
}

var defaultBenchmark = CampaignRates{OpenRate: 0.21, ClickRate: 0.028, ConversionRate: 0.011}

// CampaignRates holds the three funnel rates a campaign prediction
// is expressed in.
type CampaignRates struct {
	OpenRate       float64 `json:"openRate"`
	ClickRate      float64 `json:"clickRate"`
	ConversionRate float64 `json:"conversionRate"`
}

// CampaignContent describes the creative under evaluation.
type CampaignContent struct {
	Industry       string  `json:"industry"`
	SubjectLength  int     `json:"subjectLength"`
	Personalized   bool    `json:"personalized"`
	CTACount       int     `json:"ctaCount"`
	ImageCount     int     `json:"imageCount"`
	Segmented      bool    `json:"segmented"`
	Recipients     int     `json:"recipients"`
	RevenuePerConv float64 `json:"revenuePerConversion"`
	CostPerEmail   float64 `json:"costPerEmail"`
}

// CampaignPrediction is the full expected outcome of a send.
type CampaignPrediction struct {
	Rates             CampaignRates `json:"rates"`
	ContentMultiplier float64       `json:"contentMultiplier"`
	ExpectedOpens     int           `json:"expectedOpens"`
	ExpectedClicks    int           `json:"expectedClicks"`
	ExpectedConvs     int           `json:"expectedConversions"`
	ExpectedRevenue   float64       `json:"expectedRevenue"`
	ExpectedCost      float64       `json:"expectedCost"`
	ROI               float64       `json:"roi"`
	Adjustments       []string      `json:"adjustments"`
}

// contentMultiplier scores the creative against known engagement
// drivers. Each rule contributes a multiplicative factor and a
// human-readable note.
func contentMultiplier(content CampaignContent) (float64, []string) {
	mult := 1.0
	var notes []string
	switch {
	case content.SubjectLength >= 30 && content.SubjectLength <= 60:
		mult *= 1.1
		notes = append(notes, "subject length in optimal 30-60 range")
	case content.SubjectLength > 80:
		mult *= 0.85
		notes = append(notes, "subject longer than 80 characters hurts opens")
	}
	if content.Personalized {
		mult *= 1.2
		notes = append(notes, "personalization lifts engagement")
	}
	switch {
	case content.CTACount == 1:
		mult *= 1.1
		notes = append(notes, "single clear call to action")
	case content.CTACount > 3:
		mult *= 0.9
		notes = append(notes, "too many calls to action dilute clicks")
	}
	switch {
	case content.ImageCount >= 1 && content.ImageCount <= 3:
		mult *= 1.05
		notes = append(notes, "moderate image use")
	case content.ImageCount > 5:
		mult *= 0.9
		notes = append(notes, "image-heavy content risks clipping and spam filters")
	}
	if content.Segmented {
		mult *= 1.15
		notes = append(notes, "segmented audience")
	}
	return mult, notes
}

// PredictCampaign applies the industry benchmark and the content
// multiplier, then derives volume outcomes and ROI.
func PredictCampaign(content CampaignContent) CampaignPrediction {
	benchmark, ok := industryBenchmarks[strings.ToLower(content.Industry)]
	if !ok {
		benchmark = defaultBenchmark
	}
	mult, notes := contentMultiplier(content)

	rates := CampaignRates{
		OpenRate:       math.Min(benchmark.OpenRate*mult, 1),
		ClickRate:      math.Min(benchmark.ClickRate*mult, 1),
		ConversionRate: math.Min(benchmark.ConversionRate*mult, 1),
	}
	pred := CampaignPrediction{
		Rates:             rates,
		ContentMultiplier: mult,
		ExpectedOpens:     int(rates.OpenRate * float64(content.Recipients)),
		ExpectedClicks:    int(rates.ClickRate * float64(content.Recipients)),
		ExpectedConvs:     int(rates.ConversionRate * float64(content.Recipients)),
		Adjustments:       notes,
	}
	pred.ExpectedRevenue = float64(pred.ExpectedConvs) * content.RevenuePerConv
	pred.ExpectedCost = float64(content.Recipients) * content.CostPerEmail
	if pred.ExpectedCost > 0 {
		pred.ROI = (pred.ExpectedRevenue - pred.ExpectedCost) / pred.ExpectedCost
	}
	return pred
}

// significanceThreshold is the two-sided 95% normal cutoff.
const significanceThreshold = 1.96

// ABTestResult is the outcome of comparing two campaign arms.
type ABTestResult struct {
	ControlRate    float64 `json:"controlRate"`
	TreatmentRate  float64 `json:"treatmentRate"`
	ZScore         float64 `json:"zScore"`
	Significant    bool    `json:"significant"`
	Winner         string  `json:"winner"`
	Recommendation string  `json:"recommendation"`
}

// EvaluateABTest compares two arms with a pooled-variance z-test.
// Both arms share the same per-arm sample size.
func EvaluateABTest(controlConvs, treatmentConvs, sampleSize int) ABTestResult {
	result := ABTestResult{}
	if sampleSize <= 0 {
		result.Recommendation = "collect samples before evaluating"
		return result
	}
	n := float64(sampleSize)
	result.ControlRate = float64(controlConvs) / n
	result.TreatmentRate = float64(treatmentConvs) / n

	pooled := (float64(controlConvs) + float64(treatmentConvs)) / (2 * n)
	se := math.Sqrt(pooled * (1 - pooled) * (2 / n))
	if se == 0 {
		result.Recommendation = "arms are identical, continue testing"
		return result
	}
	result.ZScore = math.Abs(result.TreatmentRate-result.ControlRate) / se
	if result.ZScore > significanceThreshold {
		result.Significant = true
		if result.TreatmentRate > result.ControlRate {
			result.Winner = "treatment"
		} else {
			result.Winner = "control"
		}
		result.Recommendation = "roll out the " + result.Winner + " variant"
	} else {
		result.Recommendation = "difference not significant, continue testing"
	}
	return result
}
