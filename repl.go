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

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/timujinne/email-checker-sub004/cnf"
	"github.com/timujinne/email-checker-sub004/feats"
	"github.com/timujinne/email-checker-sub004/scoring"
)

func ensureConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(homeDir, ".config", "email-checker")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

// parseCompanySize accepts either a plain headcount or one of the
// size bucket labels ("micro" ... "enterprise").
func parseCompanySize(arg string) (float64, error) {
	if size, err := strconv.ParseFloat(arg, 64); err == nil {
		return size, nil
	}
	if size := feats.CompanySizeCode(arg); size > 0 {
		return size, nil
	}
	return 0, fmt.Errorf("invalid company size %q (use a number or micro/small/medium/large/enterprise)", arg)
}

func runActionREPL(conf *cnf.Conf) {
	eng, err := NewEngine(conf)
	if err != nil {
		fmt.Printf("Error initializing engine: %v\n", err)
		os.Exit(exitErrorFailedToInitEngine)
	}
	defer eng.Close()

	titleColor := color.New(color.FgHiMagenta).SprintFunc()
	greenColor := color.New(color.FgGreen).SprintFunc()
	redColor := color.New(color.FgRed).SprintFunc()

	leadProfile := "b2b-saas"

	fmt.Println("Email Quality Scoring Console")
	fmt.Println("Commands:")
	fmt.Println("  <email address>        - Score an address")
	fmt.Println("  lead <industry> <size> <country>")
	fmt.Println("                         - Score a lead against the current profile")
	fmt.Println("  set profile <name>     - Set the lead scoring profile")
	fmt.Println("  setup                  - view current settings")
	fmt.Println("  exit                   - Exit REPL")
	fmt.Println()

	var historyFile string
	historyDir, err := ensureConfigDir()
	if err != nil {
		log.Error().Err(err).Msg("failed to determine user config directory - falling back to session-local history")

	} else {
		historyFile = filepath.Join(historyDir, "score-history.txt")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      color.New(color.FgHiGreen).Sprintf("/score> "),
		HistoryFile: historyFile,
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		os.Exit(exitErrorREPLReading)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nemail-checker out!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		input := strings.TrimSpace(line)

		if input == "" {
			continue
		}
		if input == "exit" {
			fmt.Println("Goodbye!")
			break
		}

		if strings.HasPrefix(input, "set ") {
			parsedInput := strings.Fields(input)[1:]
			switch parsedInput[0] {
			case "profile":
				if len(parsedInput) == 2 {
					leadProfile = parsedInput[1]

				} else {
					fmt.Println("Usage: set profile <name>")
				}
			default:
				fmt.Println("Unknown 'set' command")
			}
			continue

		} else if input == "setup" {
			fmt.Printf("%s:\t%s\n", titleColor("Lead profile"), leadProfile)
			fmt.Printf("%s:\t%s\n", titleColor("Profiles"), strings.Join(eng.Leads.Profiles(), ", "))
			continue

		} else if strings.HasPrefix(input, "lead ") {
			parts := strings.Fields(input)[1:]
			if len(parts) != 3 {
				fmt.Println("Usage: lead <industry> <size> <country>")
				continue
			}
			size, err := parseCompanySize(parts[1])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			result, err := eng.Leads.Score(leadProfile, scoring.Lead{
				ID:          strings.Join(parts, "/"),
				Industry:    parts[0],
				CompanySize: size,
				Country:     parts[2],
			})
			if err != nil {
				fmt.Printf("Error scoring lead: %v\n", err)
				continue
			}
			printScoreResult(result, titleColor, greenColor, redColor)
			continue
		}

		// treat as an email address
		result, err := eng.ScoreEmail(input)
		if err != nil {
			fmt.Printf("Error scoring address: %v\n", err)
			continue
		}
		printScoreResult(result, titleColor, greenColor, redColor)
	}
}

func printScoreResult(result scoring.ScoreResult, titleColor, greenColor, redColor func(...any) string) {
	var tier string
	switch result.Tier {
	case "excellent", "good", "platinum", "gold":
		tier = greenColor(result.Tier)
	case "poor", "invalid", "unqualified":
		tier = redColor(result.Tier)
	default:
		tier = result.Tier
	}
	fmt.Printf("%s:\t%.1f (%s)\n", titleColor("Score"), result.Total, tier)

	names := make([]string, 0, len(result.Factors))
	for name := range result.Factors {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("%s:\n", titleColor("Factors"))
	for _, name := range names {
		fmt.Printf("  %-15s %.2f\n", name, result.Factors[name])
	}
	for _, reason := range result.Reasons {
		fmt.Printf("  - %s\n", reason)
	}
	fmt.Printf("%s:\t%s\n\n", titleColor("Action"), result.Recommendation)
}
