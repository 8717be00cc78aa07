package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/timujinne/email-checker-sub004/cnf"
	"github.com/timujinne/email-checker-sub004/scoring"
)

const (
	errColor = color.FgHiRed
)

// runActionScore scores a plain file of addresses (one per line)
// and prints a per-address result plus a tier summary.
func runActionScore(conf *cnf.Conf, srcPath, format string) {
	eng, err := NewEngine(conf)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToInitEngine)
	}
	defer eng.Close()

	file, err := os.Open(srcPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoreFailed)
	}
	defer file.Close()

	var addresses []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		addr := strings.TrimSpace(scanner.Text())
		if addr == "" || strings.HasPrefix(addr, "#") {
			continue
		}
		addresses = append(addresses, addr)
	}
	if err := scanner.Err(); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoreFailed)
	}

	bar := progressbar.Default(int64(len(addresses)), "scoring addresses")
	results := make([]scoring.ScoreResult, 0, len(addresses))
	tierCounts := make(map[string]int)
	for _, addr := range addresses {
		result, err := eng.ScoreEmail(addr)
		if err != nil {
			log.Error().Err(err).Str("address", addr).Msg("failed to score address")
			bar.Add(1)
			continue
		}
		results = append(results, result)
		tierCounts[result.Tier]++
		bar.Add(1)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoreFailed)
		}
		return
	}

	goodColor := color.New(color.FgGreen).SprintFunc()
	badColor := color.New(color.FgRed).SprintFunc()
	for _, result := range results {
		line := fmt.Sprintf("%-45s %6.1f  %s", result.EntityID, result.Total, result.Tier)
		switch result.Tier {
		case "excellent", "good":
			fmt.Println(goodColor(line))
		case "poor", "invalid":
			fmt.Println(badColor(line))
		default:
			fmt.Println(line)
		}
	}
	fmt.Println()
	titleColor := color.New(color.FgHiMagenta).SprintFunc()
	fmt.Printf("%s (%d addresses):\n", titleColor("Summary"), len(results))
	for _, tier := range []string{"excellent", "good", "fair", "poor", "invalid"} {
		if tierCounts[tier] > 0 {
			fmt.Printf("  %-10s %d\n", tier, tierCounts[tier])
		}
	}
}
