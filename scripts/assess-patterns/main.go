// assess-patterns evaluates the DETERMINISTIC tiers of mention handling:
// - Intent patterns: does the rule table classify known phrasings correctly?
// - Fallback extraction: do the sentence templates produce the right titles?
//
// This tool does NOT use an LLM - it runs the exact code paths the bot
// falls back to when every provider is down. A score of 100 means the
// deterministic tier is perfect. This is achievable.
//
// Usage: go run ./scripts/assess-patterns [-fixtures file.json] [-json]
//
// Without -fixtures the built-in suite runs; a fixtures file uses the same
// JSON shape as the Fixtures struct below.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/services"
)

// fastPathThreshold mirrors the classifier's cutoff: a pattern result at or
// above it skips the LLM entirely.
const fastPathThreshold = 0.70

// Fixtures is the input shape for -fixtures files.
type Fixtures struct {
	KnownHandles []string         `json:"known_handles"`
	Intent       []IntentCase     `json:"intent"`
	Extraction   []ExtractionCase `json:"extraction"`
}

// IntentCase checks one text against the pattern matcher.
type IntentCase struct {
	Text         string   `json:"text"`
	WantKind     string   `json:"want_kind"`
	WantTargets  []string `json:"want_targets,omitempty"`
	WantName     string   `json:"want_name,omitempty"`
	WantFastPath bool     `json:"want_fast_path"`
}

// ExtractionCase checks one conversation text against template extraction.
type ExtractionCase struct {
	Text       string   `json:"text"`
	WantTitles []string `json:"want_titles"`
}

type CaseResult struct {
	Text    string `json:"text"`
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

type SectionAssessment struct {
	Cases  []CaseResult `json:"cases"`
	Score  int          `json:"score"` // 0-100
	Issues []string     `json:"issues,omitempty"`
}

// AssessmentResult contains the full assessment output.
type AssessmentResult struct {
	CommitInfo string            `json:"commit_info"`
	Intent     SectionAssessment `json:"intent_assessment"`
	Extraction SectionAssessment `json:"extraction_assessment"`
	FinalScore int               `json:"final_score"`
	Summary    string            `json:"summary"`
}

func main() {
	fixturesPath := flag.String("fixtures", "", "JSON fixtures file (default: built-in suite)")
	jsonOut := flag.Bool("json", false, "Print the full assessment as JSON")
	flag.Parse()

	fixtures := defaultFixtures()
	if *fixturesPath != "" {
		loaded, err := loadFixtures(*fixturesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load fixtures: %v\n", err)
			os.Exit(1)
		}
		fixtures = loaded
	}

	result := AssessmentResult{
		CommitInfo: commitInfo(),
		Intent:     assessIntent(fixtures),
		Extraction: assessExtraction(fixtures),
	}
	result.FinalScore = (result.Intent.Score + result.Extraction.Score) / 2
	result.Summary = fmt.Sprintf("intent %d/100, extraction %d/100",
		result.Intent.Score, result.Extraction.Score)

	if *jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
	} else {
		printSection("Intent patterns", result.Intent)
		printSection("Fallback extraction", result.Extraction)
		fmt.Printf("\nFinal score: %d (%s)\n", result.FinalScore, result.CommitInfo)
	}

	if result.FinalScore < 100 {
		os.Exit(1)
	}
}

func assessIntent(fixtures Fixtures) SectionAssessment {
	matcher := services.NewPatternMatcher("roadcast")

	var section SectionAssessment
	for _, tc := range fixtures.Intent {
		got := matcher.Match(tc.Text, fixtures.KnownHandles)

		var problems []string
		if got.Kind != tc.WantKind {
			problems = append(problems, fmt.Sprintf("kind %q, want %q", got.Kind, tc.WantKind))
		}
		if !equalStrings(got.TargetProjects, tc.WantTargets) {
			problems = append(problems, fmt.Sprintf("targets %v, want %v", got.TargetProjects, tc.WantTargets))
		}
		if got.NewProjectName != tc.WantName {
			problems = append(problems, fmt.Sprintf("name %q, want %q", got.NewProjectName, tc.WantName))
		}
		if fast := got.Confidence >= fastPathThreshold; fast != tc.WantFastPath {
			problems = append(problems, fmt.Sprintf("fast-path %v at confidence %.2f, want %v", fast, got.Confidence, tc.WantFastPath))
		}

		section.Cases = append(section.Cases, CaseResult{
			Text:    tc.Text,
			Passed:  len(problems) == 0,
			Details: strings.Join(problems, "; "),
		})
	}
	finishSection(&section)
	return section
}

func assessExtraction(fixtures Fixtures) SectionAssessment {
	// A gateway that always fails forces Extract down the template path.
	gateway := llm.NewMockGateway()
	gateway.CompleteFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("llm disabled for deterministic assessment")
	}
	extractor := services.NewFeatureExtractor(gateway, zap.NewNop())

	var section SectionAssessment
	for _, tc := range fixtures.Extraction {
		got := extractor.Extract(context.Background(), tc.Text)
		titles := make([]string, 0, len(got))
		for _, feature := range got {
			titles = append(titles, feature.Title)
		}

		var details string
		passed := equalStrings(titles, tc.WantTitles)
		if !passed {
			details = fmt.Sprintf("titles %v, want %v", titles, tc.WantTitles)
		}

		section.Cases = append(section.Cases, CaseResult{
			Text:    tc.Text,
			Passed:  passed,
			Details: details,
		})
	}
	finishSection(&section)
	return section
}

func finishSection(section *SectionAssessment) {
	passed := 0
	for _, result := range section.Cases {
		if result.Passed {
			passed++
		} else {
			section.Issues = append(section.Issues, fmt.Sprintf("%s: %s", result.Text, result.Details))
		}
	}
	if len(section.Cases) > 0 {
		section.Score = passed * 100 / len(section.Cases)
	}
}

func printSection(name string, section SectionAssessment) {
	passed := 0
	for _, result := range section.Cases {
		if result.Passed {
			passed++
		}
	}
	fmt.Printf("%s: %d/%d (score %d)\n", name, passed, len(section.Cases), section.Score)
	for _, result := range section.Cases {
		if result.Passed {
			fmt.Printf("  PASS %s\n", result.Text)
		} else {
			fmt.Printf("  FAIL %s (%s)\n", result.Text, result.Details)
		}
	}
}

func loadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, err
	}
	var fixtures Fixtures
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return Fixtures{}, err
	}
	return fixtures, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func commitInfo() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown commit"
	}
	return "commit " + strings.TrimSpace(string(out))
}

// defaultFixtures covers every rule family in the pattern table and every
// sentence template in the fallback extractor.
func defaultFixtures() Fixtures {
	return Fixtures{
		KnownHandles: []string{"base", "zora"},
		Intent: []IntentCase{
			{Text: "add dark mode to @base", WantKind: models.IntentAddFeature, WantTargets: []string{"base"}, WantFastPath: true},
			{Text: "create a new project called Castoors", WantKind: models.IntentCreateProject, WantName: "castoors", WantFastPath: true},
			{Text: "new project Widget", WantKind: models.IntentCreateProject, WantName: "widget", WantFastPath: true},
			{Text: `set up a project called "MyApp2"`, WantKind: models.IntentCreateProject, WantName: "myapp2", WantFastPath: true},
			{Text: "add a new project for @base", WantKind: models.IntentAddFeature, WantTargets: []string{"base"}, WantFastPath: true},
			{Text: "@roadcast add dark mode to @base", WantKind: models.IntentAddFeature, WantTargets: []string{"base"}, WantFastPath: true},
			{Text: "feature for @castoors: group chats", WantKind: models.IntentAddFeature, WantTargets: []string{"castoors"}, WantFastPath: true},
			{Text: "add dark mode to base", WantKind: models.IntentAddFeature, WantTargets: []string{"base"}, WantFastPath: true},
			{Text: "hey have you seen @base lately", WantKind: models.IntentAddFeature, WantTargets: []string{"base"}},
			{Text: "thoughts on @base and @zora?", WantKind: models.IntentAddFeature, WantTargets: []string{"base", "zora"}},
			{Text: "I want to create a project", WantKind: models.IntentCreateProject},
			{Text: "gm @somerandomuser", WantKind: models.IntentUnknown},
			{Text: "what a lovely day", WantKind: models.IntentUnknown},
		},
		Extraction: []ExtractionCase{
			{Text: "I wish there was dark mode. Also fix the login bug.", WantTitles: []string{"Add dark mode", "Fix login bug"}},
			{Text: "add polls to @base.", WantTitles: []string{"Add polls"}},
			{Text: "gm! Also fix the login bug. thanks for building this", WantTitles: []string{"Fix login bug"}},
			{Text: "implement a CSV export please", WantTitles: []string{"Add CSV export please"}},
			{Text: "the search doesn't work on mobile.", WantTitles: []string{"Fix search"}},
			{Text: "improve the feed ranking", WantTitles: []string{"Improve feed ranking"}},
			{Text: "support for GIFs in chat", WantTitles: []string{"Add support for GIFs in chat"}},
			{Text: "ability to mute channels", WantTitles: []string{"Add ability to mute channels"}},
			{Text: "add polls would be great!", WantTitles: []string{"Add polls"}},
			{Text: "add dark mode. Add dark mode!", WantTitles: []string{"Add dark mode"}},
			{Text: "just vibing in this channel today", WantTitles: []string{}},
		},
	}
}
