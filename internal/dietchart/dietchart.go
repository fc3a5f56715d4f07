// Package dietchart drafts daily meal plans from patient records. The
// draft text format is three blank-line separated sections, one per meal
// slot, with "- " ingredient lines and an optional "Instructions:" line.
package dietchart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trayline/internal/domain"
)

// Generator produces draft text from a prompt. Implementations decide
// where the text comes from.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Prompt describes a patient for the generator.
func Prompt(p domain.Patient) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a daily diet chart for a hospital patient.\n")
	fmt.Fprintf(&b, "Patient: %s, age %d, gender %s.\n", p.Name, p.Age, p.Gender)
	if len(p.Diseases) > 0 {
		fmt.Fprintf(&b, "Conditions: %s.\n", strings.Join(p.Diseases, ", "))
	}
	if len(p.Allergies) > 0 {
		fmt.Fprintf(&b, "Allergies to avoid: %s.\n", strings.Join(p.Allergies, ", "))
	}
	b.WriteString("Produce three sections titled Morning Meal, Evening Meal and Night Meal.\n")
	b.WriteString("List ingredients as lines starting with \"- \" and add an Instructions: line per section.\n")
	return b.String()
}

// Chart holds the three parsed meal slots of a draft.
type Chart struct {
	Morning domain.Meal
	Evening domain.Meal
	Night   domain.Meal
}

// Parse splits draft text into the three meal slots. Sections are
// separated by blank lines and recognized by their title line; unknown
// sections are ignored.
func Parse(text string) Chart {
	var chart Chart
	for _, section := range strings.Split(text, "\n\n") {
		lines := strings.Split(section, "\n")
		var target *domain.Meal
		for _, line := range lines {
			if strings.Contains(line, "Morning Meal") {
				target = &chart.Morning
				break
			}
			if strings.Contains(line, "Evening Meal") {
				target = &chart.Evening
				break
			}
			if strings.Contains(line, "Night Meal") {
				target = &chart.Night
				break
			}
		}
		if target == nil {
			continue
		}
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "- ") {
				target.Ingredients = append(target.Ingredients, strings.TrimPrefix(line, "- "))
			} else if strings.HasPrefix(line, "Instructions:") {
				target.Instructions = strings.TrimSpace(strings.TrimPrefix(line, "Instructions:"))
			}
		}
	}
	return chart
}

// HTTPGenerator calls a text completion endpoint. The endpoint receives
// {"model":..., "prompt":...} and answers {"text":...}.
type HTTPGenerator struct {
	URL    string
	Model  string
	Client *http.Client
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.URL == "" {
		return "", fmt.Errorf("diet chart generator url is not configured")
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	body, err := json.Marshal(map[string]string{
		"model":  g.Model,
		"prompt": prompt,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("diet chart generator returned status %d", resp.StatusCode)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generator response: %w", err)
	}
	return out.Text, nil
}
