// Package recommend ranks study articles against a candidate's weak scoring
// areas and the station they practiced on.
package recommend

import (
	"sort"
	"strings"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

const (
	// weakThreshold is the proficiency bar; categories scoring below it are
	// targeted for recommendations.
	weakThreshold = 75
	// maxWeakAreas is how many weak areas contribute relevance points.
	maxWeakAreas = 3
	// maxRecommendations is the size of the returned article list.
	maxRecommendations = 3
	// baseWeight and rankDecay shape the per-rank contribution: 15, 12, 9.
	baseWeight = 15
	rankDecay  = 3
	// stationBonus is added for each matching station characteristic.
	stationBonus = 8
)

// categoryKeywords maps each score category to the substrings that mark an
// article as relevant to it. Matching is case-insensitive over the article's
// category, tags and title.
var categoryKeywords = map[string][]string{
	domain.CategoryStructure:       {"structure", "star", "framework", "organis", "organiz"},
	domain.CategoryCommunication:   {"communicat", "clarity", "articulat", "speaking", "delivery"},
	domain.CategoryEmpathy:         {"empath", "compassion", "listening", "patient"},
	domain.CategoryEthics:          {"ethic", "dilemma", "consent", "confidential"},
	domain.CategoryProfessionalism: {"professional", "integrity", "conduct", "boundaries"},
	domain.CategoryMotivation:      {"motivation", "insight", "career", "reflection"},
	domain.CategoryTeamwork:        {"teamwork", "team", "collaborat", "conflict"},
}

// rolePlayPatterns match articles useful for role-play stations.
var rolePlayPatterns = []string{"interpersonal", "communicat", "patient", "role play", "role-play", "empath"}

// graphDataPatterns match articles useful for data-interpretation stations.
var graphDataPatterns = []string{"data", "statistic", "graph", "chart", "interpret"}

type weakArea struct {
	category string
	score    int
}

// Recommend returns up to three article ids ranked by relevance to the
// candidate's weak areas, biased by station context when available. When
// fewer than three articles score above zero, the list is padded with the
// remaining catalog in stable order.
func Recommend(scores domain.ScoreSet, catalog []domain.Article, station *domain.Station) []string {
	weak := weakAreas(scores)

	type ranked struct {
		index int
		score int
	}
	rankings := make([]ranked, 0, len(catalog))
	for i := range catalog {
		rankings = append(rankings, ranked{index: i, score: relevance(&catalog[i], weak, station)})
	}

	// Stable sort keeps catalog order as the tie-breaker.
	sort.SliceStable(rankings, func(a, b int) bool {
		return rankings[a].score > rankings[b].score
	})

	chosen := make([]string, 0, maxRecommendations)
	picked := make(map[int]bool, maxRecommendations)
	for _, r := range rankings {
		if len(chosen) == maxRecommendations || r.score <= 0 {
			break
		}
		chosen = append(chosen, catalog[r.index].ID)
		picked[r.index] = true
	}

	// Pad with the remaining catalog so the user always gets suggestions.
	for i := range catalog {
		if len(chosen) == maxRecommendations {
			break
		}
		if !picked[i] {
			chosen = append(chosen, catalog[i].ID)
			picked[i] = true
		}
	}
	return chosen
}

// weakAreas returns every non-Overall category under the proficiency
// threshold, weakest first, capped at maxWeakAreas.
func weakAreas(scores domain.ScoreSet) []weakArea {
	areas := make([]weakArea, 0, len(domain.Categories))
	for _, category := range domain.Categories {
		if category == domain.CategoryOverall {
			continue
		}
		if score, ok := scores[category]; ok && score < weakThreshold {
			areas = append(areas, weakArea{category: category, score: score})
		}
	}
	sort.SliceStable(areas, func(a, b int) bool {
		return areas[a].score < areas[b].score
	})
	if len(areas) > maxWeakAreas {
		areas = areas[:maxWeakAreas]
	}
	return areas
}

func relevance(article *domain.Article, weak []weakArea, station *domain.Station) int {
	haystack := articleText(article)

	score := 0
	for rank, area := range weak {
		if matchesAny(haystack, categoryKeywords[area.category]) {
			score += baseWeight - rankDecay*rank
		}
	}

	if station != nil {
		tags := strings.ToLower(strings.Join(article.Tags, " "))
		if station.RolePlay && matchesAny(tags, rolePlayPatterns) {
			score += stationBonus
		}
		if station.GraphData && matchesAny(tags, graphDataPatterns) {
			score += stationBonus
		}
	}
	return score
}

func articleText(article *domain.Article) string {
	parts := make([]string, 0, len(article.Tags)+2)
	parts = append(parts, article.Category, article.Title)
	parts = append(parts, article.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

func matchesAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
