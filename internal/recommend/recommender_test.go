package recommend

import (
	"reflect"
	"testing"

	"github.com/mmiprep/assessment-worker/internal/domain"
)

func scoresWith(overrides map[string]int) domain.ScoreSet {
	scores := domain.ScoreSet{}
	for _, c := range domain.Categories {
		scores[c] = 85
	}
	for c, v := range overrides {
		scores[c] = v
	}
	return scores
}

func testCatalog() []domain.Article {
	return []domain.Article{
		{ID: "art-star", Title: "Answering with the STAR Method", Category: "Structure", Tags: []string{"star", "framework"}},
		{ID: "art-ethics", Title: "Navigating Ethical Dilemmas", Category: "Ethics", Tags: []string{"ethics", "consent"}},
		{ID: "art-empathy", Title: "Active Listening for Role Plays", Category: "Empathy", Tags: []string{"empathy", "patient", "listening"}},
		{ID: "art-data", Title: "Reading Graphs Under Pressure", Category: "Data", Tags: []string{"data", "graph", "interpretation"}},
		{ID: "art-general", Title: "Interview Day Checklist", Category: "Preparation", Tags: []string{"logistics"}},
	}
}

func TestRecommend_MatchesWeakestArea(t *testing.T) {
	scores := scoresWith(map[string]int{domain.CategoryStructure: 40})

	got := Recommend(scores, testCatalog(), nil)

	if len(got) != 3 {
		t.Fatalf("expected 3 recommendations, got %v", got)
	}
	if got[0] != "art-star" {
		t.Errorf("expected the structure article ranked first, got %v", got)
	}
}

func TestRecommend_WeakestAreaOutranksLessWeak(t *testing.T) {
	scores := scoresWith(map[string]int{
		domain.CategoryStructure: 70,
		domain.CategoryEthics:    30,
	})

	got := Recommend(scores, testCatalog(), nil)

	if got[0] != "art-ethics" {
		t.Errorf("expected the ethics article first for the lowest score, got %v", got)
	}
}

func TestRecommend_NoDuplicatesAndAtMostThree(t *testing.T) {
	scores := scoresWith(map[string]int{
		domain.CategoryStructure:     10,
		domain.CategoryEthics:        20,
		domain.CategoryEmpathy:       30,
		domain.CategoryCommunication: 40,
	})

	got := Recommend(scores, testCatalog(), nil)

	if len(got) > 3 {
		t.Fatalf("expected at most 3 recommendations, got %v", got)
	}
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Errorf("duplicate recommendation %s in %v", id, got)
		}
		seen[id] = true
	}
}

func TestRecommend_StrongScoresPadFromCatalogOrder(t *testing.T) {
	got := Recommend(scoresWith(nil), testCatalog(), nil)

	want := []string{"art-star", "art-ethics", "art-empathy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected catalog-order padding %v, got %v", want, got)
	}
}

func TestRecommend_RolePlayStationBoostsInterpersonalArticles(t *testing.T) {
	// No weak areas, so the station bonus is the only relevance signal.
	station := &domain.Station{ID: "s1", RolePlay: true}

	got := Recommend(scoresWith(nil), testCatalog(), station)

	if got[0] != "art-empathy" {
		t.Errorf("expected role-play bonus to rank the empathy article first, got %v", got)
	}
}

func TestRecommend_GraphDataStationBoostsDataArticles(t *testing.T) {
	station := &domain.Station{ID: "s2", GraphData: true}

	got := Recommend(scoresWith(nil), testCatalog(), station)

	if got[0] != "art-data" {
		t.Errorf("expected graph-data bonus to rank the data article first, got %v", got)
	}
}

func TestRecommend_OverallNeverCountsAsWeak(t *testing.T) {
	// Only Overall is under the threshold, so no article gets relevance
	// points and the list is pure catalog-order padding.
	scores := scoresWith(map[string]int{domain.CategoryOverall: 10})

	got := Recommend(scores, testCatalog(), nil)

	want := []string{"art-star", "art-ethics", "art-empathy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected padding only, got %v", got)
	}
}

func TestRecommend_SmallCatalog(t *testing.T) {
	catalog := []domain.Article{{ID: "only", Title: "The Only Article", Category: "General"}}

	got := Recommend(scoresWith(map[string]int{domain.CategoryStructure: 10}), catalog, nil)

	if !reflect.DeepEqual(got, []string{"only"}) {
		t.Errorf("expected the single article, got %v", got)
	}
}

func TestRecommend_EmptyCatalog(t *testing.T) {
	got := Recommend(scoresWith(nil), nil, nil)

	if len(got) != 0 {
		t.Errorf("expected no recommendations from an empty catalog, got %v", got)
	}
}

func TestWeakAreas_CapAndOrder(t *testing.T) {
	scores := scoresWith(map[string]int{
		domain.CategoryTeamwork:      50,
		domain.CategoryEthics:        20,
		domain.CategoryStructure:     40,
		domain.CategoryCommunication: 60,
	})

	areas := weakAreas(scores)

	if len(areas) != 3 {
		t.Fatalf("expected weak areas capped at 3, got %d", len(areas))
	}
	want := []string{domain.CategoryEthics, domain.CategoryStructure, domain.CategoryTeamwork}
	for i, area := range areas {
		if area.category != want[i] {
			t.Errorf("expected %s at rank %d, got %s", want[i], i, area.category)
		}
	}
}
