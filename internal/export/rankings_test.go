package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scoring"
)

func TestRowFromProfile(t *testing.T) {
	score, suitability, rank := 8.5, 0.5, 1
	doc := profile.NewDocument()
	doc.BasicInfo.CurrentCompany = "Stripe"
	doc.BasicInfo.Followers = 12000
	doc.Experience = []profile.Experience{{Title: "Staff Engineer", Company: "Stripe"}}

	row := RowFromProfile(&profile.Profile{
		Name:             "Jane",
		FinalScore:       &score,
		Rank:             &rank,
		SuitabilityScore: &suitability,
		ReviewStatus:     profile.ReviewCandidate,
		Document:         doc,
		Assessment:       map[string]any{"likelihood": "high"},
	})

	if row.Rank != 1 || row.FinalScore != 8.5 || row.Likelihood != "high" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Seniority != scoring.TierSenior || row.CompanyTier != scoring.CompanyTierAMinus {
		t.Fatalf("unexpected heuristics: %+v", row)
	}
	if row.ReachLabel != "Notable Influence" {
		t.Fatalf("unexpected reach label: %s", row.ReachLabel)
	}
}

func TestRowFromProfileWithoutDocument(t *testing.T) {
	row := RowFromProfile(&profile.Profile{Name: "Empty"})
	if row.CompanyTier != scoring.CompanyTierD || row.Seniority != "" || row.Rank != 0 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestRankingsWritesWorkbook(t *testing.T) {
	suitability := 0.83
	rows := []RankingRow{
		{Rank: 1, Name: "Jane", Email: "jane@example.com", FinalScore: 9, Seniority: scoring.TierVP, CompanyTier: scoring.CompanyTierA, Suitability: &suitability, ReviewStatus: profile.ReviewCandidate},
		{Rank: 2, Name: "John", Email: "john@example.com", FinalScore: 6.5, CompanyTier: scoring.CompanyTierD, ReviewStatus: profile.ReviewUnknown},
	}

	path, err := Rankings(rows, filepath.Join(t.TempDir(), "rankings"))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(path, ".xlsx") {
		t.Fatalf("expected .xlsx suffix, got %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != summarySheet || sheets[1] != rankingsSheet {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	cases := map[string]string{
		"A1": "Rank",
		"B2": "Jane",
		"I2": "0.83",
		"J2": "candidate",
		"B3": "John",
		"I3": "",
	}
	for cell, want := range cases {
		got, err := f.GetCellValue(rankingsSheet, cell)
		if err != nil {
			t.Fatalf("read %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s = %q, want %q", cell, got, want)
		}
	}

	if got, _ := f.GetCellValue(summarySheet, "B4"); got != "2" {
		t.Fatalf("expected ranked profile count 2, got %q", got)
	}
}
