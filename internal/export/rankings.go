package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scoring"
)

const (
	summarySheet  = "Summary"
	rankingsSheet = "Rankings"
)

// RankingRow is one ranked profile as shown in tables and workbooks.
type RankingRow struct {
	Rank         int
	Name         string
	Email        string
	Reference    string
	FinalScore   float64
	Seniority    string
	ReachLabel   string
	CompanyTier  scoring.CompanyTier
	Suitability  *float64
	ReviewStatus profile.ReviewStatus
	Likelihood   string
}

var rankingHeaders = []string{
	"Rank", "Name", "Email", "Profile", "Final Score", "Seniority", "Social Reach",
	"Company Tier", "Suitability", "Review", "Likelihood",
}

// RowFromProfile derives a ranking row from a stored profile. Heuristic
// columns are recomputed from the document.
func RowFromProfile(p *profile.Profile) RankingRow {
	row := RankingRow{
		Name:         p.Name,
		Email:        p.Email,
		Reference:    p.Reference,
		Suitability:  p.SuitabilityScore,
		ReviewStatus: p.ReviewStatus,
		CompanyTier:  scoring.CompanyTierD,
	}
	if p.Rank != nil {
		row.Rank = *p.Rank
	}
	if p.FinalScore != nil {
		row.FinalScore = *p.FinalScore
	}
	if likelihood, ok := p.Assessment["likelihood"].(string); ok {
		row.Likelihood = likelihood
	}

	if doc := p.Document; doc != nil {
		title, company := doc.CurrentPosition()
		row.Seniority = scoring.ClassifySeniority(title, company).Tier
		row.ReachLabel = scoring.ScoreReach(doc.BasicInfo.Followers, doc.BasicInfo.Connections).Label
		row.CompanyTier = scoring.ResolveCompanyTier(company)
	}
	return row
}

// Rankings writes rows into a workbook with a summary sheet and a rankings
// sheet. The .xlsx suffix is added when missing; the final path is returned.
func Rankings(rows []RankingRow, path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(rankingsSheet); err != nil {
		return "", err
	}

	if err := writeSummary(f, rows); err != nil {
		return "", fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeRankings(f, rows); err != nil {
		return "", fmt.Errorf("rankings sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}
	return path, nil
}

func writeSummary(f *excelize.File, rows []RankingRow) error {
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	f.SetColWidth(summarySheet, "A", "A", 28)
	f.SetColWidth(summarySheet, "B", "B", 24)

	f.SetCellValue(summarySheet, "A1", "O-1 Screening Rankings")
	f.SetCellStyle(summarySheet, "A1", "B1", titleStyle)

	var total, candidates float64
	for _, r := range rows {
		total += r.FinalScore
		if r.ReviewStatus == profile.ReviewCandidate {
			candidates++
		}
	}
	average := 0.0
	if len(rows) > 0 {
		average = total / float64(len(rows))
	}

	stats := []struct {
		label string
		value any
	}{
		{"Generated:", time.Now().Format("2006-01-02 15:04:05")},
		{"Ranked profiles:", len(rows)},
		{"Average score:", fmt.Sprintf("%.2f", average)},
		{"Candidates:", int(candidates)},
	}
	if len(rows) > 0 {
		stats = append(stats, struct {
			label string
			value any
		}{"Top profile:", rows[0].Name})
	}

	for i, s := range stats {
		row := i + 3
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), s.label)
		f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), s.value)
	}
	return nil
}

func writeRankings(f *excelize.File, rows []RankingRow) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	for i, h := range rankingHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(rankingsSheet, cell, h)
	}
	last, _ := excelize.ColumnNumberToName(len(rankingHeaders))
	f.SetCellStyle(rankingsSheet, "A1", last+"1", headerStyle)
	f.SetColWidth(rankingsSheet, "B", "D", 30)
	f.SetColWidth(rankingsSheet, "E", last, 14)

	for i, r := range rows {
		suitability := ""
		if r.Suitability != nil {
			suitability = fmt.Sprintf("%.2f", *r.Suitability)
		}
		values := []any{
			r.Rank, r.Name, r.Email, r.Reference, r.FinalScore, r.Seniority, r.ReachLabel,
			string(r.CompanyTier), suitability, string(r.ReviewStatus), r.Likelihood,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			f.SetCellValue(rankingsSheet, cell, v)
		}
	}
	return nil
}
