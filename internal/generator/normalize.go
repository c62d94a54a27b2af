package generator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tendly/social-pipeline/internal/model"
)

// budgetPrinter renders grouped numbers ("1,234,567") for budget strings.
var budgetPrinter = message.NewPrinter(language.English)

// BuildSummary builds the canonical intermediate representation handed to
// the summarizer. This is the single place external-format quirks (currency
// formatting, date types) are absorbed; everything downstream sees plain
// strings.
func BuildSummary(t model.Tender) model.TenderSummary {
	s := model.TenderSummary{
		Title:        t.Title,
		Organization: t.Organization,
		Budget:       t.Budget,
		Category:     t.Category,
		Description:  t.Description,
	}
	if s.Budget == "" && t.EstimatedCost != nil {
		s.Budget = budgetPrinter.Sprintf("EUR %.0f", *t.EstimatedCost)
	}
	if t.Deadline != nil {
		s.Deadline = t.Deadline.Format("2006-01-02")
	}
	return s
}

// DocumentURL returns the tender's document link, synthesizing the listing
// URL from the reference number when the source row has none.
func DocumentURL(t model.Tender) string {
	if t.DocumentURL != "" {
		return t.DocumentURL
	}
	return "https://www.tendly.eu/tenders/" + t.ReferenceNr
}
