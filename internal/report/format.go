package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/moneypennybank/amlflow/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	criticalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("9"))

	highStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	mediumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	lowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
)

func riskStyle(risk model.RiskLevel) lipgloss.Style {
	switch risk {
	case model.RiskCritical:
		return criticalStyle
	case model.RiskHigh:
		return highStyle
	case model.RiskMedium:
		return mediumStyle
	default:
		return lowStyle
	}
}

func severityStyle(sev model.Severity) lipgloss.Style {
	switch sev {
	case model.SeverityHigh:
		return highStyle
	case model.SeverityMedium:
		return mediumStyle
	default:
		return lowStyle
	}
}

// Render formats the report for terminal display.
func Render(r *CaseReport) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("AML Case Review"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Case:     "))
	b.WriteString(r.CaseID)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Account:  "))
	b.WriteString(r.AccountNumber)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Period:   "))
	fmt.Fprintf(&b, "%s to %s\n",
		r.PeriodStart.Format("2006-01-02"),
		r.PeriodEnd.Format("2006-01-02"))
	b.WriteString(labelStyle.Render("Reviewed: "))
	fmt.Fprintf(&b, "%d transactions\n\n", r.TransactionCount)

	b.WriteString(headerStyle.Render("Overall Risk"))
	b.WriteString("\n")
	b.WriteString(riskStyle(r.OverallRisk).Render(string(r.OverallRisk)))
	b.WriteString("\n")
	b.WriteString(r.RecommendedAction)
	b.WriteString("\n\n")

	if len(r.KeyFindings) > 0 {
		b.WriteString(headerStyle.Render("Key Findings"))
		b.WriteString("\n")
		for _, f := range r.KeyFindings {
			fmt.Fprintf(&b, "  %s %s [%s] %s\n",
				severityStyle(f.Severity).Render(string(f.Severity)),
				labelStyle.Render(string(f.Stage)),
				f.Category,
				f.Description)
			if len(f.EvidenceIDs) > 0 {
				fmt.Fprintf(&b, "      %s %s\n",
					labelStyle.Render("evidence:"),
					strings.Join(f.EvidenceIDs, ", "))
			}
		}
		b.WriteString("\n")
	}

	if len(r.MitigatingNotes) > 0 {
		b.WriteString(headerStyle.Render("Mitigating Notes"))
		b.WriteString("\n")
		for _, note := range r.MitigatingNotes {
			fmt.Fprintf(&b, "  %s\n", noteStyle.Render(note))
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		b.WriteString(headerStyle.Render("Warnings"))
		b.WriteString("\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", warningStyle.Render(w))
		}
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render("Stages"))
	b.WriteString("\n")
	for _, stage := range []string{
		string(model.StagePattern),
		string(model.StageGeographic),
		string(model.StageEntity),
	} {
		status, ok := r.StageStatus[stage]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-12s %s\n", stage, status)
	}

	return b.String()
}
