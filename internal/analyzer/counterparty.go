package analyzer

import (
	"sort"
	"strings"

	"github.com/moneypennybank/amlflow/internal/model"
)

// corporateSuffixes are the name endings that mark a counterparty as an
// organization rather than an individual.
var corporateSuffixes = []string{
	"ltd", "ltd.", "limited", "llc", "inc", "inc.", "corp", "corp.",
	"plc", "gmbh", "ag", "sa", "s.a.", "bv", "b.v.", "oy", "pty",
	"holdings", "group", "trading", "services", "international",
}

// ExtractCounterparties derives the counterparty references for entity
// linkage from the evidence transactions of findings at or above the given
// severity. References are deduplicated by name; evidence accumulates across
// findings.
func ExtractCounterparties(findings []model.Finding, txns []model.Transaction, minSeverity model.Severity) []model.CounterpartyRef {
	byID := make(map[string]model.Transaction, len(txns))
	for _, txn := range txns {
		byID[txn.ID] = txn
	}

	refs := make(map[string]*model.CounterpartyRef)
	for _, f := range findings {
		if f.Severity.Rank() < minSeverity.Rank() {
			continue
		}
		for _, id := range f.EvidenceIDs {
			txn, ok := byID[id]
			if !ok || txn.CounterpartyName == "" {
				continue
			}

			key := strings.ToLower(strings.TrimSpace(txn.CounterpartyName))
			ref, ok := refs[key]
			if !ok {
				ref = &model.CounterpartyRef{
					Name:       strings.TrimSpace(txn.CounterpartyName),
					EntityType: InferEntityType(txn.CounterpartyName),
					Country:    txn.CounterpartyCountry,
				}
				refs[key] = ref
			}
			ref.EvidenceIDs = appendUnique(ref.EvidenceIDs, id)
			if txn.CounterpartyAcct != "" {
				ref.Identifiers = appendUnique(ref.Identifiers, txn.CounterpartyAcct)
			}
			if ref.Country == "" {
				ref.Country = txn.CounterpartyCountry
			}
		}
	}

	out := make([]model.CounterpartyRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *ref)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// InferEntityType guesses whether a counterparty name belongs to an
// organization or an individual based on corporate suffixes.
func InferEntityType(name string) model.EntityType {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(lowered, " "+suffix) {
			return model.EntityOrganization
		}
	}
	return model.EntityIndividual
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
