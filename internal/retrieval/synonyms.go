package retrieval

import "strings"

// clauseSynonyms maps clause types to the phrases that signal them in a
// question. Ordered so detection output is deterministic.
var clauseSynonyms = []struct {
	clauseType string
	synonyms   []string
}{
	{"limitation_of_liability", []string{
		"liability cap", "liability limit", "cap on liability",
		"maximum liability", "total liability", "liability ceiling",
		"limit liability", "limited liability", "liable", "capped at",
		"shall not exceed", "not exceed", "limitation of liability",
	}},
	{"indemnification", []string{
		"indemnif", "indemnity", "hold harmless", "defend and hold",
		"indemnification", "losses damages liabilities",
	}},
	{"termination", []string{
		"terminat", "terminate", "termination", "end the agreement",
		"cancel", "cancellation", "expir", "expiration",
	}},
	{"confidentiality", []string{
		"confidential", "nda", "non-disclosure", "proprietary",
		"trade secret", "disclose", "disclosure",
	}},
	{"ip_ownership_assignment", []string{
		"intellectual property", "ip ownership", "ip assignment",
		"patent", "copyright", "trademark", "invention", "assign",
		"ownership of", "owns the",
	}},
	{"non_compete", []string{
		"non-compete", "non compete", "noncompete", "compete",
		"competitive", "competition", "solicitation",
	}},
	{"governing_law", []string{
		"governing law", "jurisdiction", "governed by", "laws of",
		"applicable law", "choice of law",
	}},
	{"price_or_payment_terms", []string{
		"payment", "pay", "fee", "fees", "price", "cost", "invoice",
		"royalt", "royalty", "royalties", "compensation", "financial",
		"money", "dollar", "amount", "remuneration",
	}},
	{"dispute_resolution", []string{
		"dispute", "arbitration", "arbitrat", "mediation", "litigation",
		"court", "legal proceedings", "resolve",
	}},
	{"warranty", []string{
		"warrant", "warranty", "warrants", "guarantee", "representation",
	}},
	{"renewal_term", []string{
		"renew", "renewal", "auto-renew", "automatically renew",
		"extension", "extend",
	}},
	{"audit_rights", []string{
		"audit", "inspect", "examination", "review records",
	}},
	{"change_of_control", []string{
		"change of control", "acquisition", "merger", "acquired",
		"takeover", "assignment",
	}},
	{"force_majeure", []string{
		"force majeure", "act of god", "natural disaster",
		"unforeseeable", "beyond control",
	}},
}

// DetectClauseTypes returns the clause types whose synonyms appear in the
// query, in table order.
func DetectClauseTypes(query string) []string {
	queryLower := strings.ToLower(query)
	var matched []string
	for _, entry := range clauseSynonyms {
		for _, syn := range entry.synonyms {
			if strings.Contains(queryLower, syn) {
				matched = append(matched, entry.clauseType)
				break
			}
		}
	}
	return matched
}
