package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/sql.txt
	sqlRaw string

	//go:embed template/competitor.txt
	competitorRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router     string
	SQL        string
	Competitor string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe for
// concurrent use.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:     strings.TrimSpace(routerRaw),
		SQL:        strings.TrimSpace(sqlRaw),
		Competitor: strings.TrimSpace(competitorRaw),
	}
}
