package routing

import "strings"

const (
	RouteBilling = "billing"
	RouteTech    = "tech"
	RouteSales   = "sales"
)

// AllowedRoutes lists every route an agent may return
var AllowedRoutes = []string{RouteBilling, RouteTech, RouteSales}

var policyKeywords = []struct {
	route    string
	keywords []string
}{
	{RouteBilling, []string{"invoice", "charge", "refund", "billing"}},
	{RouteTech, []string{"error", "bug", "doesn't work", "crash", "api"}},
	{RouteSales, []string{"pricing", "quote", "demo", "trial"}},
}

// NeutralPolicy routes by keyword. Groups are checked in order and the first
// hit wins; text matching nothing goes to tech.
func NeutralPolicy(text string) string {
	t := strings.ToLower(text)
	for _, group := range policyKeywords {
		for _, w := range group.keywords {
			if strings.Contains(t, w) {
				return group.route
			}
		}
	}
	return RouteTech
}
