package billing

import (
	"strings"
	"sync/atomic"
)

// proAmounts are the amount encodings of the $15 plan.
var proAmounts = map[string]bool{"1500": true, "15": true, "15.00": true}

// PlanTable maps product ids to credit grants. It can be replaced while
// webhooks are being processed. Ids compare case-insensitively, since
// config keys arrive lowercased.
type PlanTable struct {
	table atomic.Pointer[map[string]int]
}

func NewPlanTable(plans map[string]int) *PlanTable {
	p := &PlanTable{}
	p.Replace(plans)
	return p
}

func (p *PlanTable) Replace(plans map[string]int) {
	cp := make(map[string]int, len(plans))
	for k, v := range plans {
		cp[strings.ToLower(k)] = v
	}
	p.table.Store(&cp)
}

func (p *PlanTable) Len() int {
	return len(*p.table.Load())
}

// CreditsFor returns the grant for ev. Known product ids win; otherwise
// the plan name is matched ("pro" 10, "free" 1), then the amount.
func (p *PlanTable) CreditsFor(ev *Event) int {
	table := *p.table.Load()
	for _, id := range ev.ProductIDs {
		if n, ok := table[strings.ToLower(id)]; ok {
			return n
		}
	}
	return creditsForPlan(ev.Plan, ev.Amount)
}

func creditsForPlan(plan, amount string) int {
	name := strings.ToLower(plan)
	switch {
	case strings.Contains(name, "pro"):
		return 10
	case strings.Contains(name, "free"):
		return 1
	case proAmounts[amount]:
		return 10
	}
	return 0
}
