package reconcile

import (
	"maps"
	"slices"

	"github.com/nao1215/wmsender/internal/model"
)

// Reconcile returns the plan that moves previous to intended.
// A nil database is treated as empty.
func Reconcile(previous, intended *model.Database) model.Plan {
	if previous == nil {
		previous = model.NewDatabase()
	}
	if intended == nil {
		intended = model.NewDatabase()
	}

	plan := model.NewPlan()
	for _, url := range unionKeys(previous.Pages, intended.Pages) {
		prev, inPrev := previous.Pages[url]
		next, inNext := intended.Pages[url]

		switch {
		case inPrev && !inNext:
			for _, target := range prev.Targets() {
				plan.Removals = append(plan.Removals, operation(url, prev.Mentions[target]))
			}
		case !inPrev && inNext:
			plan.Pages[url] = next.LastModified
			for _, target := range next.Targets() {
				plan.Additions = append(plan.Additions, operation(url, next.Mentions[target]))
			}
		default:
			plan.Pages[url] = next.LastModified
			diffPage(&plan, prev, next)
		}
	}
	return plan
}

func diffPage(plan *model.Plan, prev, next *model.Page) {
	changed := prev.LastModified != next.LastModified

	for _, target := range unionKeys(prev.Mentions, next.Mentions) {
		old, inPrev := prev.Mentions[target]
		cur, inNext := next.Mentions[target]

		switch {
		case inPrev && !inNext:
			plan.Removals = append(plan.Removals, operation(prev.URL, old))
		case !inPrev && inNext:
			plan.Additions = append(plan.Additions, operation(next.URL, cur))
		case changed || old.Endpoint != cur.Endpoint:
			plan.Additions = append(plan.Additions, operation(next.URL, cur))
		}
	}
}

func operation(source string, m model.Mention) model.Operation {
	return model.Operation{Source: source, Target: m.Target, Endpoint: m.Endpoint}
}

// unionKeys returns the sorted union of the keys of a and b.
func unionKeys[V any](a, b map[string]V) []string {
	keys := slices.Collect(maps.Keys(a))
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
