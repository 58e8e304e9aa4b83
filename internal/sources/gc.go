package sources

import "sort"

// GCPolicy controls the lifecycle ages for one source's rows: active rows
// unseen for ArchiveAfterDays are archived and rechecked every
// ArchivedRecheckDays; archived or missing rows unseen for DeleteAfterDays
// are deleted.
type GCPolicy struct {
	ArchiveAfterDays    int
	ArchivedRecheckDays int
	DeleteAfterDays     int
}

var defaultGCPolicy = GCPolicy{
	ArchiveAfterDays:    14,
	ArchivedRecheckDays: 30,
	DeleteAfterDays:     90,
}

var gcPolicies = map[string]GCPolicy{
	"hh":              {ArchiveAfterDays: 10, ArchivedRecheckDays: 30, DeleteAfterDays: 60},
	"remoteok":        {ArchiveAfterDays: 14, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"weworkremotely":  {ArchiveAfterDays: 14, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"remotive":        {ArchiveAfterDays: 10, ArchivedRecheckDays: 30, DeleteAfterDays: 60},
	"adzuna":          {ArchiveAfterDays: 21, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"jooble":          {ArchiveAfterDays: 21, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"arbeitnow":       {ArchiveAfterDays: 21, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"jobicy":          {ArchiveAfterDays: 30, ArchivedRecheckDays: 45, DeleteAfterDays: 120},
	"himalayas":       {ArchiveAfterDays: 14, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"greenhouse":      {ArchiveAfterDays: 14, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"lever":           {ArchiveAfterDays: 14, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
	"smartrecruiters": {ArchiveAfterDays: 14, ArchivedRecheckDays: 30, DeleteAfterDays: 90},
}

// GCPolicyFor returns the policy for a source, falling back to the default.
func GCPolicyFor(sourceID string) GCPolicy {
	if p, ok := gcPolicies[sourceID]; ok {
		return p
	}
	return defaultGCPolicy
}

// KnownGCPolicySources lists every source with an explicit policy, sorted.
func KnownGCPolicySources() []string {
	ids := make([]string, 0, len(gcPolicies))
	for id := range gcPolicies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
