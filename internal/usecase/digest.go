package usecase

import (
	"fmt"
	"strings"
	"time"

	"MedScanner/internal/domain"
)

// BuildDigest renders persisted records grouped by main category, then by project.
// Groups keep the order in which they first appear. Seen markers are left out.
func BuildDigest(stored []domain.Record, now time.Time) string {
	records := make([]domain.Record, 0, len(stored))
	for _, r := range stored {
		if !r.IsMarker() {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return ""
	}

	type projectGroup struct {
		name    string
		records []domain.Record
	}
	type categoryGroup struct {
		name     string
		projects []*projectGroup
	}

	var categories []*categoryGroup
	byCategory := map[string]*categoryGroup{}
	for _, r := range records {
		cat, ok := byCategory[r.MainCategory]
		if !ok {
			cat = &categoryGroup{name: r.MainCategory}
			byCategory[r.MainCategory] = cat
			categories = append(categories, cat)
		}
		for _, project := range r.Projects {
			var group *projectGroup
			for _, g := range cat.projects {
				if g.name == project {
					group = g
					break
				}
			}
			if group == nil {
				group = &projectGroup{name: project}
				cat.projects = append(cat.projects, group)
			}
			group.records = append(group.records, r)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Medical AI digest %s: %d new\n", now.UTC().Format(domain.PartitionLayout), len(records))
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n%s\n", cat.name)
		for _, group := range cat.projects {
			fmt.Fprintf(&b, "  [%s]\n", group.name)
			for _, r := range group.records {
				fmt.Fprintf(&b, "  - %s (%s)\n", r.Title, r.Source)
				for _, bullet := range r.BulletSummary {
					fmt.Fprintf(&b, "    %s\n", bullet)
				}
				fmt.Fprintf(&b, "    %s\n", r.URL)
			}
		}
	}
	return b.String()
}
