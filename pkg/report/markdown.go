package report

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/backupoor/pkg/store"
)

// Markdown renders the summary as a markdown document.
func Markdown(s *Summary) string {
	var sb strings.Builder

	sb.Grow(2048)

	writeTitle(&sb, s)
	writeCounts(&sb, s)
	writeSiteBackups(&sb, s.SiteBackups)
	writeTopAlarms(&sb, s.TopAlarms)
	writeRegionTop(&sb, s.RegionTop)

	return sb.String()
}

func writeTitle(sb *strings.Builder, s *Summary) {
	sb.WriteString("# Battery Backup Report\n\n")
	fmt.Fprintf(sb, "Generated %s UTC.\n\n",
		s.GeneratedAt.Format(store.TimestampLayout))
}

func writeCounts(sb *strings.Builder, s *Summary) {
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| Alarms | %d |\n", s.Counts.Alarms)
	fmt.Fprintf(sb, "| Outages | %d |\n", s.Counts.Outages)
	fmt.Fprintf(sb, "| Joined | %d |\n", s.Counts.Joined)
	fmt.Fprintf(sb, "| Sites with %s | %d |\n", s.AlarmClass, s.ClassSites)
	sb.WriteByte('\n')
}

func writeSiteBackups(sb *strings.Builder, sites []store.SiteBackup) {
	sb.WriteString("## Average Backup by Site\n\n")

	if len(sites) == 0 {
		sb.WriteString("No joined events.\n\n")

		return
	}

	sb.WriteString("| Site | Avg Backup (min) | Events |\n")
	sb.WriteString("|---|---:|---:|\n")

	for _, b := range sites {
		fmt.Fprintf(sb, "| %s | %.2f | %d |\n", b.SiteID, b.AvgBackupMinutes, b.Events)
	}

	sb.WriteByte('\n')
}

func writeTopAlarms(sb *strings.Builder, top []store.NameCount) {
	sb.WriteString("## Top Alarms\n\n")

	if len(top) == 0 {
		sb.WriteString("No alarms.\n\n")

		return
	}

	sb.WriteString("| # | Alarm | Count |\n")
	sb.WriteString("|---:|---|---:|\n")

	for i, c := range top {
		fmt.Fprintf(sb, "| %d | %s | %d |\n", i+1, c.Name, c.Total)
	}

	sb.WriteByte('\n')
}

func writeRegionTop(sb *strings.Builder, regions []RegionTop) {
	sb.WriteString("## Top Alarm by Region\n\n")

	if len(regions) == 0 {
		sb.WriteString("No alarms.\n\n")

		return
	}

	sb.WriteString("| Region | Alarm | Count |\n")
	sb.WriteString("|---|---|---:|\n")

	for _, r := range regions {
		fmt.Fprintf(sb, "| %s | %s | %d |\n", r.Region, r.Name, r.Total)
	}

	sb.WriteByte('\n')
}
