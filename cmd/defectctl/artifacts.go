package main

import (
	"DefectScope/internal/entity"

	"github.com/dustin/go-humanize"
)

func renderArtifacts(artifacts []entity.TempArtifact, color bool) string {
	if len(artifacts) == 0 {
		return "Nothing to remove"
	}

	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		rows = append(rows, []string{
			colorize(a.Name, ansiRed, color),
			string(a.Kind),
			humanize.Bytes(uint64(a.Size)),
			humanize.Time(a.CreatedAt),
			humanize.Time(a.LastAccess),
		})
	}
	return renderTable(
		[]string{"Artifact", "Kind", "Size", "Created", "Last access"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}
