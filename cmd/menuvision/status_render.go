package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"menuvision/internal/client"
	"menuvision/internal/language"
	"menuvision/internal/menu"
	"menuvision/internal/queue"
)

func renderJobResult(cmd *cobra.Command, job *queue.Job) {
	renderJobSummary(cmd, job.ID, string(job.Status), job.SourceLanguage, job.ErrorMessage, job.Dishes)
}

func renderClientJob(cmd *cobra.Command, job *client.Job) {
	renderJobSummary(cmd, job.ID, job.Status, job.SourceLanguage, job.ErrorMessage, job.Dishes)
}

func renderJobSummary(cmd *cobra.Command, id, status string, sourceLanguage *string, errorMessage string, dishes []menu.Dish) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", id)
	fmt.Fprintf(out, "Status:   %s\n", status)
	if sourceLanguage != nil {
		fmt.Fprintf(out, "Language: %s\n", language.DisplayName(*sourceLanguage))
	}
	if errorMessage != "" {
		fmt.Fprintf(out, "Note:     %s\n", errorMessage)
	}
	if len(dishes) == 0 {
		fmt.Fprintln(out, "No dishes identified.")
		return
	}

	rows := make([][]string, 0, len(dishes))
	for _, dish := range dishes {
		rows = append(rows, []string{
			dish.OriginalName,
			optionalValue(dish.TranslatedName),
			optionalValue(dish.Price),
			imageCell(dish),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Dish", "Translation", "Price", "Image"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func renderJobList(cmd *cobra.Command, jobs []client.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress := job.ProgressMessage
		if progress == "" {
			progress = job.ProgressStage
		}
		rows = append(rows, []string{
			shortID(job.ID),
			job.Status,
			fmt.Sprintf("%d", len(job.Dishes)),
			progress,
			job.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Status", "Dishes", "Progress", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func optionalValue(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}

func imageCell(dish menu.Dish) string {
	if dish.HasImage() {
		return *dish.ImageRef
	}
	return "(placeholder)"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
