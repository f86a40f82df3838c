// Package job holds the scraped job posting record.
package job

import (
	"strings"
)

// Job is a scraped posting. Missing fields are empty strings.
type Job struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Canonical renders every field as one labeled block so similarity reflects
// the whole posting rather than a single field.
func (j Job) Canonical() string {
	var b strings.Builder
	b.WriteString("Job Title: " + j.Title + "\n")
	b.WriteString("Company: " + j.Company + "\n")
	b.WriteString("Location: " + j.Location + "\n")
	b.WriteString("Salary: " + j.Salary + "\n")
	b.WriteString("Description: " + j.Description + "\n")
	b.WriteString("Apply Link: " + j.Link)
	return b.String()
}

// Blank reports whether the posting carries no data at all.
func (j Job) Blank() bool {
	for _, f := range []string{j.Title, j.Company, j.Location, j.Salary, j.Description, j.Link} {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
