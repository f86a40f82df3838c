// Package notification describes the message sent for a matched job.
package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
)

// Subject is the subject line of every match notification.
const Subject = "Found a job you should consider"

// Message announces one matched posting to one recipient.
type Message struct {
	Tenant         string  `json:"tenant"`
	Recipient      string  `json:"recipient"`
	JobOriginIndex int     `json:"job_origin_index"`
	Score          float64 `json:"score"`
	Job            job.Job `json:"job"`
}

// Validate checks the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Recipient) == "" {
		return domain.InvalidArgf("recipient is required")
	}
	return nil
}

// Percent is the score rounded to a whole percentage.
func (m Message) Percent() int {
	return int(math.Round(m.Score * 100))
}

var bodyTmpl = template.Must(template.New("match").Parse(`<html>
  <body>
    <p>Hello,<br>
       We found this job to be a good fit for your resume with a <strong>{{.Percent}}%</strong> match.<br><br>
       <strong>{{.Job.Title}}</strong> at <strong>{{.Job.Company}}</strong><br><br>
       Apply link: <a href="{{.Job.Link}}">Click here to apply</a>
    </p>
  </body>
</html>
`))

// HTML renders the mail body. Posting fields are escaped.
func (m Message) HTML() (string, error) {
	var b bytes.Buffer
	if err := bodyTmpl.Execute(&b, m); err != nil {
		return "", err //nolint:wrapcheck // template errors are self-describing
	}
	return b.String(), nil
}

// Text renders a one-line summary for logs and plain-text channels.
func (m Message) Text() string {
	title := m.Job.Title
	if m.Job.Company != "" {
		title += " at " + m.Job.Company
	}
	return fmt.Sprintf("%s (%d%% match) %s", title, m.Percent(), m.Job.Link)
}
