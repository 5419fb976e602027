package sonarqube

import (
	"github.com/vibeheal/vibeheal/internal/domain"
)

const defaultPageSize = 100

type impact struct {
	SoftwareQuality string `json:"softwareQuality"`
	Severity        string `json:"severity"`
}

type issueJSON struct {
	Key         string   `json:"key"`
	Rule        string   `json:"rule"`
	Severity    string   `json:"severity"`
	Message     string   `json:"message"`
	Component   string   `json:"component"`
	Line        *int     `json:"line"`
	Status      string   `json:"status"`
	IssueStatus string   `json:"issueStatus"`
	Type        string   `json:"type"`
	Impacts     []impact `json:"impacts"`
}

// toDomain accepts both the legacy issue shape (severity, status) and the
// Clean Code shape (impacts, issueStatus).
func (j issueJSON) toDomain() domain.Issue {
	sev := j.Severity
	if sev == "" && len(j.Impacts) > 0 {
		sev = j.Impacts[0].Severity
	}
	if sev == "" {
		sev = string(domain.SeverityInfo)
	}
	status := j.Status
	if status == "" {
		status = j.IssueStatus
	}
	if status == "" {
		status = string(domain.StatusOpen)
	}
	return domain.Issue{
		Key:       j.Key,
		Rule:      j.Rule,
		Severity:  domain.Severity(sev),
		Message:   j.Message,
		Component: j.Component,
		Line:      j.Line,
		Status:    domain.NormalizeStatus(status),
		Type:      j.Type,
	}
}

type pagingJSON struct {
	Total     *int `json:"total"`
	PageIndex *int `json:"pageIndex"`
	PageSize  *int `json:"pageSize"`
}

type issuesResponse struct {
	Issues []issueJSON `json:"issues"`
	Total  *int        `json:"total"`
	P      *int        `json:"p"`
	PS     *int        `json:"ps"`
	Paging *pagingJSON `json:"paging"`
}

// page reports total, page index and page size regardless of which paging
// shape the server returned.
func (r issuesResponse) page() (total, index, size int) {
	total, index, size = len(r.Issues), 1, defaultPageSize
	pick := func(top, nested *int, dst *int) {
		switch {
		case top != nil:
			*dst = *top
		case nested != nil:
			*dst = *nested
		}
	}
	var pg pagingJSON
	if r.Paging != nil {
		pg = *r.Paging
	}
	pick(r.Total, pg.Total, &total)
	pick(r.P, pg.PageIndex, &index)
	pick(r.PS, pg.PageSize, &size)
	if size <= 0 {
		size = defaultPageSize
	}
	return total, index, size
}

type ruleJSON struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	HTMLDesc    string `json:"htmlDesc"`
	MDDesc      string `json:"mdDesc"`
	Lang        string `json:"lang"`
	LangName    string `json:"langName"`
	Type        string `json:"type"`
	Description []struct {
		Content string `json:"content"`
	} `json:"descriptionSections"`
}

func (j ruleJSON) toDomain() *domain.Rule {
	desc := j.MDDesc
	if desc == "" {
		desc = j.HTMLDesc
	}
	if desc == "" && len(j.Description) > 0 {
		desc = j.Description[0].Content
	}
	lang := j.LangName
	if lang == "" {
		lang = j.Lang
	}
	return &domain.Rule{
		Key:         j.Key,
		Name:        j.Name,
		Description: desc,
		Language:    lang,
		Type:        j.Type,
	}
}

type ruleResponse struct {
	Rule ruleJSON `json:"rule"`
}

type projectsResponse struct {
	Components []struct {
		Key string `json:"key"`
	} `json:"components"`
}

// TaskStatus is the state of a server-side compute engine task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskSuccess    TaskStatus = "SUCCESS"
	TaskFailed     TaskStatus = "FAILED"
	TaskCanceled   TaskStatus = "CANCELED"
)

// Done reports whether the task reached a terminal state.
func (s TaskStatus) Done() bool {
	return s == TaskSuccess || s == TaskFailed || s == TaskCanceled
}

// Task is the subset of /api/ce/task the analysis runner needs.
type Task struct {
	ID           string     `json:"id"`
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage"`
}

type taskResponse struct {
	Task Task `json:"task"`
}
