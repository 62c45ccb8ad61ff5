package jira

import (
	"fmt"
	"strings"

	"github.com/kiracore/leadcycle/internal/window"
)

// Query describes the ticket population a report covers
type Query struct {
	Project    string
	Statuses   []string
	IssueTypes []string
	DateField  string
	OrderBy    string
}

// DefaultQuery returns the completed stories and bugs of project
func DefaultQuery(project string) Query {
	return Query{
		Project:    project,
		Statuses:   []string{"Done", "Ready To Release"},
		IssueTypes: []string{"Story", "Bug"},
		DateField:  "resolved",
		OrderBy:    "status ASC, issuetype ASC",
	}
}

// BuildJQL renders q restricted to w
func BuildJQL(q Query, w window.Window) string {
	field := q.DateField
	if field == "" {
		field = "resolved"
	}

	var clauses []string
	if q.Project != "" {
		clauses = append(clauses, "project = "+quote(q.Project))
	}
	if c := w.Clause(field); c != "" {
		clauses = append(clauses, c)
	}
	if len(q.Statuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status in (%s)", quoteList(q.Statuses)))
	}
	if len(q.IssueTypes) > 0 {
		clauses = append(clauses, fmt.Sprintf("issuetype in (%s)", quoteList(q.IssueTypes)))
	}

	jql := strings.Join(clauses, " AND ")
	if q.OrderBy != "" {
		jql += " ORDER BY " + q.OrderBy
	}
	return jql
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return strings.Join(quoted, ", ")
}

// quote wraps values Jira would otherwise split or misread
func quote(v string) string {
	if strings.ContainsAny(v, " \t\"'(),=") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
