package app

import (
	"context"

	"github.com/syncforge/syncforge/internal/integrations/github"
	"github.com/syncforge/syncforge/internal/integrations/servicenow"
	"github.com/syncforge/syncforge/internal/mapping"
)

// githubRepoFetcher adapts the GitHub client to the reconciliation
// service's repository fetcher.
type githubRepoFetcher struct {
	baseURL string
}

// FetchRepoFields reads one repository and returns its top-level attribute
// names in document order.
func (f *githubRepoFetcher) FetchRepoFields(ctx context.Context, token, repository string) ([]string, error) {
	client := github.NewClientWithBaseURL(token, f.baseURL)
	doc, err := client.GetRepo(ctx, repository)
	if err != nil {
		return nil, err
	}
	return doc.Fields, nil
}

// servicenowTableFetcher adapts the ServiceNow client to the reconciliation
// service's table fetcher.
type servicenowTableFetcher struct{}

// FetchTableFields reads the column dictionary of one table.
func (f *servicenowTableFetcher) FetchTableFields(ctx context.Context, creds mapping.TableCredentials, table string) ([]mapping.TableField, error) {
	client := servicenow.NewClient(creds.InstanceURL, creds.Username, creds.Password)
	columns, err := client.ListFields(ctx, table)
	if err != nil {
		return nil, err
	}
	fields := make([]mapping.TableField, 0, len(columns))
	for _, col := range columns {
		fields = append(fields, mapping.TableField{Name: col.Name, Required: col.Mandatory})
	}
	return fields, nil
}
