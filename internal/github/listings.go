package github

import (
	"context"
	"time"

	"github.com/google/go-github/v41/github"

	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// ListRepositories returns every repository the token can see, newest
// activity first as GitHub orders them.
func (c *Client) ListRepositories(ctx context.Context) ([]models.Summary, error) {
	logging.Debug("listing repositories", "username", c.username)

	opts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var rows []models.Summary
	for {
		repos, resp, err := c.rest.Repositories.List(ctx, "", opts)
		if err != nil {
			logging.Error("failed to list repositories", "error", err)
			return nil, mapRESTError(resp, err)
		}

		for _, repo := range repos {
			rows = append(rows, models.Summary{
				Kind:        models.KindRepository,
				ID:          repo.GetNodeID(),
				Name:        repo.GetFullName(),
				Description: repo.GetDescription(),
				URL:         repo.GetHTMLURL(),
				UpdatedAt:   repo.GetUpdatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("listed repositories", "count", len(rows))
	return rows, nil
}

const viewerProjectsQuery = `
query($cursor: String) {
  viewer {
    projectsV2(first: 100, after: $cursor) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        id
        title
        shortDescription
        url
        updatedAt
      }
    }
  }
}`

type viewerProjectsData struct {
	Viewer struct {
		ProjectsV2 struct {
			PageInfo pageInfo `json:"pageInfo"`
			Nodes    []struct {
				ID               string    `json:"id"`
				Title            string    `json:"title"`
				ShortDescription string    `json:"shortDescription"`
				URL              string    `json:"url"`
				UpdatedAt        time.Time `json:"updatedAt"`
			} `json:"nodes"`
		} `json:"projectsV2"`
	} `json:"viewer"`
}

// ListProjects returns the viewer's Projects V2 boards.
func (c *Client) ListProjects(ctx context.Context) ([]models.Summary, error) {
	logging.Debug("listing projects", "username", c.username)

	var rows []models.Summary
	cursor := ""
	for {
		variables := map[string]any{}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		var data viewerProjectsData
		if err := c.doGraphQL(ctx, viewerProjectsQuery, variables, &data); err != nil {
			logging.Error("failed to list projects", "error", err)
			return nil, err
		}

		conn := data.Viewer.ProjectsV2
		for _, node := range conn.Nodes {
			rows = append(rows, models.Summary{
				Kind:        models.KindProject,
				ID:          node.ID,
				Name:        node.Title,
				Description: node.ShortDescription,
				URL:         node.URL,
				UpdatedAt:   node.UpdatedAt,
			})
		}

		if !conn.PageInfo.HasNextPage {
			break
		}
		cursor = conn.PageInfo.EndCursor
	}

	logging.Debug("listed projects", "count", len(rows))
	return rows, nil
}
