// Package postgresql implements the SQL query bubble. Each action opens a
// short-lived connection with the injected connection string, runs one
// statement and returns its rows.
package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/jackc/pgx/v5"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1},
		"args": {"type": "array"}
	},
	"required": ["query"]
}`

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:             domain.BubbleName_PostgreSQL,
		ClassName:        "PostgreSQLBubble",
		Alias:            "postgresql",
		Category:         domain.BubbleCategoryService,
		ShortDescription: "Run a SQL statement against a PostgreSQL database",
		ParamsSchema:     paramsSchema,
		CredentialOptions: []domain.CredentialType{
			domain.CredentialTypeDatabase,
		},
		NewBubble: NewBubble,
	}
}

type Params struct {
	Query string `json:"query"`
	Args  []any  `json:"args"`
}

type Bubble struct {
	connString string
	params     Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	connString, ok := p.Credentials[domain.CredentialTypeDatabase]
	if !ok {
		return nil, fmt.Errorf("postgresql bubble requires a %s credential", domain.CredentialTypeDatabase)
	}

	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind postgresql params: %w", err)
	}

	return &Bubble{
		connString: connString,
		params:     params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	conn, err := pgx.Connect(ctx, b.connString)
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   "failed to connect to database",
		}, nil
	}
	defer conn.Close(ctx)

	usage := []domain.ServiceUsageRecord{
		{Service: "postgresql", Unit: "queries", Units: 1},
	}

	if !returnsRows(b.params.Query) {
		tag, err := conn.Exec(ctx, b.params.Query, b.params.Args...)
		if err != nil {
			return domain.BubbleActionResult{
				Success: false,
				Error:   fmt.Sprintf("query failed: %s", err),
			}, nil
		}

		return domain.BubbleActionResult{
			Success: true,
			Data: map[string]any{
				"rows_affected": tag.RowsAffected(),
			},
			ServiceUsage: usage,
		}, nil
	}

	rows, err := conn.Query(ctx, b.params.Query, b.params.Args...)
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("query failed: %s", err),
		}, nil
	}
	defer rows.Close()

	collected, err := collectRows(rows)
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to read rows: %s", err),
		}, nil
	}

	return domain.BubbleActionResult{
		Success: true,
		Data: map[string]any{
			"rows":      collected,
			"row_count": len(collected),
		},
		ServiceUsage: usage,
	}, nil
}

func returnsRows(query string) bool {
	head := strings.ToUpper(strings.TrimSpace(query))

	return strings.HasPrefix(head, "SELECT") ||
		strings.HasPrefix(head, "WITH") ||
		strings.Contains(head, "RETURNING")
}

func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	collected := []map[string]any{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]any, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}

		collected = append(collected, row)
	}

	return collected, rows.Err()
}
