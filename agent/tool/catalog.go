package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/quickserve/menuwise/agent/contract"
)

const (
	ToolSQLListTables    = "sql.list_tables"
	ToolSQLSchema        = "sql.schema"
	ToolSQLRunChecked    = "sql.run_checked"
	ToolSQLRun           = "sql.run"
	ToolMenuImageExtract = "menu_image.extract"
	ToolMathEvaluate     = "math.evaluate"
)

// SQLRunner is the read-only SQL collaborator behind the sql.* tools.
type SQLRunner interface {
	ListTables(ctx context.Context) ([]string, error)
	Schema(ctx context.Context, names []string) (string, error)
	Run(ctx context.Context, query string) ([]map[string]any, error)
	CheckSyntax(ctx context.Context, query string) error
}

// Catalog is the closed tool registry. Tool failures never escape as Go
// errors: they come back as error ToolResults so the model can self-correct.
type Catalog struct {
	sql    SQLRunner
	vision *VisionExtractor
}

var _ contractx.ToolGateway = (*Catalog)(nil)

// NewCatalog builds the registry. vision may be nil; the image tool then
// reports itself unavailable instead of crashing the loop.
func NewCatalog(sql SQLRunner, vision *VisionExtractor) (*Catalog, error) {
	if sql == nil {
		return nil, errors.New("sql runner is required")
	}
	return &Catalog{sql: sql, vision: vision}, nil
}

func (c *Catalog) Execute(ctx context.Context, capability contractx.CapabilityID, calls []contractx.ToolCall) ([]contractx.ToolResult, error) {
	results := make([]contractx.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, c.executeOne(ctx, capability, call))
	}
	return results, nil
}

func (c *Catalog) executeOne(ctx context.Context, capability contractx.CapabilityID, call contractx.ToolCall) contractx.ToolResult {
	tool := strings.TrimSpace(call.Tool)

	if !isRegistered(tool) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("%v: %s", contractx.ErrUnknownTool, tool),
		}
	}
	if !allowedFor(capability, tool) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for capability=%s", tool, capability),
		}
	}

	switch tool {
	case ToolSQLListTables:
		names, err := c.sql.ListTables(ctx)
		if err != nil {
			return errorResult(tool, err)
		}
		return contractx.ToolResult{Tool: tool, Result: names}

	case ToolSQLSchema:
		names, err := tableNamesArg(call.Args)
		if err != nil {
			return errorResult(tool, err)
		}
		ddl, err := c.sql.Schema(ctx, names)
		if err != nil {
			return errorResult(tool, err)
		}
		return contractx.ToolResult{Tool: tool, Result: ddl}

	case ToolSQLRunChecked:
		query, err := queryArg(call.Args)
		if err != nil {
			return errorResult(tool, err)
		}
		if err := c.checkQuery(ctx, query); err != nil {
			return errorResult(tool, err)
		}
		return contractx.ToolResult{Tool: tool, Result: "OK"}

	case ToolSQLRun:
		query, err := queryArg(call.Args)
		if err != nil {
			return errorResult(tool, err)
		}
		// Validate-before-execute: a statement that fails the check is
		// never dispatched to the database in this turn.
		if err := c.checkQuery(ctx, query); err != nil {
			return errorResult(tool, err)
		}
		rows, err := c.sql.Run(ctx, query)
		if err != nil {
			return errorResult(tool, err)
		}
		return contractx.ToolResult{Tool: tool, Result: rows}

	case ToolMenuImageExtract:
		if c.vision == nil {
			return contractx.ToolResult{Tool: tool, Error: "image analysis is not configured"}
		}
		imagePath, err := stringArg(call.Args, "image_path")
		if err != nil {
			return errorResult(tool, err)
		}
		items, err := c.vision.Extract(ctx, imagePath)
		if err != nil {
			return errorResult(tool, err)
		}
		return contractx.ToolResult{Tool: tool, Result: items}

	case ToolMathEvaluate:
		return executeMathTool(tool, call.Args)
	}

	return contractx.ToolResult{
		Tool:  tool,
		Error: fmt.Sprintf("%v: %s", contractx.ErrUnknownTool, tool),
	}
}

func (c *Catalog) checkQuery(ctx context.Context, query string) error {
	if err := ensureReadOnly(query); err != nil {
		return err
	}
	return c.sql.CheckSyntax(ctx, query)
}

func errorResult(tool string, err error) contractx.ToolResult {
	return contractx.ToolResult{
		Tool:  tool,
		Error: fmt.Sprintf("%v: %v", contractx.ErrToolExecution, err),
	}
}

func isRegistered(tool string) bool {
	switch tool {
	case ToolSQLListTables, ToolSQLSchema, ToolSQLRunChecked, ToolSQLRun,
		ToolMenuImageExtract, ToolMathEvaluate:
		return true
	}
	return false
}

func allowedFor(capability contractx.CapabilityID, tool string) bool {
	for _, info := range Infos(capability) {
		if info.Name == tool {
			return true
		}
	}
	return false
}

// Infos lists the tool subset exposed to each capability. The competitor
// agent keeps the SQL subset so it can run comparison lookups against the
// house menu.
func Infos(capability contractx.CapabilityID) []*schema.ToolInfo {
	switch capability {
	case contractx.CapabilitySQL:
		return sqlToolInfos()
	case contractx.CapabilityCompetitor:
		infos := sqlToolInfos()
		infos = append(infos,
			&schema.ToolInfo{
				Name: ToolMenuImageExtract,
				Desc: "Extract structured menu items (name, category, price) from a competitor menu image.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"image_path": {Type: schema.String, Desc: "Path to the competitor menu image", Required: true},
				}),
			},
			&schema.ToolInfo{
				Name: ToolMathEvaluate,
				Desc: "Evaluate a mathematical expression, e.g. a price difference.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"expression": {Type: schema.String, Desc: "Expression to evaluate", Required: true},
				}),
			},
		)
		return infos
	default:
		return nil
	}
}

func sqlToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolSQLListTables,
			Desc: "List the tables available in the menu database.",
		},
		{
			Name: ToolSQLSchema,
			Desc: "Return the CREATE TABLE statements for the named tables.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"tables": {
					Type:     schema.Array,
					Desc:     "Table names to describe; empty for all tables",
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
				},
			}),
		},
		{
			Name: ToolSQLRunChecked,
			Desc: "Validate a SELECT statement without executing it.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "SQL statement to validate", Required: true},
			}),
		},
		{
			Name: ToolSQLRun,
			Desc: "Validate and execute a read-only SELECT statement, returning rows.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "SQL statement to execute", Required: true},
			}),
		},
	}
}

func queryArg(args map[string]any) (string, error) {
	return stringArg(args, "query")
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	return s, nil
}

func tableNamesArg(args map[string]any) ([]string, error) {
	raw, ok := args["tables"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tables must be an array of strings")
			}
			names = append(names, s)
		}
		return names, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("tables must be an array of strings")
	}
}
