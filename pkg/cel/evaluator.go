package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"siteaudit/pkg/models"
)

// Evaluator compiles and runs handler conditions against a site and its
// organization. Compiled programs are cached by expression.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("site_id", cel.StringType),
		cel.Variable("org_id", cel.StringType),
		cel.Variable("base_url", cel.StringType),
		cel.Variable("is_live", cel.BoolType),
		cel.Variable("delivery_type", cel.StringType),
		cel.Variable("org_name", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateCondition checks that expression compiles and yields a bool.
func (e *Evaluator) ValidateCondition(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, site *models.Site, org *models.Organization) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	result, _, err := program.ContextEval(ctx, conditionVars(site, org))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) compile(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.programs.Store(expression, program)
	return program, nil
}

func conditionVars(site *models.Site, org *models.Organization) map[string]interface{} {
	vars := map[string]interface{}{
		"site_id":       "",
		"org_id":        "",
		"base_url":      "",
		"is_live":       false,
		"delivery_type": "",
		"org_name":      "",
	}

	if site != nil {
		vars["site_id"] = site.ID
		vars["org_id"] = site.OrganizationID
		vars["base_url"] = site.BaseURL
		vars["is_live"] = site.IsLive
		vars["delivery_type"] = site.DeliveryType
	}

	if org != nil {
		vars["org_id"] = org.ID
		vars["org_name"] = org.Name
	}

	return vars
}
