package interpolate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/sirupsen/logrus"
)

const (
	exprPrefix = "${"
	exprSuffix = "}"
)

// NewTraverse walks node and replaces every strict expression ("${ ... }")
// with its jq evaluation against input. Maps and slices are copied, node is
// left untouched.
func NewTraverse(node any, input any, variables map[string]any) (any, error) {
	return traverseAndEvaluate(node, input, variables)
}

// Evaluate runs a single jq expression. The expression may be wrapped in "${ }".
func Evaluate(expression string, input any, variables map[string]any) (any, error) {
	return evaluateJQExpression(SanitizeExpr(expression), input, variables)
}

// IsStrictExpr reports whether the whole string is a "${ ... }" expression.
func IsStrictExpr(expression string) bool {
	expression = strings.TrimSpace(expression)
	return strings.HasPrefix(expression, exprPrefix) && strings.HasSuffix(expression, exprSuffix)
}

// SanitizeExpr strips the "${ }" wrapper.
func SanitizeExpr(expression string) string {
	expression = strings.TrimSpace(expression)
	if IsStrictExpr(expression) {
		expression = strings.TrimSuffix(strings.TrimPrefix(expression, exprPrefix), exprSuffix)
	}
	return strings.TrimSpace(expression)
}

func traverseAndEvaluate(node any, input any, variables map[string]any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			evaluatedValue, err := traverseAndEvaluate(value, input, variables)
			if err != nil {

				// values may be secrets, so only the key is logged
				logrus.WithFields(logrus.Fields{
					"key": key,
				}).WithError(err).Error("Failed to evaluate expression in map")

				return nil, err
			}
			out[key] = evaluatedValue
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			evaluatedValue, err := traverseAndEvaluate(value, input, variables)
			if err != nil {
				return nil, err
			}
			out[i] = evaluatedValue
		}
		return out, nil

	case string:
		if IsStrictExpr(v) {
			expression := SanitizeExpr(v)
			result, err := evaluateJQExpression(expression, input, variables)
			if err != nil {
				return nil, err
			}
			// an unset variable must not silently become an empty value
			if result == nil {
				return nil, fmt.Errorf("jq expression %s evaluated to null", expression)
			}
			return result, nil
		}
		return v, nil

	default:
		// Return other types as-is
		return v, nil
	}
}

// evaluateJQExpression evaluates a jq expression against a given JSON input
func evaluateJQExpression(expression string, input any, variables map[string]any) (any, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression: %s, error: %w", expression, err)
	}

	// Get the variable names & values in a single pass:
	names, values := getVariableNamesAndValues(variables)

	code, err := gojq.Compile(query,
		gojq.WithVariables(names),
		gojq.WithEnvironLoader(os.Environ),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %s, error: %w", expression, err)
	}

	iter := code.Run(input, values...)
	result, ok := iter.Next()
	if !ok {
		return nil, errors.New("no result from jq evaluation")
	}

	// If there's an error from the jq engine, report it
	if errVal, isErr := result.(error); isErr {
		return nil, fmt.Errorf("jq evaluation error: %w", errVal)
	}

	return result, nil
}

// getVariableNamesAndValues constructs two slices, where 'names[i]' matches 'values[i]'.
func getVariableNamesAndValues(vars map[string]any) ([]string, []any) {
	names := make([]string, 0, len(vars))
	values := make([]any, 0, len(vars))

	for k, v := range vars {
		names = append(names, k)
		values = append(values, v)
	}
	return names, values
}
