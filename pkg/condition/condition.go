package condition

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

const (
	ReasonBadColor    = "Bad color"
	ReasonTemperature = "Temperature out of range"
	ReasonSpoilage    = "Remark indicates spoilage"
)

// Input holds the optional observations of an inspection. Empty strings and a
// nil temperature mean the observation is absent.
type Input struct {
	Color       string
	Temperature *float64
	Remarks     string
}

type Result struct {
	Approved bool
	Reasons  []string
}

type rule struct {
	reason    string
	parameter string
	expr      *govaluate.EvaluableExpression
}

var functions = map[string]govaluate.ExpressionFunction{
	"lower": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("lower expects 1 argument, got %d", len(args))
		}
		return strings.ToLower(fmt.Sprint(args[0])), nil
	},
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		return strings.Contains(fmt.Sprint(args[0]), fmt.Sprint(args[1])), nil
	},
}

// rules are checked in order and never short-circuit.
var rules = []rule{
	mustRule(ReasonBadColor, "color", `lower(color) IN ('black', 'bad', 'rotten')`),
	mustRule(ReasonTemperature, "temperature", `temperature < 5 || temperature > 35`),
	mustRule(ReasonSpoilage, "remarks", `contains(lower(remarks), 'mold') || contains(lower(remarks), 'spoilt')`),
}

func mustRule(reason, parameter, expression string) rule {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, functions)
	if err != nil {
		panic(fmt.Sprintf("invalid condition rule %q: %v", expression, err))
	}
	return rule{reason: reason, parameter: parameter, expr: expr}
}

func (in Input) parameters() map[string]interface{} {
	params := map[string]interface{}{}
	if in.Color != "" {
		params["color"] = in.Color
	}
	if in.Temperature != nil {
		params["temperature"] = *in.Temperature
	}
	if in.Remarks != "" {
		params["remarks"] = in.Remarks
	}
	return params
}

// Evaluate maps inspection observations to a verdict. It is pure: the same
// input always yields the same result.
func Evaluate(in Input) Result {
	params := in.parameters()
	res := Result{Approved: true, Reasons: []string{}}
	for _, r := range rules {
		if _, ok := params[r.parameter]; !ok {
			continue
		}
		out, err := r.expr.Evaluate(params)
		if err != nil {
			// rules only see the parameter they declare, so this is a broken rule
			panic(fmt.Sprintf("condition rule %q failed: %v", r.reason, err))
		}
		if failed, _ := out.(bool); failed {
			res.Approved = false
			res.Reasons = append(res.Reasons, r.reason)
		}
	}
	return res
}
