package policyopa

import "github.com/open-policy-agent/opa/ast"

// Decision policies are pure functions of the pipeline outcome: no
// network, no time, no environment. The list covers set counting,
// comparisons, and the string handling needed for hash and address
// fields; anything outside it fails bundle load.
var allowedBuiltins = map[string]struct{}{
	"concat":     {},
	"contains":   {},
	"count":      {},
	"endswith":   {},
	"eq":         {},
	"equal":      {},
	"lower":      {},
	"neq":        {},
	"object.get": {},
	"replace":    {},
	"sort":       {},
	"split":      {},
	"sprintf":    {},
	"startswith": {},
	"substring":  {},
	"trim_left":  {},
	"upper":      {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
