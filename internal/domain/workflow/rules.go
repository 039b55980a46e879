package workflow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
)

// DefaultApprovalRole is the role that satisfies requires_approval unless a
// rule names its own.
const DefaultApprovalRole = "approver"

// Rule allows one transition. RequiresApproval demands that the acting
// identity carries ApprovalRole (or DefaultApprovalRole when unset).
type Rule struct {
	From             string `yaml:"from"`
	To               string `yaml:"to"`
	RequiresApproval bool   `yaml:"requires_approval"`
	ApprovalRole     string `yaml:"approval_role"`
}

// RuleTable is the explicit (from,to) transition table. Absent pairs are
// invalid transitions; there is no wildcard.
type RuleTable struct {
	InitialState string
	rules        map[[2]string]Rule
}

func NewRuleTable(initialState string, rules []Rule) (*RuleTable, error) {
	initial := strings.TrimSpace(initialState)
	if initial == "" {
		return nil, fmt.Errorf("initial state is required")
	}

	table := &RuleTable{
		InitialState: initial,
		rules:        make(map[[2]string]Rule, len(rules)),
	}
	for _, r := range rules {
		from := strings.TrimSpace(r.From)
		to := strings.TrimSpace(r.To)
		if from == "" || to == "" {
			return nil, fmt.Errorf("rule %q -> %q: states must be non-empty", r.From, r.To)
		}
		key := [2]string{from, to}
		if _, dup := table.rules[key]; dup {
			return nil, fmt.Errorf("duplicate rule %q -> %q", from, to)
		}
		r.From, r.To = from, to
		if r.ApprovalRole == "" {
			r.ApprovalRole = DefaultApprovalRole
		}
		table.rules[key] = r
	}
	return table, nil
}

// Lookup returns the rule for (from, to) or ErrInvalidTransition.
func (t *RuleTable) Lookup(from, to string) (Rule, error) {
	rule, ok := t.rules[[2]string{from, to}]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s -> %s", ledger.ErrInvalidTransition, from, to)
	}
	return rule, nil
}

// Authorize checks the rule's approval requirement against actor roles. It
// never mutates anything; the state machine and the request boundary both
// call it so a boundary bug cannot grant an unapproved transition.
func (t *RuleTable) Authorize(rule Rule, actorRoles []string) error {
	if !rule.RequiresApproval {
		return nil
	}
	for _, role := range actorRoles {
		if strings.EqualFold(strings.TrimSpace(role), rule.ApprovalRole) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s needs role %q",
		ledger.ErrMissingPrerequisites, rule.From, rule.To, rule.ApprovalRole)
}

// Default returns the compiled-in review workflow used when no rules file is
// configured.
func Default() *RuleTable {
	table, err := NewRuleTable("draft", []Rule{
		{From: "draft", To: "in_review"},
		{From: "in_review", To: "draft"},
		{From: "in_review", To: "approved", RequiresApproval: true},
		{From: "approved", To: "archived", RequiresApproval: true},
	})
	if err != nil {
		panic(err)
	}
	return table
}

type rulesFile struct {
	InitialState string `yaml:"initial_state"`
	Rules        []Rule `yaml:"rules"`
}

// LoadRules reads a declarative rule table from a YAML file.
func LoadRules(path string) (*RuleTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read workflow rules %q", path)
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrapf(err, "parse workflow rules %q", path)
	}

	table, err := NewRuleTable(file.InitialState, file.Rules)
	if err != nil {
		return nil, errs.Wrapf(err, "validate workflow rules %q", path)
	}
	return table, nil
}
