package privacy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

// Detector screens request values for direct identifiers such as e-mail
// addresses or card numbers
type Detector struct {
	rules  []DetectionRule
	config Config
	logger *zap.Logger
}

// New creates a detector with the rules named in cfg.Detectors enabled
func New(cfg Config, log *zap.Logger) (*Detector, error) {
	if cfg.Action == "" {
		cfg.Action = ActionWarn
	}
	if cfg.Action != ActionWarn && cfg.Action != ActionReject {
		return nil, fmt.Errorf("unknown action: %s", cfg.Action)
	}

	rules, err := selectRules(GetDefaultRules(), cfg.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	d := &Detector{
		rules:  rules,
		config: cfg,
		logger: log,
	}

	log.Info("Identifier screening initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Strings("rules", d.EnabledRules()),
		zap.String("action", string(cfg.Action)),
	)

	return d, nil
}

func selectRules(all []DetectionRule, names []string) ([]DetectionRule, error) {
	enabled := make(map[string]bool, len(all))
	for _, name := range names {
		if name == "all" {
			return all, nil
		}
		found := false
		for _, rule := range all {
			if rule.Name == name {
				enabled[name] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown detector: %s", name)
		}
	}

	// keep the default matching order regardless of configuration order
	rules := make([]DetectionRule, 0, len(enabled))
	for _, rule := range all {
		if enabled[rule.Name] {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// Scan reports direct identifiers found in objects, grouped by attribute and
// entity type in first-seen order. Attributes without a type are skipped.
func (d *Detector) Scan(objects []anonymizer.ObjectData) []Finding {
	if !d.config.Enabled || len(d.rules) == 0 {
		return nil
	}

	type key struct{ attribute, entity string }
	index := make(map[key]int)
	var findings []Finding

	for _, o := range objects {
		for _, a := range o.Values {
			if a.Type == nil || a.Value == nil {
				continue
			}
			entity, ok := d.match(*a.Value)
			if !ok {
				continue
			}
			k := key{*a.Type, entity}
			if i, seen := index[k]; seen {
				findings[i].Count++
				continue
			}
			index[k] = len(findings)
			findings = append(findings, Finding{Attribute: *a.Type, EntityType: entity, Count: 1})
		}
	}

	return findings
}

func (d *Detector) match(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", false
	}
	for _, rule := range d.rules {
		if !rule.Pattern.MatchString(v) {
			continue
		}
		if rule.Check != nil && !rule.Check(v) {
			continue
		}
		return rule.Name, true
	}
	return "", false
}

// Rejects reports whether findings should fail the request
func (d *Detector) Rejects() bool {
	return d.config.Action == ActionReject
}

// EnabledRules returns the active rule names in matching order
func (d *Detector) EnabledRules() []string {
	names := make([]string, 0, len(d.rules))
	for _, rule := range d.rules {
		names = append(names, rule.Name)
	}
	return names
}

// Summary renders findings as attribute:entity pairs
func Summary(findings []Finding) string {
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("%s:%s", f.Attribute, f.EntityType))
	}
	return strings.Join(parts, ",")
}

// Error builds the validation error returned when findings are rejected
func Error(findings []Finding) error {
	first := findings[0]
	message := fmt.Sprintf("attribute '%s' contains %d value(s) that look like %s; remove direct identifiers before anonymizing",
		first.Attribute, first.Count, first.EntityType)
	return &anonymizer.Error{
		Kind:    anonymizer.KindValidation,
		Reason:  anonymizer.ReasonDirectIdentifier,
		Message: message,
	}
}
