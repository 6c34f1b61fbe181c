package privacy

import "regexp"

// GetDefaultRules returns the built-in rules in matching order. The first
// matching rule claims a value.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:    "email",
			Pattern: regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`),
		},
		{
			Name:    "ssn",
			Pattern: regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),
		},
		{
			Name:    "credit_card",
			Pattern: regexp.MustCompile(`^\d(?:[ -]?\d){12,18}$`),
			Check:   luhnValid,
		},
		{
			Name:    "phone",
			Pattern: regexp.MustCompile(`^(?:\+\d{1,3}[ .-]?)?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}$`),
		},
		{
			Name:    "ip_address",
			Pattern: regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)$`),
		},
	}
}

func luhnValid(value string) bool {
	sum := 0
	double := false
	digits := 0
	for i := len(value) - 1; i >= 0; i-- {
		c := value[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		digits++
	}
	return digits >= 13 && sum%10 == 0
}
