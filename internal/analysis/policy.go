package analysis

import "strings"

// Policy decides what an endpoint does when the model call fails.
type Policy string

const (
	// PolicyPropagate surfaces the failure to the caller.
	PolicyPropagate Policy = "propagate"
	// PolicyDegrade answers with a fallback value instead.
	PolicyDegrade Policy = "degrade"
)

// Policies holds the failure policy for each model-backed operation.
type Policies struct {
	Analyze  Policy
	Upload   Policy
	Email    Policy
	Question Policy
}

func DefaultPolicies() Policies {
	return Policies{
		Analyze:  PolicyPropagate,
		Upload:   PolicyDegrade,
		Email:    PolicyDegrade,
		Question: PolicyDegrade,
	}
}

// PoliciesFrom overlays the configured map (keys analyze, upload, email,
// question) on the defaults. Unknown keys and values are ignored.
func PoliciesFrom(m map[string]string) Policies {
	p := DefaultPolicies()
	for k, v := range m {
		pol := Policy(strings.ToLower(strings.TrimSpace(v)))
		if pol != PolicyPropagate && pol != PolicyDegrade {
			continue
		}
		switch strings.ToLower(k) {
		case "analyze":
			p.Analyze = pol
		case "upload":
			p.Upload = pol
		case "email":
			p.Email = pol
		case "question":
			p.Question = pol
		}
	}
	return p
}
