// Package login holds the password complexity policy applied during the
// mandatory reset step.
package login

import (
	"errors"
	"fmt"
	"regexp"
)

// PasswordPolicy defines the requirements for password complexity
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireDigit     bool
	SpecialChars     string
}

// PasswordPolicyChecker defines the interface for checking password complexity
type PasswordPolicyChecker interface {
	CheckPasswordComplexity(password string) error
	GetPolicy() *PasswordPolicy
}

// DefaultPasswordPolicyChecker implements the PasswordPolicyChecker interface
type DefaultPasswordPolicyChecker struct {
	policy    *PasswordPolicy
	specialRe *regexp.Regexp
}

var (
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
)

// NewDefaultPasswordPolicyChecker creates a new default password policy checker
func NewDefaultPasswordPolicyChecker(policy *PasswordPolicy) *DefaultPasswordPolicyChecker {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}

	return &DefaultPasswordPolicyChecker{
		policy:    policy,
		specialRe: regexp.MustCompile("[" + regexp.QuoteMeta(policy.SpecialChars) + "]"),
	}
}

// CheckPasswordComplexity verifies that a password meets the complexity requirements
func (pc *DefaultPasswordPolicyChecker) CheckPasswordComplexity(password string) error {
	if len(password) < pc.policy.MinLength {
		return fmt.Errorf("password must be at least %d characters long", pc.policy.MinLength)
	}

	if pc.policy.RequireUppercase && !uppercaseRe.MatchString(password) {
		return errors.New("password must contain at least one uppercase letter")
	}

	if pc.policy.RequireDigit && !digitRe.MatchString(password) {
		return errors.New("password must contain at least one digit")
	}

	if pc.policy.SpecialChars != "" && !pc.specialRe.MatchString(password) {
		return fmt.Errorf("password must contain at least one of %s", pc.policy.SpecialChars)
	}

	return nil
}

// GetPolicy returns the password policy
func (pc *DefaultPasswordPolicyChecker) GetPolicy() *PasswordPolicy {
	return pc.policy
}

// DefaultPasswordPolicy returns the policy enforced by the reset step:
// a capital letter, a digit, one of @$!%*?&, and at least 8 characters.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireDigit:     true,
		SpecialChars:     "@$!%*?&",
	}
}
