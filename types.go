package aidefense

import (
	"encoding/json"
	"time"
)

// Region selects the regional inspection endpoint the client talks to.
type Region string

const (
	// RegionUS is the United States region.
	RegionUS Region = "us"
	// RegionEU is the European Union region.
	RegionEU Region = "eu"
	// RegionAPJ is the Asia-Pacific-Japan region.
	RegionAPJ Region = "apj"
)

// String returns the string representation of the region.
func (r Region) String() string {
	return string(r)
}

func (r Region) valid() bool {
	switch r {
	case RegionUS, RegionEU, RegionAPJ:
		return true
	}
	return false
}

// Role identifies the sender of a chat message. Only the three roles below are
// accepted by the service.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the AI model.
	RoleAssistant Role = "assistant"
	// RoleSystem marks a system prompt.
	RoleSystem Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

func (r Role) valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single entry in a chat conversation.
type Message struct {
	// Role of the message sender.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
}

// RuleName names a policy check the service can run against submitted content.
// The set below covers the rules the service ships with; the type is an open
// string so new rules the service introduces flow through without an SDK update.
type RuleName string

const (
	RuleNamePII                        RuleName = "PII"
	RuleNamePCI                        RuleName = "PCI"
	RuleNamePHI                        RuleName = "PHI"
	RuleNamePromptInjection            RuleName = "Prompt Injection"
	RuleNameJailbreak                  RuleName = "Jailbreak"
	RuleNameHarassment                 RuleName = "Harassment"
	RuleNameHateSpeech                 RuleName = "Hate Speech"
	RuleNameProfanity                  RuleName = "Profanity"
	RuleNameSexualContentExploitation  RuleName = "Sexual Content & Exploitation"
	RuleNameSocialDivisionPolarization RuleName = "Social Division & Polarization"
	RuleNameViolenceThreat             RuleName = "Violence & Public Safety Threats"
	RuleNameCodeDetection              RuleName = "Code Detection"
)

// String returns the string representation of the rule name.
func (r RuleName) String() string {
	return string(r)
}

// Rule enables a single policy check in an InspectionConfig. For the detection
// rules that support it (PII, PCI, PHI), EntityTypes narrows the check to
// specific entity kinds, for example "EMAIL" or "CREDIT_CARD". Order of entity
// types carries no meaning.
type Rule struct {
	RuleName    RuleName `json:"rule_name"`
	EntityTypes []string `json:"entity_types,omitempty"`
}

// InspectionConfig overrides the rule set applied to a single inspection call.
// When set, EnabledRules fully replaces the tenant's default rule set for that
// call; rules not listed are not evaluated. A nil config leaves the service
// defaults in force.
type InspectionConfig struct {
	EnabledRules []Rule `json:"enabled_rules,omitempty"`
}

// Classification is a broad category of violation reported by the service.
type Classification string

const (
	// ClassificationNone is the zero value reported for clean content.
	ClassificationNone Classification = "NONE_CLASSIFICATION"
	// ClassificationSecurityViolation covers prompt injection and similar attacks.
	ClassificationSecurityViolation Classification = "SECURITY_VIOLATION"
	// ClassificationPrivacyViolation covers leaked PII, PCI, and PHI.
	ClassificationPrivacyViolation Classification = "PRIVACY_VIOLATION"
	// ClassificationSafetyViolation covers harmful or offensive content.
	ClassificationSafetyViolation Classification = "SAFETY_VIOLATION"
	// ClassificationRelevanceViolation covers content outside the allowed topics.
	ClassificationRelevanceViolation Classification = "RELEVANCE_VIOLATION"
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// Severity grades how serious a detected violation is.
type Severity string

const (
	// SeverityNone is the zero value. Reported when no severity applies.
	SeverityNone Severity = "NONE_SEVERITY"
	// SeveritySafe means the content was explicitly judged safe.
	SeveritySafe Severity = "SAFE"
	SeverityLow  Severity = "LOW"
	// SeverityMedium sits between low and high.
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Metadata carries caller-declared context for a transaction. All fields are
// optional; the service uses them for event attribution and correlation, never
// for the verdict itself.
type Metadata struct {
	// User identifies the end user on whose behalf the content was produced.
	User string `json:"user,omitempty"`
	// SrcApp names the application that originated the content.
	SrcApp string `json:"src_app,omitempty"`
	// DstApp names the application the content is destined for.
	DstApp string `json:"dst_app,omitempty"`
	// SrcIP is the source address of the original transaction.
	SrcIP string `json:"src_ip,omitempty"`
	// DstIP is the destination address of the original transaction.
	DstIP string `json:"dst_ip,omitempty"`
	// SNI observed on the original connection.
	SNI string `json:"sni,omitempty"`
	// DstHost is the destination host of the original transaction.
	DstHost string `json:"dst_host,omitempty"`
	// ClientTransactionID is a caller-chosen correlation id. The service echoes
	// it back on the result.
	ClientTransactionID string `json:"client_transaction_id,omitempty"`

	// Extra holds additional attributes not covered by the named fields. They
	// are serialized as top-level keys alongside the named fields; a key that
	// collides with a named field is dropped.
	Extra map[string]string `json:"-"`
}

// SetExtra records an additional metadata attribute. Numeric, boolean, and
// JSON-serializable values are coerced to the string form the wire carries.
func (m *Metadata) SetExtra(key string, value any) error {
	s, err := coerceString("metadata."+key, value)
	if err != nil {
		return err
	}
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[key] = s
	return nil
}

// MarshalJSON flattens Extra into the same JSON object as the named fields.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type plain Metadata
	raw, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return raw, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, taken := merged[k]; taken {
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = enc
	}
	return json.Marshal(merged)
}

// RuleOutcome reports one rule the service matched against the submitted
// content, with the classification it produced.
type RuleOutcome struct {
	// RuleName is the rule that matched.
	RuleName RuleName `json:"rule_name"`
	// Classification the match was filed under.
	Classification Classification `json:"classification,omitempty"`
	// EntityTypes lists the entity kinds that triggered the match, for rules
	// that detect entities.
	EntityTypes []string `json:"entity_types,omitempty"`
	// Severity of this particular match, when the service grades it.
	Severity Severity `json:"severity,omitempty"`
}

// InspectResult is the verdict for a single inspection call.
//
// IsSafe is the primary signal. When it is false, Rules lists what matched and
// Classifications summarizes the violation categories. The remaining fields
// are advisory detail the service may or may not populate.
type InspectResult struct {
	// IsSafe reports whether the content passed every enabled rule.
	IsSafe bool `json:"is_safe"`
	// Rules that matched, in the order the service reported them. Empty for
	// safe content.
	Rules []RuleOutcome `json:"rules,omitempty"`
	// Classifications is the summary of violation categories across all
	// matched rules.
	Classifications []Classification `json:"classifications,omitempty"`
	// Severity is the overall severity across all matches.
	Severity Severity `json:"severity,omitempty"`
	// AttackTechnique names the technique detected for security violations.
	AttackTechnique string `json:"attack_technique,omitempty"`
	// Explanation is a human-readable account of the verdict.
	Explanation string `json:"explanation,omitempty"`
	// EventID is the service-assigned identifier for this inspection event.
	EventID string `json:"event_id,omitempty"`
	// ClientTransactionID echoes the correlation id from the request metadata.
	ClientTransactionID string `json:"client_transaction_id,omitempty"`
}

// InspectOptions adjust a single inspection call. The zero value is valid and
// means: no metadata, service-default rules, a generated request id, and the
// client-wide timeout.
type InspectOptions struct {
	// Metadata to attach to the transaction.
	Metadata *Metadata
	// Config overrides the enabled rule set for this call only. When set it
	// fully replaces the service-side defaults.
	Config *InspectionConfig
	// RequestID overrides the generated trace id for this call. Useful to tie
	// the inspection to an id your own system already logs.
	RequestID string
	// Timeout overrides the client-wide timeout for this call.
	Timeout time.Duration
}
