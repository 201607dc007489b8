// Package security provides URL validation and the tax-authority host
// allow-list used before any portal lookup.
package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Severity levels for security issues
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase name of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Issue types reported by ValidateURL
const (
	IssueURLLength        = "url_length_exceeded"
	IssueInvalidURL       = "invalid_url_format"
	IssueDisallowedScheme = "disallowed_scheme"
	IssueHostNotAllowed   = "host_not_allowed"
	IssueScriptProtocol   = "javascript_protocol"
)

var scriptProtocol = regexp.MustCompile(`(?i)^\s*(javascript|data|vbscript):`)

// SecurityConfig configures the security validator
type SecurityConfig struct {
	AllowedSchemes []string `json:"allowed_schemes" yaml:"allowed_schemes"`
	AllowedHosts   []string `json:"allowed_hosts" yaml:"allowed_hosts"`
	MaxURLLength   int      `json:"max_url_length" yaml:"max_url_length"`
}

// DefaultAllowedHosts lists the state tax-authority domains whose receipt
// portals are known. Subdomains match as well.
func DefaultAllowedHosts() []string {
	return []string{
		"fazenda.sp.gov.br",
		"fazenda.rj.gov.br",
		"fazenda.mg.gov.br",
		"fazenda.pr.gov.br",
		"fazenda.df.gov.br",
		"sefaz.rs.gov.br",
		"sefaz.ba.gov.br",
		"sefaz.pe.gov.br",
		"sefaz.go.gov.br",
		"sefaz.am.gov.br",
		"sefaz.ce.gov.br",
		"sefaz.es.gov.br",
		"sefaz.mt.gov.br",
		"sefaz.ms.gov.br",
		"sefaz.ma.gov.br",
		"sefaz.pi.gov.br",
		"sefaz.se.gov.br",
		"sefaz.al.gov.br",
		"sefaz.to.gov.br",
		"sefa.pa.gov.br",
		"sef.sc.gov.br",
		"set.rn.gov.br",
		"receita.pb.gov.br",
	}
}

// DefaultSecurityConfig returns the default configuration
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		AllowedSchemes: []string{"https", "http"},
		AllowedHosts:   DefaultAllowedHosts(),
		MaxURLLength:   2048,
	}
}

// SecurityValidator validates receipt links before they are fetched
type SecurityValidator struct {
	mu             sync.RWMutex
	allowedSchemes []string
	allowedHosts   []string
	maxURLLength   int
}

// NewSecurityValidator creates a new security validator
func NewSecurityValidator(config *SecurityConfig) *SecurityValidator {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	schemes := config.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"https", "http"}
	}
	maxLen := config.MaxURLLength
	if maxLen <= 0 {
		maxLen = 2048
	}

	sv := &SecurityValidator{
		allowedSchemes: schemes,
		maxURLLength:   maxLen,
	}
	sv.SetAllowedHosts(config.AllowedHosts)
	return sv
}

// ValidationResult represents the result of security validation
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Issues []SecurityIssue `json:"issues"`
}

// SecurityIssue represents a security concern
type SecurityIssue struct {
	Type        string    `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Remediation string    `json:"remediation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FirstMessage returns the message of the first issue, or "" when valid.
func (vr *ValidationResult) FirstMessage() string {
	if len(vr.Issues) == 0 {
		return ""
	}
	return vr.Issues[0].Message
}

// HasIssue reports whether an issue of the given type was recorded.
func (vr *ValidationResult) HasIssue(issueType string) bool {
	for _, issue := range vr.Issues {
		if issue.Type == issueType {
			return true
		}
	}
	return false
}

// ValidateURL checks length, format, scheme and the host allow-list.
// An empty allow-list accepts every host.
func (sv *SecurityValidator) ValidateURL(inputURL string) *ValidationResult {
	result := &ValidationResult{
		Valid:  true,
		Issues: make([]SecurityIssue, 0),
	}

	if len(inputURL) > sv.maxURLLength {
		result.addIssue(SecurityIssue{
			Type:        IssueURLLength,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("URL length %d exceeds maximum allowed %d", len(inputURL), sv.maxURLLength),
			Remediation: "Scan the QR code again; the link appears corrupted",
		})
	}

	if scriptProtocol.MatchString(inputURL) {
		result.addIssue(SecurityIssue{
			Type:     IssueScriptProtocol,
			Severity: SeverityCritical,
			Message:  "Script and data URLs are not receipt links",
		})
		return result
	}

	parsedURL, err := url.Parse(strings.TrimSpace(inputURL))
	if err != nil || parsedURL.Host == "" {
		msg := "URL has no host"
		if err != nil {
			msg = fmt.Sprintf("Invalid URL format: %v", err)
		}
		result.addIssue(SecurityIssue{
			Type:        IssueInvalidURL,
			Severity:    SeverityHigh,
			Message:     msg,
			Remediation: "Ensure URL follows proper format (scheme://host/path)",
		})
		return result
	}

	if !sv.isSchemeAllowed(strings.ToLower(parsedURL.Scheme)) {
		result.addIssue(SecurityIssue{
			Type:        IssueDisallowedScheme,
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("Scheme '%s' not in allowed list", parsedURL.Scheme),
			Remediation: fmt.Sprintf("Use one of the allowed schemes: %s", strings.Join(sv.allowedSchemes, ", ")),
		})
	}

	if !sv.IsHostAllowed(parsedURL.Hostname()) {
		result.addIssue(SecurityIssue{
			Type:        IssueHostNotAllowed,
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("Host '%s' is not a known tax-authority portal", parsedURL.Hostname()),
			Remediation: "Add the portal domain to portal.allowed_hosts if it is legitimate",
		})
	}

	return result
}

// IsHostAllowed reports whether host equals an allow-listed domain or is one
// of its subdomains.
func (sv *SecurityValidator) IsHostAllowed(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	sv.mu.RLock()
	defer sv.mu.RUnlock()

	if len(sv.allowedHosts) == 0 {
		return true
	}
	if host == "" {
		return false
	}
	for _, allowed := range sv.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// SetAllowedHosts replaces the allow-list. Safe for concurrent use.
func (sv *SecurityValidator) SetAllowedHosts(hosts []string) {
	cleaned := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "*.")
		if h != "" {
			cleaned = append(cleaned, h)
		}
	}

	sv.mu.Lock()
	sv.allowedHosts = cleaned
	sv.mu.Unlock()
}

// AllowedHosts returns a copy of the current allow-list
func (sv *SecurityValidator) AllowedHosts() []string {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return append([]string(nil), sv.allowedHosts...)
}

func (vr *ValidationResult) addIssue(issue SecurityIssue) {
	if issue.Timestamp.IsZero() {
		issue.Timestamp = time.Now()
	}
	vr.Issues = append(vr.Issues, issue)
	vr.Valid = false
}

func (sv *SecurityValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range sv.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
