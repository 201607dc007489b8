// internal/receipt/service.go
package receipt

import (
	"context"

	"github.com/valpere/ReceiptScrapexter/internal/security"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

// RejectedLinkError is returned by Service.Lookup when a link fails the
// portal checks. Nothing is fetched for a rejected link.
type RejectedLinkError struct {
	Link   string
	Issue  string
	Reason string
}

func (e *RejectedLinkError) Error() string {
	return e.Reason
}

// Service is the allow-listed entry point used by the helper page. It only
// extracts from links whose host belongs to a known tax-authority portal.
type Service struct {
	extractor *Extractor
	validator *security.SecurityValidator
	logger    utils.Logger
}

// NewService creates a service. A nil validator uses the default portal list.
func NewService(extractor *Extractor, validator *security.SecurityValidator) *Service {
	if validator == nil {
		validator = security.NewSecurityValidator(nil)
	}
	return &Service{
		extractor: extractor,
		validator: validator,
		logger:    utils.NewComponentLogger("receipt-service"),
	}
}

// Lookup validates the link and runs the extraction. The error is always a
// *RejectedLinkError; extraction itself never fails.
func (s *Service) Lookup(ctx context.Context, req ExtractionRequest) (Result, error) {
	link := NormalizeLink(req.SourceLink)

	validation := s.validator.ValidateURL(link)
	if !validation.Valid {
		issue := ""
		if len(validation.Issues) > 0 {
			issue = validation.Issues[0].Type
		}
		s.logger.WithFields(map[string]interface{}{
			"link":  link,
			"issue": issue,
		}).Info("lookup rejected")
		return Result{}, &RejectedLinkError{
			Link:   link,
			Issue:  issue,
			Reason: validation.FirstMessage(),
		}
	}

	return s.extractor.Extract(ctx, req), nil
}

// SetAllowedHosts replaces the portal allow-list, e.g. after a config reload
func (s *Service) SetAllowedHosts(hosts []string) {
	s.validator.SetAllowedHosts(hosts)
}

// Extractor returns the underlying extractor
func (s *Service) Extractor() *Extractor {
	return s.extractor
}
