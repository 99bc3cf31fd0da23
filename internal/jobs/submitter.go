package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/keyword"
)

var (
	// ErrNoDepartments rejects a submission with an empty department field.
	ErrNoDepartments = errors.New("no department selected")
	// ErrNoKeywords rejects a submission with no checked or custom keyword.
	ErrNoKeywords = errors.New("no keyword selected")
)

// Sender posts a validated request to the backend.
type Sender interface {
	Submit(ctx context.Context, req Request) (Submission, error)
}

// Submitter validates job requests before handing them to the backend.
type Submitter struct {
	sender Sender
	logger *zap.Logger
}

// NewSubmitter wires a Submitter.
func NewSubmitter(sender Sender, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{sender: sender, logger: logger.Named("submitter")}
}

// NewRequest assembles a request from the raw form inputs. Blank checked
// keywords are dropped.
func NewRequest(targetDate, departments string, checked []string, custom string) Request {
	kws := make([]string, 0, len(checked))
	for _, kw := range checked {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	return Request{
		TargetDate:     strings.TrimSpace(targetDate),
		Departments:    strings.TrimSpace(departments),
		Keywords:       kws,
		CustomKeywords: custom,
	}
}

// Validate checks departments first, then keywords.
func Validate(req Request) error {
	if req.DepartmentCount() == 0 {
		return ErrNoDepartments
	}
	if len(req.Keywords) == 0 && len(keyword.ParseCustom(req.CustomKeywords)) == 0 {
		return ErrNoKeywords
	}
	return nil
}

// Submit validates req and posts it. Nothing is sent when validation fails.
func (s *Submitter) Submit(ctx context.Context, req Request) (Submission, error) {
	if err := Validate(req); err != nil {
		return Submission{}, err
	}
	sub, err := s.sender.Submit(ctx, req)
	if err != nil {
		s.logger.Warn("job submission failed",
			zap.Int("departments", req.DepartmentCount()),
			zap.Error(err),
		)
		return Submission{}, fmt.Errorf("submit job: %w", err)
	}
	s.logger.Info("job submitted",
		zap.String("process_id", sub.ProcessID),
		zap.Int("departments", req.DepartmentCount()),
		zap.Int("keywords", len(req.Keywords)),
	)
	return sub, nil
}

// ErrorDetail extracts the message shown to the user for a failed
// submission.
func ErrorDetail(err error) string {
	var be *BackendError
	if errors.As(err, &be) && be.Detail != "" {
		return be.Detail
	}
	if err == nil {
		return ""
	}
	return DefaultSubmitError
}
