package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/db"
)

// QRSize is the edge length in pixels of the rendered SafePass PNG.
const QRSize = 256

const (
	maxIPLength        = 64
	maxUserAgentLength = 512
)

// ProfileSource is satisfied by *patient.Service.
type ProfileSource interface {
	EmergencyProfile(ctx context.Context, patientID uuid.UUID) (*patient.EmergencyProfile, error)
}

type Service struct {
	codes    CodeRepository
	scans    ScanRepository
	tx       db.Transactor
	profiles ProfileSource
	baseURL  string
	logger   zerolog.Logger
	newCode  func() string
	now      func() time.Time
}

func NewService(codes CodeRepository, scans ScanRepository, tx db.Transactor, profiles ProfileSource,
	publicBaseURL string, logger zerolog.Logger) *Service {
	return &Service{
		codes:    codes,
		scans:    scans,
		tx:       tx,
		profiles: profiles,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		logger:   logger,
		newCode:  NewCode,
		now:      time.Now,
	}
}

// NewCode returns a random 32 character lowercase hex code.
func NewCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidCode reports whether s has the shape of a SafePass code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// URL is the public address encoded in the QR image.
func (s *Service) URL(code string) string {
	return s.baseURL + "/emergency/" + code
}

// Issue revokes the patient's active code, if any, and creates a new one.
func (s *Service) Issue(ctx context.Context, patientID uuid.UUID) (*QRCode, error) {
	q := &QRCode{PatientID: patientID, Code: s.newCode()}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.codes.RevokeActive(ctx, patientID, s.now()); err != nil {
			return fmt.Errorf("revoke active code: %w", err)
		}
		return s.codes.Create(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) Current(ctx context.Context, patientID uuid.UUID) (*QRCode, error) {
	return s.codes.GetActiveByPatient(ctx, patientID)
}

// Revoke disables the active code. Old links stop resolving immediately.
func (s *Service) Revoke(ctx context.Context, patientID uuid.UUID) error {
	n, err := s.codes.RevokeActive(ctx, patientID, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QRImage renders the active code's URL as a PNG.
func (s *Service) QRImage(ctx context.Context, patientID uuid.UUID) ([]byte, error) {
	q, err := s.codes.GetActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.URL(q.Code), qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Lookup resolves a scanned code to the patient's public view and records
// the scan. Unknown and revoked codes both return ErrNotFound.
func (s *Service) Lookup(ctx context.Context, code string, scanner Scanner) (*View, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if !ValidCode(code) {
		return nil, ErrNotFound
	}

	q, err := s.codes.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.EmergencyProfile(ctx, q.PatientID)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	scan := &Scan{
		QRCodeID:  q.ID,
		PatientID: q.PatientID,
		IPAddress: truncate(scanner.IP, maxIPLength),
		UserAgent: truncate(scanner.UserAgent, maxUserAgentLength),
	}
	if err := s.scans.Record(ctx, scan); err != nil {
		// the responder still gets the page
		s.logger.Error().Err(err).Str("qr_code_id", q.ID.String()).Msg("record safepass scan")
	}

	return NewView(profile, s.now()), nil
}

func (s *Service) ListScans(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Scan, int, error) {
	return s.scans.ListByPatient(ctx, patientID, limit, offset)
}

// RecentScans counts scans of any of the patient's codes within the window.
func (s *Service) RecentScans(ctx context.Context, patientID uuid.UUID, window time.Duration) (int, error) {
	return s.scans.CountSince(ctx, patientID, s.now().Add(-window))
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) *string {
	if s == "" {
		return nil
	}
	if len(s) > n {
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return &s
}
