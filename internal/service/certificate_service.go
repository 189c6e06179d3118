package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/cems-project/cems-api/internal/dto"
	"github.com/cems-project/cems-api/internal/models"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
	"github.com/cems-project/cems-api/pkg/export"
	"github.com/cems-project/cems-api/pkg/storage"
)

type certificateRegistrationStore interface {
	GetByID(ctx context.Context, id int64) (*models.Registration, error)
	SetCertificatePath(ctx context.Context, id int64, path string) error
}

// CertificateService renders participation certificates for attended
// registrations and hands out time-limited signed download URLs.
type CertificateService struct {
	registrations certificateRegistrationStore
	events        eventStore
	users         userReader
	venues        venueReader
	renderer      *export.CertificateRenderer
	files         *storage.LocalStorage
	signer        *storage.SignedURLSigner
	baseURL       string
	logger        *zap.Logger
}

// NewCertificateService constructs the service.
func NewCertificateService(registrations certificateRegistrationStore, events eventStore, users userReader, venues venueReader, renderer *export.CertificateRenderer, files *storage.LocalStorage, signer *storage.SignedURLSigner, baseURL string, logger *zap.Logger) *CertificateService {
	return &CertificateService{
		registrations: registrations,
		events:        events,
		users:         users,
		venues:        venues,
		renderer:      renderer,
		files:         files,
		signer:        signer,
		baseURL:       baseURL,
		logger:        logger,
	}
}

// Generate produces (or reuses) the certificate for a registration and
// returns a signed download URL. Attendance is required; registering alone
// earns nothing.
func (s *CertificateService) Generate(ctx context.Context, registrationID int64, caller *models.User) (*dto.CertificateResponse, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load registration")
	}
	if reg.StudentID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another student")
	}
	if !reg.Attended {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate requires marked attendance")
	}

	relPath := ""
	if reg.CertificatePath != nil && *reg.CertificatePath != "" {
		relPath = *reg.CertificatePath
	} else {
		relPath, err = s.render(ctx, reg)
		if err != nil {
			return nil, err
		}
		if err := s.registrations.SetCertificatePath(ctx, reg.ID, relPath); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store certificate path")
		}
	}

	refID := strconv.FormatInt(reg.ID, 10)
	token, expiresAt, err := s.signer.Generate(refID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign download url")
	}

	return &dto.CertificateResponse{
		RegistrationID: reg.ID,
		DownloadURL:    fmt.Sprintf("%s/api/v1/certificates/download?token=%s", s.baseURL, token),
		ExpiresAt:      expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// Download validates a signed token and opens the certificate file. The
// caller owns closing the returned handle.
func (s *CertificateService) Download(ctx context.Context, token string) (*os.File, string, error) {
	refID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		s.logger.Warn("certificate file missing", zap.String("registration", refID), zap.String("path", relPath))
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate file not found")
	}
	return file, fmt.Sprintf("certificate_%s.pdf", refID), nil
}

func (s *CertificateService) render(ctx context.Context, reg *models.Registration) (string, error) {
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	student, err := s.users.FindByID(ctx, reg.StudentID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load student")
	}

	venueName := ""
	if event.VenueID != nil {
		if venue, err := s.venues.GetByID(ctx, *event.VenueID); err == nil {
			venueName = venue.Name
		}
	}
	organizerName := ""
	if organizer, err := s.users.FindByID(ctx, event.OrganizerID); err == nil {
		organizerName = organizer.FullName
	}

	data, err := s.renderer.Render(export.Certificate{
		StudentName: student.FullName,
		EventTitle:  event.Title,
		EventDate:   event.EventDate.Format("2006-01-02"),
		VenueName:   venueName,
		Organizer:   organizerName,
		SerialNo:    fmt.Sprintf("cems-%d-%d", event.ID, reg.ID),
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render certificate")
	}

	relPath := fmt.Sprintf("event_%d/registration_%d.pdf", event.ID, reg.ID)
	if _, err := s.files.Save(relPath, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store certificate")
	}

	s.logger.Info("certificate generated",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("event_id", event.ID),
	)
	return relPath, nil
}
