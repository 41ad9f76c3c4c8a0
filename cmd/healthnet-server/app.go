package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/healthnet/healthnet/internal/config"
	"github.com/healthnet/healthnet/internal/domain/account"
	"github.com/healthnet/healthnet/internal/domain/admin"
	"github.com/healthnet/healthnet/internal/domain/appointment"
	"github.com/healthnet/healthnet/internal/domain/diagnosis"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/domain/emergency"
	"github.com/healthnet/healthnet/internal/domain/labresult"
	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/blobstore"
	"github.com/healthnet/healthnet/internal/platform/db"
	"github.com/healthnet/healthnet/internal/platform/middleware"
)

// app holds the connection pool and every domain service.
type app struct {
	pool        *pgxpool.Pool
	signingKey  []byte
	revocations *auth.TokenRevocationStore

	accounts     *account.Service
	admins       *admin.Service
	doctors      *doctor.Service
	patients     *patient.Service
	diagnoses    *diagnosis.Service
	labResults   *labresult.Service
	appointments *appointment.Service
	safePass     *emergency.Service
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newAppWithStore(ctx, cfg, logger, blobs)
}

func newAppWithStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, blobs blobstore.Store) (*app, error) {
	key, generated, err := resolveSigningKey(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set; tokens are signed with a random per-process key")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}

	a := &app{
		pool:        pool,
		signingKey:  key,
		revocations: auth.NewTokenRevocationStore(10 * time.Minute),
	}
	tx := db.NewTransactor(pool)
	maxUpload := middleware.ParseLimit(cfg.MaxUploadSize)
	tokens := auth.NewTokenIssuer(key, cfg.JWTIssuer, cfg.JWTTTL)
	adminRepo := admin.NewAdminRepoPG(pool)

	a.doctors = doctor.NewService(doctor.NewDoctorRepoPG(pool), doctor.NewAssignmentRepoPG(pool))
	a.patients = patient.NewService(patient.NewPatientRepoPG(pool), patient.NewEmergencyInfoRepoPG(pool),
		patient.NewAllergyRepoPG(pool), tx, blobs, maxUpload)
	resolver := &profileResolver{admins: adminRepo, doctors: a.doctors, patients: a.patients}
	a.accounts = account.NewService(account.NewUserRepoPG(pool), tx, tokens, cfg.JWTTTL, resolver, a.patients, a.revocations)
	a.admins = admin.NewService(adminRepo, admin.NewStatsRepoPG(pool), tx, a.accounts, a.doctors, a.patients)
	a.diagnoses = diagnosis.NewService(diagnosis.NewRepoPG(pool), a.doctors)
	a.labResults = labresult.NewService(labresult.NewRepoPG(pool), a.doctors, a.diagnoses, blobs, maxUpload)
	a.appointments = appointment.NewService(appointment.NewRepoPG(pool), tx, a.doctors)
	a.safePass = emergency.NewService(emergency.NewCodeRepoPG(pool), emergency.NewScanRepoPG(pool), tx,
		a.patients, cfg.PublicBaseURL, logger)
	return a, nil
}

func (a *app) Close() {
	a.revocations.Close()
	a.pool.Close()
}

func s3Config(cfg *config.Config) blobstore.S3Config {
	return blobstore.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.UsesS3() {
		s3, err := blobstore.NewS3Store(ctx, s3Config(cfg))
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	local, err := blobstore.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		return nil, err
	}
	return local, nil
}

// resolveSigningKey decodes the hex JWT secret, or generates a random 32-byte
// key when none is configured. The second return value is true when a random
// key was generated.
func resolveSigningKey(secret string) ([]byte, bool, error) {
	if secret != "" {
		decoded, err := hex.DecodeString(secret)
		if err != nil {
			return nil, false, fmt.Errorf("invalid JWT_SECRET hex value: %w", err)
		}
		return decoded, false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

type adminLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*admin.Admin, error)
}

type doctorLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
}

type patientLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Patient, error)
}

// profileResolver maps a user to the id of its admin, doctor or patient row
// for account.Service. A user without a profile row resolves to uuid.Nil.
type profileResolver struct {
	admins   adminLookup
	doctors  doctorLookup
	patients patientLookup
}

func (r *profileResolver) ResolveProfile(ctx context.Context, userID uuid.UUID, role string) (uuid.UUID, error) {
	switch role {
	case auth.RoleAdmin:
		a, err := r.admins.GetByUserID(ctx, userID)
		if errors.Is(err, admin.ErrNotFound) {
			return uuid.Nil, nil
		}
		if err != nil {
			return uuid.Nil, err
		}
		return a.ID, nil
	case auth.RoleDoctor:
		d, err := r.doctors.GetByUserID(ctx, userID)
		if errors.Is(err, doctor.ErrNotFound) {
			return uuid.Nil, nil
		}
		if err != nil {
			return uuid.Nil, err
		}
		return d.ID, nil
	case auth.RolePatient:
		p, err := r.patients.GetByUserID(ctx, userID)
		if errors.Is(err, patient.ErrNotFound) {
			return uuid.Nil, nil
		}
		if err != nil {
			return uuid.Nil, err
		}
		return p.ID, nil
	}
	return uuid.Nil, fmt.Errorf("unknown role %q", role)
}
