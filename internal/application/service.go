package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dzakira/authcore/internal/biometric"
	"github.com/dzakira/authcore/internal/domain/entity"
	repo "github.com/dzakira/authcore/internal/domain/repository"
	"github.com/dzakira/authcore/internal/federation"
	"github.com/dzakira/authcore/pkg/helpers"
)

var (
	// ErrMissingCredential is returned when a registration would create an
	// account with no usable credential at all.
	ErrMissingCredential = errors.New("account needs at least one credential")

	// ErrUnknownAttempt is returned for an attempt variant the engine does
	// not recognize.
	ErrUnknownAttempt = errors.New("unknown attempt type")
)

// Service is the authentication engine. It holds no state between calls;
// each operation is one synchronous pass from input to Result. The caller
// commits session state only on Success.
type Service struct {
	Repo          repo.UserRepository
	Encoder       biometric.Encoder
	Federation    *federation.Resolver
	Logger        *logrus.Logger
	Threshold     float64
	MaxImageBytes int
}

func NewService(r repo.UserRepository, enc biometric.Encoder, fed *federation.Resolver, logger *logrus.Logger, threshold float64, maxImageBytes int) *Service {
	if threshold <= 0 {
		threshold = biometric.DefaultThreshold
	}
	if maxImageBytes <= 0 {
		maxImageBytes = biometric.DefaultMaxImageBytes
	}
	return &Service{
		Repo:          r,
		Encoder:       enc,
		Federation:    fed,
		Logger:        logger,
		Threshold:     threshold,
		MaxImageBytes: maxImageBytes,
	}
}

// Authenticate dispatches the attempt to exactly the matching verifier and
// returns its Result unchanged.
func (s *Service) Authenticate(ctx context.Context, a Attempt) (Result, error) {
	switch at := a.(type) {
	case PasswordAttempt:
		return s.LoginWithPassword(ctx, at.Username, at.Password)
	case BiometricAttempt:
		return s.LoginWithBiometric(ctx, at.Image)
	case FederationAttempt:
		return s.LoginWithFederation(ctx, at.State, at.Code)
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownAttempt, a)
	}
}

// RegisterWithPassword creates a password-only account. Uniqueness is
// decided by the store insert itself, so a duplicate surfaces the same way
// no matter how the race falls.
func (s *Service) RegisterWithPassword(ctx context.Context, username, email, password string) (Result, error) {
	if password == "" {
		return Result{}, ErrMissingCredential
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return Result{}, err
	}

	u := &entity.UserRecord{Username: username, Email: email, PasswordHash: hash}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return failure(ReasonDuplicateIdentity), nil
		}
		return Result{}, err
	}

	s.Logger.WithField("username", username).Info("registered password user")
	return success(u.Username, u.Email, ""), nil
}

// RegisterWithBiometric extracts a face template from the capture and
// creates an account carrying it, with an optional password alongside. A
// duplicate identity is surfaced as a failure, never silently downgraded to
// a password-only registration.
func (s *Service) RegisterWithBiometric(ctx context.Context, username, email, password string, image []byte) (Result, error) {
	probe, res, err := s.extract(ctx, image)
	if err != nil || !res.Success {
		return res, err
	}

	u := &entity.UserRecord{
		Username:     username,
		Email:        email,
		FaceTemplate: biometric.EncodeTemplate(probe),
	}
	if password != "" {
		hash, err := helpers.HashPassword(password)
		if err != nil {
			return Result{}, err
		}
		u.PasswordHash = hash
	}

	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return failure(ReasonDuplicateIdentity), nil
		}
		return Result{}, err
	}

	s.Logger.WithField("username", username).Info("enrolled biometric user")
	return success(u.Username, u.Email, ""), nil
}

// ReplaceBiometric re-enrolls an existing account, overwriting the stored
// template in one atomic update.
func (s *Service) ReplaceBiometric(ctx context.Context, username string, image []byte) (Result, error) {
	probe, res, err := s.extract(ctx, image)
	if err != nil || !res.Success {
		return res, err
	}

	if err := s.Repo.ReplaceFaceTemplate(ctx, username, biometric.EncodeTemplate(probe)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return failure(ReasonInvalidCredentials), nil
		}
		return Result{}, err
	}

	s.Logger.WithField("username", username).Info("replaced biometric template")
	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		return Result{}, err
	}
	return success(u.Username, u.Email, ""), nil
}

// LoginWithPassword verifies the stored bcrypt digest. Unknown usernames
// and wrong passwords produce the same failure so the endpoint does not
// become a username oracle.
func (s *Service) LoginWithPassword(ctx context.Context, username, password string) (Result, error) {
	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return failure(ReasonInvalidCredentials), nil
		}
		return Result{}, err
	}
	if !u.HasPassword() || !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return failure(ReasonInvalidCredentials), nil
	}
	return success(u.Username, u.Email, ""), nil
}

// LoginWithBiometric identifies the captured face against every enrolled
// template. Among candidates within the distance threshold the closest one
// wins; confidence is 1 - distance clamped to [0,1].
func (s *Service) LoginWithBiometric(ctx context.Context, image []byte) (Result, error) {
	enrolled, err := s.Repo.ListEnrolled(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(enrolled) == 0 {
		return failure(ReasonNoEnrolledBiometrics), nil
	}

	probe, res, err := s.extract(ctx, image)
	if err != nil || !res.Success {
		return res, err
	}

	candidates := make([]biometric.Candidate, 0, len(enrolled))
	byUsername := make(map[string]*entity.UserRecord, len(enrolled))
	for _, u := range enrolled {
		d, err := biometric.DecodeTemplate(u.FaceTemplate)
		if err != nil {
			// A template this process cannot decode means the row was
			// corrupted outside the engine; that is a storage fault.
			return Result{}, fmt.Errorf("template for %q: %w", u.Username, err)
		}
		candidates = append(candidates, biometric.Candidate{Key: u.Username, Descriptor: d})
		byUsername[u.Username] = u
	}

	match, ok, err := biometric.BestMatch(probe, candidates, s.Threshold)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failure(ReasonNoMatch), nil
	}

	u := byUsername[match.Key]
	s.Logger.WithFields(logrus.Fields{
		"username": u.Username,
		"distance": match.Distance,
	}).Info("biometric match")

	res = success(u.Username, u.Email, "")
	res.Confidence = biometric.Confidence(match.Distance)
	return res, nil
}

// FederationAuthURL starts a federation attempt: it issues a state nonce
// and returns the provider authorization URL carrying it.
func (s *Service) FederationAuthURL(ctx context.Context) (string, error) {
	return s.Federation.AuthURL(ctx)
}

// LoginWithFederation resolves an OAuth2 callback to a local identity,
// provisioning a record on first sight.
func (s *Service) LoginWithFederation(ctx context.Context, state, code string) (Result, error) {
	u, profile, err := s.Federation.Resolve(ctx, state, code)
	if err != nil {
		if errors.Is(err, federation.ErrProvider) {
			s.Logger.WithError(err).Warn("federation attempt rejected")
			return failure(ReasonProviderError), nil
		}
		return Result{}, err
	}
	return success(u.Username, u.Email, profile.DisplayName()), nil
}

// extract normalizes the capture and encodes the first detected face.
// Failure to find a face is an ordinary Result; oversized or undecodable
// input propagates as an error for the caller to map.
func (s *Service) extract(ctx context.Context, image []byte) (biometric.Descriptor, Result, error) {
	probe, err := biometric.ExtractOne(ctx, s.Encoder, image, s.MaxImageBytes)
	if err != nil {
		if errors.Is(err, biometric.ErrNoFace) {
			return nil, failure(ReasonNoFaceDetected), nil
		}
		return nil, Result{}, err
	}
	return probe, Result{Success: true}, nil
}
