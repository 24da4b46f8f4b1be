package application

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzakira/authcore/internal/biometric"
	"github.com/dzakira/authcore/internal/domain/entity"
	"github.com/dzakira/authcore/internal/domain/repository"
	"github.com/dzakira/authcore/internal/federation"
)

// --- fakes ---

type memRepo struct {
	mu      sync.Mutex
	byUser  map[string]*entity.UserRecord
	byEmail map[string]*entity.UserRecord
	seq     int
	listErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		byUser:  map[string]*entity.UserRecord{},
		byEmail: map[string]*entity.UserRecord{},
	}
}

func (m *memRepo) Create(ctx context.Context, u *entity.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[u.Username]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return repository.ErrDuplicate
	}
	m.seq++
	u.ID = string(rune('a' + m.seq))
	u.CreatedAt = time.Now()
	cp := *u
	m.byUser[u.Username] = &cp
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memRepo) GetByUsername(ctx context.Context, username string) (*entity.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byUser[username]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memRepo) GetByEmail(ctx context.Context, email string) (*entity.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memRepo) ListEnrolled(ctx context.Context) ([]*entity.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.UserRecord
	for _, u := range m.byUser {
		if u.HasFaceTemplate() {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ReplaceFaceTemplate(ctx context.Context, username string, template []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byUser[username]
	if !ok {
		return repository.ErrNotFound
	}
	u.FaceTemplate = append([]byte(nil), template...)
	return nil
}

type stubEncoder struct {
	descriptors []biometric.Descriptor
	err         error
}

func (s *stubEncoder) Encode(ctx context.Context, normalizedPNG []byte) ([]biometric.Descriptor, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.descriptors, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(repo repository.UserRepository, enc biometric.Encoder) *Service {
	return NewService(repo, enc, nil, testLogger(), 0.6, 0)
}

// testPNG returns a minimal valid capture; the stub encoder decides what
// face it contains.
func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

// --- password flows ---

func TestPasswordRegisterThenLogin(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{})
	ctx := context.Background()

	res, err := svc.RegisterWithPassword(ctx, "alice", "a@x.com", "pw123secret")
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = svc.Authenticate(ctx, PasswordAttempt{Username: "alice", Password: "pw123secret"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, "alice", res.DisplayName)
}

func TestPasswordLoginWrongPassword(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{})
	ctx := context.Background()

	_, err := svc.RegisterWithPassword(ctx, "alice", "a@x.com", "pw123secret")
	require.NoError(t, err)

	res, err := svc.LoginWithPassword(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonInvalidCredentials, res.Reason)
}

func TestPasswordLoginUnknownUser(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{})

	res, err := svc.LoginWithPassword(context.Background(), "nobody", "pw123secret")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidCredentials, res.Reason)
}

func TestPasswordRegisterDuplicate(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{})
	ctx := context.Background()

	res, err := svc.RegisterWithPassword(ctx, "bob", "b@x.com", "pw123secret")
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = svc.RegisterWithPassword(ctx, "bob", "b2@x.com", "otherpw123")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonDuplicateIdentity, res.Reason)
}

func TestPasswordRegisterEmptyPassword(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{})

	_, err := svc.RegisterWithPassword(context.Background(), "carol", "c@x.com", "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

// --- biometric flows ---

func enroll(t *testing.T, repo *memRepo, username, email string, d biometric.Descriptor) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &entity.UserRecord{
		Username:     username,
		Email:        email,
		FaceTemplate: biometric.EncodeTemplate(d),
	}))
}

func TestBiometricRegisterThenIdentify(t *testing.T) {
	repo := newMemRepo()
	enc := &stubEncoder{descriptors: []biometric.Descriptor{{0.1, 0.1}}}
	svc := newTestService(repo, enc)
	ctx := context.Background()

	res, err := svc.RegisterWithBiometric(ctx, "dave", "d@x.com", "", testPNG(t))
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = svc.Authenticate(ctx, BiometricAttempt{Image: testPNG(t)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "dave", res.Username)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestBiometricIdentifyNoEnrolledUsers(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}})

	res, err := svc.LoginWithBiometric(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, ReasonNoEnrolledBiometrics, res.Reason)
}

func TestBiometricIdentifyNoFace(t *testing.T) {
	repo := newMemRepo()
	enroll(t, repo, "dave", "d@x.com", biometric.Descriptor{0, 0})
	svc := newTestService(repo, &stubEncoder{err: biometric.ErrNoFace})

	res, err := svc.LoginWithBiometric(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, ReasonNoFaceDetected, res.Reason)
}

func TestBiometricIdentifyPicksClosestMatch(t *testing.T) {
	repo := newMemRepo()
	// Probe is at the origin; A sits at distance 0.3, B at 0.5. Both clear
	// the 0.6 threshold, so arg-min must hand the login to A.
	enroll(t, repo, "userB", "b@x.com", biometric.Descriptor{0.5, 0})
	enroll(t, repo, "userA", "a@x.com", biometric.Descriptor{0.3, 0})
	svc := newTestService(repo, &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}})

	res, err := svc.LoginWithBiometric(context.Background(), testPNG(t))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "userA", res.Username)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestBiometricIdentifyNoMatch(t *testing.T) {
	repo := newMemRepo()
	enroll(t, repo, "dave", "d@x.com", biometric.Descriptor{5, 5})
	svc := newTestService(repo, &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}})

	res, err := svc.LoginWithBiometric(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, ReasonNoMatch, res.Reason)
}

func TestBiometricRegisterDuplicateSurfaces(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &stubEncoder{descriptors: []biometric.Descriptor{{0.1, 0.1}}})
	ctx := context.Background()

	_, err := svc.RegisterWithPassword(ctx, "erin", "e@x.com", "pw123secret")
	require.NoError(t, err)

	// Same identity again via the biometric path: the duplicate must be
	// reported, never quietly merged into the existing account.
	res, err := svc.RegisterWithBiometric(ctx, "erin", "e@x.com", "", testPNG(t))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonDuplicateIdentity, res.Reason)

	stored, err := repo.GetByUsername(ctx, "erin")
	require.NoError(t, err)
	assert.False(t, stored.HasFaceTemplate())
}

func TestBiometricRegisterNoFace(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{err: biometric.ErrNoFace})

	res, err := svc.RegisterWithBiometric(context.Background(), "frank", "f@x.com", "", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, ReasonNoFaceDetected, res.Reason)
}

func TestReplaceBiometric(t *testing.T) {
	repo := newMemRepo()
	enroll(t, repo, "dave", "d@x.com", biometric.Descriptor{5, 5})
	svc := newTestService(repo, &stubEncoder{descriptors: []biometric.Descriptor{{0.2, 0}}})
	ctx := context.Background()

	res, err := svc.ReplaceBiometric(ctx, "dave", testPNG(t))
	require.NoError(t, err)
	require.True(t, res.Success)

	// The old template is gone; the probe now matches the new one.
	svc.Encoder = &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}}
	res, err = svc.LoginWithBiometric(ctx, testPNG(t))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "dave", res.Username)
}

func TestReplaceBiometricUnknownUser(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}})

	res, err := svc.ReplaceBiometric(context.Background(), "ghost", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidCredentials, res.Reason)
}

func TestBiometricCorruptTemplateIsFault(t *testing.T) {
	repo := newMemRepo()
	require.NoError(t, repo.Create(context.Background(), &entity.UserRecord{
		Username:     "broken",
		Email:        "broken@x.com",
		FaceTemplate: []byte{0xde, 0xad},
	}))
	svc := newTestService(repo, &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}})

	_, err := svc.LoginWithBiometric(context.Background(), testPNG(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, biometric.ErrCorruptTemplate)
}

func TestBiometricStoreFaultPropagates(t *testing.T) {
	repo := newMemRepo()
	repo.listErr = errors.New("connection refused")
	svc := newTestService(repo, &stubEncoder{descriptors: []biometric.Descriptor{{0, 0}}})

	_, err := svc.LoginWithBiometric(context.Background(), testPNG(t))
	assert.Error(t, err)
}

// --- dispatch ---

func TestAuthenticateUnknownAttempt(t *testing.T) {
	svc := newTestService(newMemRepo(), &stubEncoder{})

	type weird struct{ Attempt }
	_, err := svc.Authenticate(context.Background(), weird{})
	assert.ErrorIs(t, err, ErrUnknownAttempt)
}

func TestAuthenticateFederationBadState(t *testing.T) {
	repo := newMemRepo()
	resolver := federation.NewResolver(federation.ProviderConfig{
		Name:     "google",
		ClientID: "x",
		AuthURL:  "http://localhost/auth",
		TokenURL: "http://localhost/token",
	}, repo, rejectAllStates{}, time.Second, testLogger())

	svc := NewService(repo, &stubEncoder{}, resolver, testLogger(), 0.6, 0)

	res, err := svc.Authenticate(context.Background(), FederationAttempt{State: "forged", Code: "code"})
	require.NoError(t, err)
	assert.Equal(t, ReasonProviderError, res.Reason)
}

type rejectAllStates struct{}

func (rejectAllStates) Issue(ctx context.Context) (string, error) { return "", nil }
func (rejectAllStates) Consume(ctx context.Context, state string) (bool, error) {
	return false, nil
}
