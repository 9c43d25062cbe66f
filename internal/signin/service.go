// Package signin ties detection, encoding, matching and the registry into the sign-in and
// registration flows.
package signin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/config"
	"github.com/kozaktomas/face-signin/internal/detector"
	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/photostore"
	"github.com/kozaktomas/face-signin/internal/registry"
)

// TokenIssuer creates a session token for a granted sign-in.
type TokenIssuer interface {
	Issue(clientID facematch.Identity, score float64) (string, error)
}

// Options wire a Service.
type Options struct {
	Detector    detector.Detector
	Store       registry.Store
	Photos      photostore.Store
	Tokens      TokenIssuer
	Calibration config.Calibration
	Index       *registry.NearestIndex // optional
	Metrics     *Metrics               // optional
	Logger      *logrus.Logger         // optional
}

// Service runs sign-in and registration.
type Service struct {
	detector  detector.Detector
	encoder   *facematch.Encoder
	store     registry.Store
	photos    photostore.Store
	tokens    TokenIssuer
	matcher   facematch.Matcher
	duplicate facematch.Matcher
	index     *registry.NearestIndex
	metrics   *Metrics
	log       *logrus.Logger
}

// NewService validates the calibration and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Detector == nil || opts.Store == nil || opts.Photos == nil || opts.Tokens == nil {
		return nil, errors.New("detector, store, photos and tokens are required")
	}
	encoder, err := facematch.NewEncoder(opts.Calibration.Mode)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	matcher, err := facematch.NewMatcher(opts.Calibration.Metric, opts.Calibration.Threshold)
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}
	duplicate, err := facematch.NewMatcher(opts.Calibration.Metric, opts.Calibration.DuplicateThreshold)
	if err != nil {
		return nil, fmt.Errorf("creating duplicate matcher: %w", err)
	}
	if !opts.Calibration.Metric.Supports(encoder.Kind()) {
		return nil, fmt.Errorf("metric %s cannot compare %s encodings", opts.Calibration.Metric, encoder.Kind())
	}

	s := &Service{
		detector:  opts.Detector,
		encoder:   encoder,
		store:     opts.Store,
		photos:    opts.Photos,
		tokens:    opts.Tokens,
		matcher:   matcher,
		duplicate: duplicate,
		index:     opts.Index,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	return s, nil
}

// Mode returns the active encoder mode.
func (s *Service) Mode() facematch.Mode {
	return s.encoder.Mode()
}

// SignInResult is the answer to a sign-in attempt. Score is reported for denied attempts too.
type SignInResult struct {
	Granted bool             `json:"granted"`
	Score   float64          `json:"score"`
	Client  *registry.Client `json:"client,omitempty"`
	Token   string           `json:"token,omitempty"`
}

// SignIn detects the face in image and matches it against the gallery.
// A frame without a face returns ErrRetryCapture; a face nobody matches returns a denied result
// and no error.
func (s *Service) SignIn(ctx context.Context, image []byte) (*SignInResult, error) {
	query, err := s.encode(ctx, image)
	if err != nil {
		s.metrics.signIn(outcomeFor(err))
		return nil, err
	}

	gallery, err := s.store.Gallery(ctx, s.encoder.Kind())
	if err != nil {
		s.metrics.signIn(OutcomeError)
		return nil, fmt.Errorf("loading gallery: %w", err)
	}

	result, err := s.matcher.Match(query, gallery)
	if err != nil {
		s.metrics.signIn(OutcomeError)
		s.log.WithError(err).WithField("gallery_size", len(gallery)).Error("gallery inconsistent with encoder")
		return nil, fmt.Errorf("matching: %w", err)
	}
	s.metrics.observeScore(result.Score)

	if !result.Matched {
		s.metrics.signIn(OutcomeDenied)
		s.log.WithFields(logrus.Fields{
			"score":        result.Score,
			"gallery_size": len(gallery),
		}).Info("sign-in denied")
		return &SignInResult{Score: result.Score}, nil
	}

	client, err := s.store.GetClient(ctx, result.Identity)
	if err != nil {
		s.metrics.signIn(OutcomeError)
		return nil, fmt.Errorf("loading matched client %s: %w", result.Identity, err)
	}
	token, err := s.tokens.Issue(result.Identity, result.Score)
	if err != nil {
		s.metrics.signIn(OutcomeError)
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.metrics.signIn(OutcomeGranted)
	s.log.WithFields(logrus.Fields{
		"client_id": result.Identity,
		"score":     result.Score,
	}).Info("sign-in granted")
	return &SignInResult{Granted: true, Score: result.Score, Client: client, Token: token}, nil
}

// NewClient is a registration request.
type NewClient struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	UnitNumber   string `json:"unit_number"`
	BuildingName string `json:"building_name"`
}

func (n NewClient) validate() error {
	if strings.TrimSpace(n.FirstName) == "" || strings.TrimSpace(n.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalidClient)
	}
	return nil
}

// Register enrolls a new client from a photo. A face that already matches a registered client
// is refused with a *DuplicateError.
func (s *Service) Register(ctx context.Context, req NewClient, image []byte) (*registry.Client, error) {
	if err := req.validate(); err != nil {
		s.metrics.registration(OutcomeError)
		return nil, err
	}

	enc, err := s.encode(ctx, image)
	if err != nil {
		s.metrics.registration(outcomeFor(err))
		return nil, err
	}

	gallery, err := s.store.Gallery(ctx, s.encoder.Kind())
	if err != nil {
		s.metrics.registration(OutcomeError)
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	dup, err := s.duplicate.Match(enc, gallery)
	if err != nil {
		s.metrics.registration(OutcomeError)
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if dup.Matched {
		s.metrics.registration(OutcomeDenied)
		s.log.WithFields(logrus.Fields{
			"client_id": dup.Identity,
			"score":     dup.Score,
		}).Warn("registration refused, face already registered")
		return nil, &DuplicateError{Identity: dup.Identity, Score: dup.Score}
	}

	client := &registry.Client{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.TrimSpace(req.Email),
		Role:         req.Role,
		UnitNumber:   req.UnitNumber,
		BuildingName: req.BuildingName,
		Status:       registry.DefaultStatus(),
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		s.metrics.registration(OutcomeError)
		return nil, fmt.Errorf("creating client: %w", err)
	}
	if err := s.enroll(ctx, client.ID, enc, image); err != nil {
		s.metrics.registration(OutcomeError)
		if delErr := s.remove(ctx, client.ID); delErr != nil {
			s.log.WithError(delErr).WithField("client_id", client.ID).Error("rollback of partial registration failed")
		}
		return nil, err
	}

	s.metrics.registration(OutcomeGranted)
	s.log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"name":      client.FullName(),
	}).Info("client registered")
	s.refreshIndexQuietly(ctx)
	return client, nil
}

func (s *Service) enroll(ctx context.Context, id facematch.Identity, enc facematch.Encoding, image []byte) error {
	if err := s.store.SaveEncoding(ctx, id, enc); err != nil {
		return fmt.Errorf("saving encoding: %w", err)
	}
	if err := s.photos.Put(ctx, id, image); err != nil {
		return fmt.Errorf("storing photo: %w", err)
	}
	return nil
}

// DeleteClient removes a client with its encoding, tasks and profile photo.
func (s *Service) DeleteClient(ctx context.Context, id facematch.Identity) error {
	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.log.WithField("client_id", id).Info("client deleted")
	s.refreshIndexQuietly(ctx)
	return nil
}

// remove deletes the registry record first so a failed photo delete never leaves a matchable client.
func (s *Service) remove(ctx context.Context, id facematch.Identity) error {
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("deleting client %s: %w", id, err)
	}
	if err := s.photos.Delete(ctx, id); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		return fmt.Errorf("deleting photo of %s: %w", id, err)
	}
	return nil
}

// Reencode recomputes a client's encoding from the stored photo with the active encoder.
func (s *Service) Reencode(ctx context.Context, id facematch.Identity) error {
	image, err := s.photos.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading photo of %s: %w", id, err)
	}
	enc, err := s.encode(ctx, image)
	if err != nil {
		return fmt.Errorf("encoding photo of %s: %w", id, err)
	}
	if err := s.store.SaveEncoding(ctx, id, enc); err != nil {
		return fmt.Errorf("saving encoding of %s: %w", id, err)
	}
	return nil
}

// Rank scores image against the whole gallery and returns the k best entries.
func (s *Service) Rank(ctx context.Context, image []byte, k int) ([]facematch.ScoredEntry, error) {
	query, err := s.encode(ctx, image)
	if err != nil {
		return nil, err
	}
	gallery, err := s.store.Gallery(ctx, s.encoder.Kind())
	if err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	ranked, err := facematch.Rank(query, gallery, s.matcher.Metric, k)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return ranked, nil
}

// Nearest looks image up in the approximate nearest-identity index.
func (s *Service) Nearest(ctx context.Context, image []byte, k int) ([]registry.Neighbor, error) {
	if s.index == nil {
		return nil, errors.New("nearest index not configured")
	}
	query, err := s.encode(ctx, image)
	if err != nil {
		return nil, err
	}
	neighbors, err := s.index.Nearest(query, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return neighbors, nil
}

// RefreshIndex rebuilds the nearest-identity index from the vector gallery.
func (s *Service) RefreshIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	gallery, err := s.store.Gallery(ctx, facematch.KindVector)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	if err := s.index.Build(gallery); err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	return nil
}

func (s *Service) refreshIndexQuietly(ctx context.Context) {
	if err := s.RefreshIndex(ctx); err != nil {
		s.log.WithError(err).Warn("nearest index refresh failed")
	}
}

// encode runs the detector and the encoder. No-face frames become ErrRetryCapture.
func (s *Service) encode(ctx context.Context, image []byte) (facematch.Encoding, error) {
	start := time.Now()
	out := s.detector.Detect(ctx, image)
	s.metrics.observeDetect(start)

	outcome := s.encoder.Encode(out)
	switch outcome.Status {
	case facematch.StatusEncoded:
		return outcome.Encoding, nil
	case facematch.StatusNoFace:
		return facematch.Encoding{}, fmt.Errorf("%w: %w", ErrRetryCapture, facematch.ErrNoFace)
	default:
		s.log.WithError(outcome.Err).Warn("face detector failed")
		return facematch.Encoding{}, fmt.Errorf("%w: %w", ErrDetector, outcome.AsError())
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrRetryCapture) {
		return OutcomeRetry
	}
	return OutcomeError
}
