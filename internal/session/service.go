package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/spliteth/spliteth/internal/account"
	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/digest"
	"github.com/spliteth/spliteth/internal/identity"
	"github.com/spliteth/spliteth/internal/logging"
	"github.com/spliteth/spliteth/internal/notification"
)

// DefaultDuration is how long an activated session stays valid on chain.
const DefaultDuration = 30 * 24 * time.Hour

const (
	msgMissingData  = "Missing data in request"
	msgUnauthorized = "Unauthorized"
)

// Signer is the provider identity as seen by the protocol.
type Signer interface {
	Address() common.Address
	SignDigestHex(digest common.Hash) (string, error)
}

// Provisioner deploys accounts and activates sessions on them.
type Provisioner interface {
	GetOrDeploy(ctx context.Context, provider common.Address, secondFactor [32]byte) (account.Account, error)
	ActivateSession(ctx context.Context, acct account.Account, session common.Address, duration time.Duration) (account.Activation, error)
}

// Options configure a Service.
type Options struct {
	// Store records issued codes. Nil or a zero CodeTTL disables the check
	// and Start relies on the signatures alone.
	Store           CodeStore
	CodeTTL         time.Duration
	SessionDuration time.Duration
	Logger          *slog.Logger
}

// Service runs the two-step session handshake.
type Service struct {
	signer      Signer
	provisioner Provisioner
	notifier    notification.Notifier
	store       CodeStore
	codeTTL     time.Duration
	duration    time.Duration
	logger      *slog.Logger
	now         func() time.Time
	newCode     func() (string, error)
}

// NewService builds a session service.
func NewService(signer Signer, provisioner Provisioner, notifier notification.Notifier, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	duration := opts.SessionDuration
	if duration <= 0 {
		duration = DefaultDuration
	}
	store := opts.Store
	if opts.CodeTTL <= 0 {
		store = nil
	}
	return &Service{
		signer:      signer,
		provisioner: provisioner,
		notifier:    notifier,
		store:       store,
		codeTTL:     opts.CodeTTL,
		duration:    duration,
		logger:      logger,
		now:         time.Now,
		newCode:     NewCode,
	}
}

// Provider returns the provider address responses are signed with.
func (s *Service) Provider() common.Address {
	return s.signer.Address()
}

// Request verifies the session key's proof over the second factor, issues a
// fresh code, signs the response digest binding it and sends the code by SMS.
func (s *Service) Request(ctx context.Context, in RequestInput) (RequestResult, error) {
	if in.SecondFactor == "" || in.SessionAddress == "" || in.Signature == "" {
		return RequestResult{}, apperr.BadRequest(msgMissingData)
	}
	sf, session, err := parseParty(in.SecondFactor, in.SessionAddress)
	if err != nil {
		return RequestResult{}, err
	}
	if err := identity.Verify(digest.RequestDigest(session, sf), in.Signature, session); err != nil {
		return RequestResult{}, apperr.Wrap(apperr.ErrUnauthorized, msgUnauthorized, err)
	}

	code, err := s.newCode()
	if err != nil {
		return RequestResult{}, err
	}
	provider := s.signer.Address()
	response := digest.ResponseDigest(provider, sf, session, code)
	signature, err := s.signer.SignDigestHex(response)
	if err != nil {
		return RequestResult{}, err
	}

	if s.store != nil {
		issued := Issued{Digest: response, IssuedAt: s.now().UTC()}
		if err := s.store.Save(ctx, StoreKey(provider, sf), issued, s.codeTTL); err != nil {
			return RequestResult{}, apperr.Wrap(apperr.ErrServiceUnavailable, "Code store unavailable", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindSessionCode,
			Destination: in.SecondFactor,
			Body:        SMSBody(code),
		}); err != nil {
			s.logger.Warn("code delivery failed",
				slog.String("destination", logging.MaskPhone(in.SecondFactor)),
				slog.Any("error", err),
			)
		}
	}

	s.logger.Info("session code issued",
		slog.String("destination", logging.MaskPhone(in.SecondFactor)),
		slog.String("session", session.Hex()),
	)
	return RequestResult{
		Provider:       provider,
		Salt:           in.SecondFactor,
		SessionAddress: in.SessionAddress,
		Signature:      signature,
	}, nil
}

// Start checks both proofs from the session key, provisions the account if
// needed and activates the session on it.
func (s *Service) Start(ctx context.Context, in StartInput) (StartResult, error) {
	if in.SecondFactor == "" || in.Salt == "" || in.SaltSignature == "" || in.SessionAddress == "" || in.SessionSignature == "" {
		return StartResult{}, apperr.BadRequest(msgMissingData)
	}
	sf, session, err := parseParty(in.SecondFactor, in.SessionAddress)
	if err != nil {
		return StartResult{}, err
	}
	provider := s.signer.Address()

	response := digest.ResponseDigest(provider, sf, session, in.Salt)
	if err := identity.Verify(response, in.SaltSignature, session); err != nil {
		return StartResult{}, apperr.Wrap(apperr.ErrUnauthorized, msgUnauthorized, err)
	}
	if err := identity.Verify(digest.SessionDigest(provider, sf), in.SessionSignature, session); err != nil {
		return StartResult{}, apperr.Wrap(apperr.ErrUnauthorized, msgUnauthorized, err)
	}

	key := StoreKey(provider, sf)
	var issued Issued
	if s.store != nil {
		if issued, err = s.claimIssued(ctx, key, response); err != nil {
			return StartResult{}, err
		}
	}

	acct, err := s.provisioner.GetOrDeploy(ctx, provider, sf)
	if err != nil {
		s.restoreIssued(ctx, key, issued)
		return StartResult{}, err
	}
	activation, err := s.provisioner.ActivateSession(ctx, acct, session, s.duration)
	if err != nil {
		s.restoreIssued(ctx, key, issued)
		return StartResult{}, err
	}

	s.logger.Info("session started",
		slog.String("account", acct.Address.Hex()),
		slog.String("session", session.Hex()),
		slog.String("tx", activation.TxHash.Hex()),
	)
	return StartResult{Account: acct, Activation: activation}, nil
}

// claimIssued consumes the record for key if it holds response, so that
// concurrent starts with the same code cannot both proceed. A mismatching
// code leaves the record in place.
func (s *Service) claimIssued(ctx context.Context, key string, response common.Hash) (Issued, error) {
	issued, err := s.store.Consume(ctx, key, response)
	switch {
	case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrCodeMismatch):
		return Issued{}, apperr.Wrap(apperr.ErrUnauthorized, msgUnauthorized, err)
	case err != nil:
		return Issued{}, apperr.Wrap(apperr.ErrServiceUnavailable, "Code store unavailable", err)
	}
	if s.now().Sub(issued.IssuedAt) >= s.codeTTL {
		return Issued{}, apperr.Wrap(apperr.ErrUnauthorized, msgUnauthorized, errors.New("code expired"))
	}
	return issued, nil
}

// restoreIssued gives a claimed code back after a chain failure so the
// caller can retry with it. A code issued in the meantime wins.
func (s *Service) restoreIssued(ctx context.Context, key string, issued Issued) {
	if s.store == nil {
		return
	}
	remaining := s.codeTTL - s.now().Sub(issued.IssuedAt)
	if remaining <= 0 {
		return
	}
	if err := s.store.Restore(context.WithoutCancel(ctx), key, issued, remaining); err != nil {
		s.logger.Warn("restore code failed", slog.Any("error", err))
	}
}

func parseParty(secondFactor, sessionAddress string) ([32]byte, common.Address, error) {
	sf, err := digest.SecondFactor(secondFactor)
	if err != nil {
		return sf, common.Address{}, apperr.Wrap(apperr.ErrBadRequest, "Invalid second factor", err)
	}
	session, err := identity.ParseAddress(sessionAddress)
	if err != nil {
		return sf, common.Address{}, apperr.Wrap(apperr.ErrBadRequest, "Invalid session address", err)
	}
	return sf, session, nil
}
