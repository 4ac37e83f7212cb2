// Package invites drives the invite/accept lifecycle of organization users.
package invites

import (
	"context"
	"fmt"
	netmail "net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/callbacks"
	"github.com/MacJediWizard/orgwarden/internal/directory"
	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/mail"
	"github.com/MacJediWizard/orgwarden/internal/membership"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/rs/zerolog"
)

// DefaultAcceptKeyMaxAge is how long an accept key stays valid when no
// other age is configured.
const DefaultAcceptKeyMaxAge = 24 * time.Hour

// ErrInvitationNotFound is returned for unknown, mismatched and expired keys
// alike.
var ErrInvitationNotFound = &errs.Error{Code: errs.ENotFound, Msg: "invitation not found or expired"}

// Config holds the invitation settings.
type Config struct {
	AcceptKeyMaxAge time.Duration
	DefaultLanguage string
	BaseURL         string // base of the accept and decline links
}

// Invitation is the public view of a pending invitation.
type Invitation struct {
	UserID           int64     `json:"user_id"`
	Login            string    `json:"login"`
	OrganizationID   int64     `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Service handles invitation operations.
type Service struct {
	store      store.Store
	directory  directory.Directory
	callbacks  callbacks.Receiver
	mailer     mail.Dispatcher
	membership *membership.Service
	config     Config
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a new invite service.
func NewService(
	st store.Store,
	dir directory.Directory,
	cb callbacks.Receiver,
	mailer mail.Dispatcher,
	members *membership.Service,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if cfg.AcceptKeyMaxAge <= 0 {
		cfg.AcceptKeyMaxAge = DefaultAcceptKeyMaxAge
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Service{
		store:      st,
		directory:  dir,
		callbacks:  cb,
		mailer:     mailer,
		membership: members,
		config:     cfg,
		now:        time.Now,
		logger:     logger.With().Str("component", "invite_service").Logger(),
	}
}

// GenerateInviteLink builds the link for action ("accept" or "decline").
func (s *Service) GenerateInviteLink(action string, userID int64, key string) string {
	q := url.Values{}
	q.Set("user", strconv.FormatInt(userID, 10))
	q.Set("key", key)
	return fmt.Sprintf("%s/invitations/%s?%s", s.config.BaseURL, action, q.Encode())
}

// Invite issues a fresh accept key to a CREATED or INVITED user and mails the
// invitation. Calling it again resends with a new key. The mail is sent
// inside the transaction; a delivery failure leaves the user untouched.
func (s *Service) Invite(ctx context.Context, actor models.Principal, userID int64) (*models.User, error) {
	var user *models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := validRecipient(user.Login); err != nil {
			return err
		}
		org, err := tx.GetOrganization(ctx, user.OrganizationID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := user.Invite(now); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}

		lang := user.InviteLanguage
		if lang == "" {
			lang = s.config.DefaultLanguage
		}
		msg := mail.Message{
			TemplateKey: mail.TemplateInvite,
			Language:    lang,
			To:          user.Login,
			Variables: map[string]any{
				"Login":            user.Login,
				"OrganizationName": org.Name,
				"InvitedBy":        actor.Login,
				"AcceptURL":        s.GenerateInviteLink("accept", user.ID, user.AcceptKey.Key),
				"DeclineURL":       s.GenerateInviteLink("decline", user.ID, user.AcceptKey.Key),
				"ExpiresAt":        now.Add(s.config.AcceptKeyMaxAge).UTC().Format(time.RFC1123),
			},
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("send invitation to %s: %w", user.Login, err)
		}

		s.logger.Info().
			Int64("user_id", user.ID).
			Int64("org_id", org.ID).
			Str("login", user.Login).
			Str("invited_by", actor.Login).
			Msg("invitation sent")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// validRecipient rejects logins that cannot be used as a mail recipient.
func validRecipient(login string) error {
	if strings.ContainsAny(login, "\r\n") {
		return errs.Invalid("login %q contains a line break", login)
	}
	addr, err := netmail.ParseAddress(login)
	if err != nil || addr.Address != login {
		return errs.Invalid("login %q is not an email address", login)
	}
	return nil
}

// Accept accepts the invitation of userID. Accepting an already accepted
// invitation succeeds without doing anything. An unknown user and a wrong or
// expired key are both reported as ErrInvitationNotFound.
//
// The status change is committed first. The callback receiver and the
// directory are told afterwards; their failures are returned with code
// EUnavailable but do not undo the acceptance.
func (s *Service) Accept(ctx context.Context, userID int64, key string) (*models.User, error) {
	user, _, err := s.accept(ctx, userID, key)
	return user, err
}

// Redeem accepts an invitation on behalf of an anonymous link holder. Unlike
// Accept it neither returns the user nor tells an accepted invitation apart
// from an unknown one: both answer ErrInvitationNotFound.
func (s *Service) Redeem(ctx context.Context, userID int64, key string) error {
	_, changed, err := s.accept(ctx, userID, key)
	if err != nil {
		return err
	}
	if !changed {
		return ErrInvitationNotFound
	}
	return nil
}

func (s *Service) accept(ctx context.Context, userID int64, key string) (*models.User, bool, error) {
	var (
		user    *models.User
		org     *models.Organization
		changed bool
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = s.invitedUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.IsAccepted() {
			return nil
		}
		if !user.AcceptKey.ValidAt(key, s.now(), s.config.AcceptKeyMaxAge) {
			return ErrInvitationNotFound
		}
		org, err = tx.GetOrganization(ctx, user.OrganizationID)
		if err != nil {
			return err
		}
		changed = user.Accept()
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return user, false, nil
	}

	s.logger.Info().Int64("user_id", user.ID).Int64("org_id", org.ID).Str("login", user.Login).Msg("invitation accepted")

	if err := s.syncAccepted(ctx, org, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Str("login", user.Login).
			Msg("invitation accepted but post-accept sync failed")
		return user, true, &errs.Error{Code: errs.EUnavailable, Msg: "invitation accepted, synchronization incomplete", Err: err}
	}
	return user, true, nil
}

// invitedUser loads the user an invite link names, hiding whether it exists.
func (s *Service) invitedUser(ctx context.Context, tx store.Store, userID int64) (*models.User, error) {
	user, err := tx.GetUser(ctx, userID)
	if errs.Is(err, errs.ENotFound) {
		return nil, ErrInvitationNotFound
	}
	return user, err
}

func (s *Service) syncAccepted(ctx context.Context, org *models.Organization, user *models.User) error {
	if err := s.callbacks.UserAccepted(ctx, callbacks.UserEvent{Login: user.Login, OrganizationID: org.ID}); err != nil {
		return fmt.Errorf("notify acceptance: %w", err)
	}
	if err := s.directory.UnblockUser(ctx, user.Login); err != nil {
		return fmt.Errorf("unblock directory user: %w", err)
	}

	var roles []string
	for _, r := range user.RoleIdentifiers() {
		if r != "" {
			roles = append(roles, r)
		}
	}
	if user.IsAdmin {
		roles = append(roles, org.Role)
	}
	if err := s.directory.AssignRolesToUser(ctx, user.Login, roles); err != nil {
		return fmt.Errorf("assign directory roles: %w", err)
	}
	return nil
}

// Preview returns who a pending invitation is for.
func (s *Service) Preview(ctx context.Context, key string) (*Invitation, error) {
	if key == "" {
		return nil, ErrInvitationNotFound
	}
	user, err := s.store.GetUserByAcceptKey(ctx, key)
	if err != nil {
		if errs.Is(err, errs.ENotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	if !user.AcceptKey.ValidAt(key, s.now(), s.config.AcceptKeyMaxAge) {
		return nil, ErrInvitationNotFound
	}
	org, err := s.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &Invitation{
		UserID:           user.ID,
		Login:            user.Login,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ExpiresAt:        user.AcceptKey.Timestamp.Add(s.config.AcceptKeyMaxAge),
	}, nil
}

// Decline deletes the invited user. The key must be valid, which rules out
// users that never got an invitation and those that already accepted.
func (s *Service) Decline(ctx context.Context, userID int64, key string) error {
	return s.store.InTx(ctx, func(tx store.Store) error {
		user, err := s.invitedUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.IsAccepted() || !user.AcceptKey.ValidAt(key, s.now(), s.config.AcceptKeyMaxAge) {
			return ErrInvitationNotFound
		}
		if err := s.membership.WithStore(tx).DeleteUser(ctx, user.ID); err != nil {
			return err
		}
		s.logger.Info().Int64("user_id", user.ID).Str("login", user.Login).Msg("invitation declined")
		return nil
	})
}
