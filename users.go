package shopcache

import (
	"context"
	"net/mail"
	"strings"

	"github.com/unkn0wn-root/shopcache/internal/keys"
	"github.com/unkn0wn-root/shopcache/model"
	"github.com/unkn0wn-root/shopcache/recordstore"
)

// UserUpdate carries the fields an update may change; nil means keep.
type UserUpdate struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	IsAdmin *bool   `json:"isAdmin,omitempty"`
}

// RegisterUser stores a new user. Emails are unique, compared normalized.
func (s *Shop) RegisterUser(ctx context.Context, u *model.User) (*model.User, error) {
	if u == nil || strings.TrimSpace(u.Name) == "" {
		return nil, invalid("user name is required")
	}
	email, err := normalizeEmail(u.Email)
	if err != nil {
		return nil, err
	}
	taken, err := s.EmailRegistered(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}
	u.Email = email
	saved, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.trackEmail(ctx, email)
	return saved, nil
}

func normalizeEmail(raw string) (string, error) {
	email := keys.NormalizeEmail(raw)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", invalid("email %q", raw)
	}
	return email, nil
}

// EmailRegistered checks the cached email set first and confirms a miss
// against the record store, repairing the set on a store hit.
func (s *Shop) EmailRegistered(ctx context.Context, email string) (bool, error) {
	email = keys.NormalizeEmail(email)
	ok, err := s.provider.SIsMember(ctx, keys.Emails, email)
	if err != nil {
		s.log.Warn("email set unavailable; checking record store", Fields{"err": err})
		s.hooks.CacheFallback(keys.Emails, err)
	} else if ok {
		return true, nil
	}
	found, err := s.users.Find(ctx, recordstore.Filter{"email": email})
	if err != nil {
		return false, err
	}
	if len(found) == 0 {
		return false, nil
	}
	s.trackEmail(ctx, email)
	return true, nil
}

func (s *Shop) trackEmail(ctx context.Context, email string) {
	if err := s.provider.SAdd(ctx, keys.Emails, email); err != nil {
		s.log.Warn("email set update failed", Fields{"err": err})
		s.hooks.MirrorFailed(keys.Emails, err)
	}
}

func (s *Shop) forgetEmail(ctx context.Context, email string) {
	if err := s.provider.SRem(ctx, keys.Emails, email); err != nil {
		s.log.Warn("email set update failed", Fields{"err": err})
		s.hooks.MirrorFailed(keys.Emails, err)
	}
}

// ListUsers returns every user from the record store.
func (s *Shop) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.users.Find(ctx, nil)
}

func (s *Shop) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Shop) UpdateUser(ctx context.Context, id string, up UserUpdate) (*model.User, error) {
	u, err := s.users.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	oldEmail := u.Email
	if up.Name != nil {
		if strings.TrimSpace(*up.Name) == "" {
			return nil, invalid("user name is required")
		}
		u.Name = *up.Name
	}
	if up.Email != nil {
		email, err := normalizeEmail(*up.Email)
		if err != nil {
			return nil, err
		}
		if email != oldEmail {
			taken, err := s.EmailRegistered(ctx, email)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrEmailTaken
			}
		}
		u.Email = email
	}
	if up.IsAdmin != nil {
		u.IsAdmin = *up.IsAdmin
	}
	saved, err := s.users.Save(ctx, u)
	if err != nil {
		return nil, err
	}
	if saved.Email != oldEmail {
		s.forgetEmail(ctx, oldEmail)
		s.trackEmail(ctx, saved.Email)
	}
	return saved, nil
}

// DeleteUser removes a non-admin user.
func (s *Shop) DeleteUser(ctx context.Context, id string) error {
	u, err := s.users.Load(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return ErrAdminUser
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.forgetEmail(ctx, u.Email)
	return nil
}
