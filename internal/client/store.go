package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

var (
	authBucket   = []byte("auth")
	draftsBucket = []byte("drafts")

	tokenKey = []byte("token")
	userKey  = []byte("user")
)

// ErrNoDraft is returned when no draft is saved under a name.
var ErrNoDraft = errors.New("draft not found")

// Draft is a saved, unsent referral form.
type Draft struct {
	Name    string              `json:"name"`
	Form    *apiclient.Referral `json:"form"`
	SavedAt time.Time           `json:"saved_at"`
}

// Store keeps the CLI session token, the logged-in user and form drafts in a
// local bolt file.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state file %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{authBucket, draftsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveSession(token string, user *apiclient.User) error {
	u, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Put(tokenKey, []byte(token)); err != nil {
			return err
		}
		return b.Put(userKey, u)
	})
}

func (s *Store) ClearSession() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Delete(tokenKey); err != nil {
			return err
		}
		return b.Delete(userKey)
	})
}

// Token returns the saved token, or "" when logged out. It makes Store an
// apiclient.TokenSource.
func (s *Store) Token() (string, error) {
	var tok string
	err := s.db.View(func(tx *bolt.Tx) error {
		tok = string(tx.Bucket(authBucket).Get(tokenKey))
		return nil
	})
	return tok, err
}

// User returns the saved user, or nil when logged out.
func (s *Store) User() (*apiclient.User, error) {
	var u *apiclient.User
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(authBucket).Get(userKey)
		if raw == nil {
			return nil
		}
		u = &apiclient.User{}
		return json.Unmarshal(raw, u)
	})
	return u, err
}

func (s *Store) SaveDraft(name string, form *apiclient.Referral) (*Draft, error) {
	d := &Draft{Name: name, Form: form, SavedAt: s.now().UTC()}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Put([]byte(name), raw)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) LoadDraft(name string) (*Draft, error) {
	var d *Draft
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(draftsBucket).Get([]byte(name))
		if raw == nil {
			return ErrNoDraft
		}
		d = &Draft{}
		return json.Unmarshal(raw, d)
	})
	return d, err
}

// ClearDraft removes a draft. Clearing a missing draft is not an error.
func (s *Store) ClearDraft(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Delete([]byte(name))
	})
}

// ListDrafts returns drafts ordered by name.
func (s *Store) ListDrafts() ([]*Draft, error) {
	var out []*Draft
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).ForEach(func(_, v []byte) error {
			d := &Draft{}
			if err := json.Unmarshal(v, d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}
